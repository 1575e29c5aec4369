package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"edufund/internal/backend"
	"edufund/internal/cli"
	"edufund/internal/config"
	"edufund/internal/log"
	"edufund/internal/services"
)

var (
	// Global flags
	verbose   bool
	storeType string
	dbPath    string

	cfg    *config.Config
	logger *log.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "edufundctl",
	Short: "Administrative tasks for the education fund ledger",
	Long: `edufundctl runs maintenance tasks against the same storage the API uses.

It can rebuild the monthly financials, export a month as CSV or TXT,
load fixture data and apply database migrations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if verbose {
			cfg.LogLevel = "debug"
		}
		if storeType != "" {
			cfg.StorageBackend = storeType
		}
		if dbPath != "" {
			cfg.SQLiteDBPath = dbPath
		}
		// Logs go to stderr so exports can be piped.
		logger = cli.SetupLogger(os.Stderr, cfg, log.ComponentApp)
		return cfg.Validate()
	},
}

// ledgerEnv is the storage and services a command works with.
type ledgerEnv struct {
	backend  *backend.Result
	ledger   *services.LedgerService
	accounts *services.AccountService
}

func openLedger(ctx context.Context) (*ledgerEnv, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	// Admin runs never publish ledger events.
	bcfg.AMQPURL = ""
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return &ledgerEnv{
		backend:  res,
		ledger:   services.NewLedgerService(res.Store, nil),
		accounts: services.NewAccountService(res.Store),
	}, nil
}

func (e *ledgerEnv) Close() {
	if err := e.backend.Close(); err != nil {
		logger.Warn("Backend cleanup failed", log.FieldError, err.Error())
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	return log.IntoContext(cmd.Context(), logger)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&storeType, "store", "", "Storage backend (sqlite|memory), overrides STORAGE_BACKEND")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path, overrides SQLITE_DB_PATH")

	exportCmd.Flags().StringVarP(&exportMonth, "month", "m", "", "Month to export (YYYY-MM)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "Export format (csv|txt)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file or directory (default: stdout)")
	_ = exportCmd.MarkFlagRequired("month")

	seedCmd.Flags().BoolVar(&seedForce, "force", false, "Replace existing donations and fundings")
	seedCmd.Flags().StringVar(&seedFile, "file", "", "YAML fixture to load instead of the bundled sample")

	rootCmd.AddCommand(recomputeCmd, exportCmd, seedCmd, migrateCmd)
}

func main() {
	cli.LoadEnvFile()

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
