package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"edufund/internal/log"
	"edufund/internal/report"
	"edufund/internal/seed"
)

var (
	exportMonth  string
	exportFormat string
	exportOut    string

	seedForce bool
	seedFile  string
)

// recomputeCmd rebuilds the monthly financials from the ledger
var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild monthly financials from completed records",
	Args:  cobra.NoArgs,
	RunE:  runRecompute,
}

// exportCmd writes one month as a downloadable report
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a month's financial report",
	Long: `Export writes the financial report of one month.

With --out pointing at a directory, the file is named the same way the
API names its downloads.`,
	Example: "  edufundctl export --month 2024-09 --format txt --out ./reports",
	Args:    cobra.NoArgs,
	RunE:    runExport,
}

// seedCmd loads fixture records into an empty ledger
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load sample users, donations and fundings",
	Args:  cobra.NoArgs,
	RunE:  runSeed,
}

func runRecompute(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	env, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	financials, err := env.ledger.Recompute(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, mf := range financials {
		fmt.Fprintf(out, "%s  income %s  expense %s  balance %s\n",
			mf.Month, mf.Income, mf.Expense, mf.Balance)
	}
	logger.Info("Financials recomputed", log.FieldOperation, log.OpRecompute, log.FieldMonths, len(financials))
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := report.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	env, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	mf, err := env.ledger.Financial(ctx, exportMonth)
	if err != nil {
		return err
	}

	w, path, closeOut, err := exportTarget(cmd.OutOrStdout(), exportOut, report.Filename(exportMonth, format))
	if err != nil {
		return err
	}
	if err := report.Write(w, format, mf, env.ledger.Now()); err != nil {
		closeOut()
		return err
	}
	if err := closeOut(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if path != "" {
		logger.Info("Report exported", log.FieldOperation, log.OpExport, log.FieldMonth, exportMonth, "path", path)
	}
	return nil
}

// exportTarget resolves --out. An existing directory receives a file named
// after the month; an empty value means stdout.
func exportTarget(stdout io.Writer, out, filename string) (io.Writer, string, func() error, error) {
	if out == "" {
		return stdout, "", func() error { return nil }, nil
	}
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		out = filepath.Join(out, filename)
	}
	f, err := os.Create(out)
	if err != nil {
		return nil, "", nil, fmt.Errorf("create %s: %w", out, err)
	}
	return f, out, f.Close, nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	fx, err := loadFixture(seedFile)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	env, err := openLedger(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	written, err := seed.Seed(ctx, env.backend.Store, env.accounts, env.ledger, fx, seedForce)
	if err != nil {
		return err
	}
	if !written {
		fmt.Fprintln(cmd.OutOrStdout(), "ledger already has records, use --force to replace them")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d donations, %d fundings\n", len(fx.Donations), len(fx.Fundings))
	return nil
}

func loadFixture(path string) (seed.Fixture, error) {
	if path != "" {
		return seed.LoadFile(path)
	}
	return seed.Sample()
}
