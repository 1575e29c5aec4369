package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"edufund/internal/amqp"
	"edufund/internal/ports"
	"edufund/internal/sheets"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// Interval is how often the sheet is reconciled without a ledger event (default: 5m)
	Interval time.Duration

	// Timeout bounds a single reconciliation (default: 30s)
	Timeout time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		Interval: 5 * time.Minute,
		Timeout:  30 * time.Second,
	}
}

// SyncProcessor mirrors the stored monthly financials into the summary sheet,
// on every ledger event and on a fixed interval.
type SyncProcessor struct {
	financials ports.FinancialStore
	mirror     sheets.FinancialMirror
	config     SyncProcessorConfig

	// syncMu keeps event-driven and periodic runs from interleaving writes
	syncMu sync.Mutex

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(financials ports.FinancialStore, mirror sheets.FinancialMirror, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{
		financials: financials,
		mirror:     mirror,
		config:     config,
	}
}

// HandleLedgerChanged is the AMQP handler. An error leaves the message for redelivery.
func (p *SyncProcessor) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	slog.InfoContext(ctx, "Processing ledger change",
		"message_id", msg.ID,
		"record_kind", msg.Kind,
		"record_id", msg.RecordID,
		"action", msg.Action)

	if _, err := p.Sync(ctx); err != nil {
		return fmt.Errorf("sync after %s: %w", msg.ID, err)
	}
	return nil
}

// Sync writes the stored financials to the sheet unless it already holds the
// same rows. It reports whether a write happened.
func (p *SyncProcessor) Sync(ctx context.Context) (bool, error) {
	if p.financials == nil || p.mirror == nil {
		return false, errors.New("sync processor not configured")
	}
	p.syncMu.Lock()
	defer p.syncMu.Unlock()

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	fs, err := p.financials.LoadFinancials(ctx)
	if err != nil {
		return false, fmt.Errorf("load financials: %w", err)
	}
	want := make([]sheets.MonthRow, len(fs))
	for i, mf := range fs {
		want[i] = sheets.RowOf(mf)
	}

	current, err := p.mirror.ReadFinancials(ctx)
	if err != nil {
		// an unreadable sheet is rewritten from scratch
		slog.WarnContext(ctx, "Failed to read summary sheet", "error", err)
	} else if slices.Equal(current, want) {
		slog.DebugContext(ctx, "Summary sheet already up to date", "months", len(want))
		return false, nil
	}

	if err := p.mirror.WriteFinancials(ctx, fs); err != nil {
		return false, fmt.Errorf("write sheet: %w", err)
	}
	slog.InfoContext(ctx, "Synced monthly financials to Google Sheets", "months", len(fs))
	return true, nil
}

// Start begins the periodic loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	p.syncLogged(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.syncLogged(ctx)
		}
	}
}

func (p *SyncProcessor) syncLogged(ctx context.Context) {
	if _, err := p.Sync(ctx); err != nil {
		slog.ErrorContext(ctx, "Periodic sheet sync failed", "error", err)
	}
}
