// Package worker runs the process that mirrors monthly financials to the
// spreadsheet, driven by ledger events and a periodic safety sync.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"edufund/internal/amqp"
	"edufund/internal/log"
)

// LedgerConsumer delivers ledger change events until ctx ends.
type LedgerConsumer interface {
	ConsumeLedgerChanges(ctx context.Context, handler func(context.Context, *amqp.LedgerChangedMessage) error) error
}

// Processor applies events and runs the periodic sync.
type Processor interface {
	HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// SyncWorker ties the event consumer to the sync processor.
type SyncWorker struct {
	consumer    LedgerConsumer
	processor   Processor
	logger      *log.Logger
	stopTimeout time.Duration
}

func NewSyncWorker(consumer LedgerConsumer, processor Processor, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		consumer:    consumer,
		processor:   processor,
		logger:      logger.WithComponent(log.ComponentWorker),
		stopTimeout: 10 * time.Second,
	}
}

// Run blocks until ctx is cancelled or consuming fails for good. The
// periodic loop is stopped before returning.
func (w *SyncWorker) Run(ctx context.Context) error {
	if err := w.processor.Start(ctx); err != nil {
		return fmt.Errorf("start sync processor: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.stopTimeout)
		defer cancel()
		if err := w.processor.Stop(stopCtx); err != nil {
			w.logger.WarnContext(ctx, "Sync processor did not stop cleanly", log.FieldError, err.Error())
		}
	}()

	w.logger.InfoContext(ctx, "Consuming ledger events")
	err := w.consumer.ConsumeLedgerChanges(ctx, w.handle)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume ledger events: %w", err)
	}
	w.logger.InfoContext(ctx, "Ledger event consumer stopped", log.FieldOperation, log.OpShutdown)
	return nil
}

func (w *SyncWorker) handle(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	w.logger.InfoContext(ctx, "Processing ledger event",
		log.FieldMessageID, msg.ID,
		log.FieldRecordKind, msg.Kind,
		log.FieldRecordID, msg.RecordID,
		"action", msg.Action)

	if err := w.processor.HandleLedgerChanged(ctx, msg); err != nil {
		w.logger.ErrorContext(ctx, "Ledger event failed, will be redelivered",
			log.FieldMessageID, msg.ID,
			log.FieldError, err.Error())
		return err
	}
	return nil
}
