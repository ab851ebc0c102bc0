// Package worker consumes expense change events.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"expenses/internal/amqp"
	"expenses/internal/core"
	"expenses/internal/log"
)

// ExpenseLister reads the current collection for the startup check.
type ExpenseLister interface {
	List(ctx context.Context) ([]core.Expense, error)
}

// Stats summarises the events handled since start.
type Stats struct {
	Created      int
	Deleted      int
	CreatedCents int64
	LastEvent    time.Time
}

// AuditWorker writes an audit line per expense event and keeps running
// totals. Duplicate deliveries of the same event are counted once.
type AuditWorker struct {
	logger *log.Logger
	lister ExpenseLister

	mu    sync.Mutex
	stats Stats
	seen  map[eventKey]struct{}
}

type eventKey struct {
	typ amqp.EventType
	id  int64
}

// NewAuditWorker returns a worker. lister may be nil, which skips the
// startup check.
func NewAuditWorker(logger *log.Logger, lister ExpenseLister) *AuditWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuditWorker{
		logger: logger.WithComponent(log.ComponentWorker),
		lister: lister,
		seen:   make(map[eventKey]struct{}),
	}
}

// HandleEvent processes a single expense event from AMQP
func (w *AuditWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	key := eventKey{typ: ev.Type, id: ev.ID}

	w.mu.Lock()
	if _, dup := w.seen[key]; dup {
		w.mu.Unlock()
		w.logger.DebugContext(ctx, "Skipping duplicate event", "type", ev.Type, log.FieldExpenseID, ev.ID)
		return nil
	}
	switch ev.Type {
	case amqp.EventExpenseCreated:
		w.stats.Created++
		w.stats.CreatedCents += ev.AmountCents
	case amqp.EventExpenseDeleted:
		w.stats.Deleted++
	default:
		w.mu.Unlock()
		return fmt.Errorf("event type %q: %w", ev.Type, amqp.ErrDiscard)
	}
	w.seen[key] = struct{}{}
	if ev.At.After(w.stats.LastEvent) {
		w.stats.LastEvent = ev.At
	}
	w.mu.Unlock()

	args := []any{
		log.FieldEvent, string(ev.Type),
		log.FieldExpenseID, ev.ID,
		"at", ev.At.Format(time.RFC3339),
	}
	if ev.Type == amqp.EventExpenseCreated {
		args = append(args,
			log.FieldExpenseDesc, ev.Description,
			log.FieldAmountCents, ev.AmountCents,
			log.FieldCategory, ev.Category,
			"date", ev.Date)
	}
	w.logger.InfoContext(ctx, "Expense audit", args...)
	return nil
}

// StartupCheck logs the size and total of the collection so the audit trail
// has a starting point.
func (w *AuditWorker) StartupCheck(ctx context.Context) error {
	if w.lister == nil {
		w.logger.InfoContext(ctx, "No expense source configured, skipping startup check")
		return nil
	}
	expenses, err := w.lister.List(ctx)
	if err != nil {
		return fmt.Errorf("list expenses for startup check: %w", err)
	}
	var total float64
	for _, e := range expenses {
		total += e.Amount
	}
	w.logger.InfoContext(ctx, "Startup check completed",
		log.FieldCount, len(expenses),
		log.FieldAmount, core.FormatEuro(total))
	return nil
}

func (w *AuditWorker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
