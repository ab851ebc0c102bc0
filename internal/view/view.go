// Package view keeps an expense list and a data-entry form in sync with the
// remote expense collection.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/metrics"
)

const (
	TextFormTitle     = "Add New Expense"
	TextSubmitLabel   = "Save Expense"
	TextNoExpenses    = "No expenses found"
	TextTotal         = "Total"
	TextSaved         = "Expense saved successfully!"
	TextDeleted       = "Expense deleted successfully!"
	TextConfirmDelete = "Are you sure you want to delete this expense?"

	// MessageTimeout is how long a status message stays visible.
	MessageTimeout = 5 * time.Second
)

// Event names a UI action routed through the dispatch table.
type Event string

const (
	EventReady  Event = "ready"
	EventSubmit Event = "submit"
	EventReset  Event = "reset"
	EventDelete Event = "delete"
)

// Handler reacts to an event. payload is the expense id for EventDelete and
// empty otherwise.
type Handler func(ctx context.Context, payload string) error

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrNotBound     = errors.New("view not initialized")
)

// Config carries the collaborators of a View.
type Config struct {
	Elements  Elements
	API       ExpenseAPI
	Confirmer Confirmer
	// Scheduler defaults to TimerScheduler.
	Scheduler Scheduler
	// Now defaults to time.Now.
	Now     func() time.Time
	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// View is the expense client view. It holds no expense state: every render
// comes from the most recent fetch.
type View struct {
	el      Elements
	api     ExpenseAPI
	confirm Confirmer
	sched   Scheduler
	now     func() time.Time
	logger  *log.Logger
	metrics *metrics.Metrics

	bindOnce sync.Once
	handlers map[Event]Handler

	// msgMu guards the message box and the generation counter.
	msgMu      sync.Mutex
	generation uint64
}

// New validates cfg and returns an unbound view.
func New(cfg Config) (*View, error) {
	el := cfg.Elements
	if el.Form == nil || el.List == nil || el.Title == nil || el.SubmitLabel == nil || el.Message == nil {
		return nil, errors.New("view: all elements are required")
	}
	if cfg.API == nil {
		return nil, errors.New("view: expense API is required")
	}
	if cfg.Confirmer == nil {
		return nil, errors.New("view: confirmer is required")
	}

	v := &View{
		el:      el,
		api:     cfg.API,
		confirm: cfg.Confirmer,
		sched:   cfg.Scheduler,
		now:     cfg.Now,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if v.sched == nil {
		v.sched = TimerScheduler{}
	}
	if v.now == nil {
		v.now = time.Now
	}
	if v.logger == nil {
		v.logger = log.Discard()
	}
	v.logger = v.logger.WithComponent(log.ComponentView)
	return v, nil
}

// Bind installs the dispatch table. Only the first call has an effect.
func (v *View) Bind() {
	v.bindOnce.Do(func() {
		v.handlers = map[Event]Handler{
			EventReady: func(ctx context.Context, _ string) error {
				return v.LoadList(ctx)
			},
			EventSubmit: func(ctx context.Context, _ string) error {
				return v.SubmitCreate(ctx)
			},
			EventReset: func(context.Context, string) error {
				v.ResetForm()
				return nil
			},
			EventDelete: func(ctx context.Context, id string) error {
				return v.Delete(ctx, core.ExpenseID(id))
			},
		}
	})
}

// Initialize binds the dispatch table, resets the form and loads the list.
func (v *View) Initialize(ctx context.Context) error {
	v.Bind()
	v.ResetForm()
	return v.LoadList(ctx)
}

// Dispatch routes ev to its handler.
func (v *View) Dispatch(ctx context.Context, ev Event, payload string) error {
	if v.handlers == nil {
		return ErrNotBound
	}
	h, ok := v.handlers[ev]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev)
	}
	return h(ctx, payload)
}

// LoadList fetches the collection and replaces the rendered rows. On failure
// the list is left as it was and an error message is shown.
func (v *View) LoadList(ctx context.Context) error {
	expenses, err := v.api.List(ctx)
	v.metrics.ViewOperation(log.OpList, err)
	if err != nil {
		v.logger.WarnContext(ctx, "Failed to load expenses",
			log.FieldOperation, log.OpList,
			log.FieldError, err.Error())
		v.ShowMessage("Error loading expenses: "+err.Error(), MessageError)
		return err
	}

	v.el.List.Replace(RenderRows(expenses))
	v.logger.DebugContext(ctx, "Expense list rendered",
		log.FieldOperation, log.OpList,
		log.FieldCount, len(expenses))
	return nil
}

// SubmitCreate sends the form contents as a new expense. On success the form
// is reset, the confirmation is shown and the list reloaded once.
func (v *View) SubmitCreate(ctx context.Context) error {
	fv := v.el.Form.Values()
	in := core.ExpenseInput{
		Description: fv.Description,
		Amount:      core.ParseAmount(fv.Amount),
		Date:        fv.Date,
		Category:    fv.Category,
	}

	created, err := v.api.Create(ctx, in)
	v.metrics.ViewOperation(log.OpCreate, err)
	if err != nil {
		v.logger.WarnContext(ctx, "Failed to save expense",
			log.FieldOperation, log.OpCreate,
			log.FieldError, err.Error())
		v.ShowMessage("Error: "+err.Error(), MessageError)
		return err
	}

	v.logger.InfoContext(ctx, "Expense saved",
		log.FieldOperation, log.OpCreate,
		log.FieldExpenseID, created.ID.String(),
		log.FieldExpenseDesc, in.Description,
		log.FieldAmount, in.Amount,
		log.FieldCategory, in.Category)

	// Reset first: it clears the message area.
	v.ResetForm()
	v.ShowMessage(TextSaved, MessageSuccess)
	return v.LoadList(ctx)
}

// Delete asks for confirmation and removes the expense. A declined prompt
// issues no request.
func (v *View) Delete(ctx context.Context, id core.ExpenseID) error {
	if !v.confirm.Confirm(TextConfirmDelete) {
		v.logger.DebugContext(ctx, "Delete declined", log.FieldExpenseID, id.String())
		return nil
	}

	err := v.api.Delete(ctx, id)
	v.metrics.ViewOperation(log.OpDelete, err)
	if err != nil {
		v.logger.WarnContext(ctx, "Failed to delete expense",
			log.FieldOperation, log.OpDelete,
			log.FieldExpenseID, id.String(),
			log.FieldError, err.Error())
		v.ShowMessage("Error deleting expense: "+err.Error(), MessageError)
		return err
	}

	v.logger.InfoContext(ctx, "Expense deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldExpenseID, id.String())
	v.ShowMessage(TextDeleted, MessageSuccess)
	return v.LoadList(ctx)
}

// ResetForm clears the form, puts it in create mode with today's date and
// hides any message.
func (v *View) ResetForm() {
	v.el.Form.Reset()
	v.el.Title.SetText(TextFormTitle)
	v.el.SubmitLabel.SetText(TextSubmitLabel)
	v.el.Form.SetDate(core.Today(v.now()).String())
	v.hideMessage()
}

// ShowMessage displays text and schedules it to hide after MessageTimeout.
// A later message is never hidden by an earlier message's timer.
func (v *View) ShowMessage(text string, kind MessageKind) {
	v.msgMu.Lock()
	v.generation++
	gen := v.generation
	v.el.Message.Show(text, kind)
	v.msgMu.Unlock()

	v.sched.AfterFunc(MessageTimeout, func() { v.expireMessage(gen) })
}

func (v *View) expireMessage(gen uint64) {
	v.msgMu.Lock()
	defer v.msgMu.Unlock()
	if gen == v.generation {
		v.el.Message.Hide()
	}
}

func (v *View) hideMessage() {
	v.msgMu.Lock()
	defer v.msgMu.Unlock()
	v.el.Message.Hide()
}
