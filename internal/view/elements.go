package view

import (
	"context"
	"time"

	"expenses/internal/core"
)

// FormValues are the raw field contents of the expense form.
type FormValues struct {
	Description string
	Amount      string
	Date        string
	Category    string
}

// Form is the data-entry form.
type Form interface {
	Values() FormValues
	Reset()
	SetDate(value string)
}

// List is the container the rendered rows are written into.
type List interface {
	Replace(rows []Row)
}

// Text is a label whose content the view controls.
type Text interface {
	SetText(text string)
}

type MessageKind int

const (
	MessageSuccess MessageKind = iota
	MessageError
)

func (k MessageKind) String() string {
	if k == MessageError {
		return "error"
	}
	return "success"
}

// MessageBox is the transient status area.
type MessageBox interface {
	Show(text string, kind MessageKind)
	Hide()
}

// Elements are the UI pieces the view drives. All are required.
type Elements struct {
	Form        Form
	List        List
	Title       Text
	SubmitLabel Text
	Message     MessageBox
}

// ExpenseAPI is the remote collection resource.
type ExpenseAPI interface {
	List(ctx context.Context) ([]core.Expense, error)
	Create(ctx context.Context, in core.ExpenseInput) (core.Expense, error)
	Delete(ctx context.Context, id core.ExpenseID) error
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Scheduler runs f once after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

// TimerScheduler schedules on the runtime timer.
type TimerScheduler struct{}

func (TimerScheduler) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }
