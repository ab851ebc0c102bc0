package http

import (
	"time"

	"expenses/internal/core"
	"expenses/internal/view"
)

// pageState records what a view did to its elements during one request. The
// handlers render the dirty parts back to the browser.
type pageState struct {
	form      view.FormValues
	formDirty bool

	title       string
	submitLabel string
	labelsDirty bool

	rows      []view.Row
	listDirty bool

	message      string
	messageKind  view.MessageKind
	visible      bool
	hideAfter    time.Duration
	messageDirty bool
}

func newPageState(form view.FormValues) *pageState {
	return &pageState{
		form:        form,
		title:       view.TextFormTitle,
		submitLabel: view.TextSubmitLabel,
	}
}

func (s *pageState) elements() view.Elements {
	return view.Elements{
		Form:        formElement{s},
		List:        listElement{s},
		Title:       textElement{set: func(t string) { s.title, s.labelsDirty = t, true }},
		SubmitLabel: textElement{set: func(t string) { s.submitLabel, s.labelsDirty = t, true }},
		Message:     messageElement{s},
	}
}

// dirty reports whether anything needs to be sent back.
func (s *pageState) dirty() bool {
	return s.formDirty || s.labelsDirty || s.listDirty || s.messageDirty
}

type formElement struct{ s *pageState }

func (f formElement) Values() view.FormValues { return f.s.form }

func (f formElement) Reset() {
	f.s.form = view.FormValues{}
	f.s.formDirty = true
}

func (f formElement) SetDate(v string) {
	f.s.form.Date = v
	f.s.formDirty = true
}

type listElement struct{ s *pageState }

func (l listElement) Replace(rows []view.Row) {
	l.s.rows = rows
	l.s.listDirty = true
}

type textElement struct{ set func(string) }

func (t textElement) SetText(text string) { t.set(text) }

type messageElement struct{ s *pageState }

func (m messageElement) Show(text string, kind view.MessageKind) {
	m.s.message, m.s.messageKind, m.s.visible = text, kind, true
	m.s.hideAfter = 0
	m.s.messageDirty = true
}

func (m messageElement) Hide() {
	m.s.visible = false
	m.s.messageDirty = true
}

// deferredScheduler hands the hide delay to the page instead of running a
// timer. app.js hides the message, and a newer message cancels the pending
// hide of an older one.
type deferredScheduler struct{ s *pageState }

func (d deferredScheduler) AfterFunc(delay time.Duration, _ func()) {
	d.s.hideAfter = delay
}

// categoryOption is one entry of the category select.
type categoryOption struct {
	Value    string
	Label    string
	Selected bool
}

func categoryOptions(selected string) []categoryOption {
	cats := core.Categories()
	opts := make([]categoryOption, 0, len(cats))
	for _, c := range cats {
		opts = append(opts, categoryOption{
			Value:    string(c),
			Label:    c.Label(),
			Selected: string(c) == selected,
		})
	}
	return opts
}
