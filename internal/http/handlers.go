package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"expenses/internal/log"
	"expenses/internal/view"
)

const readyTimeout = 3 * time.Second

// templateData feeds both the full page and the out-of-band fragments.
type templateData struct {
	Oob           bool
	Title         string
	SubmitLabel   string
	Form          view.FormValues
	Categories    []categoryOption
	Rows          []view.Row
	ConfirmPrompt string
	Message       messageData

	ShowMessage bool
	ShowLabels  bool
	ShowForm    bool
	ShowList    bool
}

type messageData struct {
	Text        string
	Class       string
	Visible     bool
	HideAfterMs int64
}

func newTemplateData(st *pageState, oob bool) templateData {
	return templateData{
		Oob:           oob,
		Title:         st.title,
		SubmitLabel:   st.submitLabel,
		Form:          st.form,
		Categories:    categoryOptions(st.form.Category),
		Rows:          st.rows,
		ConfirmPrompt: view.TextConfirmDelete,
		Message: messageData{
			Text:        st.message,
			Class:       st.messageKind.String(),
			Visible:     st.visible,
			HideAfterMs: st.hideAfter.Milliseconds(),
		},
		ShowMessage: st.messageDirty,
		ShowLabels:  st.labelsDirty,
		ShowForm:    st.formDirty || st.labelsDirty,
		ShowList:    st.listDirty,
	}
}

// newView builds a view over st. The user's answer to a delete prompt comes
// from the request.
func (s *Server) newView(r *http.Request, st *pageState) (*view.View, error) {
	v, err := view.New(view.Config{
		Elements:  st.elements(),
		API:       s.api,
		Confirmer: view.ConfirmFunc(func(string) bool { return confirmed(r) }),
		Scheduler: deferredScheduler{st},
		Now:       s.now,
		Logger:    log.FromContext(r.Context()),
		Metrics:   s.metrics,
	})
	if err != nil {
		return nil, err
	}
	v.Bind()
	return v, nil
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the expense service answers a list request.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	if _, err := s.api.List(ctx); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("expense service unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleIndex renders the full page after initializing a view.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := newPageState(view.FormValues{})
	v, err := s.newView(r, st)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	// load failures are already on the page as a message
	_ = v.Initialize(ctx)

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", newTemplateData(st, false)); err != nil {
		s.fail(w, r, err)
		return
	}
	NewHTMXResponse().BodyHTML(buf.Bytes()).Write(w)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, newPageState(view.FormValues{}), view.EventReady, "", nil)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, r, newPageState(view.FormValues{}), view.EventReset, "", func(b *HTMXResponseBuilder, _ error) {
		b.TriggerFormReset()
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	fv, err := parseExpenseForm(w, r)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Invalid expense form", log.FieldError, err.Error())
		BadRequestError("Invalid form submission").Write(w)
		return
	}

	st := newPageState(fv)
	s.dispatch(w, r, st, view.EventSubmit, "", func(b *HTMXResponseBuilder, _ error) {
		// the form is only reset once the service accepted the expense
		if st.formDirty {
			b.TriggerExpenseCreated().TriggerFormReset()
		}
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.dispatch(w, r, newPageState(view.FormValues{}), view.EventDelete, id, func(b *HTMXResponseBuilder, err error) {
		if err == nil && confirmed(r) {
			b.TriggerExpenseDeleted(id)
		}
	})
}

// dispatch routes ev through a request-scoped view and writes the changed
// elements as out-of-band fragments. Operation failures are already part of
// the rendered message; only wiring errors produce a 500.
func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, st *pageState, ev view.Event, payload string, decorate func(*HTMXResponseBuilder, error)) {
	ctx := r.Context()
	v, err := s.newView(r, st)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	err = v.Dispatch(ctx, ev, payload)
	if errors.Is(err, view.ErrUnknownEvent) || errors.Is(err, view.ErrNotBound) {
		s.fail(w, r, err)
		return
	}

	resp := NewHTMXResponse().Header("HX-Reswap", "none")
	if decorate != nil {
		decorate(resp, err)
	}

	var buf bytes.Buffer
	if st.dirty() {
		if err := s.templates.ExecuteTemplate(&buf, "oob", newTemplateData(st, true)); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	resp.BodyHTML(buf.Bytes()).Write(w)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
		log.FieldPath, r.URL.Path,
		log.FieldError, err.Error())
	InternalServerError("Internal error").Write(w)
}
