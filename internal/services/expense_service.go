// Package services holds the expense service: request validation, storage
// through a pluggable repository and change events on AMQP.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"expenses/internal/amqp"
	"expenses/internal/cache"
	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/metrics"
	"expenses/internal/storage"
)

var (
	ErrInvalidID = errors.New("expense id must be a positive number")
	ErrNotFound  = errors.New("expense not found")
)

// ExpenseRepository is implemented by the memory, SQLite and PostgreSQL stores.
type ExpenseRepository interface {
	CreateExpense(ctx context.Context, e core.Entry) (core.Entry, error)
	ListExpenses(ctx context.Context) ([]core.Entry, error)
	DeleteExpense(ctx context.Context, id int64) error
	Close() error
}

// EventPublisher is implemented by *amqp.Client.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.ExpenseEvent) error
	Close() error
}

// CreateExpenseRequest is the POST body. Pointer fields tell a missing key
// (or null) from an empty value.
type CreateExpenseRequest struct {
	Description *string      `json:"description"`
	Amount      *json.Number `json:"amount"`
	Date        *string      `json:"date"`
	Category    *string      `json:"category"`
}

// NotFoundError reports a delete of an unknown id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Expense not found with id: %d", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ExpenseService orchestrates expense operations across storage and AMQP
type ExpenseService struct {
	storage   ExpenseRepository
	publisher EventPublisher
	cache     cache.ListCache
	logger    *log.Logger
	metrics   *metrics.Metrics
}

type Option func(*ExpenseService)

// WithPublisher enables change events. A nil publisher is ignored.
func WithPublisher(p EventPublisher) Option {
	return func(s *ExpenseService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithCache serves ListExpenses from c until the next write.
func WithCache(c cache.ListCache) Option {
	return func(s *ExpenseService) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *ExpenseService) {
		if l != nil {
			s.logger = l.WithComponent(log.ComponentExpense)
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *ExpenseService) { s.metrics = m }
}

func NewExpenseService(repo ExpenseRepository, opts ...Option) *ExpenseService {
	s := &ExpenseService{
		storage: repo,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListExpenses returns every stored expense in insertion order.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	var gen uint64
	if s.cache != nil {
		cached, g, ok := s.cache.Get(ctx)
		if ok {
			return cached, nil
		}
		gen = g
	}
	entries, err := s.storage.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Expense, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Expense())
	}
	if s.cache != nil {
		s.cache.Set(ctx, gen, out)
	}
	s.logger.DebugContext(ctx, "Fetched expenses", log.FieldCount, len(out))
	return out, nil
}

// CreateExpense validates req, stores it and publishes an expense.created event.
// Validation failures are returned as *core.ValidationError.
func (s *ExpenseService) CreateExpense(ctx context.Context, req CreateExpenseRequest) (core.Expense, error) {
	entry, err := entryFromRequest(req)
	if err != nil {
		s.logger.WarnContext(ctx, "Rejected expense", log.FieldError, err, log.FieldErrorType, log.ErrorTypeValidation)
		return core.Expense{}, err
	}

	saved, err := s.storage.CreateExpense(ctx, entry)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.invalidate(ctx)
	s.metrics.ExpenseCreated()
	if !core.Category(saved.Category).Known() {
		s.logger.DebugContext(ctx, "Stored expense with an unlisted category", log.FieldCategory, saved.Category)
	}
	s.logger.InfoContext(ctx, "Created expense",
		log.FieldExpenseID, saved.ID,
		log.FieldAmountCents, saved.Amount.Cents,
		log.FieldCategory, saved.Category)

	ev := amqp.NewExpenseEvent(amqp.EventExpenseCreated, saved.ID)
	ev.Description = saved.Description
	ev.AmountCents = saved.Amount.Cents
	ev.Date = saved.Date.String()
	ev.Category = saved.Category
	s.publish(ctx, ev)

	return saved.Expense(), nil
}

// DeleteExpense removes id and publishes an expense.deleted event.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidID
	}
	if err := s.storage.DeleteExpense(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "Expense not found", log.FieldExpenseID, id)
			return &NotFoundError{ID: id}
		}
		return fmt.Errorf("delete expense: %w", err)
	}
	s.invalidate(ctx)
	s.metrics.ExpenseDeleted()
	s.logger.InfoContext(ctx, "Deleted expense", log.FieldExpenseID, id)

	s.publish(ctx, amqp.NewExpenseEvent(amqp.EventExpenseDeleted, id))
	return nil
}

// Ping checks the repository when it supports it.
func (s *ExpenseService) Ping(ctx context.Context) error {
	if p, ok := s.storage.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *ExpenseService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}

// publish never fails the request: the record is already stored.
func (s *ExpenseService) publish(ctx context.Context, ev *amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			"type", ev.Type,
			log.FieldExpenseID, ev.ID,
			log.FieldError, err)
	}
}

// Close releases storage, AMQP and cache connections.
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}

// entryFromRequest checks a create request in two passes. The first reports
// every missing or blank field, keyed by field. When all four are present the
// value rules run in field order and only the first failure is returned.
func entryFromRequest(req CreateExpenseRequest) (core.Entry, error) {
	var missing core.ValidationError
	if req.Description == nil || strings.TrimSpace(*req.Description) == "" {
		missing.Add("description", "Description is required")
	}
	if req.Amount == nil || req.Amount.String() == "" {
		missing.Add("amount", "Amount is required")
	}
	if req.Date == nil {
		missing.Add("date", "Date is required")
	}
	if req.Category == nil || strings.TrimSpace(*req.Category) == "" {
		missing.Add("category", "Category is required")
	}
	if len(missing.Fields) > 0 {
		return core.Entry{}, &missing
	}

	entry := core.Entry{
		Description: *req.Description,
		Category:    strings.TrimSpace(*req.Category),
	}
	if utf8.RuneCountInString(entry.Description) > core.MaxDescriptionLen {
		return core.Entry{}, core.Invalid("description", "Expense description too long (max 200 characters)")
	}
	cents, err := amountToCents(*req.Amount)
	if err != nil {
		return core.Entry{}, core.Invalid("amount", "Expense amount must be greater than zero")
	}
	entry.Amount = core.Money{Cents: cents}
	d, err := core.ParseDate(*req.Date)
	if err != nil {
		return core.Entry{}, core.Invalid("date", "Expense date must be a valid YYYY-MM-DD date")
	}
	entry.Date = d

	if err := entry.Validate(); err != nil {
		return core.Entry{}, err
	}
	return entry, nil
}

// amountToCents accepts plain decimals and exponent forms such as 1e2.
func amountToCents(n json.Number) (int64, error) {
	if cents, err := core.ParseDecimalToCents(n.String()); err == nil {
		return cents, nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, core.ErrInvalidAmount
	}
	cents := core.CentsFromFloat(f)
	if cents <= 0 {
		return 0, core.ErrInvalidAmount
	}
	return cents, nil
}
