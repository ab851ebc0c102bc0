package core

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	CategoryFood          Category = "FOOD"
	CategoryTransport     Category = "TRANSPORTATION"
	CategoryEntertainment Category = "ENTERTAINMENT"
	CategoryUtilities     Category = "UTILITIES"
	CategoryOther         Category = "OTHER"
)

type (
	// Category is the enumerated tag of an expense. Values outside the known
	// set are legal on the wire and are carried through untouched.
	Category string

	// ExpenseID is the server-assigned identifier. It is opaque to clients:
	// JSON numbers and strings are both accepted and kept as text.
	ExpenseID string

	// Expense is the wire representation served by the collection resource.
	Expense struct {
		ID          ExpenseID `json:"id"`
		Description string    `json:"description"`
		Amount      float64   `json:"amount"`
		Date        string    `json:"date"`
		Category    string    `json:"category"`
	}

	// ExpenseInput is the create payload.
	ExpenseInput struct {
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
		Date        string  `json:"date"`
		Category    string  `json:"category"`
	}

	// Entry is an expense as held by the service, before it is rendered to
	// the wire. Amount is kept in cents.
	Entry struct {
		ID          int64
		Description string
		Amount      Money
		Date        Date
		Category    string
	}
)

var categoryLabels = map[Category]string{
	CategoryFood:          "Food",
	CategoryTransport:     "Transportation",
	CategoryEntertainment: "Entertainment",
	CategoryUtilities:     "Utilities",
	CategoryOther:         "Other",
}

// Categories returns the known categories in form order.
func Categories() []Category {
	return []Category{CategoryFood, CategoryTransport, CategoryEntertainment, CategoryUtilities, CategoryOther}
}

// Label returns the human readable name, or the raw value when unmapped.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Known reports whether c is one of the five enumerants.
func (c Category) Known() bool {
	_, ok := categoryLabels[c]
	return ok
}

func (id ExpenseID) String() string { return string(id) }

// UnmarshalJSON accepts 42, "42" and "abc".
func (id *ExpenseID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ExpenseID(s)
		return nil
	}
	if string(b) == "null" {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ExpenseID(n.String())
	return nil
}

// MarshalJSON emits numeric identifiers as numbers.
func (id ExpenseID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// MarshalJSON encodes a non-finite amount as null, which is what a browser
// JSON encoder does with NaN.
func (in ExpenseInput) MarshalJSON() ([]byte, error) {
	type wire struct {
		Description string   `json:"description"`
		Amount      *float64 `json:"amount"`
		Date        string   `json:"date"`
		Category    string   `json:"category"`
	}
	w := wire{Description: in.Description, Date: in.Date, Category: in.Category}
	if !math.IsNaN(in.Amount) && !math.IsInf(in.Amount, 0) {
		amount := in.Amount
		w.Amount = &amount
	}
	return json.Marshal(w)
}

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date")
)

const (
	// MaxDescriptionLen and MaxCategoryLen count characters, not bytes.
	MaxDescriptionLen = 200
	MaxCategoryLen    = 50
)

// fieldOrder is the order in which field errors are reported.
var fieldOrder = []string{"description", "amount", "date", "category"}

// ValidationError collects per-field messages. Error returns the first one in
// field order.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	for _, k := range fieldOrder {
		if msg, ok := e.Fields[k]; ok {
			return msg
		}
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return "validation failed"
	}
	return e.Fields[keys[0]]
}

// Add records msg for field unless the field already has one.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Invalid returns a ValidationError holding a single field message.
func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Validate checks the stored form of an expense and reports the first
// failure in field order.
func (e Entry) Validate() error {
	switch {
	case strings.TrimSpace(e.Description) == "":
		return Invalid("description", "Expense description cannot be empty")
	case utf8.RuneCountInString(e.Description) > MaxDescriptionLen:
		return Invalid("description", "Expense description too long (max 200 characters)")
	case e.Amount.Validate() != nil:
		return Invalid("amount", "Expense amount must be greater than zero")
	case e.Date.Validate() != nil:
		return Invalid("date", "Expense date cannot be null")
	case strings.TrimSpace(e.Category) == "":
		return Invalid("category", "Expense category cannot be empty")
	case utf8.RuneCountInString(e.Category) > MaxCategoryLen:
		return Invalid("category", "Expense category too long (max 50 characters)")
	}
	return nil
}

// Expense renders the entry in wire form.
func (e Entry) Expense() Expense {
	return Expense{
		ID:          ExpenseID(strconv.FormatInt(e.ID, 10)),
		Description: e.Description,
		Amount:      e.Amount.Float64(),
		Date:        e.Date.String(),
		Category:    e.Category,
	}
}
