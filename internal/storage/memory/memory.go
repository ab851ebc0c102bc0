// Package memory is a process-local expense store.
package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"expenses/internal/core"
	"expenses/internal/storage"
)

// SeedFile is read by NewFromFiles. Each line is
// date;description;amount;category, e.g. 2024-03-01;Lunch;12.50;FOOD.
const SeedFile = "seed_expenses.txt"

type Store struct {
	mu     sync.Mutex
	nextID int64
	items  []core.Entry
}

func New() *Store {
	return &Store{}
}

// NewFromFiles returns a store seeded from base/SeedFile when present.
// Malformed lines are skipped.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, SeedFile)) {
		if e, ok := parseSeedLine(line); ok {
			_, _ = s.CreateExpense(context.Background(), e)
		}
	}
	return s
}

func (s *Store) CreateExpense(_ context.Context, e core.Entry) (core.Entry, error) {
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	s.items = append(s.items, e)
	return e, nil
}

// ListExpenses returns a copy in insertion order.
func (s *Store) ListExpenses(_ context.Context) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(make([]core.Entry, 0, len(s.items)), s.items...), nil
}

func (s *Store) DeleteExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.items {
		if e.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (s *Store) Close() error { return nil }

func parseSeedLine(line string) (core.Entry, bool) {
	parts := strings.Split(line, ";")
	if len(parts) != 4 {
		return core.Entry{}, false
	}
	d, err := core.ParseDate(strings.TrimSpace(parts[0]))
	if err != nil {
		return core.Entry{}, false
	}
	cents, err := core.ParseDecimalToCents(strings.TrimSpace(parts[2]))
	if err != nil {
		return core.Entry{}, false
	}
	return core.Entry{
		Description: strings.TrimSpace(parts[1]),
		Amount:      core.Money{Cents: cents},
		Date:        d,
		Category:    strings.TrimSpace(parts[3]),
	}, true
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
