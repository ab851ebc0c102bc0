package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// ExpenseRow is a row of the expenses table.
type ExpenseRow struct {
	ID          int64
	Description string
	AmountCents int64
	Date        string
	Category    string
	CreatedAt   string
}

const createExpense = `
INSERT INTO expenses (description, amount_cents, date, category)
VALUES (?, ?, ?, ?)
RETURNING id, description, amount_cents, date, category, created_at
`

type CreateExpenseParams struct {
	Description string
	AmountCents int64
	Date        string
	Category    string
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (ExpenseRow, error) {
	row := q.db.QueryRowContext(ctx, createExpense,
		arg.Description,
		arg.AmountCents,
		arg.Date,
		arg.Category,
	)
	var i ExpenseRow
	err := row.Scan(&i.ID, &i.Description, &i.AmountCents, &i.Date, &i.Category, &i.CreatedAt)
	return i, err
}

const listExpenses = `
SELECT id, description, amount_cents, date, category, created_at
FROM expenses
ORDER BY id
`

func (q *Queries) ListExpenses(ctx context.Context) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ExpenseRow
	for rows.Next() {
		var i ExpenseRow
		if err := rows.Scan(&i.ID, &i.Description, &i.AmountCents, &i.Date, &i.Category, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteExpense = `
DELETE FROM expenses WHERE id = ?
`

// DeleteExpense returns the number of rows removed.
func (q *Queries) DeleteExpense(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteExpense, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
