package view

import (
	"expenses/internal/core"
)

// Columns is the number of cells in every list row.
const Columns = 5

type RowKind int

const (
	RowPlaceholder RowKind = iota
	RowExpense
	RowTotal
)

// Row is one display row of the expense list. Text cells are already
// formatted.
type Row struct {
	Kind        RowKind
	ID          core.ExpenseID
	Description string
	Amount      string
	Date        string
	Category    string
	// Colspan is set on the placeholder row only.
	Colspan int
}

// RenderRows turns a fetched collection into display rows, in the order
// received, followed by the total row. An empty collection yields a single
// placeholder row.
func RenderRows(expenses []core.Expense) []Row {
	if len(expenses) == 0 {
		return []Row{{Kind: RowPlaceholder, Description: TextNoExpenses, Colspan: Columns}}
	}

	rows := make([]Row, 0, len(expenses)+1)
	var total float64
	for _, e := range expenses {
		total += e.Amount
		rows = append(rows, Row{
			Kind:        RowExpense,
			ID:          e.ID,
			Description: e.Description,
			Amount:      core.FormatEuro(e.Amount),
			Date:        core.FormatDisplayDate(e.Date),
			Category:    core.Category(e.Category).Label(),
		})
	}
	return append(rows, Row{
		Kind:        RowTotal,
		Description: TextTotal,
		Amount:      core.FormatEuro(total),
	})
}

func (r Row) IsPlaceholder() bool { return r.Kind == RowPlaceholder }

func (r Row) IsTotal() bool { return r.Kind == RowTotal }
