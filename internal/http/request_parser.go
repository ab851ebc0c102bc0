package http

import (
	"net/http"

	"expenses/internal/view"
)

// maxFormBytes bounds the size of a submitted expense form.
const maxFormBytes = 16 << 10

// parseExpenseForm reads the four expense fields from a form post exactly as
// entered.
func parseExpenseForm(w http.ResponseWriter, r *http.Request) (view.FormValues, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return view.FormValues{}, err
	}
	return view.FormValues{
		Description: r.PostForm.Get("description"),
		Amount:      r.PostForm.Get("amount"),
		Date:        r.PostForm.Get("date"),
		Category:    r.PostForm.Get("category"),
	}, nil
}
