package http

import "net/http"

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// confirmed reports the user's answer to a delete prompt. htmx only sends
// the request once hx-confirm was accepted; other clients must say so.
func confirmed(r *http.Request) bool {
	return isHTMX(r) || r.URL.Query().Get("confirm") == "yes"
}
