package handlers

import (
	"net/http"
	"strings"
)

// pathParam reads a route parameter. pat stores captures in the query string
// under a leading colon; the net/http mux exposes them through PathValue.
func pathParam(r *http.Request, name string) string {
	if r == nil {
		return ""
	}
	if val := r.URL.Query().Get(":" + name); val != "" {
		return strings.TrimSpace(val)
	}
	return strings.TrimSpace(r.PathValue(name))
}
