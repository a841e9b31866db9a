package pipeline

import (
	"fmt"
	"net/http"
	"strings"
)

// handleStatus renders a plain-text status page: not part of any external
// contract, just a human-reachable way to confirm the process is alive and
// see which plugins are wired in.
func (h *Host) handleStatus(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder
	fmt.Fprintf(&b, "nezumi listening on %s\n\nplugins:\n", h.addr)
	for _, p := range h.plugins {
		fmt.Fprintf(&b, "  - %s\n", p.Name())
	}

	fmt.Fprintf(&b, "\ndatabases:\n")
	for _, db := range h.databases {
		fmt.Fprintf(&b, "  - dirty=%t\n", db.Dirty())
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(b.String()))
}
