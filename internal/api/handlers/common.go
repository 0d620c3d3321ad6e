package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// parseDirection reads the direction query param: 0 (outbound) or
// 1 (inbound), defaulting to 0.
func parseDirection(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("direction")
	if raw == "" {
		return 0, true
	}
	d, err := strconv.Atoi(raw)
	if err != nil || (d != 0 && d != 1) {
		return 0, false
	}
	return d, true
}

// parseList splits a comma-separated query param, dropping empties.
func parseList(r *http.Request, key string) []string {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
