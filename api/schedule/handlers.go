package schedule

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/errandplan/core/agenda"
	"github.com/kilianp07/errandplan/core/events"
	"github.com/kilianp07/errandplan/core/runlog"
	"github.com/kilianp07/errandplan/internal/eventbus"
	"github.com/kilianp07/errandplan/pkg/export"
)

// authorized enforces the bearer token when one is configured.
func authorized(w http.ResponseWriter, r *http.Request, token string) bool {
	if token == "" {
		return true
	}
	if r.Header.Get("Authorization") != "Bearer "+token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

// NewRunsHandler returns an HTTP handler exposing planning runs via
// GET /api/schedule/runs. Requests must include an Authorization header with
// "Bearer <token>" when token is non-empty.
func NewRunsHandler(store runlog.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r, token) {
			return
		}
		q := runlog.Query{}
		if s := r.URL.Query().Get("start"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.Start = t
			}
		}
		if s := r.URL.Query().Get("end"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				q.End = t
			}
		}
		q.DefinitionID = r.URL.Query().Get("definition_id")
		if s := r.URL.Query().Get("limit"); s != "" {
			if n, err := strconv.Atoi(s); err == nil {
				q.Limit = n
			}
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewReplanHandler accepts replan requests via POST /api/schedule/replan and
// publishes them on the bus. The app layer cancels any in-flight pass and
// starts a fresh one; the handler answers 202 before planning happens.
func NewReplanHandler(bus eventbus.EventBus, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !authorized(w, r, token) {
			return
		}
		source := "api"
		var body struct {
			Source string `json:"source"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Source != "" {
			source = body.Source
		}
		bus.Publish(events.ReplanRequested{Source: source, At: time.Now()})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "accepted", "source": source})
	})
}

// NewExportHandler serves the agenda via GET /api/schedule/export. The format
// query parameter selects json (default), csv or ics.
func NewExportHandler(store agenda.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !authorized(w, r, token) {
			return
		}
		f := agenda.Filter{
			DefinitionID: r.URL.Query().Get("definition_id"),
			Category:     r.URL.Query().Get("category"),
			Status:       r.URL.Query().Get("status"),
		}
		if s := r.URL.Query().Get("from"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				f.From = t
			}
		}
		if s := r.URL.Query().Get("to"); s != "" {
			if t, err := time.Parse(time.RFC3339, s); err == nil {
				f.To = t
			}
		}
		entries := store.List(f)

		var err error
		switch r.URL.Query().Get("format") {
		case "", "json":
			w.Header().Set("Content-Type", "application/json")
			err = export.WriteJSON(w, entries)
		case "csv":
			w.Header().Set("Content-Type", "text/csv")
			err = export.WriteCSV(w, entries)
		case "ics":
			w.Header().Set("Content-Type", "text/calendar")
			err = export.WriteICS(w, entries)
		default:
			http.Error(w, "unknown format", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
