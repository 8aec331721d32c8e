package errands

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kilianp07/errandplan/core/agenda"
	"github.com/kilianp07/errandplan/core/estimate"
	"github.com/kilianp07/errandplan/core/metrics/usage"
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

// NewAgendaHandler exposes the live agenda via GET /api/errands/agenda.
// Filters: definition_id, category, status, from, to (RFC3339).
func NewAgendaHandler(store agenda.Store, token string) http.Handler {
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
		type out struct {
			export.Row
			CommittedAt     time.Time  `json:"committed_at"`
			ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
			CompletedAt     *time.Time `json:"completed_at,omitempty"`
			ActualMin       float64    `json:"actual_duration_min,omitempty"`
			ActualTravelMin float64    `json:"actual_travel_min,omitempty"`
		}
		rows := export.Rows(entries)
		outSlice := make([]out, len(entries))
		for i, e := range entries {
			outSlice[i] = out{Row: rows[i], CommittedAt: e.CommittedAt}
			if !e.ConfirmedAt.IsZero() {
				t := e.ConfirmedAt
				outSlice[i].ConfirmedAt = &t
			}
			if !e.CompletedAt.IsZero() {
				t := e.CompletedAt
				outSlice[i].CompletedAt = &t
				outSlice[i].ActualMin = e.Actuals.Duration.Minutes()
				outSlice[i].ActualTravelMin = e.Actuals.Travel.Minutes()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(outSlice); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// NewConfirmHandler pins an instance via POST /api/errands/confirm so later
// passes plan around it.
func NewConfirmHandler(store agenda.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !authorized(w, r, token) {
			return
		}
		var body struct {
			InstanceID string `json:"instance_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.InstanceID == "" {
			http.Error(w, "instance_id is required", http.StatusBadRequest)
			return
		}
		if err := store.Confirm(body.InstanceID); err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "confirmed", "instance_id": body.InstanceID})
	})
}

// NewCompletionHandler records completion feedback via
// POST /api/errands/completion. The reported actuals update the agenda entry
// and feed the duration estimator together with what was planned.
func NewCompletionHandler(store agenda.Store, eng estimate.Engine, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !authorized(w, r, token) {
			return
		}
		var body struct {
			InstanceID      string  `json:"instance_id"`
			ActualMin       float64 `json:"actual_duration_min"`
			ActualTravelMin float64 `json:"actual_travel_min"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.InstanceID == "" {
			http.Error(w, "instance_id is required", http.StatusBadRequest)
			return
		}
		entry, ok := store.Get(body.InstanceID)
		if !ok {
			http.Error(w, agenda.ErrNotFound.Error(), http.StatusNotFound)
			return
		}
		actuals := agenda.Actuals{
			Duration: time.Duration(body.ActualMin * float64(time.Minute)),
			Travel:   time.Duration(body.ActualTravelMin * float64(time.Minute)),
		}
		if err := store.Complete(body.InstanceID, actuals); err != nil {
			http.Error(w, err.Error(), statusFor(err))
			return
		}
		if eng != nil {
			eng.RecordCompletion(entry.Instance.DefinitionID, estimate.Observation{
				ActualDuration:  actuals.Duration,
				ActualTravel:    actuals.Travel,
				PlannedDuration: entry.Instance.End.Sub(entry.Instance.Start),
				PlannedTravel:   entry.Instance.Travel.Duration,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "completed", "instance_id": body.InstanceID})
	})
}

// NewActualHandler records a raw duration or travel report via
// POST /api/errands/actual, without tying it to a placed instance.
func NewActualHandler(eng estimate.Engine, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !authorized(w, r, token) {
			return
		}
		var body struct {
			DefinitionID string  `json:"definition_id"`
			Field        string  `json:"field"`
			Minutes      float64 `json:"minutes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DefinitionID == "" {
			http.Error(w, "definition_id is required", http.StatusBadRequest)
			return
		}
		var field estimate.Field
		switch body.Field {
		case "", "duration":
			field = estimate.FieldDuration
		case "travel":
			field = estimate.FieldTravel
		default:
			http.Error(w, "field must be duration or travel", http.StatusBadRequest)
			return
		}
		if body.Minutes <= 0 {
			http.Error(w, "minutes must be positive", http.StatusBadRequest)
			return
		}
		if eng != nil {
			eng.RecordActual(body.DefinitionID, field, time.Duration(body.Minutes*float64(time.Minute)))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "recorded"})
	})
}

// NewKPIHandler exposes estimation and usage KPIs via GET /api/errands/kpis.
// Estimation stats are always returned; usage rows are included when the
// category parameter is set. CO2 stays on the Prometheus gauges because the
// day aggregate loses the per-access split the emission factors need.
func NewKPIHandler(eng *estimate.HistoryEngine, store usage.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !authorized(w, r, token) {
			return
		}
		type usageOut struct {
			Date          string  `json:"date"`
			PlannedMin    float64 `json:"planned_min"`
			TravelMin     float64 `json:"travel_min"`
			TravelKm      float64 `json:"travel_km"`
			TravelShare   float64 `json:"travel_share"`
			Occurrences   int     `json:"occurrences"`
			Unschedulable int     `json:"unschedulable"`
		}
		resp := struct {
			Estimates []estimate.Stats `json:"estimates"`
			Usage     []usageOut       `json:"usage,omitempty"`
		}{}
		if eng != nil {
			resp.Estimates = eng.Snapshot()
		}
		if category := r.URL.Query().Get("category"); category != "" && store != nil {
			start, _ := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
			end, _ := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
			if end.IsZero() {
				end = time.Now()
			}
			recs, err := store.Query(category, start, end)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			resp.Usage = make([]usageOut, len(recs))
			for i, rec := range recs {
				resp.Usage[i] = usageOut{
					Date:          rec.Date.Format("2006-01-02"),
					PlannedMin:    rec.PlannedMin,
					TravelMin:     rec.TravelMin,
					TravelKm:      rec.TravelKm,
					TravelShare:   rec.TravelShare(),
					Occurrences:   rec.Occurrences,
					Unschedulable: rec.Unschedulable,
				}
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, agenda.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, agenda.ErrCompleted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
