package errands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kilianp07/errandplan/core/agenda"
	"github.com/kilianp07/errandplan/core/estimate"
	"github.com/kilianp07/errandplan/core/metrics/usage"
	"github.com/kilianp07/errandplan/core/model"
)

func seededStore(t *testing.T) *agenda.MemoryStore {
	t.Helper()
	store := agenda.NewMemoryStore()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	def := &model.ErrandDefinition{ID: "groceries", Title: "Weekly groceries", Category: "food"}
	store.Commit("run-1", []model.ErrandInstance{
		{
			ID: "groceries:2026-03-02", DefinitionID: "groceries", Def: def,
			Date: day, Start: day.Add(10 * time.Hour), End: day.Add(10*time.Hour + 45*time.Minute),
			Status: model.StatusPlaced,
			Travel: model.TravelSegment{Duration: 12 * time.Minute},
		},
		{
			ID: "gym:2026-03-03", DefinitionID: "gym",
			Date: day.AddDate(0, 0, 1), Start: day.AddDate(0, 0, 1).Add(18 * time.Hour),
			End:    day.AddDate(0, 0, 1).Add(19 * time.Hour),
			Status: model.StatusPlaced,
		},
	})
	return store
}

func TestAgendaHandlerFilters(t *testing.T) {
	store := seededStore(t)
	if err := store.Confirm("groceries:2026-03-02"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	h := NewAgendaHandler(store, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/errands/agenda?status=confirmed", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 confirmed entry, got %d", len(out))
	}
	if out[0]["definition_id"] != "groceries" || out[0]["status"] != "confirmed" {
		t.Fatalf("unexpected row %+v", out[0])
	}
	if _, ok := out[0]["confirmed_at"]; !ok {
		t.Fatal("confirmed_at missing")
	}
	if _, ok := out[0]["completed_at"]; ok {
		t.Fatal("completed_at must be omitted before completion")
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/errands/agenda", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
}

func TestConfirmHandler(t *testing.T) {
	store := seededStore(t)
	h := NewConfirmHandler(store, "tok")

	req := httptest.NewRequest("POST", "/api/errands/confirm", strings.NewReader(`{"instance_id":"gym:2026-03-03"}`))
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	entry, ok := store.Get("gym:2026-03-03")
	if !ok || entry.Instance.Status != model.StatusConfirmed {
		t.Fatalf("instance not confirmed: %+v", entry.Instance.Status)
	}

	req = httptest.NewRequest("POST", "/api/errands/confirm", strings.NewReader(`{"instance_id":"nope"}`))
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}

	if err := store.Complete("gym:2026-03-03", agenda.Actuals{}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	req = httptest.NewRequest("POST", "/api/errands/confirm", strings.NewReader(`{"instance_id":"gym:2026-03-03"}`))
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rr.Code)
	}

	// unauthorized
	req = httptest.NewRequest("POST", "/api/errands/confirm", strings.NewReader(`{"instance_id":"x"}`))
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestCompletionHandlerFeedsEstimator(t *testing.T) {
	store := seededStore(t)
	eng := estimate.NewHistoryEngine(0)
	h := NewCompletionHandler(store, eng, "")

	body := `{"instance_id":"groceries:2026-03-02","actual_duration_min":50,"actual_travel_min":10}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/errands/completion", strings.NewReader(body)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}

	entry, _ := store.Get("groceries:2026-03-02")
	if entry.Instance.Status != model.StatusCompleted {
		t.Fatalf("status = %v", entry.Instance.Status)
	}
	if entry.Actuals.Duration != 50*time.Minute {
		t.Fatalf("actuals = %+v", entry.Actuals)
	}
	// One 50-minute sample against a 45-minute configured estimate:
	// (45*5 + 50) / 6 rounds to 46.
	if got := eng.DurationFor("groceries", 45*time.Minute); got != 46*time.Minute {
		t.Fatalf("DurationFor = %v", got)
	}
	// Travel came in 2 minutes under plan.
	if got := eng.TravelBias("groceries"); got != -2*time.Minute {
		t.Fatalf("TravelBias = %v", got)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/errands/completion", strings.NewReader(`{"instance_id":"nope"}`)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestActualHandler(t *testing.T) {
	eng := estimate.NewHistoryEngine(0)
	h := NewActualHandler(eng, "")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/errands/actual",
		strings.NewReader(`{"definition_id":"groceries","field":"duration","minutes":30}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body.String())
	}
	if got := eng.DurationFor("groceries", time.Hour); got != 55*time.Minute {
		t.Fatalf("DurationFor = %v", got)
	}

	cases := []string{
		`{"definition_id":"groceries","field":"teleport","minutes":5}`,
		`{"definition_id":"groceries","minutes":0}`,
		`{"field":"duration","minutes":5}`,
	}
	for _, c := range cases {
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("POST", "/api/errands/actual", strings.NewReader(c)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", c, rr.Code)
		}
	}
}

func TestKPIHandler(t *testing.T) {
	eng := estimate.NewHistoryEngine(0)
	eng.RecordActual("groceries", estimate.FieldDuration, 40*time.Minute)

	store := usage.NewMemoryStore()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if err := store.Add(usage.Record{Category: "food", Date: day, PlannedMin: 45, TravelMin: 15, TravelKm: 5, Occurrences: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}

	h := NewKPIHandler(eng, store, "")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/errands/kpis?category=food&start=2026-03-01T00:00:00Z&end=2026-03-03T00:00:00Z", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	var out struct {
		Estimates []estimate.Stats `json:"estimates"`
		Usage     []struct {
			Date        string  `json:"date"`
			PlannedMin  float64 `json:"planned_min"`
			TravelShare float64 `json:"travel_share"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Estimates) != 1 || out.Estimates[0].DefinitionID != "groceries" {
		t.Fatalf("estimates = %+v", out.Estimates)
	}
	if len(out.Usage) != 1 || out.Usage[0].Date != "2026-03-02" || out.Usage[0].PlannedMin != 45 {
		t.Fatalf("usage = %+v", out.Usage)
	}
	if out.Usage[0].TravelShare != 0.25 {
		t.Fatalf("travel share = %v", out.Usage[0].TravelShare)
	}
}
