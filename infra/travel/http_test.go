package travel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kilianp07/errandplan/auth"
	"github.com/kilianp07/errandplan/core/model"
	coretravel "github.com/kilianp07/errandplan/core/travel"
)

func TestMatrixClientEstimate(t *testing.T) {
	var gotPath, gotAuth string
	var gotReq estimateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(estimateResponse{
			DurationSeconds: 720,
			Feasible:        true,
			Transfers:       1,
			DistanceKm:      4.2,
		})
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, "secret", time.Second)
	q := coretravel.Query{
		Origin: model.Coordinate{Lat: 48.85, Lon: 2.35},
		Dest:   model.Coordinate{Lat: 48.86, Lon: 2.34},
		Access: model.AccessBus,
		Depart: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	est, err := c.Estimate(context.Background(), q)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if gotPath != "/estimate" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotReq.Mode != "bus" || gotReq.Origin.Lat != 48.85 {
		t.Fatalf("unexpected request payload: %+v", gotReq)
	}
	if est.Duration != 12*time.Minute || !est.Feasible || est.Transfers != 1 || est.DistanceKm != 4.2 {
		t.Fatalf("unexpected estimate: %+v", est)
	}
}

func TestMatrixClientCandidatesSorted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/candidates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		// Deliberately out of order.
		_ = json.NewEncoder(w).Encode(candidatesResponse{Candidates: []wireCandidate{
			{ID: "far", Name: "Far market", Travel: estimateResponse{DurationSeconds: 900, Feasible: true}},
			{ID: "near", Name: "Near market", Travel: estimateResponse{DurationSeconds: 300, Feasible: true}},
		}})
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, "", time.Second)
	cands, err := c.Candidates(context.Background(), "food", model.Coordinate{Lat: 48.85, Lon: 2.35}, model.AccessWalk, 20*time.Minute)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(cands) != 2 || cands[0].ID != "near" || cands[1].ID != "far" {
		t.Fatalf("expected nearest-first order, got %+v", cands)
	}
}

func TestMatrixClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "matrix overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewMatrixClient(srv.URL, "", time.Second)
	if _, err := c.Estimate(context.Background(), coretravel.Query{}); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestMatrixClientOAuth(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"oauth-token","token_type":"bearer","expires_in":3600}`))
	}))
	defer tokens.Close()

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(estimateResponse{DurationSeconds: 60, Feasible: true})
	}))
	defer srv.Close()

	c := NewMatrixClientOAuth(srv.URL, auth.Conf{ClientID: "id", ClientSecret: "secret", TokenURL: tokens.URL}, time.Second)
	if _, err := c.Estimate(context.Background(), coretravel.Query{}); err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if gotAuth != "Bearer oauth-token" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
}

func TestMatrixClientBehindRetrier(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 2 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(estimateResponse{DurationSeconds: 60, Feasible: true})
	}))
	defer srv.Close()

	inner := NewMatrixClient(srv.URL, "", time.Second)
	p := coretravel.NewRetryingProvider("matrix", inner, coretravel.RetryConfig{MaxRetries: 2, Backoff: time.Millisecond}, nil, nil)
	est, err := p.Estimate(context.Background(), coretravel.Query{})
	if err != nil {
		t.Fatalf("estimate through retrier: %v", err)
	}
	if est.Duration != time.Minute {
		t.Fatalf("unexpected estimate: %+v", est)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}
