package travel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/errandplan/auth"
	"github.com/kilianp07/errandplan/core/logger"
	"github.com/kilianp07/errandplan/core/model"
	coretravel "github.com/kilianp07/errandplan/core/travel"
	infralog "github.com/kilianp07/errandplan/infra/logger"
)

// MatrixClient asks a travel-matrix service for estimates and nearby venues
// over JSON POST. It implements both the provider and the resolver side so a
// single remote service can back travel entirely; callers wrap it in the
// retrying decorators.
type MatrixClient struct {
	baseURL string
	token   string
	creds   *auth.ClientCred
	client  *http.Client
	log     logger.Logger
}

// NewMatrixClient builds a client for the service at baseURL. token is sent
// as a bearer Authorization header when non-empty.
func NewMatrixClient(baseURL, token string, timeout time.Duration) *MatrixClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MatrixClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
		log:     infralog.New("travel-matrix"),
	}
}

// NewMatrixClientOAuth builds a client that authenticates with OAuth2 client
// credentials instead of a static token.
func NewMatrixClientOAuth(baseURL string, creds auth.Conf, timeout time.Duration) *MatrixClient {
	c := NewMatrixClient(baseURL, "", timeout)
	c.creds = auth.NewClientCred(creds)
	return c
}

var (
	_ coretravel.Provider = (*MatrixClient)(nil)
	_ coretravel.Resolver = (*MatrixClient)(nil)
)

type wirePoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type estimateRequest struct {
	Origin wirePoint `json:"origin"`
	Dest   wirePoint `json:"dest"`
	Mode   string    `json:"mode"`
	Depart time.Time `json:"depart"`
}

type estimateResponse struct {
	DurationSeconds int     `json:"duration_seconds"`
	Feasible        bool    `json:"feasible"`
	Transfers       int     `json:"transfers"`
	DistanceKm      float64 `json:"distance_km"`
}

func (r estimateResponse) toEstimate() coretravel.Estimate {
	return coretravel.Estimate{
		Duration:   time.Duration(r.DurationSeconds) * time.Second,
		Feasible:   r.Feasible,
		Transfers:  r.Transfers,
		DistanceKm: r.DistanceKm,
	}
}

// Estimate asks the service for one journey.
func (c *MatrixClient) Estimate(ctx context.Context, q coretravel.Query) (coretravel.Estimate, error) {
	var resp estimateResponse
	err := c.post(ctx, "/estimate", estimateRequest{
		Origin: wirePoint{Lat: q.Origin.Lat, Lon: q.Origin.Lon},
		Dest:   wirePoint{Lat: q.Dest.Lat, Lon: q.Dest.Lon},
		Mode:   q.Access.String(),
		Depart: q.Depart,
	}, &resp)
	if err != nil {
		return coretravel.Estimate{}, err
	}
	return resp.toEstimate(), nil
}

type candidatesRequest struct {
	Category      string    `json:"category"`
	Origin        wirePoint `json:"origin"`
	Mode          string    `json:"mode"`
	BudgetSeconds int       `json:"budget_seconds"`
}

type wireCandidate struct {
	ID     string           `json:"id"`
	Name   string           `json:"name"`
	Coord  wirePoint        `json:"coord"`
	Travel estimateResponse `json:"travel"`
}

type candidatesResponse struct {
	Candidates []wireCandidate `json:"candidates"`
}

// Candidates asks the service for venues of the category within the budget.
// The resolver contract wants nearest-first order, so the reply is sorted
// here rather than trusting the service.
func (c *MatrixClient) Candidates(ctx context.Context, category string, origin model.Coordinate, access model.AccessType, budget time.Duration) ([]coretravel.Candidate, error) {
	var resp candidatesResponse
	err := c.post(ctx, "/candidates", candidatesRequest{
		Category:      category,
		Origin:        wirePoint{Lat: origin.Lat, Lon: origin.Lon},
		Mode:          access.String(),
		BudgetSeconds: int(budget / time.Second),
	}, &resp)
	if err != nil {
		return nil, err
	}
	out := make([]coretravel.Candidate, 0, len(resp.Candidates))
	for _, w := range resp.Candidates {
		out = append(out, coretravel.Candidate{
			ID:     w.ID,
			Name:   w.Name,
			Coord:  model.Coordinate{Lat: w.Coord.Lat, Lon: w.Coord.Lon},
			Travel: w.Travel.toEstimate(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Travel.Duration < out[j].Travel.Duration })
	return out, nil
}

func (c *MatrixClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.creds != nil:
		if err := c.creds.SetAuthHeader(ctx, req); err != nil {
			return fmt.Errorf("failed to set auth header: %w", err)
		}
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.log.Debugf("POST %s%s", c.baseURL, path)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
