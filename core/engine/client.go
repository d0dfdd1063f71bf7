package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"ai-grader/core/models"
)

// Criterion is one scored rubric dimension returned by the engine
type Criterion struct {
	Name       string                 `json:"name"`
	Score      float64                `json:"score"`
	Confidence float64                `json:"confidence"`
	Rationale  string                 `json:"rationale"`
	Evidence   map[string]interface{} `json:"evidence,omitempty"`
}

// Overall is the engine's aggregate verdict
type Overall struct {
	Score   float64 `json:"score"`
	Summary string  `json:"summary"`
}

// Result is the full engine response for one submission
type Result struct {
	Criteria []Criterion `json:"criteria"`
	Overall  Overall     `json:"overall"`
	Flags    []string    `json:"flags"`
	Model    string      `json:"model,omitempty"`
}

// HasFlag reports whether the engine raised an advisory flag
func (r *Result) HasFlag(flag string) bool {
	for _, f := range r.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Validate checks the engine response against its contract. A violation
// means the run must fail rather than persist a misleading grade.
func (r *Result) Validate() error {
	if len(r.Criteria) == 0 {
		return fmt.Errorf("engine returned no criteria")
	}
	for i, c := range r.Criteria {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("criterion %d has no name", i)
		}
		if c.Confidence < 0 || c.Confidence > 1 {
			return fmt.Errorf("criterion %q confidence %.4f outside [0,1]", c.Name, c.Confidence)
		}
	}
	return nil
}

// Client is the grading engine contract. The engine's prompting and
// scoring internals are opaque; only this request/response shape matters.
type Client interface {
	Grade(ctx context.Context, assignment *models.Assignment, artifacts map[models.ArtifactKind][][]byte) (*Result, error)
}

type gradeRequest struct {
	Model      string              `json:"model"`
	Assignment gradeAssignment     `json:"assignment"`
	Artifacts  map[string][]string `json:"artifacts"`
}

type gradeAssignment struct {
	ID          int64                    `json:"id"`
	Title       string                   `json:"title"`
	Description string                   `json:"description,omitempty"`
	Modality    string                   `json:"modality"`
	Rubric      []models.RubricCriterion `json:"rubric"`
}

// HTTPClient talks to the grading engine service over HTTP
type HTTPClient struct {
	baseURL string
	model   string
	http    *http.Client
}

// NewHTTPClient creates an engine client with a bounded request timeout
func NewHTTPClient(baseURL, model string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Grade sends assignment context and artifact bytes grouped by kind and
// decodes the scored result. Artifact payloads travel base64-encoded.
func (c *HTTPClient) Grade(ctx context.Context, assignment *models.Assignment, artifacts map[models.ArtifactKind][][]byte) (*Result, error) {
	encoded := make(map[string][]string, len(artifacts))
	for kind, payloads := range artifacts {
		for _, payload := range payloads {
			encoded[string(kind)] = append(encoded[string(kind)], base64.StdEncoding.EncodeToString(payload))
		}
	}

	req := gradeRequest{
		Model: c.model,
		Assignment: gradeAssignment{
			ID:          assignment.ID,
			Title:       assignment.Title,
			Description: assignment.Description,
			Modality:    assignment.Modality,
			Rubric:      assignment.Rubric,
		},
		Artifacts: encoded,
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal grade request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/grade", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(request)
	if err != nil {
		return nil, fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("engine returned status %s", resp.Status)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode engine response: %w", err)
	}
	if result.Model == "" {
		result.Model = c.model
	}

	return &result, nil
}
