package engine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ai-grader/core/models"
)

func testAssignment() *models.Assignment {
	return &models.Assignment{
		ID:       3,
		Title:    "Sorting algorithms",
		Modality: "code",
		Rubric:   []models.RubricCriterion{{Name: "correctness", Weight: 0.6}, {Name: "style", Weight: 0.4}},
	}
}

func TestHTTPClientGrade(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/grade" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req["model"] != "llama3.2:3b" {
			t.Fatalf("unexpected model: %v", req["model"])
		}
		artifacts, ok := req["artifacts"].(map[string]interface{})
		if !ok {
			t.Fatalf("artifacts missing: %v", req["artifacts"])
		}
		if code, ok := artifacts["code"].([]interface{}); !ok || len(code) != 2 {
			t.Fatalf("expected 2 base64 code payloads, got %v", artifacts["code"])
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"criteria": []map[string]interface{}{
				{"name": "correctness", "score": 90, "confidence": 0.92, "rationale": "all tests pass"},
			},
			"overall": map[string]interface{}{"score": 90, "summary": "good"},
			"flags":   []string{},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "llama3.2:3b", 10*time.Second)
	result, err := client.Grade(context.Background(), testAssignment(), map[models.ArtifactKind][][]byte{
		models.KindCode: {[]byte("func a() {}"), []byte("func b() {}")},
	})
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if len(result.Criteria) != 1 || result.Criteria[0].Name != "correctness" {
		t.Fatalf("unexpected criteria: %+v", result.Criteria)
	}
	if result.Overall.Score != 90 {
		t.Fatalf("unexpected overall: %+v", result.Overall)
	}
	if result.Model != "llama3.2:3b" {
		t.Fatalf("model should default to the configured one, got %q", result.Model)
	}
}

func TestHTTPClientGradeServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "llama3.2:3b", 10*time.Second)
	_, err := client.Grade(context.Background(), testAssignment(), nil)
	if err == nil {
		t.Fatal("expected error for HTTP 500")
	}
	if !strings.Contains(err.Error(), "status") {
		t.Fatalf("expected status error, got: %v", err)
	}
}

func TestHTTPClientGradeMalformedResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "llama3.2:3b", 10*time.Second)
	_, err := client.Grade(context.Background(), testAssignment(), nil)
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestHTTPClientGradeHonorsContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can observe the
		// client disconnect and cancel r.Context(); otherwise Close hangs.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewHTTPClient(server.URL, "llama3.2:3b", 10*time.Second)
	_, err := client.Grade(ctx, testAssignment(), nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestResultValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		result  Result
		wantErr bool
	}{
		{
			"valid",
			Result{Criteria: []Criterion{{Name: "clarity", Confidence: 0.8}}},
			false,
		},
		{
			"boundary confidences",
			Result{Criteria: []Criterion{{Name: "a", Confidence: 0}, {Name: "b", Confidence: 1}}},
			false,
		},
		{
			"no criteria",
			Result{},
			true,
		},
		{
			"missing name",
			Result{Criteria: []Criterion{{Name: "  ", Confidence: 0.5}}},
			true,
		},
		{
			"confidence above one",
			Result{Criteria: []Criterion{{Name: "a", Confidence: 1.01}}},
			true,
		},
		{
			"negative confidence",
			Result{Criteria: []Criterion{{Name: "a", Confidence: -0.1}}},
			true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.result.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestResultHasFlag(t *testing.T) {
	t.Parallel()

	result := Result{Flags: []string{"needs_review", "low_effort"}}
	if !result.HasFlag("needs_review") {
		t.Fatal("expected needs_review flag")
	}
	if result.HasFlag("plagiarism") {
		t.Fatal("unexpected flag match")
	}
}
