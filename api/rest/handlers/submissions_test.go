package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-grader/core/models"
	"ai-grader/core/repository"

	"github.com/gorilla/mux"
)

type fakeSubmissionStore struct {
	nextID int64
	subs   map[int64]*models.Submission
}

func newFakeSubmissionStore() *fakeSubmissionStore {
	return &fakeSubmissionStore{subs: make(map[int64]*models.Submission)}
}

func (f *fakeSubmissionStore) CreateSubmission(sub *models.Submission) error {
	f.nextID++
	sub.ID = f.nextID
	sub.CreatedAt = time.Now()
	stored := *sub
	f.subs[sub.ID] = &stored
	return nil
}

func (f *fakeSubmissionStore) GetSubmission(id int64) (*models.Submission, error) {
	sub, ok := f.subs[id]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	copied := *sub
	return &copied, nil
}

func (f *fakeSubmissionStore) AbortQueued(id int64, reason string) error {
	sub, ok := f.subs[id]
	if !ok || sub.Status != models.StatusQueued {
		return nil
	}
	sub.Status = models.StatusError
	sub.FinalFeedback = &reason
	return nil
}

type fakeAssignmentStore struct {
	assignments map[int64]*models.Assignment
}

func (f *fakeAssignmentStore) GetAssignment(id int64) (*models.Assignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return nil, repository.ErrAssignmentNotFound
	}
	return a, nil
}

type fakeArtifactStore struct {
	artifacts []models.Artifact
}

func (f *fakeArtifactStore) CreateArtifact(artifact *models.Artifact) error {
	artifact.ID = int64(len(f.artifacts) + 1)
	f.artifacts = append(f.artifacts, *artifact)
	return nil
}

type fakeScoreStore struct {
	scores []models.CriterionScore
}

func (f *fakeScoreStore) GetCriterionScores(submissionID int64) ([]models.CriterionScore, error) {
	return f.scores, nil
}

type fakeAuditStore struct {
	events []models.AuditEvent
}

func (f *fakeAuditStore) Record(event models.AuditEvent) error {
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditStore) GetTargetEvents(targetType string, targetID int64, limit int) ([]models.AuditEvent, error) {
	return f.events, nil
}

func (f *fakeAuditStore) count(action string) int {
	n := 0
	for _, event := range f.events {
		if event.Action == action {
			n++
		}
	}
	return n
}

type fakeBlobStore struct {
	objects   map[string][]byte
	puts      int
	failOnPut int // 1-based index of the Put call that fails, 0 for none
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (f *fakeBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	f.puts++
	if f.failOnPut != 0 && f.puts == f.failOnPut {
		return errors.New("connection reset")
	}
	f.objects[key] = data
	return nil
}

type fakeDispatcher struct {
	enqueued []int64
}

func (f *fakeDispatcher) Enqueue(submissionID int64) {
	f.enqueued = append(f.enqueued, submissionID)
}

type handlerHarness struct {
	handler     *SubmissionHandler
	submissions *fakeSubmissionStore
	artifacts   *fakeArtifactStore
	audit       *fakeAuditStore
	blobs       *fakeBlobStore
	dispatcher  *fakeDispatcher
}

func newHandlerHarness() *handlerHarness {
	submissions := newFakeSubmissionStore()
	assignments := &fakeAssignmentStore{assignments: map[int64]*models.Assignment{
		10: {ID: 10, CourseID: 1, Title: "Essay 1", Modality: "text"},
	}}
	artifacts := &fakeArtifactStore{}
	audit := &fakeAuditStore{}
	blobs := newFakeBlobStore()
	dispatcher := &fakeDispatcher{}

	h := NewSubmissionHandler(submissions, assignments, artifacts, &fakeScoreStore{}, audit, blobs, dispatcher)
	return &handlerHarness{
		handler:     h,
		submissions: submissions,
		artifacts:   artifacts,
		audit:       audit,
		blobs:       blobs,
		dispatcher:  dispatcher,
	}
}

// uploadRequest builds a multipart POST with the given files in order
func uploadRequest(t *testing.T, names []string, contents map[string][]byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("assignment_id", "10"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := writer.WriteField("student_id", "42"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	for _, name := range names {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write(contents[name]); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/submissions", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestCreateSubmissionStoresAllArtifacts(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness()
	req := uploadRequest(t,
		[]string{"essay.txt", "solution.py"},
		map[string][]byte{"essay.txt": []byte("my essay"), "solution.py": []byte("print(1)")},
	)
	rec := httptest.NewRecorder()

	h.handler.CreateSubmission(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(h.artifacts.artifacts) != 2 {
		t.Fatalf("artifact rows = %d, want 2", len(h.artifacts.artifacts))
	}
	if len(h.dispatcher.enqueued) != 1 || h.dispatcher.enqueued[0] != 1 {
		t.Fatalf("enqueued = %v", h.dispatcher.enqueued)
	}
	if h.audit.count(models.ActionCreateSubmission) != 1 {
		t.Fatalf("create audit events = %d, want 1", h.audit.count(models.ActionCreateSubmission))
	}

	var resp CreateSubmissionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(models.StatusQueued) {
		t.Fatalf("status = %s, want queued", resp.Status)
	}
}

func TestCreateSubmissionAbortsOnStorageFailure(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness()
	h.blobs.failOnPut = 2

	req := uploadRequest(t,
		[]string{"essay.txt", "solution.py"},
		map[string][]byte{"essay.txt": []byte("my essay"), "solution.py": []byte("print(1)")},
	)
	rec := httptest.NewRecorder()

	h.handler.CreateSubmission(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	// The submission must not survive in "queued": a queue reload on the
	// next start would grade it against an incomplete artifact set.
	sub, err := h.submissions.GetSubmission(1)
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if sub.Status != models.StatusError {
		t.Fatalf("status = %s, want error", sub.Status)
	}
	if sub.FinalFeedback == nil || !bytes.Contains([]byte(*sub.FinalFeedback), []byte("solution.py")) {
		t.Fatalf("final feedback should name the failed file, got %v", sub.FinalFeedback)
	}
	if len(h.dispatcher.enqueued) != 0 {
		t.Fatalf("nothing should be enqueued, got %v", h.dispatcher.enqueued)
	}
}

func TestCreateSubmissionRequiresFiles(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness()
	req := uploadRequest(t, nil, nil)
	rec := httptest.NewRecorder()

	h.handler.CreateSubmission(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(h.submissions.subs) != 0 {
		t.Fatalf("no submission row expected, got %d", len(h.submissions.subs))
	}
}

func TestCreateSubmissionRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness()
	h.handler.maxUpload = 64

	req := uploadRequest(t,
		[]string{"essay.txt"},
		map[string][]byte{"essay.txt": bytes.Repeat([]byte("a"), 4096)},
	)
	rec := httptest.NewRecorder()

	h.handler.CreateSubmission(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(h.submissions.subs) != 0 {
		t.Fatalf("no submission row expected, got %d", len(h.submissions.subs))
	}
}

func TestGetSubmissionRecordsViewAudit(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness()
	sub := &models.Submission{AssignmentID: 10, StudentID: 42, Status: models.StatusGraded}
	if err := h.submissions.CreateSubmission(sub); err != nil {
		t.Fatalf("seed submission: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/submissions/1", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "1"})
	rec := httptest.NewRecorder()

	h.handler.GetSubmission(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if h.audit.count(models.ActionViewSubmission) != 1 {
		t.Fatalf("view audit events = %d, want 1", h.audit.count(models.ActionViewSubmission))
	}
	event := h.audit.events[0]
	if event.TargetType != models.TargetSubmission || event.TargetID != 1 {
		t.Fatalf("event target = %s/%d", event.TargetType, event.TargetID)
	}
	if event.ActorUserID != nil {
		t.Fatalf("view events carry no actor, got %v", *event.ActorUserID)
	}
}

func TestGetSubmissionNotFoundRecordsNoAudit(t *testing.T) {
	t.Parallel()

	h := newHandlerHarness()
	req := httptest.NewRequest(http.MethodGet, "/api/submissions/99", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "99"})
	rec := httptest.NewRecorder()

	h.handler.GetSubmission(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if len(h.audit.events) != 0 {
		t.Fatalf("no audit events expected, got %d", len(h.audit.events))
	}
}
