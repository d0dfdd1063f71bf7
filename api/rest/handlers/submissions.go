package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"ai-grader/core/models"
	"ai-grader/core/orchestrator"
	"ai-grader/core/repository"
	"ai-grader/storage"

	"github.com/gorilla/mux"
)

// maxUploadBytes caps the request body across all files of one upload,
// enforced with http.MaxBytesReader before the form is parsed
const maxUploadBytes = 256 << 20

// multipartMemoryBytes is how much of a parsed form is held in memory
// before spilling to temporary files
const multipartMemoryBytes = 32 << 20

// Enqueuer hands a created submission to the grading workers
type Enqueuer interface {
	Enqueue(submissionID int64)
}

// SubmissionStore is the submission persistence surface the handlers use
type SubmissionStore interface {
	CreateSubmission(sub *models.Submission) error
	GetSubmission(id int64) (*models.Submission, error)
	AbortQueued(id int64, reason string) error
}

// AssignmentStore loads assignments for validation and display
type AssignmentStore interface {
	GetAssignment(id int64) (*models.Assignment, error)
}

// ArtifactStore records uploaded artifact rows
type ArtifactStore interface {
	CreateArtifact(artifact *models.Artifact) error
}

// ScoreStore reads per-criterion scores for display
type ScoreStore interface {
	GetCriterionScores(submissionID int64) ([]models.CriterionScore, error)
}

// AuditStore records and reads audit events
type AuditStore interface {
	Record(event models.AuditEvent) error
	GetTargetEvents(targetType string, targetID int64, limit int) ([]models.AuditEvent, error)
}

// SubmissionHandler handles submission-related HTTP requests.
// Authentication and role checks happen upstream of this service.
type SubmissionHandler struct {
	submissionRepo SubmissionStore
	assignmentRepo AssignmentStore
	artifactRepo   ArtifactStore
	scoreRepo      ScoreStore
	auditRepo      AuditStore
	blobs          storage.ObjectStore
	dispatcher     Enqueuer
	maxUpload      int64
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(
	submissionRepo SubmissionStore,
	assignmentRepo AssignmentStore,
	artifactRepo ArtifactStore,
	scoreRepo ScoreStore,
	auditRepo AuditStore,
	blobs storage.ObjectStore,
	dispatcher Enqueuer,
) *SubmissionHandler {
	return &SubmissionHandler{
		submissionRepo: submissionRepo,
		assignmentRepo: assignmentRepo,
		artifactRepo:   artifactRepo,
		scoreRepo:      scoreRepo,
		auditRepo:      auditRepo,
		blobs:          blobs,
		dispatcher:     dispatcher,
		maxUpload:      maxUploadBytes,
	}
}

// CreateSubmissionResponse is returned after a successful upload
type CreateSubmissionResponse struct {
	SubmissionID int64     `json:"submission_id"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateSubmission handles POST /api/submissions: multipart upload that
// stores every file, records artifact rows, and enqueues the grading job.
func (h *SubmissionHandler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(multipartMemoryBytes); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	assignmentID, err := strconv.ParseInt(r.FormValue("assignment_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid assignment_id", http.StatusBadRequest)
		return
	}
	studentID, err := strconv.ParseInt(r.FormValue("student_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid student_id", http.StatusBadRequest)
		return
	}

	if _, err := h.assignmentRepo.GetAssignment(assignmentID); err != nil {
		if errors.Is(err, repository.ErrAssignmentNotFound) {
			http.Error(w, "Assignment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load assignment: "+err.Error(), http.StatusInternalServerError)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		// A submission without artifacts would fail grading immediately;
		// reject it here instead of enqueueing dead work.
		http.Error(w, "At least one file is required", http.StatusBadRequest)
		return
	}

	sub := &models.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Status:       models.StatusQueued,
	}
	if err := h.submissionRepo.CreateSubmission(sub); err != nil {
		http.Error(w, "Failed to create submission: "+err.Error(), http.StatusInternalServerError)
		return
	}

	for _, header := range files {
		if err := h.storeArtifact(r, sub, header); err != nil {
			// A half-uploaded submission must not sit in "queued": the
			// startup reload would send it to grading with a partial
			// artifact set. Resolve it to "error" before answering.
			reason := fmt.Sprintf("artifact upload failed: %s: %v", header.Filename, err)
			if abortErr := h.submissionRepo.AbortQueued(sub.ID, reason); abortErr != nil {
				log.Printf("Failed to abort submission %d after upload failure: %v", sub.ID, abortErr)
			}
			http.Error(w, fmt.Sprintf("Failed to store %s: %v", header.Filename, err), http.StatusInternalServerError)
			return
		}
	}

	if err := h.auditRepo.Record(models.AuditEvent{
		ActorUserID: &studentID,
		Action:      models.ActionCreateSubmission,
		TargetType:  models.TargetSubmission,
		TargetID:    sub.ID,
		Metadata:    map[string]interface{}{"assignment_id": assignmentID, "files": len(files)},
	}); err != nil {
		log.Printf("Failed to record create audit event for submission %d: %v", sub.ID, err)
	}

	h.dispatcher.Enqueue(sub.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateSubmissionResponse{
		SubmissionID: sub.ID,
		Status:       string(sub.Status),
		CreatedAt:    sub.CreatedAt,
	})
}

func (h *SubmissionHandler) storeArtifact(r *http.Request, sub *models.Submission, header *multipart.FileHeader) error {
	file, err := header.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	key := storage.NewObjectKey(fmt.Sprintf("submissions/%d", sub.ID))
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := h.blobs.Put(r.Context(), key, data, contentType); err != nil {
		return err
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	kind := string(orchestrator.KindFromFilename(header.Filename))
	return h.artifactRepo.CreateArtifact(&models.Artifact{
		SubmissionID: sub.ID,
		Kind:         kind,
		StorageKey:   key,
		SHA256:       &digest,
	})
}

// GetSubmission handles GET /api/submissions/{id}
func (h *SubmissionHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "Invalid submission id", http.StatusBadRequest)
		return
	}

	sub, err := h.submissionRepo.GetSubmission(id)
	if err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			http.Error(w, "Submission not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load submission: "+err.Error(), http.StatusInternalServerError)
		return
	}

	scores, err := h.scoreRepo.GetCriterionScores(id)
	if err != nil {
		http.Error(w, "Failed to load scores: "+err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, len(scores))
	for i, score := range scores {
		items[i] = map[string]interface{}{
			"criterion":  score.Criterion,
			"score":      score.Score,
			"confidence": score.Confidence,
			"rationale":  score.Rationale,
			"model":      score.Model,
		}
	}

	// Reads are audited alongside writes; the actor is resolved upstream,
	// so the event is recorded without one.
	if err := h.auditRepo.Record(models.AuditEvent{
		Action:     models.ActionViewSubmission,
		TargetType: models.TargetSubmission,
		TargetID:   sub.ID,
	}); err != nil {
		log.Printf("Failed to record view audit event for submission %d: %v", sub.ID, err)
	}

	response := map[string]interface{}{
		"id":             sub.ID,
		"assignment_id":  sub.AssignmentID,
		"student_id":     sub.StudentID,
		"status":         sub.Status,
		"final_score":    sub.FinalScore,
		"final_feedback": sub.FinalFeedback,
		"created_at":     sub.CreatedAt,
		"ai_scores":      items,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// GetSubmissionEvents handles GET /api/submissions/{id}/events
func (h *SubmissionHandler) GetSubmissionEvents(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "Invalid submission id", http.StatusBadRequest)
		return
	}

	if _, err := h.submissionRepo.GetSubmission(id); err != nil {
		if errors.Is(err, repository.ErrSubmissionNotFound) {
			http.Error(w, "Submission not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load submission: "+err.Error(), http.StatusInternalServerError)
		return
	}

	events, err := h.auditRepo.GetTargetEvents(models.TargetSubmission, id, 100)
	if err != nil {
		http.Error(w, "Failed to load events: "+err.Error(), http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, len(events))
	for i, event := range events {
		items[i] = map[string]interface{}{
			"action":     event.Action,
			"actor":      event.ActorUserID,
			"metadata":   event.Metadata,
			"created_at": event.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"items": items})
}

// GetAssignment handles GET /api/assignments/{id}
func (h *SubmissionHandler) GetAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "Invalid assignment id", http.StatusBadRequest)
		return
	}

	assignment, err := h.assignmentRepo.GetAssignment(id)
	if err != nil {
		if errors.Is(err, repository.ErrAssignmentNotFound) {
			http.Error(w, "Assignment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load assignment: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":          assignment.ID,
		"course_id":   assignment.CourseID,
		"title":       assignment.Title,
		"description": assignment.Description,
		"modality":    assignment.Modality,
		"rubric":      assignment.Rubric,
		"created_at":  assignment.CreatedAt,
	})
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}
