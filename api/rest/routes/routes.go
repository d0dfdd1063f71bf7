package routes

import (
	"ai-grader/api/rest/handlers"
	"ai-grader/core/repository"
	"ai-grader/storage"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(r *mux.Router, db *repository.DB, blobs storage.ObjectStore, dispatcher handlers.Enqueuer) {
	submissionRepo := repository.NewSubmissionRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)
	scoreRepo := repository.NewScoreRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	handler := handlers.NewSubmissionHandler(
		submissionRepo, assignmentRepo, artifactRepo, scoreRepo, auditRepo, blobs, dispatcher)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/submissions", handler.CreateSubmission).Methods("POST")
	api.HandleFunc("/submissions/{id}", handler.GetSubmission).Methods("GET")
	api.HandleFunc("/submissions/{id}/events", handler.GetSubmissionEvents).Methods("GET")
	api.HandleFunc("/assignments/{id}", handler.GetAssignment).Methods("GET")
}
