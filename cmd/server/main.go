package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ai-grader/api/rest/routes"
	"ai-grader/config"
	"ai-grader/core/engine"
	"ai-grader/core/monitoring"
	"ai-grader/core/orchestrator"
	"ai-grader/core/queue"
	"ai-grader/core/repository"
	"ai-grader/storage"

	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()

	// Initialize database
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Database connected successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize artifact storage
	blobs, err := storage.NewS3Store(ctx, cfg.S3Endpoint, cfg.S3Region, cfg.S3Bucket)
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}

	// Initialize repositories
	submissionRepo := repository.NewSubmissionRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	artifactRepo := repository.NewArtifactRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Initialize grading engine client
	engineClient := engine.NewHTTPClient(cfg.EngineBaseURL, cfg.EngineModel, cfg.EngineTimeout)

	// Initialize orchestrator
	policy := orchestrator.NewReviewPolicy(cfg.ReviewConfidenceThreshold)
	orch := orchestrator.NewOrchestrator(
		submissionRepo,
		assignmentRepo,
		artifactRepo,
		blobs,
		engineClient,
		auditRepo,
		policy,
		cfg.EngineTimeout,
	)

	// Initialize grading workers
	dispatcher := queue.NewDispatcher(queue.NewTaskQueue(), orch, submissionRepo, cfg.GradingWorkers, cfg.MaxJobAttempts)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// Initialize stuck-run reaper
	stuckMonitor := monitoring.NewStuckMonitor(submissionRepo, dispatcher, auditRepo, cfg.StuckGradingAge)
	go stuckMonitor.Start(ctx)

	// Setup routes
	r := mux.NewRouter()
	routes.SetupRoutes(r, db, blobs, dispatcher)

	// Health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	// Start server
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Starting server on port %s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	if err := server.Shutdown(context.Background()); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exited")
}
