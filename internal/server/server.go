package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gradelab/gograder/internal/jobs"
	"github.com/gradelab/gograder/internal/models"
)

// Server provides the HTTP API for graderd.
type Server struct {
	service *Service
	addr    string
	apiKey  string
	server  *http.Server
}

// NewServer creates a new HTTP server. A non-empty apiKey gates mutating
// endpoints behind the x-api-key header.
func NewServer(service *Service, addr, apiKey string) *Server {
	return &Server{
		service: service,
		addr:    addr,
		apiKey:  apiKey,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/grade", s.handleGrade)
	mux.HandleFunc("/api/jobs/", s.handleJobByID)
	mux.HandleFunc("/api/scores/student/", s.handleScoresByStudent)
	mux.HandleFunc("/api/scores/assignment/", s.handleScoresByAssignment)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Printf("Starting graderd on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// --- Grading Handlers ---

type gradeRequest struct {
	Files          []models.SourceUnit `json:"files"`
	Topic          string              `json:"topic"`
	Student        string              `json:"student"`
	AssignmentCode string              `json:"assignment_code"`
	CallbackURL    string              `json:"callback_url"`
}

type gradeResponse struct {
	JobID   string           `json:"job_id"`
	Status  models.JobStatus `json:"status"`
	Message string           `json:"message"`
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "invalid or missing api key", http.StatusUnauthorized)
		return
	}

	var req gradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	job, err := s.service.SubmitJob(jobs.Submission{
		Units:          req.Files,
		Topic:          req.Topic,
		Student:        req.Student,
		AssignmentCode: req.AssignmentCode,
		CallbackURL:    req.CallbackURL,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusAccepted, gradeResponse{
		JobID:   job.ID,
		Status:  job.Status,
		Message: "grading started, poll /api/jobs/{id} for the result",
	})
}

// handleJobByID handles GET /api/jobs/{id}
func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "job id required", http.StatusBadRequest)
		return
	}

	job, err := s.service.GetJob(id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// --- Score Handlers ---

func (s *Server) handleScoresByStudent(w http.ResponseWriter, r *http.Request) {
	s.handleScores(w, r, "/api/scores/student/", s.service.ScoresByStudent)
}

func (s *Server) handleScoresByAssignment(w http.ResponseWriter, r *http.Request) {
	s.handleScores(w, r, "/api/scores/assignment/", s.service.ScoresByAssignment)
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request, prefix string, query func(context.Context, string) ([]models.ScoreRecord, error)) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, prefix)
	if key == "" || strings.Contains(key, "/") {
		http.Error(w, "identifier required", http.StatusBadRequest)
		return
	}

	records, err := query(r.Context(), key)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrStoreDisabled) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}
	if records == nil {
		records = []models.ScoreRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.service.Stats(r.Context(), r.URL.Query().Get("assignment_code"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrStoreDisabled) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// --- Health ---

// HealthResponse is the /health body.
type HealthResponse struct {
	OK   bool   `json:"ok"`
	DB   string `json:"db"`
	Time string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{OK: true, DB: "ok", Time: time.Now().UTC().Format(time.RFC3339)}
	if err := s.service.PingDB(r.Context()); err != nil {
		health.DB = err.Error()
	}

	writeJSON(w, http.StatusOK, health)
}

// authorized checks the x-api-key header when a key is configured.
func (s *Server) authorized(r *http.Request) bool {
	if s.apiKey == "" {
		return true
	}
	return r.Header.Get("x-api-key") == s.apiKey
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
