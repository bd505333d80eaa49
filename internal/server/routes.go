package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"claim-rag/internal/models"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /query", s.handleQuery)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /summarize", s.handleSummarize)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Index  string `json:"index,omitempty"`
}

type ChatRequest struct {
	Messages []models.ChatMessage `json:"messages"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

type SummarizeRequest struct {
	Text string `json:"text"`
}

// handleQuery adjudicates a claim. The form carries "query" and optionally
// "top_k" and an uploaded "file", which is accepted but not used.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(s.maxUpload); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form: " + err.Error()})
			return
		}
	} else if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid form: " + err.Error()})
		return
	}

	query := strings.TrimSpace(r.FormValue("query"))
	if query == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "query is required"})
		return
	}

	k := s.topK
	if raw := r.FormValue("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "top_k must be a positive integer"})
			return
		}
		k = n
	}

	logger := zerolog.Ctx(r.Context())
	if file, header, err := r.FormFile("file"); err == nil {
		n, _ := io.Copy(io.Discard, file)
		file.Close()
		logger.Debug().Str("file", header.Filename).Int64("bytes", n).Msg("Ignoring uploaded file")
	}

	decision, err := s.svc.Decide(r.Context(), query, k)
	if err != nil {
		logger.Error().Err(err).Str("query", query).Msg("Decision failed")
		writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	resp, err := s.svc.Chat(r.Context(), req.Messages)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Chat failed")
		writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Response: resp})
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	var req SummarizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	summary, err := s.svc.Summarize(r.Context(), req.Text)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Summarize failed")
		writeJSON(w, statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// handleReady returns 200 only once an index compatible with the embedding
// backend is loaded.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.svc.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "degraded", Index: "not_loaded"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Index: "loaded"})
}

// statusFor maps pipeline errors to HTTP status codes. Anything unknown is
// treated as an upstream (embedding or model) failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrIndexNotFound):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrBackendMismatch), errors.Is(err, models.ErrMisaligned):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
