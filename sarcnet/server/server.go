package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tapon22bce/sarcnet/sarcnet/inference"
)

// Server is the demo serving surface: one single-input predict endpoint plus
// a health check. No batching contract at this boundary.
type Server struct {
	log      zerolog.Logger
	pipeline *inference.Pipeline
	mux      *http.ServeMux
}

type predictRequest struct {
	Text string `json:"text"`
}

type predictResponse struct {
	Label    int    `json:"label"`
	Category string `json:"category"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New wires the handler routes around a ready pipeline.
func New(log zerolog.Logger, pipeline *inference.Pipeline) *Server {
	s := &Server{log: log, pipeline: pipeline, mux: http.NewServeMux()}
	s.mux.HandleFunc("/predict", s.handlePredict)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

// Handler exposes the route table (also used by tests).
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe blocks serving the demo API.
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info().Str("addr", addr).Msg("serving predictions")
	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "POST only"})
		return
	}
	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}
	label, category, err := s.pipeline.Predict(r.Context(), req.Text)
	if err != nil {
		s.log.Error().Err(err).Msg("prediction failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "prediction failed"})
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{Label: label, Category: category})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
