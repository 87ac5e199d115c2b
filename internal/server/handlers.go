package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Fumiaki0604/ga4-analytics-chat/apimodels"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/anomaly"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req apimodels.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.Question == "" || req.PropertyID == "" {
		http.Error(w, "question and propertyId are required", http.StatusBadRequest)
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), req)
	if err != nil {
		slog.Error("chat request failed", "error", err, "request_id", RequestID(r.Context()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, result)
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req anomaly.InsightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if req.PropertyID == "" {
		http.Error(w, "propertyId is required", http.StatusBadRequest)
		return
	}

	report, err := s.insights.GenerateReport(r.Context(), req)
	if err != nil {
		slog.Error("insight request failed", "error", err, "request_id", RequestID(r.Context()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, report)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
