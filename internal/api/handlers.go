package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"pricescan/internal/pricing"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	network := r.URL.Query().Get("network")
	tsStr := r.URL.Query().Get("timestamp")
	if token == "" || network == "" || tsStr == "" {
		writeError(w, http.StatusBadRequest, "Missing required query params")
		return
	}

	if !common.IsHexAddress(token) {
		writeError(w, http.StatusBadRequest, "Invalid token address")
		return
	}
	token = strings.ToLower(token)
	network = strings.ToLower(network)

	ts, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid timestamp")
		return
	}

	res, err := s.resolver.Resolve(r.Context(), token, network, ts)
	switch {
	case errors.Is(err, pricing.ErrUnsupportedNetwork):
		writeError(w, http.StatusBadRequest, "Unsupported network")
	case errors.Is(err, pricing.ErrNotFound):
		writeError(w, http.StatusNotFound, "Price not found")
	case err != nil:
		log.Printf("[api] GET /price: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

type scheduleRequest struct {
	Token   string `json:"token"`
	Network string `json:"network"`
}

type scheduleResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
	GroupID string `json:"groupId"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Token == "" || req.Network == "" {
		writeError(w, http.StatusBadRequest, "token and network are required")
		return
	}
	if !common.IsHexAddress(req.Token) {
		writeError(w, http.StatusBadRequest, "Invalid token address")
		return
	}
	token := strings.ToLower(req.Token)
	network := strings.ToLower(req.Network)

	groupID, count, err := s.scheduler.Schedule(r.Context(), token, network)
	if err != nil {
		log.Printf("[api] POST /schedule: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to schedule jobs")
		return
	}

	writeJSON(w, http.StatusOK, scheduleResponse{
		Message: "Jobs scheduled",
		Count:   count,
		GroupID: groupID,
	})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	groupID := mux.Vars(r)["groupId"]

	p, err := s.tracker.Progress(r.Context(), groupID)
	if err != nil {
		log.Printf("[api] GET /schedule/%s: %v", groupID, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch progress")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
