package server

import (
	"net/http"
	"time"

	"github.com/fuaadabdullah/goblin-runtime/internal/model"
)

type apiHealthResponse struct {
	Status      string    `json:"status"`
	Initialized bool      `json:"initialized"`
	Timestamp   time.Time `json:"timestamp"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	jsonResponse(w, apiHealthResponse{
		Status:      "ok",
		Initialized: s.catalog != nil,
		Timestamp:   time.Now(),
	})
}

func (s *Server) handleGoblins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	agents := s.catalog.Agents()
	out := make([]model.Agent, 0, len(agents))
	for _, a := range agents {
		out = append(out, a)
	}
	jsonResponse(w, out)
}

type apiExecuteRequest struct {
	Goblin  string            `json:"goblin"`
	Task    string            `json:"task"`
	Context map[string]string `json:"context,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req apiExecuteRequest
	if err := decodeJSONRequest(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Goblin == "" || req.Task == "" {
		jsonError(w, "goblin and task are required", http.StatusBadRequest)
		return
	}

	resp, err := s.executor.Run(r.Context(), model.TaskRequest{
		AgentID:  req.Goblin,
		TaskText: req.Task,
		Context:  req.Context,
	})
	if err != nil {
		jsonError(w, err.Error(), statusForError(err))
		return
	}
	jsonResponse(w, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	agentID := pathTail(r, "/api/history/")
	if agentID == "" {
		jsonError(w, "agent id required", http.StatusBadRequest)
		return
	}
	limit := parseIntParam(r, "limit", 10)
	jsonResponse(w, s.history.Recent(agentID, limit))
}

type apiStatsResponse struct {
	TotalTasks      int                  `json:"totalTasks"`
	SuccessfulTasks int                  `json:"successfulTasks"`
	FailedTasks     int                  `json:"failedTasks"`
	SuccessRate     float64              `json:"successRate"`
	AvgDuration     float64              `json:"avgDuration"`
	RecentTasks     []model.HistoryEntry `json:"recentTasks"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	agentID := pathTail(r, "/api/stats/")
	if agentID == "" {
		jsonError(w, "agent id required", http.StatusBadRequest)
		return
	}

	all := s.history.All(agentID)
	stats := apiStatsResponse{}
	stats.TotalTasks = len(all)
	var totalDuration float64
	for _, entry := range all {
		if entry.Succeeded {
			stats.SuccessfulTasks++
		} else {
			stats.FailedTasks++
		}
		if d, ok := entry.KPIs["duration_ms"]; ok {
			totalDuration += d
		}
	}
	if stats.TotalTasks > 0 {
		stats.SuccessRate = float64(stats.SuccessfulTasks) / float64(stats.TotalTasks)
		stats.AvgDuration = totalDuration / float64(stats.TotalTasks)
	}
	stats.RecentTasks = s.history.Recent(agentID, 10)

	jsonResponse(w, stats)
}

type apiLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type apiLoginResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req apiLoginRequest
	if err := decodeJSONRequest(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.creds.Check(req.Username, req.Password); err != nil {
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.auth.Generate(req.Username)
	if err != nil {
		jsonError(w, "login unavailable", http.StatusUnauthorized)
		return
	}
	jsonResponse(w, apiLoginResponse{Token: token})
}
