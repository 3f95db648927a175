package server

import (
	"net/http"

	"github.com/fuaadabdullah/goblin-runtime/internal/model"
	"github.com/fuaadabdullah/goblin-runtime/internal/orchestration"
)

type apiOrchestrateRequest struct {
	Text            string `json:"text"`
	DefaultGoblinID string `json:"defaultGoblinId,omitempty"`
}

func (s *Server) decodeOrchestrateRequest(w http.ResponseWriter, r *http.Request) (apiOrchestrateRequest, bool) {
	var req apiOrchestrateRequest
	if err := decodeJSONRequest(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	if req.Text == "" {
		jsonError(w, "text is required", http.StatusBadRequest)
		return req, false
	}
	if req.DefaultGoblinID == "" {
		req.DefaultGoblinID = s.defaultAgentID
	}
	return req, true
}

func clonePlan(plan *model.OrchestrationPlan) *model.OrchestrationPlan {
	cp := *plan
	cp.Steps = make([]model.OrchestrationStep, len(plan.Steps))
	copy(cp.Steps, plan.Steps)
	return &cp
}

func (s *Server) storePlan(plan *model.OrchestrationPlan) {
	s.plansMu.Lock()
	s.plans[plan.ID] = clonePlan(plan)
	s.plansMu.Unlock()
}

func (s *Server) handleOrchestrateParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, ok := s.decodeOrchestrateRequest(w, r)
	if !ok {
		return
	}

	plan, err := orchestration.Parse(req.Text, req.DefaultGoblinID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.storePlan(plan)
	jsonResponse(w, plan)
}

func (s *Server) handleOrchestrateExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, ok := s.decodeOrchestrateRequest(w, r)
	if !ok {
		return
	}

	plan, err := orchestration.Parse(req.Text, req.DefaultGoblinID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.storePlan(plan)

	scheduler := orchestration.NewScheduler(plan, s.executor, func(p *model.OrchestrationPlan, _ model.OrchestrationStep) {
		s.storePlan(p)
	})

	s.plansMu.Lock()
	s.active[plan.ID] = scheduler
	s.plansMu.Unlock()

	final := scheduler.Run(r.Context())

	s.plansMu.Lock()
	delete(s.active, plan.ID)
	s.plansMu.Unlock()
	s.storePlan(final)

	jsonResponse(w, final)
}

func (s *Server) handleOrchestratePlans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status := clampQueryParam(r, "status", 32)

	s.plansMu.Lock()
	out := make([]*model.OrchestrationPlan, 0, len(s.plans))
	for _, plan := range s.plans {
		if status != "" && string(plan.Status) != status {
			continue
		}
		out = append(out, plan)
	}
	s.plansMu.Unlock()

	jsonResponse(w, out)
}

func (s *Server) handleOrchestratePlanByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := pathTail(r, "/api/orchestrate/plans/")
	if id == "" {
		jsonError(w, "plan id required", http.StatusBadRequest)
		return
	}

	s.plansMu.Lock()
	plan, ok := s.plans[id]
	s.plansMu.Unlock()
	if !ok {
		jsonError(w, "plan not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, plan)
}

type apiCancelResponse struct {
	Success bool   `json:"success"`
	PlanID  string `json:"planId"`
}

func (s *Server) handleOrchestrateCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := pathTail(r, "/api/orchestrate/cancel/")
	if id == "" {
		jsonError(w, "plan id required", http.StatusBadRequest)
		return
	}

	s.plansMu.Lock()
	scheduler, ok := s.active[id]
	s.plansMu.Unlock()
	if !ok {
		jsonResponse(w, apiCancelResponse{Success: false, PlanID: id})
		return
	}

	scheduler.Cancel()
	jsonResponse(w, apiCancelResponse{Success: true, PlanID: id})
}
