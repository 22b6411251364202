package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Strob0t/Warden/internal/adapter/ws"
	"github.com/Strob0t/Warden/internal/domain/agent"
	"github.com/Strob0t/Warden/internal/domain/audit"
	"github.com/Strob0t/Warden/internal/domain/intervention"
	"github.com/Strob0t/Warden/internal/domain/training"
	"github.com/Strob0t/Warden/internal/logger"
	"github.com/Strob0t/Warden/internal/service"
)

// bodyLimit caps request body sizes.
const bodyLimit = 1 << 20

// defaultAuditLimit bounds an unbounded audit query.
const defaultAuditLimit = 500

// Handlers bundles the services exposed over HTTP.
type Handlers struct {
	governance    *service.GovernanceService
	confidence    *service.ConfidenceService
	training      *service.TrainingService
	interventions *service.InterventionService
	audits        *service.AuditService
	hub           *ws.Hub
	logCtl        *logger.Control
}

// NewHandlers creates the handler set.
func NewHandlers(
	governance *service.GovernanceService,
	confidence *service.ConfidenceService,
	trainingSvc *service.TrainingService,
	interventions *service.InterventionService,
	audits *service.AuditService,
	hub *ws.Hub,
	logCtl *logger.Control,
) *Handlers {
	return &Handlers{
		governance:    governance,
		confidence:    confidence,
		training:      trainingSvc,
		interventions: interventions,
		audits:        audits,
		hub:           hub,
		logCtl:        logCtl,
	}
}

// --- Agents ---

type registerAgentRequest struct {
	Signature string `json:"signature"`
	Name      string `json:"name"`
	Category  string `json:"category"`
}

func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[registerAgentRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.Signature, "signature") {
		return
	}

	rec, err := h.governance.RegisterAgent(r.Context(), req.Signature, req.Name, req.Category)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handlers) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	caps, err := h.governance.GetCapabilities(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, caps)
}

// --- Decisions ---

type decisionRequest struct {
	AgentID    string `json:"agent_id"`
	ActionType string `json:"action_type"`
}

func (h *Handlers) Decide(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[decisionRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.AgentID, "agent_id") || !requireField(w, req.ActionType, "action_type") {
		return
	}

	d := h.governance.Decide(r.Context(), req.AgentID, req.ActionType)
	writeJSON(w, http.StatusOK, d)
}

// --- Confidence ---

type confidenceRequest struct {
	Delta   float64 `json:"delta"`
	Success *bool   `json:"success,omitempty"`
}

func (h *Handlers) ApplyDelta(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[confidenceRequest](w, r, bodyLimit)
	if !ok {
		return
	}

	res, err := h.confidence.ApplyDelta(r.Context(), urlParam(r, "id"), req.Delta, req.Success)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type confirmPromotionRequest struct {
	AdminID string `json:"admin_id"`
}

func (h *Handlers) ConfirmPromotion(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[confirmPromotionRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.AdminID, "admin_id") {
		return
	}

	res, err := h.confidence.ConfirmPromotion(r.Context(), urlParam(r, "id"), req.AdminID)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Training ---

func (h *Handlers) CreateProposal(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.ProposalRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.AgentID, "agent_id") {
		return
	}

	p, err := h.training.CreateProposal(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type estimateRequest struct {
	AgentID    string     `json:"agent_id"`
	Gaps       []string   `json:"gaps"`
	TargetTier agent.Tier `json:"target_tier"`
}

func (h *Handlers) EstimateDuration(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[estimateRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.AgentID, "agent_id") {
		return
	}

	est, err := h.training.EstimateDuration(r.Context(), req.AgentID, req.Gaps, req.TargetTier)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, est)
}

type approveProposalRequest struct {
	UserID    string                     `json:"user_id"`
	Overrides *service.ApprovalOverrides `json:"overrides,omitempty"`
}

func (h *Handlers) ApproveProposal(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[approveProposalRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.UserID, "user_id") {
		return
	}

	session, err := h.training.ApproveProposal(r.Context(), urlParam(r, "id"), req.UserID, req.Overrides)
	if err != nil {
		writeDomainError(w, err, "proposal not found")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *Handlers) CompleteSession(w http.ResponseWriter, r *http.Request) {
	outcome, ok := readJSON[training.Outcome](w, r, bodyLimit)
	if !ok {
		return
	}

	res, err := h.training.CompleteSession(r.Context(), urlParam(r, "id"), outcome)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Interventions ---

type submitInterventionRequest struct {
	SubjectKind intervention.SubjectKind `json:"subject_kind"`
	SubjectID   string                   `json:"subject_id"`
	AgentID     string                   `json:"agent_id"`
	Detail      string                   `json:"detail"`
}

func (h *Handlers) SubmitIntervention(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[submitInterventionRequest](w, r, bodyLimit)
	if !ok {
		return
	}
	if !requireField(w, req.SubjectID, "subject_id") {
		return
	}

	a, err := h.interventions.Submit(r.Context(), req.SubjectKind, req.SubjectID, req.AgentID, req.Detail)
	if err != nil {
		writeDomainError(w, err, "intervention not found")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handlers) ListInterventions(w http.ResponseWriter, r *http.Request) {
	// Only pending interventions are listable; resolved ones live in the
	// audit trail.
	if status := r.URL.Query().Get("status"); status != "" && status != string(intervention.StatusPending) {
		writeError(w, http.StatusBadRequest, "only status=pending is supported")
		return
	}

	actions, err := h.interventions.ListPending(r.Context())
	if err != nil {
		writeDomainError(w, err, "interventions unavailable")
		return
	}
	if actions == nil {
		actions = []intervention.Action{}
	}
	writeJSON(w, http.StatusOK, actions)
}

type resolveRequest struct {
	ApproverID string `json:"approver_id"`
	Reason     string `json:"reason,omitempty"`
}

func (h *Handlers) ApproveIntervention(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[resolveRequest](w, r, bodyLimit)
	if !ok {
		return
	}

	a, err := h.interventions.Approve(r.Context(), urlParam(r, "id"), req.ApproverID)
	if err != nil {
		writeDomainError(w, err, "intervention not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handlers) RejectIntervention(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[resolveRequest](w, r, bodyLimit)
	if !ok {
		return
	}

	a, err := h.interventions.Reject(r.Context(), urlParam(r, "id"), req.ApproverID, req.Reason)
	if err != nil {
		writeDomainError(w, err, "intervention not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// --- Audit ---

func (h *Handlers) AgentAuditTrail(w http.ResponseWriter, r *http.Request) {
	filter := audit.Filter{AgentID: urlParam(r, "id")}

	if v := r.URL.Query().Get("after"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be RFC3339")
			return
		}
		filter.After = &t
	}
	if v := r.URL.Query().Get("before"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be RFC3339")
			return
		}
		filter.Before = &t
	}

	limit := defaultAuditLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.audits.Query(r.Context(), filter, limit)
	if err != nil {
		writeDomainError(w, err, "audit trail unavailable")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"ws_clients":    h.hub.ConnectionCount(),
		"audit_dropped": h.audits.DroppedCount(),
		"log_dropped":   h.logCtl.Dropped(),
	})
}
