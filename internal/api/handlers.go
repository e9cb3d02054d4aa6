package api

import (
	"net/http"

	"github.com/gookit/validate"
	"github.com/gorilla/mux"

	"github.com/scam-scanner/internal/models"
	"github.com/scam-scanner/internal/service"
	"github.com/scam-scanner/internal/types"
)

// TranslateRequest is the /translate body.
type TranslateRequest struct {
	Term         string `json:"term" validate:"required"`
	AudienceType string `json:"audienceType"`
	Email        string `json:"email"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req TranslateRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid JSON body", nil)
		return
	}
	if v := validate.Struct(req); !v.Validate() {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, v.Errors.One(), nil)
		return
	}

	result, err := s.assessments.Translate(r.Context(), &service.TranslateInput{
		Term:     req.Term,
		Audience: types.AudienceType(req.AudienceType),
		Email:    req.Email,
		IP:       clientIP(r),
	}, decisionFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ScanRequest is the /check-scam body. At least one of scenario or an address
// field must be present.
type ScanRequest struct {
	Scenario           string   `json:"scenario"`
	SuspiciousAddress  string   `json:"suspiciousAddress"`
	UserAddress        string   `json:"userAddress"`
	ExtractedAddresses []string `json:"extractedAddresses"`
	ScanType           string   `json:"scanType"`
	Email              string   `json:"email"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid JSON body", nil)
		return
	}
	if req.Scenario == "" && req.SuspiciousAddress == "" && req.UserAddress == "" && len(req.ExtractedAddresses) == 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput,
			"Provide a scenario description or at least one address", nil)
		return
	}
	if req.ScanType != "" && req.ScanType != string(types.ScanBasic) && req.ScanType != string(types.ScanAdvanced) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "scanType must be basic or advanced", nil)
		return
	}

	result, err := s.assessments.Scan(r.Context(), &service.ScanInput{
		Scenario:           req.Scenario,
		SuspiciousAddress:  req.SuspiciousAddress,
		UserAddress:        req.UserAddress,
		ExtractedAddresses: req.ExtractedAddresses,
		ScanType:           types.ScanType(req.ScanType),
		Email:              req.Email,
		IP:                 clientIP(r),
	}, decisionFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// ExpertRequestBody is the /request-expert body.
type ExpertRequestBody struct {
	Scenario           string   `json:"scenario" validate:"required"`
	SuspiciousAddress  string   `json:"suspiciousAddress"`
	UserAddress        string   `json:"userAddress"`
	ExtractedAddresses []string `json:"extractedAddresses"`
	Notes              string   `json:"notes"`
	Email              string   `json:"email"`
}

func (s *Server) handleRequestExpert(w http.ResponseWriter, r *http.Request) {
	var req ExpertRequestBody
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid JSON body", nil)
		return
	}
	if v := validate.Struct(req); !v.Validate() {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, v.Errors.One(), nil)
		return
	}

	decision := decisionFromContext(r.Context())
	created, err := s.accounts.RequestExpert(r.Context(), &service.ExpertInput{
		Scenario:           req.Scenario,
		SuspiciousAddress:  req.SuspiciousAddress,
		UserAddress:        req.UserAddress,
		ExtractedAddresses: req.ExtractedAddresses,
		Notes:              req.Notes,
		Email:              req.Email,
		IP:                 clientIP(r),
	}, decision)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":          created.ID,
		"message":     "Your request has been filed. An analyst will review it shortly.",
		"requestDate": created.CreatedAt,
		"isAdmin":     decision.IsAdmin,
	})
}

// UpdateExpertStatusRequest is the /expert-requests/{id}/status body.
type UpdateExpertStatusRequest struct {
	RequesterEmail string  `json:"requesterEmail" validate:"required|email"`
	Status         string  `json:"status" validate:"required"`
	AssignedTo     *string `json:"assignedTo"`
}

func (s *Server) handleUpdateExpertStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateExpertStatusRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid JSON body", nil)
		return
	}
	if v := validate.Struct(req); !v.Validate() {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, v.Errors.One(), nil)
		return
	}

	updated, err := s.accounts.UpdateExpertStatus(
		r.Context(),
		req.RequesterEmail,
		mux.Vars(r)["id"],
		models.ExpertRequestStatus(req.Status),
		req.AssignedTo,
	)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

// ActivateBonusRequest is the /activate-bonus body.
type ActivateBonusRequest struct {
	Email string `json:"email" validate:"required|email"`
}

func (s *Server) handleActivateBonus(w http.ResponseWriter, r *http.Request) {
	var req ActivateBonusRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid JSON body", nil)
		return
	}
	if v := validate.Struct(req); !v.Validate() {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, v.Errors.One(), nil)
		return
	}

	status, alreadyActivated, err := s.quota.ActivateBonus(r.Context(), req.Email, clientIP(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	message := "Bonus checks unlocked for today."
	if alreadyActivated {
		message = "Bonus checks were already activated today."
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":          true,
		"message":          message,
		"alreadyActivated": alreadyActivated,
		"bonusPrompts":     status,
	})
}

// SubscribeRequest is the /subscribe body.
type SubscribeRequest struct {
	Email                 string `json:"email" validate:"required|email"`
	Source                string `json:"source"`
	SubscribeToNewsletter bool   `json:"subscribeToNewsletter"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid JSON body", nil)
		return
	}
	if v := validate.Struct(req); !v.Validate() {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, v.Errors.One(), nil)
		return
	}

	isAdmin, err := s.accounts.Subscribe(r.Context(), req.Email, req.Source, req.SubscribeToNewsletter)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"isAdmin": isAdmin,
	})
}

func (s *Server) handleCheckAdmin(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "email query parameter is required", nil)
		return
	}

	check, err := s.accounts.CheckAdmin(r.Context(), email)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, check)
}

func (s *Server) handleListAdminEmails(w http.ResponseWriter, r *http.Request) {
	requester := r.URL.Query().Get("email")
	if requester == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "email query parameter is required", nil)
		return
	}

	emails, err := s.resolver.AdminEmails(r.Context(), requester)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"adminEmails": emails})
}

// AddAdminRequest is the POST /admin-emails body.
type AddAdminRequest struct {
	RequesterEmail string `json:"requesterEmail" validate:"required|email"`
	NewAdminEmail  string `json:"newAdminEmail" validate:"required|email"`
}

func (s *Server) handleAddAdminEmail(w http.ResponseWriter, r *http.Request) {
	var req AddAdminRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid JSON body", nil)
		return
	}
	if v := validate.Struct(req); !v.Validate() {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, v.Errors.One(), nil)
		return
	}

	if err := s.resolver.AddAdmin(r.Context(), req.RequesterEmail, req.NewAdminEmail); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleUsageStats(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "email query parameter is required", nil)
		return
	}

	stats, err := s.accounts.UsageStats(r.Context(), email)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
