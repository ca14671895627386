package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"cleanflow/auth"
	"cleanflow/dispute"
	"cleanflow/evidence"
)

type createDisputeRequest struct {
	AppointmentID string            `json:"appointmentId"`
	HomeID        string            `json:"homeId"`
	ReportedBeds  *int              `json:"reportedBeds"`
	ReportedBaths *int              `json:"reportedBaths"`
	CleanerNote   *string           `json:"cleanerNote"`
	Photos        []evidence.Upload `json:"photos"`
}

type homeownerResponseRequest struct {
	Approve      *bool   `json:"approve"`
	ResponseText *string `json:"responseText"`
}

type ownerResolveRequest struct {
	Decision string  `json:"decision"`
	Note     *string `json:"note"`
}

func (s *Server) handleCreateDispute(w http.ResponseWriter, r *http.Request) {
	var req createDisputeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.ReportedBeds == nil || req.ReportedBaths == nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "reportedBeds and reportedBaths are required")
		return
	}

	view, err := s.disputeService.Create(r.Context(), principalFromContext(r.Context()), dispute.CreateParams{
		AppointmentID: strings.TrimSpace(req.AppointmentID),
		HomeID:        strings.TrimSpace(req.HomeID),
		ReportedBeds:  *req.ReportedBeds,
		ReportedBaths: *req.ReportedBaths,
		CleanerNote:   req.CleanerNote,
		Photos:        req.Photos,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) handlePendingDisputes(w http.ResponseWriter, r *http.Request) {
	viewer := principalFromContext(r.Context())
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, ok := auth.ParseRole(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "role must be one of cleaner, homeowner, owner, hr")
			return
		}
		if role != viewer.Role {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "not permitted")
			return
		}
	}

	views, err := s.disputeService.ListPending(r.Context(), viewer)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: views, Total: len(views)})
}

func (s *Server) handleDisputeHistory(w http.ResponseWriter, r *http.Request) {
	views, err := s.disputeService.History(r.Context(), principalFromContext(r.Context()), chi.URLParam(r, "homeId"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: views, Total: len(views)})
}

func (s *Server) handleGetDispute(w http.ResponseWriter, r *http.Request) {
	view, err := s.disputeService.Get(r.Context(), principalFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHomeownerResponse(w http.ResponseWriter, r *http.Request) {
	var req homeownerResponseRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Approve == nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "approve is required")
		return
	}

	view, err := s.disputeService.HomeownerRespond(r.Context(), principalFromContext(r.Context()), chi.URLParam(r, "id"), dispute.RespondParams{
		Approve:      *req.Approve,
		ResponseText: req.ResponseText,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleOwnerResolve(w http.ResponseWriter, r *http.Request) {
	var req ownerResolveRequest
	if !s.decode(w, r, &req) {
		return
	}

	view, err := s.disputeService.OwnerResolve(r.Context(), principalFromContext(r.Context()), chi.URLParam(r, "id"), dispute.ResolveParams{
		Decision: dispute.Decision(strings.ToLower(strings.TrimSpace(req.Decision))),
		Note:     req.Note,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// decode reads a JSON body into dst, writing the error response itself when
// it returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid JSON body")
		return false
	}
	return true
}
