package user

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-notes-go/pkg/utilities"
)

// Handler exposes the /users endpoints behind auth.RequireSession.
type Handler struct {
	svc    *UserService
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// MeResponse describes the caller of GET /users/me.
type MeResponse struct {
	IsAuthenticated bool        `json:"is_authenticated"`
	User            entity.View `json:"user"`
}

// UpdateResponse is returned by PUT /users/{id}.
type UpdateResponse struct {
	User entity.View `json:"user"`
	// VerificationSent is set only when the email changed.
	VerificationSent *bool `json:"verification_sent,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		utilities.WriteError(w, common.ErrUnauthenticated)
		return
	}
	u, err := h.svc.Get(r.Context(), identity, identity.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteData(w, http.StatusOK, MeResponse{IsAuthenticated: true, User: u.View()})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := target(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Get(r.Context(), identity, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteData(w, http.StatusOK, u.View())
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := target(w, r)
	if !ok {
		return
	}
	var in UpdateInput
	if err := utilities.DecodeJSON(w, r, &in); err != nil {
		utilities.WriteError(w, err)
		return
	}
	emailChange := in.Email != nil
	u, err := h.svc.Update(r.Context(), identity, id, in)
	if err != nil && !(u != nil && errors.Is(err, common.ErrDeliveryFailed)) {
		h.writeError(w, err)
		return
	}
	resp := UpdateResponse{User: u.View()}
	if emailChange && u.Email != identity.Email {
		sent := err == nil
		resp.VerificationSent = &sent
	}
	utilities.WriteData(w, http.StatusOK, resp)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := target(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), identity, id); err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteData(w, http.StatusOK, MessageResponse{Message: "user " + strconv.FormatInt(id, 10) + " deleted"})
}

func target(w http.ResponseWriter, r *http.Request) (auth.Identity, int64, bool) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		utilities.WriteError(w, common.ErrUnauthenticated)
		return auth.Identity{}, 0, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		utilities.WriteError(w, common.InvalidInput("id must be a positive integer"))
		return auth.Identity{}, 0, false
	}
	return identity, id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if common.Classify(err).Status >= http.StatusInternalServerError {
		h.logger.Errorw("user request failed", "error", err)
	} else {
		h.logger.Debugw("user request rejected", "error", err)
	}
	utilities.WriteError(w, err)
}
