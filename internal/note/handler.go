package note

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/note/entity"
	"github.com/ovaphlow/pitchfork/service-notes-go/pkg/utilities"
)

// Handler exposes the /notes endpoints. Every route expects
// auth.RequireSession in front of it.
type Handler struct {
	svc *Service
	// concealForbidden answers 404 instead of 403 to non-owners.
	concealForbidden bool
	logger           *zap.SugaredLogger
}

func NewHandler(svc *Service, concealForbidden bool, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, concealForbidden: concealForbidden, logger: logger}
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := h.target(w, r, "id")
	if !ok {
		return
	}
	n, err := h.svc.Get(r.Context(), identity, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteData(w, http.StatusOK, n.View())
}

func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	identity, ownerID, ok := h.target(w, r, "user_id")
	if !ok {
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	limit, err := queryInt(r, "limit", DefaultLimit)
	if err != nil {
		utilities.WriteError(w, err)
		return
	}
	notes, err := h.svc.ListByOwner(r.Context(), identity, ownerID, offset, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteData(w, http.StatusOK, entity.Views(notes))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		utilities.WriteError(w, common.ErrUnauthenticated)
		return
	}
	var in Input
	if err := utilities.DecodeJSON(w, r, &in); err != nil {
		utilities.WriteError(w, err)
		return
	}
	n, err := h.svc.Create(r.Context(), identity, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteData(w, http.StatusCreated, n.View())
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := h.target(w, r, "id")
	if !ok {
		return
	}
	var in Input
	if err := utilities.DecodeJSON(w, r, &in); err != nil {
		utilities.WriteError(w, err)
		return
	}
	n, err := h.svc.Update(r.Context(), identity, id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteData(w, http.StatusOK, n.View())
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := h.target(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), identity, id); err != nil {
		h.writeError(w, err)
		return
	}
	utilities.WriteData(w, http.StatusOK, MessageResponse{Message: "note " + strconv.FormatInt(id, 10) + " deleted"})
}

// target pulls the caller and a positive numeric path value. On failure it
// has already written the response.
func (h *Handler) target(w http.ResponseWriter, r *http.Request, name string) (auth.Identity, int64, bool) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		utilities.WriteError(w, common.ErrUnauthenticated)
		return auth.Identity{}, 0, false
	}
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		utilities.WriteError(w, common.InvalidInput(name+" must be a positive integer"))
		return auth.Identity{}, 0, false
	}
	return identity, id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if h.concealForbidden && errors.Is(err, common.ErrForbidden) {
		err = common.ErrNotFound
	}
	if common.Classify(err).Status >= http.StatusInternalServerError {
		h.logger.Errorw("note request failed", "error", err)
	}
	utilities.WriteError(w, err)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, common.InvalidInput(key + " must be an integer")
	}
	return n, nil
}
