package auth

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-notes-go/internal/common"
	"github.com/ovaphlow/pitchfork/service-notes-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-notes-go/pkg/utilities"
)

// Handler exposes the /auth endpoints.
type Handler struct {
	svc    *Service
	cfg    Config
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, cfg Config, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, cfg: cfg, logger: logger}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User      entity.View `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

type RegisterResponse struct {
	User entity.View `json:"user"`
	// VerificationSent is false when the account exists but the mail
	// could not be delivered.
	VerificationSent bool `json:"verification_sent"`
}

type ResendRequest struct {
	Email string `json:"email"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := utilities.DecodeJSON(w, r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		if u != nil && errors.Is(err, common.ErrDeliveryFailed) {
			utilities.WriteData(w, http.StatusCreated, RegisterResponse{User: u.View(), VerificationSent: false})
			return
		}
		h.logger.Debugw("register failed", "error", err)
		utilities.WriteError(w, err)
		return
	}
	utilities.WriteData(w, http.StatusCreated, RegisterResponse{User: u.View(), VerificationSent: true})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utilities.DecodeJSON(w, r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	sess, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "error", err)
		utilities.WriteError(w, err)
		return
	}
	http.SetCookie(w, h.sessionCookie(sess.Token, int(h.cfg.SessionTTL.Seconds())))
	utilities.WriteData(w, http.StatusOK, LoginResponse{User: sess.User.View(), ExpiresAt: sess.ExpiresAt})
}

// Logout clears the session cookie. Nothing is recorded server side.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -1))
	utilities.WriteData(w, http.StatusOK, MessageResponse{Message: "logged out"})
}

// LogoutAll revokes every session of the caller, this one included.
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		utilities.WriteError(w, common.ErrUnauthenticated)
		return
	}
	if !h.svc.RevocationEnabled() {
		utilities.WriteErrorCode(w, http.StatusNotImplemented, "not_implemented", "session revocation is not configured")
		return
	}
	if err := h.svc.RevokeSessions(r.Context(), identity.ID); err != nil {
		h.logger.Errorw("revoke sessions failed", "user_id", identity.ID, "error", err)
		utilities.WriteError(w, err)
		return
	}
	http.SetCookie(w, h.sessionCookie("", -1))
	utilities.WriteData(w, http.StatusOK, MessageResponse{Message: "all sessions revoked"})
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.VerifyEmail(r.Context(), r.PathValue("token"))
	if err != nil {
		h.logger.Debugw("email verification failed", "error", err)
		utilities.WriteError(w, err)
		return
	}
	utilities.WriteData(w, http.StatusOK, u.View())
}

// ResendVerification always answers 202 for a well-formed address.
func (h *Handler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req ResendRequest
	if err := utilities.DecodeJSON(w, r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	if err := h.svc.ResendVerification(r.Context(), req.Email); err != nil {
		if common.Classify(err).Status >= http.StatusInternalServerError {
			h.logger.Errorw("resend verification failed", "error", err)
		}
		utilities.WriteError(w, err)
		return
	}
	utilities.WriteData(w, http.StatusAccepted, MessageResponse{Message: "if the address is registered and unverified, a verification email has been sent"})
}

func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
