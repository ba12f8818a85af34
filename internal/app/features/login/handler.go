// internal/app/features/login/handler.go
package login

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/leadhub/internal/app/store/audit"
	userstore "github.com/dalemusser/leadhub/internal/app/store/users"
	"github.com/dalemusser/leadhub/internal/app/system/auditlog"
	"github.com/dalemusser/leadhub/internal/app/system/auth"
	"github.com/dalemusser/leadhub/internal/app/system/normalize"
	"github.com/dalemusser/leadhub/internal/app/system/ratelimit"
	"github.com/dalemusser/leadhub/internal/app/system/respond"
	"github.com/dalemusser/leadhub/internal/app/system/timeouts"
	"github.com/dalemusser/leadhub/internal/domain/models"
	"go.uber.org/zap"
)

// Handler authenticates users against the users collection and issues the
// session cookie.
type Handler struct {
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter
	Audit      *auditlog.Logger
	Log        *zap.Logger
}

func NewHandler(users *userstore.Store, sessionMgr *auth.SessionManager, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		SessionMgr: sessionMgr,
		Limiter:    ratelimit.NewLoginLimiter(),
		Audit:      auditLog,
		Log:        logger,
	}
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ServeLogin handles POST /login. Lookup failures and bad passwords get the
// same response so the endpoint does not confirm which emails exist.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	var p loginPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Email == "" || p.Password == "" {
		respond.BadRequest(w, "Email and password are required.")
		return
	}

	if allowed, reason := h.Limiter.Check(r, p.Email); !allowed {
		h.Audit.LoginFailed(r.Context(), r, audit.EventLoginFailedRateLimit, nil, p.Email, reason)
		respond.Fail(w, http.StatusTooManyRequests, reason)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	user, err := h.Users.GetByEmail(ctx, normalize.Email(p.Email))
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			h.Audit.LoginFailed(ctx, r, audit.EventLoginFailedUserNotFound, nil, p.Email, "unknown email")
			respond.Fail(w, http.StatusUnauthorized, "Invalid email or password.")
			return
		}
		respond.Error(w, h.Log, "login", err)
		return
	}
	if !h.Users.VerifyPassword(user, p.Password) {
		h.Audit.LoginFailed(ctx, r, audit.EventLoginFailedWrongPassword, &user.ID, p.Email, "wrong password")
		respond.Fail(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	}
	if !user.IsActive || user.Status != models.UserStatusApproved {
		h.Audit.LoginFailed(ctx, r, audit.EventLoginFailedUserDisabled, &user.ID, p.Email, "account inactive")
		respond.Fail(w, http.StatusForbidden, "Account is not active.")
		return
	}

	su := auth.SessionUser{
		ID:    user.ID.Hex(),
		Name:  user.FullName,
		Email: user.Email,
		Role:  user.Role,
	}
	if err := h.SessionMgr.SignIn(w, r, su); err != nil {
		respond.Error(w, h.Log, "login", err)
		return
	}
	h.Limiter.ResetEmail(p.Email)
	h.Audit.LoginSuccess(ctx, r, user.ID, user.Email)
	h.Log.Info("user signed in", zap.String("user_id", su.ID), zap.String("role", su.Role))
	respond.OK(w, "Signed in.", su)
}
