package http

import (
	"context"
	"net/http"
	"time"

	commandservice "github.com/AlibekovAA/devicehub/internal/command/service"
	commonhttp "github.com/AlibekovAA/devicehub/internal/common/http"
	"github.com/AlibekovAA/devicehub/internal/common/jwtverify"
	"github.com/AlibekovAA/devicehub/internal/common/logger"
	"github.com/AlibekovAA/devicehub/internal/common/mapper"
	"github.com/AlibekovAA/devicehub/internal/user/domain"
)

// Commands is the operator command surface behind the admin routes.
type Commands interface {
	Reboot(ctx context.Context, guid string) error
	SetBlocked(ctx context.Context, guid string, blocked bool) error
	ExtendExpiration(ctx context.Context, guid string, amount int, unit commandservice.ExpireUnit) (time.Time, error)
	DeleteUser(ctx context.Context, guid string) error
	ListUsers(ctx context.Context) ([]domain.UserWithApp, error)
}

type blockRequest struct {
	IsBlocked *bool `json:"isBlocked" validate:"required"`
}

type blockResponse struct {
	GUID      string `json:"guid"`
	IsBlocked bool   `json:"isBlocked"`
}

type expireMonthRequest struct {
	Month *int `json:"month" validate:"required"`
}

type expireDayRequest struct {
	Days *int `json:"days" validate:"required"`
}

type expireResponse struct {
	GUID           string    `json:"guid"`
	ExpirationDate time.Time `json:"expirationDate"`
}

type rebootRequest struct {
	GUID string `json:"guid" validate:"required"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type Config struct {
	AuthRequired bool
	JWTSecret    string
	Timeout      time.Duration
}

type Handler struct {
	commands Commands
	cfg      Config
	log      *logger.Logger
}

func NewHandler(commands Commands, cfg Config, log *logger.Logger) *Handler {
	return &Handler{commands: commands, cfg: cfg, log: log}
}

// Routes mounts the operator endpoints, behind an admin bearer token unless
// auth is disabled.
func (h *Handler) Routes(mux *http.ServeMux) {
	wrap := func(fn http.HandlerFunc) http.Handler {
		var handler http.Handler = commonhttp.WithTimeout(h.cfg.Timeout)(fn)
		if h.cfg.AuthRequired {
			handler = jwtverify.Middleware(h.cfg.JWTSecret, h.log)(
				jwtverify.RequireRole(jwtverify.RoleAdmin, h.log)(handler),
			)
		}
		return handler
	}

	mux.Handle("GET /users", wrap(h.listUsers))
	mux.Handle("DELETE /user/{guid}", wrap(h.deleteUser))
	mux.Handle("POST /user/{guid}/block", wrap(h.setBlocked))
	mux.Handle("POST /user/{guid}/expire/month", wrap(h.expireMonth))
	mux.Handle("POST /user/{guid}/expire/day", wrap(h.expireDay))
	mux.Handle("POST /reboot", wrap(h.reboot))
}

func (h *Handler) pathGUID(w http.ResponseWriter, r *http.Request) (string, bool) {
	guid, err := commonhttp.CanonicalUUID(r.PathValue("guid"))
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return "", false
	}
	return guid, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := commonhttp.DecodeJSON(r, v); err != nil {
		h.log.WithFields(r.Context(), logger.Fields{
			"path":   r.URL.Path,
			"action": "admin_invalid_json",
		}).Warnf("admin request rejected: invalid json: %v", err)
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid json")
		return false
	}
	if err := commonhttp.ValidateStruct(v); err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return false
	}
	return true
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.commands.ListUsers(r.Context())
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, mapper.UsersToDTO(users))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	guid, ok := h.pathGUID(w, r)
	if !ok {
		return
	}

	if err := h.commands.DeleteUser(r.Context(), guid); err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, struct{}{})
}

func (h *Handler) setBlocked(w http.ResponseWriter, r *http.Request) {
	guid, ok := h.pathGUID(w, r)
	if !ok {
		return
	}

	var req blockRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.commands.SetBlocked(r.Context(), guid, *req.IsBlocked); err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, blockResponse{GUID: guid, IsBlocked: *req.IsBlocked})
}

func (h *Handler) expireMonth(w http.ResponseWriter, r *http.Request) {
	var req expireMonthRequest
	h.extend(w, r, &req, func() int { return *req.Month }, commandservice.UnitMonth)
}

func (h *Handler) expireDay(w http.ResponseWriter, r *http.Request) {
	var req expireDayRequest
	h.extend(w, r, &req, func() int { return *req.Days }, commandservice.UnitDay)
}

func (h *Handler) extend(w http.ResponseWriter, r *http.Request, req any, amount func() int, unit commandservice.ExpireUnit) {
	guid, ok := h.pathGUID(w, r)
	if !ok {
		return
	}
	if !h.decode(w, r, req) {
		return
	}

	updated, err := h.commands.ExtendExpiration(r.Context(), guid, amount(), unit)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, expireResponse{GUID: guid, ExpirationDate: updated})
}

func (h *Handler) reboot(w http.ResponseWriter, r *http.Request) {
	var req rebootRequest
	if !h.decode(w, r, &req) {
		return
	}
	guid, err := commonhttp.CanonicalUUID(req.GUID)
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	if err := h.commands.Reboot(r.Context(), guid); err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}
	commonhttp.WriteJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}
