package http

import (
	"net/http"
	"time"

	"github.com/AlibekovAA/devicehub/internal/auth/service"
	commonhttp "github.com/AlibekovAA/devicehub/internal/common/http"
	"github.com/AlibekovAA/devicehub/internal/common/logger"
)

type credentialsRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerResponse struct {
	GUID string `json:"guid"`
	Name string `json:"name"`
}

type loginResponse struct {
	Name  string `json:"name"`
	GUID  string `json:"guid"`
	Token string `json:"token"`
}

type Handler struct {
	auth    *service.AuthService
	limiter *commonhttp.AuthRateLimiter
	timeout time.Duration
	log     *logger.Logger
}

func NewHandler(auth *service.AuthService, limiter *commonhttp.AuthRateLimiter, timeout time.Duration, log *logger.Logger) *Handler {
	return &Handler{auth: auth, limiter: limiter, timeout: timeout, log: log}
}

// Routes mounts the public credential endpoints.
func (h *Handler) Routes(mux *http.ServeMux) {
	withTimeout := commonhttp.WithTimeout(h.timeout)

	var register http.Handler = withTimeout(h.register)
	var login http.Handler = withTimeout(h.login)
	if h.limiter != nil {
		register = h.limiter.Register()(register)
		login = h.limiter.Login()(login)
	}

	mux.Handle("POST /register", register)
	mux.Handle("POST /login", login)
}

func (h *Handler) decodeCredentials(w http.ResponseWriter, r *http.Request, op string) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		h.log.WithFields(r.Context(), logger.Fields{
			"action": op + "_invalid_json",
		}).Warnf("%s failed: invalid json: %v", op, err)
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid json")
		return req, false
	}

	if err := commonhttp.ValidateStruct(req); err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return req, false
	}
	return req, true
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r, "register")
	if !ok {
		return
	}

	result, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusCreated, registerResponse{GUID: result.GUID, Name: result.Name})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCredentials(w, r, "login")
	if !ok {
		return
	}

	result, err := h.auth.Login(r.Context(), service.LoginInput{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		commonhttp.HandleError(w, r, err, h.log)
		return
	}

	commonhttp.WriteJSON(w, http.StatusOK, loginResponse{Name: result.Name, GUID: result.GUID, Token: result.Token})
}
