package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	ozzo "github.com/go-ozzo/ozzo-validation"

	pkgErrors "AccountPlatform/pkg/errors"
	"AccountPlatform/pkg/logger"
	"AccountPlatform/pkg/validation"
	"AccountPlatform/services/account-service/internal/middleware"
	"AccountPlatform/services/account-service/internal/service"
)

// maxBodyBytes ограничение размера тела запроса
const maxBodyBytes = 1 << 20

// Handler HTTP обработчики сервиса аккаунтов
type Handler struct {
	service service.AccountService
	logger  logger.Logger
}

// NewHandler создает новый Handler
func NewHandler(accountService service.AccountService, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{
		service: accountService,
		logger:  log,
	}
}

// Routes регистрирует маршруты /ping и /users
func (h *Handler) Routes(r chi.Router) {
	r.Get("/ping", h.handlePing)

	r.Route("/users", func(r chi.Router) {
		r.Post("/sign-up", h.handleSignUp)
		r.Post("/sign-in", h.handleSignIn)
		r.Get("/activate/{key}", h.handleActivate)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(h.service))
			r.Get("/{id}", h.handleGetProfile)
			r.Patch("/{id}", h.handleUpdateProfile)
		})
	})
}

func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, "pong")
}

// handleSignUp обрабатывает регистрацию
func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	message, err := h.service.SignUp(r.Context(), req.toDomain())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, messageResponse{Message: message})
}

// handleSignIn обрабатывает вход
func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	result, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, result)
}

// handleActivate обрабатывает переход по ссылке активации
func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := ozzo.Validate(key, ozzo.Required, validation.UUID); err != nil {
		h.handleError(w, r, validation.Field("key", err.Error()))
		return
	}

	message, err := h.service.ActivateAccount(r.Context(), key)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, messageResponse{Message: message})
}

// handleGetProfile возвращает профиль
func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	caller, _ := middleware.IdentityFrom(r.Context())
	profile, err := h.service.GetProfile(r.Context(), id, caller)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, profile)
}

// handleUpdateProfile частично обновляет профиль
func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	var req updateRequest
	if err := h.decode(r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	caller, _ := middleware.IdentityFrom(r.Context())
	profile, err := h.service.UpdateProfile(r.Context(), id, caller, req.toDomain())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, profile)
}

// accountID извлекает целочисленный id из пути
func accountID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, validation.Field("id", "must be an integer")
	}
	return id, nil
}

// decode читает JSON тело и валидирует его
func (h *Handler) decode(r *http.Request, dst validation.Validatable) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return validation.Field("body", "cannot be blank")
		}
		return validation.Field("body", "must be a valid JSON object")
	}
	return validation.Validate(dst)
}

// writeJSON отправляет JSON ответ
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", logger.CtxField(r.Context()), logger.Error(err))
	}
}

// handleError отправляет ошибку, внутренние ошибки логируются с причиной
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	if pkgErrors.FromError(err).Code == pkgErrors.ErrInternal {
		h.logger.Error("Request failed",
			logger.CtxField(r.Context()),
			logger.String("path", r.URL.Path),
			logger.Error(err),
		)
	}
	pkgErrors.WriteJSON(w, err)
}
