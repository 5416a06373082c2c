package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tasktrack/apiserver/internal/auth"
	"github.com/tasktrack/apiserver/internal/services"
	"github.com/tasktrack/apiserver/internal/store"
	"github.com/tasktrack/apiserver/types"
)

const tokenTypeBearer = "bearer"

// AuthHandler provides account and JWT endpoints.
type AuthHandler struct {
	userService *services.UserService
	tokens      *auth.TokenIssuer
	logger      *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(userService *services.UserService, tokens *auth.TokenIssuer, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		userService: userService,
		tokens:      tokens,
		logger:      logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Group(func(r chi.Router) {
		r.Use(handler.RequireAuth)
		r.Get("/me", handler.Me)
		r.Post("/change-password", handler.ChangePassword)
	})
}

// RequireAuth enforces bearer JWT authentication and injects the user id
// into the request context. Tokens for users that no longer exist are rejected.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		userID, err := h.tokens.Verify(tokenString)
		if err != nil {
			writeUnauthorized(w)
			return
		}

		if _, err := h.userService.GetByID(r.Context(), userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeUnauthorized(w)
				return
			}
			h.logger.ErrorContext(r.Context(), "failed to resolve token subject", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
			return
		}

		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

// Register creates a new user account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			writeError(w, http.StatusBadRequest, "Email already registered")
		case errors.Is(err, services.ErrInvalidUser), errors.Is(err, services.ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.ErrorContext(r.Context(), "failed to register user", slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login verifies credentials and returns an access token. It accepts a JSON
// body or an OAuth2 password form where username carries the email.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := parseLoginRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to authenticate", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to issue token", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: tokenTypeBearer})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	user, err := h.userService.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeUnauthorized(w)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	err = h.userService.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword, req.ConfirmPassword)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Password updated successfully"})
	case errors.Is(err, services.ErrWrongPassword):
		writeError(w, http.StatusBadRequest, "Old password is incorrect")
	case errors.Is(err, services.ErrPasswordMismatch):
		writeError(w, http.StatusBadRequest, "New password and confirm password do not match")
	case errors.Is(err, services.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "New password must not be empty")
	case errors.Is(err, store.ErrNotFound):
		writeUnauthorized(w)
	default:
		h.logger.ErrorContext(r.Context(), "failed to change password", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to update password")
	}
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	err := h.userService.ForgotPassword(r.Context(), req.Email)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Temporary password sent to your email"})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Email not registered")
	case errors.Is(err, services.ErrNotificationFailed):
		writeError(w, http.StatusInternalServerError, "Failed to send email")
	default:
		h.logger.ErrorContext(r.Context(), "failed to reset password", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to reset password")
	}
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	OldPassword     string `json:"old_password"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(user types.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

func parseLoginRequest(w http.ResponseWriter, r *http.Request) (LoginRequest, error) {
	var req LoginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.Username = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
	} else if err := decodeJSON(w, r, &req); err != nil {
		return req, err
	}

	if strings.TrimSpace(req.Email) == "" {
		req.Email = req.Username
	}
	req.Email = strings.TrimSpace(req.Email)
	return req, nil
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "Could not validate credentials")
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
