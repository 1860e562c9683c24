package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/invoicehub/auth"
	"github.com/diewo77/invoicehub/httpx"
	"github.com/diewo77/invoicehub/internal/models"
	"github.com/diewo77/invoicehub/validation"
)

const minPasswordLen = 8

type AuthHandler struct {
	db     *gorm.DB
	authn  *auth.Authenticator
	logger *zap.Logger
}

func NewAuthHandler(db *gorm.DB, authn *auth.Authenticator, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{db: db, authn: authn, logger: logger.Named("auth")}
}

type credentials struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type sessionResponse struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}

// respond sets the browser cookie and issues a bearer token for mobile clients.
func (h *AuthHandler) respond(w http.ResponseWriter, status int, user *models.User) {
	auth.CreateSession(w, user.ID)
	out := sessionResponse{User: user}
	if h.authn != nil && h.authn.Tokens() != nil {
		tok, err := h.authn.Tokens().Issue(user.ID, user.Email)
		if err != nil {
			h.logger.Error("issue token", zap.Uint("user_id", user.ID), zap.Error(err))
			httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			return
		}
		out.Token, out.ExpiresAt = tok.Token, &tok.ExpiresAt
	}
	httpx.JSON(w, status, out)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := httpx.DecodeJSON(r, &in); err != nil {
		WriteError(w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	v := make(validation.Violations)
	validation.Required("email", email, v)
	validation.Email("email", email, v)
	if len(in.Password) < minPasswordLen {
		v["password"] = "too_short"
	}
	if !v.Empty() {
		WriteError(w, v)
		return
	}
	var count int64
	if err := h.db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		WriteError(w, err)
		return
	}
	if count > 0 {
		httpx.JSONError(w, http.StatusConflict, "email_already_registered", nil)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		WriteError(w, err)
		return
	}
	user := models.User{
		Email:          email,
		Password:       string(hash),
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		OnboardingStep: "profile",
	}
	if err := h.db.Create(&user).Error; err != nil {
		WriteError(w, err)
		return
	}
	h.logger.Info("user signed up", zap.Uint("user_id", user.ID))
	h.respond(w, http.StatusCreated, &user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := httpx.DecodeJSON(r, &in); err != nil {
		WriteError(w, err)
		return
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{"email": "required", "password": "required"})
		return
	}
	var user models.User
	err := h.db.Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		WriteError(w, err)
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "invalid_credentials", nil)
		return
	}
	h.respond(w, http.StatusOK, &user)
}

// Logout clears the cookie and revokes the bearer token, if one was used.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	if h.authn != nil {
		if err := h.authn.Revoke(r); err != nil {
			h.logger.Warn("token revocation failed", zap.Error(err))
			httpx.JSONError(w, http.StatusServiceUnavailable, "revocation_failed", nil)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := h.db.First(&user, currentUser(r)).Error; err != nil {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, &user)
}
