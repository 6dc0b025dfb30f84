// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"

	"certforge/internal/middleware"
	"certforge/internal/models"
	"certforge/internal/session"
	"certforge/internal/store"
)

// totpIssuer labels the account in authenticator apps.
const totpIssuer = "certforge"

// Auth groups all authentication-related HTTP handlers.
type Auth struct {
	users    UserRepo
	sessions SessionManager
}

// NewAuth creates a new Auth handler group.
func NewAuth(users UserRepo, sessions SessionManager) *Auth {
	return &Auth{users: users, sessions: sessions}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Code     string `json:"code"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account. It does not log the user in.
func (a *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if msg := validateRegistration(email, in.Password, name); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	existing, err := a.users.FindByEmail(r.Context(), email)
	if err != nil {
		serverError(w, r, "register lookup", err)
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "User exists")
		return
	}

	user, err := a.users.Create(r.Context(), email, in.Password, name)
	if errors.Is(err, store.ErrEmailTaken) {
		writeError(w, http.StatusBadRequest, "User exists")
		return
	}
	if err != nil {
		serverError(w, r, "register", err)
		return
	}

	slog.Info("user registered", "user", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

// Login checks credentials and starts a session. Accounts with two-factor
// authentication get a pending session unless a valid code is sent along.
func (a *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := a.users.FindByEmail(r.Context(), normalizeEmail(in.Email))
	if err != nil {
		serverError(w, r, "login lookup", err)
		return
	}
	if user == nil || !a.users.CheckPassword(user, in.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	done := !user.Requires2FA()
	if !done && in.Code != "" {
		if !totp.Validate(strings.TrimSpace(in.Code), *user.TOTPSecret) {
			writeError(w, http.StatusUnauthorized, "Invalid two-factor code")
			return
		}
		done = true
	}

	_, err = a.sessions.Create(r.Context(), w, &session.Data{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		TwoFADone:   done,
	})
	if err != nil {
		serverError(w, r, "session create", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":              user,
		"twoFactorRequired": !done,
	})
}

// Logout destroys the session.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Warn("session destroy failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Me returns the signed-in user.
func (a *Auth) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// TwoFASetup generates a fresh TOTP secret and returns it with a QR code.
// The secret only becomes active after TwoFAEnable confirms a code.
func (a *Auth) TwoFASetup(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	if user.TOTPEnabled {
		writeError(w, http.StatusConflict, "Two-factor authentication is already enabled")
		return
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      totpIssuer,
		AccountName: user.Email,
	})
	if err != nil {
		serverError(w, r, "totp generate", err)
		return
	}
	if err := a.users.SetTOTPSecret(r.Context(), user.ID, key.Secret()); err != nil {
		serverError(w, r, "save totp secret", err)
		return
	}

	qrPNG, err := qrcode.Encode(key.URL(), qrcode.Medium, 256)
	if err != nil {
		serverError(w, r, "qr code generation", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"secret":     key.Secret(),
		"otpauthUrl": key.URL(),
		"qrCode":     "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrPNG),
	})
}

// TwoFAEnable confirms the pending secret with a code and turns 2FA on.
func (a *Auth) TwoFAEnable(w http.ResponseWriter, r *http.Request) {
	user, code, ok := a.userAndCode(w, r)
	if !ok {
		return
	}
	if user.TOTPEnabled {
		writeError(w, http.StatusConflict, "Two-factor authentication is already enabled")
		return
	}
	if user.TOTPSecret == nil {
		writeError(w, http.StatusBadRequest, "Two-factor setup has not been started")
		return
	}
	if !totp.Validate(code, *user.TOTPSecret) {
		writeError(w, http.StatusBadRequest, "Invalid code. Please try again.")
		return
	}
	if err := a.users.EnableTOTP(r.Context(), user.ID); err != nil {
		serverError(w, r, "enable totp", err)
		return
	}

	slog.Info("two-factor authentication enabled", "user", user.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"totpEnabled": true})
}

// TwoFAVerify completes a pending login.
func (a *Auth) TwoFAVerify(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	user, code, ok := a.userAndCode(w, r)
	if !ok {
		return
	}
	if !user.Requires2FA() {
		writeError(w, http.StatusBadRequest, "Two-factor authentication is not enabled")
		return
	}
	if !totp.Validate(code, *user.TOTPSecret) {
		writeError(w, http.StatusUnauthorized, "Invalid code. Please try again.")
		return
	}

	sess.TwoFADone = true
	if err := a.sessions.Update(r.Context(), r, sess); err != nil {
		serverError(w, r, "session update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// TwoFADisable turns 2FA off after re-checking the password.
func (a *Auth) TwoFADisable(w http.ResponseWriter, r *http.Request) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return
	}
	var in credentials
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !a.users.CheckPassword(user, in.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}
	if err := a.users.ResetTOTP(r.Context(), user.ID); err != nil {
		serverError(w, r, "reset totp", err)
		return
	}

	slog.Info("two-factor authentication disabled", "user", user.ID)
	writeJSON(w, http.StatusOK, map[string]bool{"totpEnabled": false})
}

// currentUser loads the session's user, answering 401 when the account is
// gone.
func (a *Auth) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	user, err := a.users.FindByID(r.Context(), sess.UserID)
	if err != nil {
		serverError(w, r, "user lookup", err)
		return nil, false
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return nil, false
	}
	return user, true
}

func (a *Auth) userAndCode(w http.ResponseWriter, r *http.Request) (*models.User, string, bool) {
	user, ok := a.currentUser(w, r)
	if !ok {
		return nil, "", false
	}
	var in credentials
	if err := decodeJSON(w, r, &in, false); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return nil, "", false
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		writeError(w, http.StatusBadRequest, "Code is required")
		return nil, "", false
	}
	return user, code, true
}
