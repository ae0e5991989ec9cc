package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"studentsnet/internal/auth"
	"studentsnet/internal/domain"
	"studentsnet/internal/service"
)

type userResponse struct {
	ID          string     `json:"id"`
	Contact     string     `json:"contact"`
	Name        string     `json:"name"`
	College     string     `json:"college"`
	ClassName   string     `json:"class_name"`
	Stream      string     `json:"stream"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      userResponse `json:"user"`
}

func toUserResponse(a domain.Account) userResponse {
	return userResponse{
		ID:          a.ID,
		Contact:     a.Contact,
		Name:        a.Profile.Name,
		College:     a.Profile.College,
		ClassName:   a.Profile.ClassName,
		Stream:      a.Profile.Stream,
		Role:        a.Role.String(),
		CreatedAt:   a.CreatedAt,
		LastLoginAt: a.LastLoginAt,
	}
}

func writeSession(w http.ResponseWriter, status int, s service.Session) {
	WriteJSON(w, status, sessionResponse{
		Token:     s.Token,
		TokenType: "bearer",
		ExpiresAt: s.ExpiresAt,
		User:      toUserResponse(s.Account),
	})
}

type registerRequest struct {
	Name     string `json:"name"`
	College  string `json:"college"`
	Class    string `json:"class"`
	Stream   string `json:"stream"`
	Contact  string `json:"contact"`
	Password string `json:"password"`
}

func (a *api) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	fields := map[string]string{}
	req.Contact = domain.NormalizeContact(req.Contact)
	if !domain.ValidContact(req.Contact) {
		fields["contact"] = "must be 10-15 digits"
	}
	req.Name = strings.TrimSpace(req.Name)
	if !validName(req.Name) {
		fields["name"] = "must be 2-100 letters, spaces, hyphens or apostrophes"
	}
	var verr *domain.ValidationError
	if err := auth.ValidatePassword(req.Password); errors.As(err, &verr) {
		for k, v := range verr.Fields {
			fields[k] = v
		}
	}
	if len(fields) > 0 {
		WriteDomainError(w, domain.NewValidationError(fields))
		return
	}

	sess, err := a.authSvc.Register(r.Context(), service.RegisterInput{
		Contact:  req.Contact,
		Password: req.Password,
		Profile: domain.Profile{
			Name:      req.Name,
			College:   a.sanitizer.Text(req.College),
			ClassName: a.sanitizer.Text(req.Class),
			Stream:    a.sanitizer.Text(req.Stream),
		},
	}, a.clientIP(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeSession(w, http.StatusCreated, sess)
}

type loginRequest struct {
	Contact  string `json:"contact"`
	Password string `json:"password"`
}

func (a *api) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	sess, err := a.authSvc.Login(r.Context(), domain.NormalizeContact(req.Contact), req.Password, a.clientIP(r))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	writeSession(w, http.StatusOK, sess)
}

func (a *api) handleProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := CurrentPrincipal(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	acct, err := a.authSvc.Profile(r.Context(), p)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, toUserResponse(acct))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *api) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	p, ok := CurrentPrincipal(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_json", "invalid json")
		return
	}

	if err := a.authSvc.ChangePassword(r.Context(), p, req.CurrentPassword, req.NewPassword, a.clientIP(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleUnlockAccount(w http.ResponseWriter, r *http.Request) {
	p, ok := CurrentPrincipal(r.Context())
	if !ok {
		WriteDomainError(w, domain.ErrUnauthorized)
		return
	}

	contact := domain.NormalizeContact(r.PathValue("contact"))
	if !domain.ValidContact(contact) {
		WriteDomainError(w, domain.NewValidationError(map[string]string{"contact": "must be 10-15 digits"}))
		return
	}

	if err := a.authSvc.UnlockAccount(r.Context(), p, contact, a.clientIP(r)); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
