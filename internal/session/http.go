// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/coursehub/internal/platform/apperr"
	"github.com/taibuivan/coursehub/internal/platform/constants"
	"github.com/taibuivan/coursehub/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/coursehub/internal/platform/request"
	"github.com/taibuivan/coursehub/internal/platform/respond"
	"github.com/taibuivan/coursehub/internal/platform/validate"
)

// CookieConfig controls the browser session cookie.
type CookieConfig struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// Handler implements the authentication and session HTTP endpoints.
//
// # Scope
//
// Credentials are forwarded to the marketplace API. The access token it
// returns never leaves the server; the browser only receives an opaque
// session cookie and the user profile.
type Handler struct {
	registry *Registry
	auth     Authenticator
	cookie   CookieConfig
}

// NewHandler constructs a new [Handler].
func NewHandler(registry *Registry, auth Authenticator, cookie CookieConfig) *Handler {
	return &Handler{registry: registry, auth: auth, cookie: cookie}
}

// AuthRoutes returns the credential endpoints.
//
// # Endpoints
//   - POST /login    : Email and password.
//   - POST /register : New account, signed in immediately.
//   - POST /activate : Account activation code.
//   - POST /social   : Social provider identity.
//   - POST /logout   : Always clears the local session.
func (handler *Handler) AuthRoutes() chi.Router {
	router := chi.NewRouter()

	router.Post("/login", handler.login)
	router.Post("/register", handler.register)
	router.Post("/activate", handler.activate)
	router.Post("/social", handler.social)
	router.Post("/logout", handler.logout)

	return router
}

// SessionRoutes returns the session inspection endpoints.
//
// # Endpoints
//   - GET   /         : Current snapshot.
//   - POST  /reload   : Re-validate with the server.
//   - PATCH /profile  : Name and avatar edits.
func (handler *Handler) SessionRoutes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.current)
	router.Post("/reload", handler.reload)
	router.Patch("/profile", handler.updateProfile)

	return router
}

// # Presentation

// View is the JSON shape of a session snapshot.
type View struct {
	State         State        `json:"state"`
	Authenticated bool         `json:"authenticated"`
	User          *UserProfile `json:"user"`
	Admin         bool         `json:"admin"`
	Unverified    bool         `json:"unverified,omitempty"`
}

// NewView renders a snapshot for the browser.
func NewView(snapshot Snapshot) View {
	return View{
		State:         snapshot.State,
		Authenticated: snapshot.Authenticated(),
		User:          snapshot.User(),
		Admin:         snapshot.User().IsAdmin(),
		Unverified:    snapshot.State == StateError && snapshot.Authenticated(),
	}
}

// # Credential Endpoints

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login handles POST /api/v1/auth/login.
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.auth.Login(request.Context(), LoginInput{
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.establish(writer, request, session, http.StatusOK)
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// register handles POST /api/v1/auth/register.
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldName, input.Name).MaxLen(FieldName, input.Name, 100)
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)
	validator.Required(FieldPassword, input.Password).MinLen(FieldPassword, input.Password, 6)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.auth.Register(request.Context(), RegisterInput{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.establish(writer, request, session, http.StatusCreated)
}

type activateRequest struct {
	ActivationToken string `json:"activation_token"`
	ActivationCode  string `json:"activation_code"`
}

// activate handles POST /api/v1/auth/activate.
func (handler *Handler) activate(writer http.ResponseWriter, request *http.Request) {
	var input activateRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.ActivationToken)
	validator.Required(FieldCode, input.ActivationCode).MaxLen(FieldCode, input.ActivationCode, 16)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.auth.Activate(request.Context(), ActivateInput{
		ActivationToken: input.ActivationToken,
		ActivationCode:  input.ActivationCode,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.establish(writer, request, session, http.StatusOK)
}

type socialRequest struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// social handles POST /api/v1/auth/social.
func (handler *Handler) social(writer http.ResponseWriter, request *http.Request) {
	var input socialRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).Email(FieldEmail, input.Email)
	validator.Required(FieldName, input.Name).MaxLen(FieldName, input.Name, 100)
	validator.URL(FieldAvatar, input.AvatarURL)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.auth.SocialAuth(request.Context(), SocialInput{
		Email:     input.Email,
		Name:      input.Name,
		AvatarURL: input.AvatarURL,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	handler.establish(writer, request, session, http.StatusOK)
}

// establish installs a new session under a freshly issued browser session id.
// Any previous browser session is cleared first so an id known before login
// can never carry the new credentials.
func (handler *Handler) establish(writer http.ResponseWriter, request *http.Request, session Session, status int) {
	ctx := request.Context()

	if previous := ctxutil.GetBrowserSession(ctx); previous != "" {
		handler.registry.Get(previous).Invalidate(ctx, "rotated")
		handler.registry.Remove(previous)
	}

	browserSessionID, err := NewBrowserSessionID()
	if err != nil {
		respond.Error(writer, request, apperr.Internal(err))
		return
	}

	snapshot, err := handler.registry.Get(browserSessionID).Establish(ctx, session)
	if err != nil {
		handler.registry.Remove(browserSessionID)
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, handler.sessionCookie(browserSessionID, handler.cookie.TTL))
	respond.Status(writer, status, NewView(snapshot))
}

// logout handles POST /api/v1/auth/logout.
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	browserSessionID := ctxutil.GetBrowserSession(ctx)

	if browserSessionID != "" {
		// The server call is best-effort; the loader has already cleared local state.
		_ = handler.registry.Get(browserSessionID).Logout(ctx)
		handler.registry.Remove(browserSessionID)
	}

	http.SetCookie(writer, handler.sessionCookie("", -1))
	respond.NoContent(writer)
}

// # Session Endpoints

// current handles GET /api/v1/session.
func (handler *Handler) current(writer http.ResponseWriter, request *http.Request) {
	loader := handler.registry.Resolve(request.Context())
	if loader == nil {
		respond.OK(writer, NewView(Snapshot{State: StateAnonymous}))
		return
	}

	respond.OK(writer, NewView(loader.Snapshot()))
}

// reload handles POST /api/v1/session/reload.
func (handler *Handler) reload(writer http.ResponseWriter, request *http.Request) {
	loader := handler.registry.Resolve(request.Context())
	if loader == nil {
		respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
		return
	}

	snapshot, err := loader.Reload(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, NewView(snapshot))
}

type profileRequest struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

// updateProfile handles PATCH /api/v1/session/profile.
func (handler *Handler) updateProfile(writer http.ResponseWriter, request *http.Request) {
	var input profileRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	edit := ProfileEdit{Name: input.Name, AvatarURL: input.AvatarURL}

	validator := &validate.Validator{}
	validator.Custom(FieldName, edit.Empty(), "at least one of name or avatar_url is required")
	if edit.Name != nil {
		validator.Required(FieldName, *edit.Name).MaxLen(FieldName, *edit.Name, 100)
	}
	if edit.AvatarURL != nil {
		validator.URL(FieldAvatar, *edit.AvatarURL)
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	loader, _, err := handler.registry.RequireUser(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	snapshot, err := loader.ApplyProfileEdit(request.Context(), edit)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, NewView(snapshot))
}

// # Helpers

// sessionCookie builds the browser session cookie. A negative ttl deletes it.
func (handler *Handler) sessionCookie(value string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl.Seconds())
	if ttl < 0 {
		maxAge = -1
	}

	return &http.Cookie{
		Name:     handler.cookie.Name,
		Value:    value,
		Path:     constants.SessionCookiePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   handler.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
