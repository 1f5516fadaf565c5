// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package marketplace

import (
	"context"
	"net/http"

	"github.com/taibuivan/coursehub/internal/platform/apperr"
	"github.com/taibuivan/coursehub/internal/session"
)

var (
	_ session.Backend       = (*Client)(nil)
	_ session.Authenticator = (*Client)(nil)
)

// # Session Backend

// Me implements [session.Backend].
func (client *Client) Me(ctx context.Context, accessToken string) (*session.MeResult, error) {
	var response authResponse
	if err := client.call(ctx, "me", http.MethodGet, "/me", accessToken, nil, &response); err != nil {
		return nil, err
	}

	return &session.MeResult{
		User:        response.User.profile(),
		AccessToken: response.AccessToken,
	}, nil
}

// Logout implements [session.Backend].
func (client *Client) Logout(ctx context.Context, accessToken string) error {
	return client.call(ctx, "logout", http.MethodGet, "/logout", accessToken, nil, nil)
}

// UpdateProfile implements [session.Backend].
func (client *Client) UpdateProfile(ctx context.Context, accessToken string, edit session.ProfileEdit) error {
	body := profileRequest{Name: edit.Name, Avatar: edit.AvatarURL}
	return client.call(ctx, "update_profile", http.MethodPut, "/update-user-info", accessToken, body, nil)
}

// # Authenticator

// Login implements [session.Authenticator].
func (client *Client) Login(ctx context.Context, input session.LoginInput) (session.Session, error) {
	return client.authenticate(ctx, "login", "/login", loginRequest{
		Email:    input.Email,
		Password: input.Password,
	})
}

// Register implements [session.Authenticator].
func (client *Client) Register(ctx context.Context, input session.RegisterInput) (session.Session, error) {
	return client.authenticate(ctx, "register", "/register", registerRequest{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
	})
}

// Activate implements [session.Authenticator].
func (client *Client) Activate(ctx context.Context, input session.ActivateInput) (session.Session, error) {
	return client.authenticate(ctx, "activate", "/activate-user", activateRequest{
		ActivationToken: input.ActivationToken,
		ActivationCode:  input.ActivationCode,
	})
}

// SocialAuth implements [session.Authenticator].
func (client *Client) SocialAuth(ctx context.Context, input session.SocialInput) (session.Session, error) {
	return client.authenticate(ctx, "social_auth", "/social-auth", socialRequest{
		Email:  input.Email,
		Name:   input.Name,
		Avatar: input.AvatarURL,
	})
}

// authenticate posts credentials and insists on a complete session back.
func (client *Client) authenticate(ctx context.Context, operation, path string, body any) (session.Session, error) {
	var response authResponse
	if err := client.call(ctx, operation, http.MethodPost, path, "", body, &response); err != nil {
		return session.Session{}, err
	}

	issued := session.Session{AccessToken: response.AccessToken, User: response.User.profile()}
	if !issued.Valid() {
		return session.Session{}, apperr.Server(http.StatusOK, "The course service returned an incomplete session")
	}

	return issued, nil
}
