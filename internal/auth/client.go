// Waypoint - Location-Aware Game Client SDK
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/waypoint/internal/apiclient"
)

// Backend is the auth surface the session needs from the API. Split out
// so session tests can script responses without an HTTP server.
type Backend interface {
	// SendVerificationCode asks the backend to text a code to phone.
	// exists reports whether an account is already registered for the
	// number, which decides the login-vs-register branch up front.
	SendVerificationCode(ctx context.Context, phone string) (exists bool, err error)

	// Login exchanges phone+code for a session on an existing account.
	Login(ctx context.Context, phone, code string) (User, string, error)

	// Register creates an account and exchanges phone+code for a
	// session. name may be empty; the backend assigns a placeholder.
	Register(ctx context.Context, phone, code, name string) (User, string, error)

	// VerifyToken validates a persisted token and returns its user.
	VerifyToken(ctx context.Context, token string) (User, error)

	// Whoami returns the user for the token currently attached by the
	// API client.
	Whoami(ctx context.Context) (User, error)
}

// Client implements Backend against the REST API.
type Client struct {
	api     apiclient.API
	prefix  string
	appName string
}

var _ Backend = (*Client)(nil)

// NewClient creates an auth backend client. prefix is the API route
// prefix, e.g. "/sonar"; appName is echoed in verification texts.
func NewClient(api apiclient.API, prefix, appName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("auth: api client is required")
	}
	if appName == "" {
		return nil, errors.New("auth: app name is required")
	}
	return &Client{
		api:     api,
		prefix:  strings.TrimSuffix(prefix, "/"),
		appName: appName,
	}, nil
}

// credentials is the shared login/register request body.
type credentials struct {
	PhoneNumber string `json:"phoneNumber"`
	Code        string `json:"code"`
	Name        string `json:"name,omitempty"`
}

// sessionResponse is the shared login/register response body.
type sessionResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// SendVerificationCode implements Backend. The backend includes the
// existing user in the response when the number is already registered;
// an absent user means this is a new signup.
func (c *Client) SendVerificationCode(ctx context.Context, phone string) (bool, error) {
	body := struct {
		PhoneNumber string `json:"phoneNumber"`
		AppName     string `json:"appName"`
	}{PhoneNumber: phone, AppName: c.appName}

	var resp struct {
		User *User `json:"user"`
	}
	if err := c.api.Post(ctx, c.prefix+"/text/verification-code", body, &resp); err != nil {
		return false, fmt.Errorf("send verification code: %w", err)
	}

	return resp.User != nil, nil
}

// Login implements Backend.
func (c *Client) Login(ctx context.Context, phone, code string) (User, string, error) {
	var resp sessionResponse
	err := c.api.Post(ctx, c.prefix+"/login", credentials{PhoneNumber: phone, Code: code}, &resp)
	if err != nil {
		return User{}, "", fmt.Errorf("login: %w", err)
	}
	return resp.User, resp.Token, nil
}

// Register implements Backend.
func (c *Client) Register(ctx context.Context, phone, code, name string) (User, string, error) {
	var resp sessionResponse
	err := c.api.Post(ctx, c.prefix+"/register", credentials{PhoneNumber: phone, Code: code, Name: name}, &resp)
	if err != nil {
		return User{}, "", fmt.Errorf("register: %w", err)
	}
	return resp.User, resp.Token, nil
}

// VerifyToken implements Backend.
func (c *Client) VerifyToken(ctx context.Context, token string) (User, error) {
	body := struct {
		Token string `json:"token"`
	}{Token: token}

	var user User
	if err := c.api.Post(ctx, c.prefix+"/token/verify", body, &user); err != nil {
		return User{}, fmt.Errorf("verify token: %w", err)
	}
	return user, nil
}

// Whoami implements Backend.
func (c *Client) Whoami(ctx context.Context) (User, error) {
	var user User
	if err := c.api.Get(ctx, c.prefix+"/whoami", nil, &user); err != nil {
		return User{}, fmt.Errorf("whoami: %w", err)
	}
	return user, nil
}
