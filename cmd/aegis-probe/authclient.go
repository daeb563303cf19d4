package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"aegis/internal/token"
	"aegis/pkg/faults"
)

// authClient talks to the backend auth endpoints directly, outside the
// pipeline: login happens before any tokens exist and refresh must not
// recurse into the 401 handling it backs.
type authClient struct {
	baseURL string
	http    *http.Client
}

func newAuthClient(baseURL string) *authClient {
	return &authClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Login exchanges credentials for a token bundle.
func (a *authClient) Login(ctx context.Context, username, password string) (*token.Bundle, error) {
	return a.postForBundle(ctx, "/api/auth/login", map[string]string{
		"username": username,
		"password": password,
	})
}

// Refresh implements token.Authenticator.
func (a *authClient) Refresh(ctx context.Context, refreshToken string) (*token.Bundle, error) {
	return a.postForBundle(ctx, "/api/auth/refresh", map[string]string{
		"refresh_token": refreshToken,
	})
}

func (a *authClient) postForBundle(ctx context.Context, endpoint string, payload map[string]string) (*token.Bundle, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeValidation, "could not encode auth request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeValidation, "could not build auth request")
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := a.http.Do(req)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeAPIError, "auth request failed")
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, faults.Wrap(err, faults.CodeAPIError, "could not read auth response")
	}
	if res.StatusCode != http.StatusOK {
		return nil, faults.New(faults.CodeAuthFailed, fmt.Sprintf("auth endpoint returned %d", res.StatusCode))
	}

	var bundle token.Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, faults.Wrap(err, faults.CodeAPIError, "malformed auth response")
	}
	return &bundle, nil
}
