package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/titannode/titannode/internal/auth"
	"github.com/titannode/titannode/internal/endpoint"
)

// REST paths.
const (
	RefreshPath  = "/api/auth/refresh-token"
	RegisterPath = "/api/webnodes/register"
	UserInfoPath = "/api/user/info"
)

// ErrMissingAccessToken is returned when a refresh succeeds without a token.
var ErrMissingAccessToken = errors.New("refresh response has no access token")

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshData struct {
	AccessToken string   `json:"access_token"`
	UserID      flexible `json:"user_id"`
	Email       string   `json:"email"`
}

type registerRequest struct {
	ExtVersion        string `json:"ext_version"`
	Language          string `json:"language"`
	UserScriptEnabled bool   `json:"user_script_enabled"`
	DeviceID          string `json:"device_id"`
	InstallTime       string `json:"install_time"`
}

// flexible decodes a JSON string or number into a string.
type flexible string

func (f *flexible) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexible(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexible(n.String())
	return nil
}

// RefreshToken exchanges the identity's refresh token for an access token on
// ep. On success the token, user id and email are stored and every later
// request carries the new Authorization header.
func (m *Manager) RefreshToken(ctx context.Context, ep endpoint.Endpoint) error {
	m.logger.Info("refreshing access token", "endpoint", ep.API)

	var data refreshData
	req := refreshRequest{RefreshToken: m.identity.RefreshToken}
	if err := m.call(ctx, http.MethodPost, ep.APIURL(RefreshPath), req, &data); err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}
	if data.AccessToken == "" {
		return ErrMissingAccessToken
	}

	userID := string(data.UserID)
	var expiresAt time.Time
	if claims, err := auth.ParseClaims(data.AccessToken); err != nil {
		m.logger.Debug("access token is not a readable jwt", "error", err)
	} else {
		expiresAt = claims.ExpiresAt
		if userID == "" {
			userID = claims.UserID
		}
	}

	email := data.Email
	if email == "" {
		email = "Unknown"
	}

	m.mu.Lock()
	m.accessToken = data.AccessToken
	m.userID = userID
	m.email = email
	m.header.Set("Authorization", "Bearer "+data.AccessToken)
	m.mu.Unlock()

	attrs := []any{"email", email, "user_id", userID}
	if !expiresAt.IsZero() {
		attrs = append(attrs, "expires_at", expiresAt.Format(time.RFC3339))
	}
	m.logger.Info("access token refreshed", attrs...)
	m.logBandwidth()

	return nil
}

// RegisterNode announces this device to the service on ep. Failures are
// returned for logging only; nothing downstream depends on registration.
func (m *Manager) RegisterNode(ctx context.Context, ep endpoint.Endpoint) error {
	m.logger.Info("registering node", "device_id", m.identity.DeviceID)

	req := registerRequest{
		ExtVersion:        m.node.ExtVersion,
		Language:          registrationLanguage(m.locale),
		UserScriptEnabled: m.node.UserScriptEnabled,
		DeviceID:          m.identity.DeviceID,
		InstallTime:       m.identity.InstallTime.Format(time.RFC3339),
	}

	var data json.RawMessage
	if err := m.call(ctx, http.MethodPost, ep.APIURL(RegisterPath), req, &data); err != nil {
		return fmt.Errorf("register node: %w", err)
	}

	m.logger.Info("node registered", "initial_points", string(data))
	m.logBandwidth()
	return nil
}

// UserInfo fetches the account summary from ep. A rejected access token is
// reported as ErrUnauthorized.
func (m *Manager) UserInfo(ctx context.Context, ep endpoint.Endpoint) (json.RawMessage, error) {
	var data json.RawMessage
	if err := m.call(ctx, http.MethodGet, ep.APIURL(UserInfoPath), nil, &data); err != nil {
		return nil, fmt.Errorf("user info: %w", err)
	}
	return data, nil
}

func (m *Manager) logBandwidth() {
	bw := m.identity.Bandwidth.Snapshot()
	m.logger.Debug("bandwidth",
		"sent_bytes", bw.Sent,
		"received_bytes", bw.Received,
	)
}
