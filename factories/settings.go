package factories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/bytedance/sonic"
)

// maxSessionConfigSize bounds the session API response body.
const maxSessionConfigSize = 1 << 20

var sessionAPIClient = &http.Client{Timeout: 10 * time.Second}

// SessionAPIConfig points at an HTTP endpoint that answers with a session
// config, so each session can be configured per user.
type SessionAPIConfig struct {
	URL string `json:"url"`
	// Method defaults to POST when Body is set and GET otherwise.
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
}

func (c *SessionAPIConfig) method() string {
	switch {
	case c.Method != "":
		return c.Method
	case len(c.Body) > 0:
		return http.MethodPost
	default:
		return http.MethodGet
	}
}

func (c *SessionAPIConfig) request(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, c.method(), c.URL, bytes.NewReader(c.Body))
	if err != nil {
		return nil, err
	}
	if len(c.Body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range c.Headers {
		req.Header.Set(name, value)
	}
	return req, nil
}

// Fetch asks the endpoint for a session config. The answer is applied over
// the defaults, like an inline session_config.
func (c *SessionAPIConfig) Fetch(ctx context.Context) (SessionConfig, error) {
	req, err := c.request(ctx)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("session api: %w", err)
	}
	resp, err := sessionAPIClient.Do(req)
	if err != nil {
		return SessionConfig{}, fmt.Errorf("session api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return SessionConfig{}, fmt.Errorf("session api: unexpected status %d from %s", resp.StatusCode, c.URL)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSessionConfigSize))
	if err != nil {
		return SessionConfig{}, fmt.Errorf("session api: read response: %w", err)
	}
	return SessionConfigFromJSON(body)
}

// AudioConfig picks the player for synthesized speech.
type AudioConfig struct {
	// Player is aplay, paplay, afplay, ffplay or "none". Empty means the
	// first one found on PATH.
	Player string `json:"player,omitempty"`
}

// SettingsConfig mirrors settings.json.
type SettingsConfig struct {
	// SessionAPI overrides Session when set.
	SessionAPI *SessionAPIConfig `json:"session_api,omitempty"`
	Session    SessionConfig     `json:"session_config"`
	Audio      AudioConfig       `json:"audio"`
}

func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{Session: DefaultSessionConfig()}
}

// SessionConfig returns the config a new session should run with.
func (s SettingsConfig) SessionConfig(ctx context.Context) (SessionConfig, error) {
	if s.SessionAPI == nil {
		return s.Session, nil
	}
	return s.SessionAPI.Fetch(ctx)
}

// SettingsConfigFromJSON decodes data over DefaultSettingsConfig.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	cfg := DefaultSettingsConfig()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	return cfg, nil
}

// SettingsConfigFromFile loads path. On error the defaults are returned
// alongside it so callers may carry on.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}
