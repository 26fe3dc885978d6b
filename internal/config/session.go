package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Session is the persisted login: the cookie issued by one server
type Session struct {
	ServerURL string `json:"serverUrl"`
	Token     string `json:"token"`
}

// TokenFor returns the token if it was issued by serverURL
func (s Session) TokenFor(serverURL string) string {
	if s.ServerURL != serverURL {
		return ""
	}
	return s.Token
}

// LoadSession reads the session file. A missing or empty file is an empty
// session, not an error.
func LoadSession(path string) (Session, error) {
	var s Session

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read session: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to decode session: %w", err)
	}
	return s, nil
}

// SaveSession writes the session atomically with owner-only permissions
func SaveSession(path string, s Session) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open temp session file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&s); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temp session file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// ClearSession removes the session file
func ClearSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
