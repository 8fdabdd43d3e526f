package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type StoredAuth struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Phone       string    `json:"phone"`
	UserID      string    `json:"user_id"`
}

func getAuthFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".pixbay", "auth.json"), nil
}

func Save(auth *StoredAuth) error {
	path, err := getAuthFilePath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(auth, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func Load() (*StoredAuth, error) {
	path, err := getAuthFilePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var auth StoredAuth
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, err
	}

	return &auth, nil
}

func Clear() error {
	path, err := getAuthFilePath()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func IsLoggedIn() bool {
	auth, err := Load()
	if err != nil || auth == nil {
		return false
	}
	return auth.AccessToken != "" && time.Now().Before(auth.ExpiresAt)
}

func GetToken() string {
	auth, err := Load()
	if err != nil || auth == nil {
		return ""
	}
	return auth.AccessToken
}

// FromToken builds a StoredAuth by decoding the JWT payload. The CLI
// never verifies the signature, the server does that on every request.
func FromToken(token string) (*StoredAuth, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("token is not a JWT")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid token payload: %w", err)
	}

	var claims struct {
		UserID string `json:"user_id"`
		Phone  string `json:"phone"`
		Exp    int64  `json:"exp"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("invalid token claims: %w", err)
	}

	stored := &StoredAuth{
		AccessToken: token,
		UserID:      claims.UserID,
		Phone:       claims.Phone,
	}
	if claims.Exp > 0 {
		stored.ExpiresAt = time.Unix(claims.Exp, 0)
	} else {
		stored.ExpiresAt = time.Now().Add(24 * time.Hour)
	}
	return stored, nil
}
