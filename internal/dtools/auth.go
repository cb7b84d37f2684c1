package dtools

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	perrors "github.com/excelcw/dtools-pull/internal/errors"
)

// Authenticator applies authentication to outbound requests.
type Authenticator interface {
	Apply(req *http.Request) error
}

// Credentials is the decoded content of the stored credentials file.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Key      string `json:"key"`
}

// CredentialsAuth authenticates with a Basic-auth header plus the D-Tools
// API-key header, both derived once from the decoded credentials.
type CredentialsAuth struct {
	basic  string
	apiKey string
}

// NewCredentialsAuth derives the header values from credentials.
func NewCredentialsAuth(creds Credentials) *CredentialsAuth {
	pair := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
	return &CredentialsAuth{
		basic:  "Basic " + pair,
		apiKey: creds.Key,
	}
}

// Apply sets the auth headers on req.
func (a *CredentialsAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", a.basic)
	req.Header.Set("X-API-Key", a.apiKey)
	return nil
}

// LoadCredentials reads and decodes the credentials file: a base64-encoded
// JSON document holding username, password and API key. Missing or corrupt
// credential material is fatal to the run.
func LoadCredentials(path string) (Credentials, error) {
	var creds Credentials

	raw, err := os.ReadFile(path)
	if err != nil {
		return creds, fmt.Errorf("%w: reading %s: %v", perrors.ErrBadCredentials, path, err)
	}
	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return creds, fmt.Errorf("%w: decoding %s: %v", perrors.ErrBadCredentials, path, err)
	}
	if err := json.Unmarshal(decoded, &creds); err != nil {
		return creds, fmt.Errorf("%w: parsing %s: %v", perrors.ErrBadCredentials, path, err)
	}
	if creds.Username == "" || creds.Password == "" || creds.Key == "" {
		return creds, fmt.Errorf("%w: %s is missing a field", perrors.ErrBadCredentials, path)
	}
	return creds, nil
}

// WriteCredentials encodes credentials into the stored file format.
func WriteCredentials(path string, creds Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	return nil
}
