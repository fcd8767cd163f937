package earthengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const ReadOnlyScope = "https://www.googleapis.com/auth/earthengine.readonly"

var ErrNoCredentials = errors.New("no service account credentials found")

// CredentialSource says where service account material is looked up.
type CredentialSource struct {
	// EnvVar holds inline JSON. When set it wins over File.
	EnvVar string
	// TempPath receives the inline JSON.
	TempPath string
	// File is a local key file.
	File string
}

// LocateCredentials returns the path and contents of the service account key.
// Inline JSON from the environment is written to TempPath first.
func LocateCredentials(src CredentialSource) (string, []byte, error) {
	if inline, ok := os.LookupEnv(src.EnvVar); ok && inline != "" {
		data := []byte(inline)
		if !json.Valid(data) {
			return "", nil, fmt.Errorf("%s does not contain valid JSON", src.EnvVar)
		}
		if err := os.WriteFile(src.TempPath, data, 0600); err != nil {
			return "", nil, fmt.Errorf("write %s: %w", src.TempPath, err)
		}
		log.Infof("Using service account from $%s (written to %s)", src.EnvVar, src.TempPath)
		return src.TempPath, data, nil
	}
	data, err := os.ReadFile(src.File)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil, fmt.Errorf("%w: set $%s or provide %s", ErrNoCredentials, src.EnvVar, src.File)
	}
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", src.File, err)
	}
	log.Infof("Using service account file %s", src.File)
	return src.File, data, nil
}

// Session is the process-wide authenticated context. It is read-only after
// construction and safe to share between requests.
type Session struct {
	Project     string
	TokenSource oauth2.TokenSource
}

// NewSession locates and parses service account credentials scoped to
// read-only Earth Engine access.
func NewSession(ctx context.Context, src CredentialSource) (*Session, error) {
	path, data, err := LocateCredentials(src)
	if err != nil {
		return nil, err
	}
	creds, err := google.CredentialsFromJSON(ctx, data, ReadOnlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	if creds.ProjectID == "" {
		return nil, fmt.Errorf("credentials %s: missing project_id", path)
	}
	return &Session{Project: creds.ProjectID, TokenSource: creds.TokenSource}, nil
}

// StaticSession wraps a fixed access token.
func StaticSession(project, token string) *Session {
	return &Session{
		Project:     project,
		TokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
	}
}
