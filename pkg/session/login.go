package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// Credentials identifies a user and the login form controls that accept
// their details.
type Credentials struct {
	Username      string
	Password      string
	UsernameField string
	PasswordField string
	LoginButton   string
}

// Login starts a fresh session at loginURL, fills the username and
// password controls and submits the login form via LoginButton.
//
// Transport failures keep their ErrConnection or ErrSubmission cause.
// Missing login controls and HTTP error responses to the submission are
// reported as ErrLoginFailed.
func (s *Session) Login(ctx context.Context, loginURL string, creds Credentials) error {
	if err := s.BeginAt(ctx, loginURL); err != nil {
		return err
	}
	if err := s.SetField(creds.UsernameField, creds.Username); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if err := s.SetField(creds.PasswordField, creds.Password); err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if err := s.Submit(ctx, creds.LoginButton); err != nil {
		if isTransport(err) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	if status := s.current.StatusCode; status >= http.StatusBadRequest {
		return fmt.Errorf("%w: server answered %d", ErrLoginFailed, status)
	}

	s.logger.Debug("logged in",
		slog.String("user", creds.Username),
		slog.String("landing", s.current.URL.String()))
	return nil
}
