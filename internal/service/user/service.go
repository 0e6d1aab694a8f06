// Package user implements signup, authentication and account lifecycle over
// the user store. Credential failures never reveal whether the account
// exists.
package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/reseau-app/reseau/internal/model"
	"github.com/reseau-app/reseau/internal/notify"
)

const (
	minPasswordLength = 4
	resetTokenTTL     = time.Hour
)

type Store interface {
	Create(ctx context.Context, params *model.CreateUserParams) (*model.User, error)
	FindByID(ctx context.Context, id model.UserID) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByHandle(ctx context.Context, handle string) (*model.User, error)
	Search(ctx context.Context, query string) ([]model.User, error)
	UpdateProfile(ctx context.Context, id model.UserID, params *model.ProfileParams) (*model.User, error)
	UpdatePassword(ctx context.Context, id model.UserID, plaintext string) error
	VerifyPassword(user *model.User, candidate string) bool
	SetResetToken(ctx context.Context, id model.UserID, token string, expiresAt time.Time) error
	FindByValidResetToken(ctx context.Context, token string, now time.Time) (*model.User, error)
	SetProvider(ctx context.Context, id model.UserID, provider model.Provider, externalID string) error
	ClearProvider(ctx context.Context, id model.UserID, provider model.Provider) error
	SetPhoto(ctx context.Context, id model.UserID, ref string) error
	Remove(ctx context.Context, id model.UserID) error
}

type service struct {
	store   Store
	baseURL string
}

func New(store Store, baseURL string) *service {
	return &service{store: store, baseURL: baseURL}
}

func validEmail(address string) bool {
	_, err := mail.ParseAddress(address)
	return err == nil
}

// Signup validates and creates an account, returning the user and a welcome
// intent.
func (s *service) Signup(ctx context.Context, params *model.CreateUserParams) (*model.User, notify.Intent, error) {
	if params.Handle == "" {
		return nil, notify.Intent{}, model.NewValidationError("handle", "handle cannot be empty")
	}
	if !validEmail(params.Email) {
		return nil, notify.Intent{}, model.NewValidationError("email", "email address is not valid")
	}
	if len(params.Password) < minPasswordLength {
		return nil, notify.Intent{}, model.NewValidationError("password",
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	created, err := s.store.Create(ctx, params)
	if err != nil {
		if errors.Is(err, model.ErrorDuplicateKey) {
			return nil, notify.Intent{}, model.ErrorDuplicateKey
		}
		return nil, notify.Intent{}, fmt.Errorf("creating user: %w", err)
	}

	return created, notify.Intent{
		Recipient: created.Email,
		Kind:      notify.KindWelcome,
		Context:   map[string]string{"baseURL": s.baseURL},
	}, nil
}

// Authenticate verifies credentials. Missing users, wrong passwords and
// lookup failures all collapse into ErrorInvalidUsernameOrPassword.
func (s *service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	found, err := s.store.FindByEmail(ctx, email)
	if err != nil || !s.store.VerifyPassword(found, password) {
		return nil, model.ErrorInvalidUsernameOrPassword
	}
	return found, nil
}

func (s *service) Fetch(ctx context.Context, id model.UserID) (*model.User, error) {
	found, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	return found, nil
}

func (s *service) FetchByHandle(ctx context.Context, handle string) (*model.User, error) {
	found, err := s.store.FindByHandle(ctx, handle)
	if err != nil {
		if errors.Is(err, model.ErrorUserNotFound) {
			return nil, model.ErrorUserNotFound
		}
		return nil, fmt.Errorf("fetching user: %w", err)
	}
	return found, nil
}

func (s *service) Search(ctx context.Context, query string) ([]model.User, error) {
	if query == "" {
		return []model.User{}, nil
	}
	return s.store.Search(ctx, query)
}

func (s *service) UpdateProfile(ctx context.Context, id model.UserID, params *model.ProfileParams) (*model.User, error) {
	if !validEmail(params.Email) {
		return nil, model.NewValidationError("email", "email address is not valid")
	}
	if params.Handle == "" {
		return nil, model.NewValidationError("handle", "handle cannot be empty")
	}
	updated, err := s.store.UpdateProfile(ctx, id, params)
	if err != nil {
		if errors.Is(err, model.ErrorDuplicateKey) {
			return nil, model.ErrorDuplicateKey
		}
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return updated, nil
}

func (s *service) ChangePassword(ctx context.Context, id model.UserID, params *model.ChangePasswordParams) (notify.Intent, error) {
	if len(params.Password) < minPasswordLength {
		return notify.Intent{}, model.NewValidationError("password",
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if params.Password != params.Confirm {
		return notify.Intent{}, model.NewValidationError("confirm", "passwords must match")
	}

	changed, err := s.store.FindByID(ctx, id)
	if err != nil {
		return notify.Intent{}, fmt.Errorf("fetching user: %w", err)
	}
	if err := s.store.UpdatePassword(ctx, id, params.Password); err != nil {
		return notify.Intent{}, fmt.Errorf("changing password: %w", err)
	}

	return notify.Intent{
		Recipient: changed.Email,
		Kind:      notify.KindPasswordChanged,
		Context:   map[string]string{"baseURL": s.baseURL},
	}, nil
}

// ForgotPassword issues a reset token valid for one hour and returns the
// reset-link intent. The handler shows the same message whether or not the
// address matched an account.
func (s *service) ForgotPassword(ctx context.Context, email string) (notify.Intent, error) {
	if !validEmail(email) {
		return notify.Intent{}, model.NewValidationError("email", "email address is not valid")
	}

	found, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrorUserNotFound) {
			return notify.Intent{}, model.ErrorUserNotFound
		}
		return notify.Intent{}, fmt.Errorf("fetching user: %w", err)
	}

	token := model.CreateID()
	if err := s.store.SetResetToken(ctx, found.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		return notify.Intent{}, fmt.Errorf("storing reset token: %w", err)
	}

	return notify.Intent{
		Recipient: found.Email,
		Kind:      notify.KindPasswordReset,
		Context: map[string]string{
			"baseURL": s.baseURL,
			"token":   token,
		},
	}, nil
}

// CheckResetToken reports whether a token is currently usable, without
// consuming it.
func (s *service) CheckResetToken(ctx context.Context, token string) error {
	_, err := s.store.FindByValidResetToken(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, model.ErrorUserNotFound) {
			return model.ErrorUserNotFound
		}
		return fmt.Errorf("checking reset token: %w", err)
	}
	return nil
}

// ResetPassword consumes a valid token. Expired and unknown tokens are
// indistinguishable.
func (s *service) ResetPassword(ctx context.Context, token, password, confirm string) (notify.Intent, error) {
	if len(password) < minPasswordLength {
		return notify.Intent{}, model.NewValidationError("password",
			fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if password != confirm {
		return notify.Intent{}, model.NewValidationError("confirm", "passwords must match")
	}

	found, err := s.store.FindByValidResetToken(ctx, token, time.Now())
	if err != nil {
		if errors.Is(err, model.ErrorUserNotFound) {
			return notify.Intent{}, model.ErrorUserNotFound
		}
		return notify.Intent{}, fmt.Errorf("fetching user by token: %w", err)
	}

	// UpdatePassword also clears the token, so it is single use.
	if err := s.store.UpdatePassword(ctx, found.ID, password); err != nil {
		return notify.Intent{}, fmt.Errorf("resetting password: %w", err)
	}

	return notify.Intent{
		Recipient: found.Email,
		Kind:      notify.KindPasswordChanged,
		Context:   map[string]string{"baseURL": s.baseURL},
	}, nil
}

func (s *service) LinkProvider(ctx context.Context, id model.UserID, provider model.Provider, externalID string) error {
	if externalID == "" {
		return model.NewValidationError("provider", "external identity cannot be empty")
	}
	return s.store.SetProvider(ctx, id, provider, externalID)
}

func (s *service) UnlinkProvider(ctx context.Context, id model.UserID, provider model.Provider) error {
	return s.store.ClearProvider(ctx, id, provider)
}

func (s *service) SetPhoto(ctx context.Context, id model.UserID, ref string) error {
	if ref == "" {
		return model.NewValidationError("photo", "no file was uploaded")
	}
	return s.store.SetPhoto(ctx, id, ref)
}

// Delete permanently removes the account and its friend edges.
func (s *service) Delete(ctx context.Context, id model.UserID) error {
	if err := s.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("removing user: %w", err)
	}
	return nil
}
