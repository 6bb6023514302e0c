package dds

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/authz"
)

// CreateApplicationRequest carries the fields needed to create an application.
type CreateApplicationRequest struct {
	GroupID     int64
	Name        string
	Description string
	Public      bool
}

// UpdateApplicationRequest carries mutable application fields.
type UpdateApplicationRequest struct {
	Name        *string
	Description *string
	Public      *bool
}

// ApplicationService manages application lifecycle and machine login.
type ApplicationService struct {
	store Store
	gate  *authz.Gate
	now   func() time.Time
}

// NewApplicationService builds an ApplicationService.
func NewApplicationService(store Store, gate *authz.Gate) (*ApplicationService, error) {
	if store == nil || gate == nil {
		return nil, errors.New("dds: store and gate are required")
	}
	return &ApplicationService{store: store, gate: gate, now: time.Now}, nil
}

// Create adds an application and returns it along with its one-time
// passphrase. Only the bcrypt hash is stored; losing the response means the
// passphrase must be regenerated.
func (s *ApplicationService) Create(ctx context.Context, req CreateApplicationRequest) (*Application, string, error) {
	if _, err := s.store.Groups().Find(ctx, req.GroupID); err != nil {
		return nil, "", err
	}
	if err := s.gate.RequireApplicationAdmin(ctx, req.GroupID); err != nil {
		return nil, "", err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, "", fmt.Errorf("%w: application name is required", ErrInvalidInput)
	}

	passphrase, hash, err := newPassphrase()
	if err != nil {
		return nil, "", err
	}
	app := &Application{
		GroupID:        req.GroupID,
		Name:           name,
		Description:    strings.TrimSpace(req.Description),
		Public:         req.Public,
		PassphraseHash: hash,
		CreatedAt:      s.now().UTC(),
		UpdatedAt:      s.now().UTC(),
	}
	if err := s.store.Applications().Create(ctx, app); err != nil {
		return nil, "", err
	}
	return app, passphrase, nil
}

// Update changes mutable application fields.
func (s *ApplicationService) Update(ctx context.Context, id int64, req UpdateApplicationRequest) (*Application, error) {
	app, err := s.store.Applications().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireApplicationAdmin(ctx, app.GroupID); err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: application name is required", ErrInvalidInput)
		}
		app.Name = name
	}
	if req.Description != nil {
		app.Description = strings.TrimSpace(*req.Description)
	}
	if req.Public != nil {
		app.Public = *req.Public
	}
	app.UpdatedAt = s.now().UTC()
	if err := s.store.Applications().Update(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// Delete removes an application. Its grants (with their actions) and direct
// permissions are removed first so no orphan can reference a deleted row.
func (s *ApplicationService) Delete(ctx context.Context, id int64) error {
	app, err := s.store.Applications().Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gate.RequireApplicationAdmin(ctx, app.GroupID); err != nil {
		return err
	}

	grants, err := s.store.Grants().ListByApplication(ctx, app.ID)
	if err != nil {
		return err
	}
	for _, g := range grants {
		if err := s.store.Actions().DeleteByGrant(ctx, g.ID); err != nil {
			return err
		}
	}
	if err := s.store.Grants().DeleteByApplication(ctx, app.ID); err != nil {
		return err
	}
	if err := s.store.Permissions().DeleteByApplication(ctx, app.ID); err != nil {
		return err
	}
	return s.store.Applications().Delete(ctx, app.ID)
}

// Get returns an application readable by the caller: any member of its group,
// or anyone when both the application and its group are public.
func (s *ApplicationService) Get(ctx context.Context, id int64) (*Application, error) {
	app, err := s.store.Applications().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.publiclyVisible(ctx, app) {
		return app, nil
	}
	if err := s.gate.RequireMember(ctx, app.GroupID); err != nil {
		return nil, err
	}
	return app, nil
}

// PubliclyVisible reports whether the application's permissions may be read
// without authentication: both the application and its owning group must
// permit public scope.
func (s *ApplicationService) PubliclyVisible(ctx context.Context, app *Application) bool {
	return s.publiclyVisible(ctx, app)
}

func (s *ApplicationService) publiclyVisible(ctx context.Context, app *Application) bool {
	return publiclyVisible(ctx, s.store, app)
}

func publiclyVisible(ctx context.Context, store Store, app *Application) bool {
	if !app.Public {
		return false
	}
	group, err := store.Groups().Find(ctx, app.GroupID)
	if err != nil {
		return false
	}
	return group.Public
}

// Authenticate verifies machine-login credentials and returns the
// application. Any failure collapses to ErrNotFound so callers cannot
// distinguish a missing application from a bad passphrase.
func (s *ApplicationService) Authenticate(ctx context.Context, id int64, passphrase string) (*Application, error) {
	app, err := s.store.Applications().Find(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(app.PassphraseHash), []byte(passphrase)) != nil {
		return nil, ErrNotFound
	}
	return app, nil
}

// RotatePassphrase issues a fresh passphrase, returning the cleartext once.
func (s *ApplicationService) RotatePassphrase(ctx context.Context, id int64) (string, error) {
	app, err := s.store.Applications().Find(ctx, id)
	if err != nil {
		return "", err
	}
	if err := s.gate.RequireApplicationAdmin(ctx, app.GroupID); err != nil {
		return "", err
	}
	passphrase, hash, err := newPassphrase()
	if err != nil {
		return "", err
	}
	app.PassphraseHash = hash
	app.UpdatedAt = s.now().UTC()
	if err := s.store.Applications().Update(ctx, app); err != nil {
		return "", err
	}
	return passphrase, nil
}

func newPassphrase() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate passphrase: %w", err)
	}
	passphrase := base64.RawURLEncoding.EncodeToString(raw)
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return "", "", fmt.Errorf("hash passphrase: %w", err)
	}
	return passphrase, string(hash), nil
}
