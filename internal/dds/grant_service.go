package dds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/authz"
)

// TokenRedeemer resolves a bind token to the application it authorizes.
// Validation failures surface as-is; they are terminal rejections.
type TokenRedeemer interface {
	ApplicationIDFromToken(raw string) (int64, error)
}

// CreateGrantRequest carries the fields needed to create a grant.
type CreateGrantRequest struct {
	Name          string
	ApplicationID int64
	DurationID    int64
}

// UpdateGrantRequest carries mutable grant fields.
type UpdateGrantRequest struct {
	Name       *string
	DurationID *int64
}

// GrantService manages application grants and owns the grant-duration
// referential guard.
type GrantService struct {
	store Store
	gate  *authz.Gate
	now   func() time.Time
}

// NewGrantService builds a GrantService.
func NewGrantService(store Store, gate *authz.Gate) (*GrantService, error) {
	if store == nil || gate == nil {
		return nil, errors.New("dds: store and gate are required")
	}
	return &GrantService{store: store, gate: gate, now: time.Now}, nil
}

// Create adds a grant on behalf of a human admin. The caller must be a
// global admin or an application admin of the application's group.
func (s *GrantService) Create(ctx context.Context, req CreateGrantRequest) (*ApplicationGrant, error) {
	app, err := s.store.Applications().Find(ctx, req.ApplicationID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireApplicationAdmin(ctx, app.GroupID); err != nil {
		return nil, err
	}
	return s.create(ctx, app, req)
}

// CreateWithToken redeems a bind token and creates the grant as if the
// token's application had requested it, regardless of the caller session.
func (s *GrantService) CreateWithToken(ctx context.Context, redeemer TokenRedeemer, rawToken string, req CreateGrantRequest) (*ApplicationGrant, error) {
	appID, err := redeemer.ApplicationIDFromToken(rawToken)
	if err != nil {
		return nil, err
	}
	app, err := s.store.Applications().Find(ctx, appID)
	if err != nil {
		return nil, err
	}
	req.ApplicationID = app.ID
	return s.create(ctx, app, req)
}

func (s *GrantService) create(ctx context.Context, app *Application, req CreateGrantRequest) (*ApplicationGrant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: grant name is required", ErrInvalidInput)
	}
	duration, err := s.store.Durations().Find(ctx, req.DurationID)
	if err != nil {
		return nil, err
	}
	if duration.GroupID != app.GroupID {
		return nil, fmt.Errorf("%w: grant duration belongs to group %d, application to group %d",
			ErrInvalidAssociation, duration.GroupID, app.GroupID)
	}
	if existing, err := s.store.Grants().FindByName(ctx, app.GroupID, name); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: grant %q in group %d", ErrAlreadyExists, name, app.GroupID)
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	grant := &ApplicationGrant{
		Name:          name,
		ApplicationID: app.ID,
		GroupID:       app.GroupID,
		DurationID:    duration.ID,
		CreatedAt:     s.now().UTC(),
		UpdatedAt:     s.now().UTC(),
	}
	if err := s.store.Grants().Create(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}

// Update changes a grant's name or duration.
func (s *GrantService) Update(ctx context.Context, id int64, req UpdateGrantRequest) (*ApplicationGrant, error) {
	grant, err := s.store.Grants().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireApplicationAdmin(ctx, grant.GroupID); err != nil {
		return nil, err
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: grant name is required", ErrInvalidInput)
		}
		if name != grant.Name {
			if existing, err := s.store.Grants().FindByName(ctx, grant.GroupID, name); err == nil && existing != nil {
				return nil, fmt.Errorf("%w: grant %q in group %d", ErrAlreadyExists, name, grant.GroupID)
			} else if err != nil && !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}
		grant.Name = name
	}
	if req.DurationID != nil {
		duration, err := s.store.Durations().Find(ctx, *req.DurationID)
		if err != nil {
			return nil, err
		}
		if duration.GroupID != grant.GroupID {
			return nil, fmt.Errorf("%w: grant duration belongs to group %d, grant to group %d",
				ErrInvalidAssociation, duration.GroupID, grant.GroupID)
		}
		grant.DurationID = duration.ID
	}
	grant.UpdatedAt = s.now().UTC()
	if err := s.store.Grants().Update(ctx, grant); err != nil {
		return nil, err
	}
	return grant, nil
}

// Delete removes a grant and its actions.
func (s *GrantService) Delete(ctx context.Context, id int64) error {
	grant, err := s.store.Grants().Find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gate.RequireApplicationAdmin(ctx, grant.GroupID); err != nil {
		return err
	}
	if err := s.store.Actions().DeleteByGrant(ctx, grant.ID); err != nil {
		return err
	}
	return s.store.Grants().Delete(ctx, grant.ID)
}

// ListByApplication returns an application's grants, readable by any member
// of its group.
func (s *GrantService) ListByApplication(ctx context.Context, applicationID int64) ([]*ApplicationGrant, error) {
	app, err := s.store.Applications().Find(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireMember(ctx, app.GroupID); err != nil {
		return nil, err
	}
	return s.store.Grants().ListByApplication(ctx, app.ID)
}

// DeleteDuration removes a duration template unless a grant still references
// it. The referential guard lives here: the grant layer owns the reference.
func (s *GrantService) DeleteDuration(ctx context.Context, durationID int64) error {
	duration, err := s.store.Durations().Find(ctx, durationID)
	if err != nil {
		return err
	}
	if err := s.gate.RequireApplicationAdmin(ctx, duration.GroupID); err != nil {
		return err
	}
	n, err := s.store.Grants().CountByDuration(ctx, duration.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d grants reference duration %d", ErrDurationInUse, n, duration.ID)
	}
	return s.store.Durations().Delete(ctx, duration.ID)
}
