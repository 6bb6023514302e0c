package dds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/authz"
)

// AddAccessRequest carries the fields for a direct topic permission.
type AddAccessRequest struct {
	TopicID         int64
	Access          AccessType
	ReadPartitions  []string
	WritePartitions []string
}

// PermissionService manages direct application-to-topic permissions, the
// simpler aggregation path alongside grants.
type PermissionService struct {
	store Store
	gate  *authz.Gate
	now   func() time.Time
}

// NewPermissionService builds a PermissionService.
func NewPermissionService(store Store, gate *authz.Gate) (*PermissionService, error) {
	if store == nil || gate == nil {
		return nil, errors.New("dds: store and gate are required")
	}
	return &PermissionService{store: store, gate: gate, now: time.Now}, nil
}

// AddAccess binds a topic permission on behalf of a human admin. The caller
// must be a global admin or topic admin of the topic's group.
func (s *PermissionService) AddAccess(ctx context.Context, applicationID int64, req AddAccessRequest) (*ApplicationPermission, error) {
	topic, err := s.store.Topics().Find(ctx, req.TopicID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireTopicAdmin(ctx, topic.GroupID); err != nil {
		return nil, err
	}
	app, err := s.store.Applications().Find(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	return s.add(ctx, app, topic, req)
}

// AddAccessWithToken redeems a bind token and creates the permission
// attributed to the token's application, regardless of the caller session.
func (s *PermissionService) AddAccessWithToken(ctx context.Context, redeemer TokenRedeemer, rawToken string, req AddAccessRequest) (*ApplicationPermission, error) {
	appID, err := redeemer.ApplicationIDFromToken(rawToken)
	if err != nil {
		return nil, err
	}
	app, err := s.store.Applications().Find(ctx, appID)
	if err != nil {
		return nil, err
	}
	topic, err := s.store.Topics().Find(ctx, req.TopicID)
	if err != nil {
		return nil, err
	}
	return s.add(ctx, app, topic, req)
}

func (s *PermissionService) add(ctx context.Context, app *Application, topic *Topic, req AddAccessRequest) (*ApplicationPermission, error) {
	switch req.Access {
	case AccessRead, AccessWrite, AccessReadWrite:
	default:
		return nil, fmt.Errorf("%w: unsupported access %q", ErrInvalidInput, req.Access)
	}
	perm := &ApplicationPermission{
		ApplicationID:   app.ID,
		TopicID:         topic.ID,
		Access:          req.Access,
		ReadPartitions:  append([]string(nil), req.ReadPartitions...),
		WritePartitions: append([]string(nil), req.WritePartitions...),
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.Permissions().Create(ctx, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// Delete removes a direct permission.
func (s *PermissionService) Delete(ctx context.Context, id int64) error {
	perm, err := s.store.Permissions().Find(ctx, id)
	if err != nil {
		return err
	}
	topic, err := s.store.Topics().Find(ctx, perm.TopicID)
	if err != nil {
		return err
	}
	if err := s.gate.RequireTopicAdmin(ctx, topic.GroupID); err != nil {
		return err
	}
	return s.store.Permissions().Delete(ctx, perm.ID)
}

// ListByApplication returns an application's direct permissions, readable by
// members of its group, or by anyone when both the application and its group
// are public.
func (s *PermissionService) ListByApplication(ctx context.Context, applicationID int64) ([]*ApplicationPermission, error) {
	app, err := s.store.Applications().Find(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if !publiclyVisible(ctx, s.store, app) {
		if err := s.gate.RequireMember(ctx, app.GroupID); err != nil {
			return nil, err
		}
	}
	return s.store.Permissions().ListByApplication(ctx, app.ID)
}
