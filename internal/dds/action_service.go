package dds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/authz"
)

// CreateActionRequest carries the fields needed to create an action.
type CreateActionRequest struct {
	GrantID     int64
	IntervalID  int64
	CanPublish  bool
	TopicIDs    []int64
	TopicSetIDs []int64
	Partitions  []string
}

// UpdateActionRequest carries mutable action fields. Nil slices leave the
// current value untouched.
type UpdateActionRequest struct {
	IntervalID  *int64
	CanPublish  *bool
	TopicIDs    []int64
	TopicSetIDs []int64
	Partitions  []string
}

// ActionService manages actions under grants. Every referenced interval,
// topic and topic set must belong to the parent grant's group; cross-group
// references are rejected, never silently corrected.
type ActionService struct {
	store Store
	gate  *authz.Gate
	now   func() time.Time
}

// NewActionService builds an ActionService.
func NewActionService(store Store, gate *authz.Gate) (*ActionService, error) {
	if store == nil || gate == nil {
		return nil, errors.New("dds: store and gate are required")
	}
	return &ActionService{store: store, gate: gate, now: time.Now}, nil
}

// Create validates associations and persists a new action.
func (s *ActionService) Create(ctx context.Context, req CreateActionRequest) (*Action, error) {
	grant, err := s.store.Grants().Find(ctx, req.GrantID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireTopicAdmin(ctx, grant.GroupID); err != nil {
		return nil, err
	}
	if err := s.checkAssociations(ctx, grant.GroupID, req.IntervalID, req.TopicIDs, req.TopicSetIDs); err != nil {
		return nil, err
	}

	action := &Action{
		GrantID:     grant.ID,
		IntervalID:  req.IntervalID,
		CanPublish:  req.CanPublish,
		TopicIDs:    append([]int64(nil), req.TopicIDs...),
		TopicSetIDs: append([]int64(nil), req.TopicSetIDs...),
		Partitions:  append([]string(nil), req.Partitions...),
		CreatedAt:   s.now().UTC(),
		UpdatedAt:   s.now().UTC(),
	}
	if err := s.store.Actions().Create(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

// Update re-validates associations and persists the change.
func (s *ActionService) Update(ctx context.Context, id int64, req UpdateActionRequest) (*Action, error) {
	action, err := s.store.Actions().Find(ctx, id)
	if err != nil {
		return nil, err
	}
	grant, err := s.store.Grants().Find(ctx, action.GrantID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireTopicAdmin(ctx, grant.GroupID); err != nil {
		return nil, err
	}

	if req.IntervalID != nil {
		action.IntervalID = *req.IntervalID
	}
	if req.CanPublish != nil {
		action.CanPublish = *req.CanPublish
	}
	if req.TopicIDs != nil {
		action.TopicIDs = append([]int64(nil), req.TopicIDs...)
	}
	if req.TopicSetIDs != nil {
		action.TopicSetIDs = append([]int64(nil), req.TopicSetIDs...)
	}
	if req.Partitions != nil {
		action.Partitions = append([]string(nil), req.Partitions...)
	}
	if err := s.checkAssociations(ctx, grant.GroupID, action.IntervalID, action.TopicIDs, action.TopicSetIDs); err != nil {
		return nil, err
	}
	action.UpdatedAt = s.now().UTC()
	if err := s.store.Actions().Update(ctx, action); err != nil {
		return nil, err
	}
	return action, nil
}

// Delete removes an action.
func (s *ActionService) Delete(ctx context.Context, id int64) error {
	action, err := s.store.Actions().Find(ctx, id)
	if err != nil {
		return err
	}
	grant, err := s.store.Grants().Find(ctx, action.GrantID)
	if err != nil {
		return err
	}
	if err := s.gate.RequireTopicAdmin(ctx, grant.GroupID); err != nil {
		return err
	}
	return s.store.Actions().Delete(ctx, action.ID)
}

// ListByGrant returns a grant's actions, readable by group members.
func (s *ActionService) ListByGrant(ctx context.Context, grantID int64) ([]*Action, error) {
	grant, err := s.store.Grants().Find(ctx, grantID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireMember(ctx, grant.GroupID); err != nil {
		return nil, err
	}
	return s.store.Actions().ListByGrant(ctx, grant.ID)
}

func (s *ActionService) checkAssociations(ctx context.Context, groupID, intervalID int64, topicIDs, topicSetIDs []int64) error {
	interval, err := s.store.Intervals().Find(ctx, intervalID)
	if err != nil {
		return err
	}
	if interval.GroupID != groupID {
		return fmt.Errorf("%w: action interval belongs to group %d, grant to group %d",
			ErrInvalidAssociation, interval.GroupID, groupID)
	}
	for _, id := range topicIDs {
		topic, err := s.store.Topics().Find(ctx, id)
		if err != nil {
			return err
		}
		if topic.GroupID != groupID {
			return fmt.Errorf("%w: topic %d belongs to group %d, grant to group %d",
				ErrInvalidAssociation, topic.ID, topic.GroupID, groupID)
		}
	}
	for _, id := range topicSetIDs {
		set, err := s.store.TopicSets().Find(ctx, id)
		if err != nil {
			return err
		}
		if set.GroupID != groupID {
			return fmt.Errorf("%w: topic set %d belongs to group %d, grant to group %d",
				ErrInvalidAssociation, set.ID, set.GroupID, groupID)
		}
	}
	return nil
}
