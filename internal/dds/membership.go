package dds

import (
	"context"
	"errors"
)

// Membership adapts the member store to the capability predicates consumed by
// the authorization gate.
type Membership struct {
	members MemberStore
}

// NewMembership wraps a member store.
func NewMembership(members MemberStore) *Membership {
	return &Membership{members: members}
}

func (m *Membership) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	return m.members.IsAdmin(ctx, userID)
}

func (m *Membership) IsGroupTopicAdmin(ctx context.Context, groupID, userID int64) (bool, error) {
	member, err := m.members.Get(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.TopicAdmin, nil
}

func (m *Membership) IsGroupApplicationAdmin(ctx context.Context, groupID, userID int64) (bool, error) {
	member, err := m.members.Get(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return member.ApplicationAdmin, nil
}

func (m *Membership) IsGroupMember(ctx context.Context, groupID, userID int64) (bool, error) {
	_, err := m.members.Get(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *Membership) GroupsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return m.members.GroupsForUser(ctx, userID)
}
