// Package authz consolidates the capability checks gating every mutating
// operation. Group membership itself is an external concern consumed through
// the Membership interface.
package authz

import (
	"context"
	"errors"
)

// ErrUnauthorized indicates a failed capability check or a missing caller.
var ErrUnauthorized = errors.New("authz: unauthorized")

// Membership answers capability questions about users and groups.
type Membership interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
	IsGroupTopicAdmin(ctx context.Context, groupID, userID int64) (bool, error)
	IsGroupApplicationAdmin(ctx context.Context, groupID, userID int64) (bool, error)
	IsGroupMember(ctx context.Context, groupID, userID int64) (bool, error)
	GroupsForUser(ctx context.Context, userID int64) ([]int64, error)
}

// Gate applies capability predicates against the caller bound to the context.
// Every check fails closed: no authenticated user means no access, and a
// global admin passes any check.
type Gate struct {
	membership Membership
}

// NewGate builds a Gate over the given membership collaborator.
func NewGate(membership Membership) (*Gate, error) {
	if membership == nil {
		return nil, errors.New("authz: membership is required")
	}
	return &Gate{membership: membership}, nil
}

func (g *Gate) caller(ctx context.Context) (UserPrincipal, bool, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return UserPrincipal{}, false, ErrUnauthorized
	}
	if user.Admin {
		return user, true, nil
	}
	admin, err := g.membership.IsAdmin(ctx, user.ID)
	if err != nil {
		return UserPrincipal{}, false, err
	}
	return user, admin, nil
}

// RequireAdmin passes only for global admins.
func (g *Gate) RequireAdmin(ctx context.Context) error {
	_, admin, err := g.caller(ctx)
	if err != nil {
		return err
	}
	if !admin {
		return ErrUnauthorized
	}
	return nil
}

// RequireTopicAdmin passes for global admins and topic admins of the group.
func (g *Gate) RequireTopicAdmin(ctx context.Context, groupID int64) error {
	user, admin, err := g.caller(ctx)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	ok, err := g.membership.IsGroupTopicAdmin(ctx, groupID, user.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// RequireApplicationAdmin passes for global admins and application admins of
// the group.
func (g *Gate) RequireApplicationAdmin(ctx context.Context, groupID int64) error {
	user, admin, err := g.caller(ctx)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	ok, err := g.membership.IsGroupApplicationAdmin(ctx, groupID, user.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// RequireMember passes for global admins and any member of the group.
func (g *Gate) RequireMember(ctx context.Context, groupID int64) error {
	user, admin, err := g.caller(ctx)
	if err != nil {
		return err
	}
	if admin {
		return nil
	}
	ok, err := g.membership.IsGroupMember(ctx, groupID, user.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// VisibleGroups lists groups the caller belongs to. Admins see all groups,
// signalled by the boolean.
func (g *Gate) VisibleGroups(ctx context.Context) ([]int64, bool, error) {
	user, admin, err := g.caller(ctx)
	if err != nil {
		return nil, false, err
	}
	if admin {
		return nil, true, nil
	}
	groups, err := g.membership.GroupsForUser(ctx, user.ID)
	if err != nil {
		return nil, false, err
	}
	return groups, false, nil
}
