package dds

import "context"

// Store describes persistence operations required by the permission model.
// Implementations return ErrNotFound for absent rows and ErrAlreadyExists for
// scope-uniqueness violations.
type Store interface {
	Groups() GroupStore
	Applications() ApplicationStore
	Topics() TopicStore
	TopicSets() TopicSetStore
	Durations() GrantDurationStore
	Grants() GrantStore
	Intervals() ActionIntervalStore
	Actions() ActionStore
	Permissions() PermissionStore
	Members() MemberStore
}

// GroupStore manages groups.
type GroupStore interface {
	Create(ctx context.Context, g *Group) error
	Find(ctx context.Context, id int64) (*Group, error)
	List(ctx context.Context) ([]*Group, error)
	Update(ctx context.Context, g *Group) error
	Delete(ctx context.Context, id int64) error
}

// ApplicationStore manages applications.
type ApplicationStore interface {
	Create(ctx context.Context, a *Application) error
	Find(ctx context.Context, id int64) (*Application, error)
	ListByGroup(ctx context.Context, groupID int64) ([]*Application, error)
	Update(ctx context.Context, a *Application) error
	Delete(ctx context.Context, id int64) error
}

// TopicStore manages topics.
type TopicStore interface {
	Create(ctx context.Context, t *Topic) error
	Find(ctx context.Context, id int64) (*Topic, error)
	FindMany(ctx context.Context, ids []int64) ([]*Topic, error)
	ListByGroup(ctx context.Context, groupID int64) ([]*Topic, error)
	Update(ctx context.Context, t *Topic) error
	Delete(ctx context.Context, id int64) error
}

// TopicSetStore manages topic sets and their membership relation.
type TopicSetStore interface {
	Create(ctx context.Context, s *TopicSet) error
	Find(ctx context.Context, id int64) (*TopicSet, error)
	Delete(ctx context.Context, id int64) error
	AddTopic(ctx context.Context, setID, topicID int64) error
	RemoveTopic(ctx context.Context, setID, topicID int64) error
	TopicIDs(ctx context.Context, setID int64) ([]int64, error)
}

// GrantDurationStore manages duration templates.
type GrantDurationStore interface {
	Create(ctx context.Context, d *GrantDuration) error
	Find(ctx context.Context, id int64) (*GrantDuration, error)
	ListByGroup(ctx context.Context, groupID int64) ([]*GrantDuration, error)
	Delete(ctx context.Context, id int64) error
}

// GrantStore manages application grants.
type GrantStore interface {
	Create(ctx context.Context, g *ApplicationGrant) error
	Find(ctx context.Context, id int64) (*ApplicationGrant, error)
	FindByName(ctx context.Context, groupID int64, name string) (*ApplicationGrant, error)
	ListByApplication(ctx context.Context, applicationID int64) ([]*ApplicationGrant, error)
	ListByGroup(ctx context.Context, groupID int64) ([]*ApplicationGrant, error)
	Update(ctx context.Context, g *ApplicationGrant) error
	Delete(ctx context.Context, id int64) error
	DeleteByApplication(ctx context.Context, applicationID int64) error
	CountByDuration(ctx context.Context, durationID int64) (int, error)
}

// ActionIntervalStore manages action intervals.
type ActionIntervalStore interface {
	Create(ctx context.Context, i *ActionInterval) error
	Find(ctx context.Context, id int64) (*ActionInterval, error)
	ListByGroup(ctx context.Context, groupID int64) ([]*ActionInterval, error)
	Update(ctx context.Context, i *ActionInterval) error
	Delete(ctx context.Context, id int64) error
}

// ActionStore manages actions under grants.
type ActionStore interface {
	Create(ctx context.Context, a *Action) error
	Find(ctx context.Context, id int64) (*Action, error)
	ListByGrant(ctx context.Context, grantID int64) ([]*Action, error)
	Update(ctx context.Context, a *Action) error
	Delete(ctx context.Context, id int64) error
	DeleteByGrant(ctx context.Context, grantID int64) error
}

// PermissionStore manages direct topic permissions.
type PermissionStore interface {
	Create(ctx context.Context, p *ApplicationPermission) error
	Find(ctx context.Context, id int64) (*ApplicationPermission, error)
	ListByApplication(ctx context.Context, applicationID int64) ([]*ApplicationPermission, error)
	Delete(ctx context.Context, id int64) error
	DeleteByApplication(ctx context.Context, applicationID int64) error
}

// MemberStore manages group membership and admin flags.
type MemberStore interface {
	Upsert(ctx context.Context, m *GroupMember) error
	Remove(ctx context.Context, groupID, userID int64) error
	Get(ctx context.Context, groupID, userID int64) (*GroupMember, error)
	GroupsForUser(ctx context.Context, userID int64) ([]int64, error)
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}
