// Package dds holds the permission model for DDS deployments: groups own
// topics, topic sets, applications, grant durations and action intervals;
// applications accumulate grants whose actions resolve to publish/subscribe
// rules over canonical topic names.
package dds

import "time"

// TopicKind is the DDS topic kind embedded in canonical names.
type TopicKind string

const (
	KindBestEffort TopicKind = "B"
	KindReliable   TopicKind = "C"
)

// Group owns every other scoped entity. Public gates whether public
// applications and topics inside it are visible to non-members.
type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Public    bool      `json:"public"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Application is a machine identity bound to a group. The passphrase hash is
// bcrypt and backs machine login; it is never serialized.
type Application struct {
	ID             int64     `json:"id"`
	GroupID        int64     `json:"group_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Public         bool      `json:"public"`
	PassphraseHash string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Topic is a named, typed resource scoped to a group. Name, kind and group
// are immutable after creation.
type Topic struct {
	ID          int64     `json:"id"`
	GroupID     int64     `json:"group_id"`
	Kind        TopicKind `json:"kind"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Public      bool      `json:"public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TopicSet is a named collection of topics within one group. Membership is a
// separate relation so topics join and leave independently of set lifecycle.
type TopicSet struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GrantDuration is a named validity-length template scoped to a group.
type GrantDuration struct {
	ID             int64     `json:"id"`
	GroupID        int64     `json:"group_id"`
	Name           string    `json:"name"`
	DurationMillis int64     `json:"duration_in_milliseconds"`
	Metadata       string    `json:"duration_metadata,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ApplicationGrant binds one application to one group with one duration.
// Name is unique within the group. Its validity window is derived at read
// time, never stored.
type ApplicationGrant struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	ApplicationID int64     `json:"application_id"`
	GroupID       int64     `json:"group_id"`
	DurationID    int64     `json:"grant_duration_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ActionInterval is a named absolute time window scoped to a group.
type ActionInterval struct {
	ID        int64     `json:"id"`
	GroupID   int64     `json:"group_id"`
	Name      string    `json:"name"`
	Start     time.Time `json:"start_date"`
	End       time.Time `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Action is the unit of permission under a grant: one interval, a direction,
// direct topics, topic sets expanded at read time, and partition expressions.
type Action struct {
	ID          int64     `json:"id"`
	GrantID     int64     `json:"application_grant_id"`
	IntervalID  int64     `json:"action_interval_id"`
	CanPublish  bool      `json:"can_publish"`
	TopicIDs    []int64   `json:"topic_ids"`
	TopicSetIDs []int64   `json:"topic_set_ids"`
	Partitions  []string  `json:"partitions"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AccessType selects the direction of a direct topic permission.
type AccessType string

const (
	AccessRead      AccessType = "read"
	AccessWrite     AccessType = "write"
	AccessReadWrite AccessType = "read_write"
)

// ApplicationPermission is the direct-binding path: a read/write permission
// from one application to one topic with separately tracked partition sets.
type ApplicationPermission struct {
	ID              int64      `json:"id"`
	ApplicationID   int64      `json:"application_id"`
	TopicID         int64      `json:"topic_id"`
	Access          AccessType `json:"access"`
	ReadPartitions  []string   `json:"read_partitions"`
	WritePartitions []string   `json:"write_partitions"`
	CreatedAt       time.Time  `json:"created_at"`
}

// GroupMember records a user's membership and admin flags within a group.
type GroupMember struct {
	GroupID          int64     `json:"group_id"`
	UserID           int64     `json:"user_id"`
	Email            string    `json:"email"`
	TopicAdmin       bool      `json:"topic_admin"`
	ApplicationAdmin bool      `json:"application_admin"`
	CreatedAt        time.Time `json:"created_at"`
}

func (p ApplicationPermission) canRead() bool {
	return p.Access == AccessRead || p.Access == AccessReadWrite
}

func (p ApplicationPermission) canWrite() bool {
	return p.Access == AccessWrite || p.Access == AccessReadWrite
}
