// Package memory provides an in-process Store for tests and local runs.
// All reads return copies so callers cannot mutate shared state.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/dds"
)

// Store keeps every entity in maps guarded by one mutex. IDs are assigned
// from a single monotonic counter so they are unique across entity kinds.
type Store struct {
	mu     sync.RWMutex
	nextID int64

	groups       map[int64]*dds.Group
	applications map[int64]*dds.Application
	topics       map[int64]*dds.Topic
	topicSets    map[int64]*dds.TopicSet
	setTopics    map[int64]map[int64]struct{}
	durations    map[int64]*dds.GrantDuration
	grants       map[int64]*dds.ApplicationGrant
	intervals    map[int64]*dds.ActionInterval
	actions      map[int64]*dds.Action
	permissions  map[int64]*dds.ApplicationPermission
	members      map[int64]map[int64]*dds.GroupMember
	admins       map[int64]bool
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		groups:       make(map[int64]*dds.Group),
		applications: make(map[int64]*dds.Application),
		topics:       make(map[int64]*dds.Topic),
		topicSets:    make(map[int64]*dds.TopicSet),
		setTopics:    make(map[int64]map[int64]struct{}),
		durations:    make(map[int64]*dds.GrantDuration),
		grants:       make(map[int64]*dds.ApplicationGrant),
		intervals:    make(map[int64]*dds.ActionInterval),
		actions:      make(map[int64]*dds.Action),
		permissions:  make(map[int64]*dds.ApplicationPermission),
		members:      make(map[int64]map[int64]*dds.GroupMember),
		admins:       make(map[int64]bool),
	}
}

var _ dds.Store = (*Store)(nil)

func (s *Store) Groups() dds.GroupStore               { return groupStore{s} }
func (s *Store) Applications() dds.ApplicationStore   { return applicationStore{s} }
func (s *Store) Topics() dds.TopicStore               { return topicStore{s} }
func (s *Store) TopicSets() dds.TopicSetStore         { return topicSetStore{s} }
func (s *Store) Durations() dds.GrantDurationStore    { return durationStore{s} }
func (s *Store) Grants() dds.GrantStore               { return grantStore{s} }
func (s *Store) Intervals() dds.ActionIntervalStore   { return intervalStore{s} }
func (s *Store) Actions() dds.ActionStore             { return actionStore{s} }
func (s *Store) Permissions() dds.PermissionStore     { return permissionStore{s} }
func (s *Store) Members() dds.MemberStore             { return memberStore{s} }

// SetAdmin marks or clears a user's global admin flag.
func (s *Store) SetAdmin(userID int64, admin bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if admin {
		s.admins[userID] = true
	} else {
		delete(s.admins, userID)
	}
}

func (s *Store) allocID() int64 {
	s.nextID++
	return s.nextID
}

func notFound(kind string, id int64) error {
	return fmt.Errorf("%w: %s %d", dds.ErrNotFound, kind, id)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneIDs(in []int64) []int64 {
	if in == nil {
		return nil
	}
	return append([]int64(nil), in...)
}

// groups

type groupStore struct{ s *Store }

func (gs groupStore) Create(_ context.Context, g *dds.Group) error {
	gs.s.mu.Lock()
	defer gs.s.mu.Unlock()
	for _, existing := range gs.s.groups {
		if existing.Name == g.Name {
			return fmt.Errorf("%w: group %q", dds.ErrAlreadyExists, g.Name)
		}
	}
	g.ID = gs.s.allocID()
	cp := *g
	gs.s.groups[g.ID] = &cp
	return nil
}

func (gs groupStore) Find(_ context.Context, id int64) (*dds.Group, error) {
	gs.s.mu.RLock()
	defer gs.s.mu.RUnlock()
	g, ok := gs.s.groups[id]
	if !ok {
		return nil, notFound("group", id)
	}
	cp := *g
	return &cp, nil
}

func (gs groupStore) List(_ context.Context) ([]*dds.Group, error) {
	gs.s.mu.RLock()
	defer gs.s.mu.RUnlock()
	out := make([]*dds.Group, 0, len(gs.s.groups))
	for _, g := range gs.s.groups {
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (gs groupStore) Update(_ context.Context, g *dds.Group) error {
	gs.s.mu.Lock()
	defer gs.s.mu.Unlock()
	if _, ok := gs.s.groups[g.ID]; !ok {
		return notFound("group", g.ID)
	}
	cp := *g
	gs.s.groups[g.ID] = &cp
	return nil
}

func (gs groupStore) Delete(_ context.Context, id int64) error {
	gs.s.mu.Lock()
	defer gs.s.mu.Unlock()
	if _, ok := gs.s.groups[id]; !ok {
		return notFound("group", id)
	}
	delete(gs.s.groups, id)
	delete(gs.s.members, id)
	return nil
}

// applications

type applicationStore struct{ s *Store }

func (as applicationStore) Create(_ context.Context, a *dds.Application) error {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()
	for _, existing := range as.s.applications {
		if existing.GroupID == a.GroupID && existing.Name == a.Name {
			return fmt.Errorf("%w: application %q", dds.ErrAlreadyExists, a.Name)
		}
	}
	a.ID = as.s.allocID()
	cp := *a
	as.s.applications[a.ID] = &cp
	return nil
}

func (as applicationStore) Find(_ context.Context, id int64) (*dds.Application, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()
	a, ok := as.s.applications[id]
	if !ok {
		return nil, notFound("application", id)
	}
	cp := *a
	return &cp, nil
}

func (as applicationStore) ListByGroup(_ context.Context, groupID int64) ([]*dds.Application, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()
	var out []*dds.Application
	for _, a := range as.s.applications {
		if a.GroupID == groupID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (as applicationStore) Update(_ context.Context, a *dds.Application) error {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()
	if _, ok := as.s.applications[a.ID]; !ok {
		return notFound("application", a.ID)
	}
	cp := *a
	as.s.applications[a.ID] = &cp
	return nil
}

func (as applicationStore) Delete(_ context.Context, id int64) error {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()
	if _, ok := as.s.applications[id]; !ok {
		return notFound("application", id)
	}
	delete(as.s.applications, id)
	return nil
}

// topics

type topicStore struct{ s *Store }

func (ts topicStore) Create(_ context.Context, t *dds.Topic) error {
	ts.s.mu.Lock()
	defer ts.s.mu.Unlock()
	for _, existing := range ts.s.topics {
		if existing.GroupID == t.GroupID && existing.Name == t.Name && existing.Kind == t.Kind {
			return fmt.Errorf("%w: topic %q", dds.ErrAlreadyExists, t.Name)
		}
	}
	t.ID = ts.s.allocID()
	cp := *t
	ts.s.topics[t.ID] = &cp
	return nil
}

func (ts topicStore) Find(_ context.Context, id int64) (*dds.Topic, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()
	t, ok := ts.s.topics[id]
	if !ok {
		return nil, notFound("topic", id)
	}
	cp := *t
	return &cp, nil
}

func (ts topicStore) FindMany(_ context.Context, ids []int64) ([]*dds.Topic, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()
	out := make([]*dds.Topic, 0, len(ids))
	for _, id := range ids {
		t, ok := ts.s.topics[id]
		if !ok {
			return nil, notFound("topic", id)
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (ts topicStore) ListByGroup(_ context.Context, groupID int64) ([]*dds.Topic, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()
	var out []*dds.Topic
	for _, t := range ts.s.topics {
		if t.GroupID == groupID {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (ts topicStore) Update(_ context.Context, t *dds.Topic) error {
	ts.s.mu.Lock()
	defer ts.s.mu.Unlock()
	if _, ok := ts.s.topics[t.ID]; !ok {
		return notFound("topic", t.ID)
	}
	cp := *t
	ts.s.topics[t.ID] = &cp
	return nil
}

func (ts topicStore) Delete(_ context.Context, id int64) error {
	ts.s.mu.Lock()
	defer ts.s.mu.Unlock()
	if _, ok := ts.s.topics[id]; !ok {
		return notFound("topic", id)
	}
	delete(ts.s.topics, id)
	for _, topicIDs := range ts.s.setTopics {
		delete(topicIDs, id)
	}
	return nil
}

// topic sets

type topicSetStore struct{ s *Store }

func (ts topicSetStore) Create(_ context.Context, set *dds.TopicSet) error {
	ts.s.mu.Lock()
	defer ts.s.mu.Unlock()
	for _, existing := range ts.s.topicSets {
		if existing.GroupID == set.GroupID && existing.Name == set.Name {
			return fmt.Errorf("%w: topic set %q", dds.ErrAlreadyExists, set.Name)
		}
	}
	set.ID = ts.s.allocID()
	cp := *set
	ts.s.topicSets[set.ID] = &cp
	ts.s.setTopics[set.ID] = make(map[int64]struct{})
	return nil
}

func (ts topicSetStore) Find(_ context.Context, id int64) (*dds.TopicSet, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()
	set, ok := ts.s.topicSets[id]
	if !ok {
		return nil, notFound("topic set", id)
	}
	cp := *set
	return &cp, nil
}

func (ts topicSetStore) Delete(_ context.Context, id int64) error {
	ts.s.mu.Lock()
	defer ts.s.mu.Unlock()
	if _, ok := ts.s.topicSets[id]; !ok {
		return notFound("topic set", id)
	}
	delete(ts.s.topicSets, id)
	delete(ts.s.setTopics, id)
	return nil
}

func (ts topicSetStore) AddTopic(_ context.Context, setID, topicID int64) error {
	ts.s.mu.Lock()
	defer ts.s.mu.Unlock()
	if _, ok := ts.s.topicSets[setID]; !ok {
		return notFound("topic set", setID)
	}
	if _, ok := ts.s.topics[topicID]; !ok {
		return notFound("topic", topicID)
	}
	ts.s.setTopics[setID][topicID] = struct{}{}
	return nil
}

func (ts topicSetStore) RemoveTopic(_ context.Context, setID, topicID int64) error {
	ts.s.mu.Lock()
	defer ts.s.mu.Unlock()
	if _, ok := ts.s.topicSets[setID]; !ok {
		return notFound("topic set", setID)
	}
	delete(ts.s.setTopics[setID], topicID)
	return nil
}

func (ts topicSetStore) TopicIDs(_ context.Context, setID int64) ([]int64, error) {
	ts.s.mu.RLock()
	defer ts.s.mu.RUnlock()
	ids, ok := ts.s.setTopics[setID]
	if !ok {
		return nil, notFound("topic set", setID)
	}
	out := make([]int64, 0, len(ids))
	for id := range ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// durations

type durationStore struct{ s *Store }

func (ds durationStore) Create(_ context.Context, d *dds.GrantDuration) error {
	ds.s.mu.Lock()
	defer ds.s.mu.Unlock()
	for _, existing := range ds.s.durations {
		if existing.GroupID == d.GroupID && existing.Name == d.Name {
			return fmt.Errorf("%w: duration %q", dds.ErrAlreadyExists, d.Name)
		}
	}
	d.ID = ds.s.allocID()
	cp := *d
	ds.s.durations[d.ID] = &cp
	return nil
}

func (ds durationStore) Find(_ context.Context, id int64) (*dds.GrantDuration, error) {
	ds.s.mu.RLock()
	defer ds.s.mu.RUnlock()
	d, ok := ds.s.durations[id]
	if !ok {
		return nil, notFound("duration", id)
	}
	cp := *d
	return &cp, nil
}

func (ds durationStore) ListByGroup(_ context.Context, groupID int64) ([]*dds.GrantDuration, error) {
	ds.s.mu.RLock()
	defer ds.s.mu.RUnlock()
	var out []*dds.GrantDuration
	for _, d := range ds.s.durations {
		if d.GroupID == groupID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (ds durationStore) Delete(_ context.Context, id int64) error {
	ds.s.mu.Lock()
	defer ds.s.mu.Unlock()
	if _, ok := ds.s.durations[id]; !ok {
		return notFound("duration", id)
	}
	delete(ds.s.durations, id)
	return nil
}

// grants

type grantStore struct{ s *Store }

func (gs grantStore) Create(_ context.Context, g *dds.ApplicationGrant) error {
	gs.s.mu.Lock()
	defer gs.s.mu.Unlock()
	for _, existing := range gs.s.grants {
		if existing.GroupID == g.GroupID && existing.Name == g.Name {
			return fmt.Errorf("%w: grant %q", dds.ErrAlreadyExists, g.Name)
		}
	}
	g.ID = gs.s.allocID()
	cp := *g
	gs.s.grants[g.ID] = &cp
	return nil
}

func (gs grantStore) Find(_ context.Context, id int64) (*dds.ApplicationGrant, error) {
	gs.s.mu.RLock()
	defer gs.s.mu.RUnlock()
	g, ok := gs.s.grants[id]
	if !ok {
		return nil, notFound("grant", id)
	}
	cp := *g
	return &cp, nil
}

func (gs grantStore) FindByName(_ context.Context, groupID int64, name string) (*dds.ApplicationGrant, error) {
	gs.s.mu.RLock()
	defer gs.s.mu.RUnlock()
	for _, g := range gs.s.grants {
		if g.GroupID == groupID && g.Name == name {
			cp := *g
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: grant %q", dds.ErrNotFound, name)
}

func (gs grantStore) ListByApplication(_ context.Context, applicationID int64) ([]*dds.ApplicationGrant, error) {
	gs.s.mu.RLock()
	defer gs.s.mu.RUnlock()
	var out []*dds.ApplicationGrant
	for _, g := range gs.s.grants {
		if g.ApplicationID == applicationID {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (gs grantStore) ListByGroup(_ context.Context, groupID int64) ([]*dds.ApplicationGrant, error) {
	gs.s.mu.RLock()
	defer gs.s.mu.RUnlock()
	var out []*dds.ApplicationGrant
	for _, g := range gs.s.grants {
		if g.GroupID == groupID {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (gs grantStore) Update(_ context.Context, g *dds.ApplicationGrant) error {
	gs.s.mu.Lock()
	defer gs.s.mu.Unlock()
	if _, ok := gs.s.grants[g.ID]; !ok {
		return notFound("grant", g.ID)
	}
	cp := *g
	gs.s.grants[g.ID] = &cp
	return nil
}

func (gs grantStore) Delete(_ context.Context, id int64) error {
	gs.s.mu.Lock()
	defer gs.s.mu.Unlock()
	if _, ok := gs.s.grants[id]; !ok {
		return notFound("grant", id)
	}
	delete(gs.s.grants, id)
	return nil
}

func (gs grantStore) DeleteByApplication(_ context.Context, applicationID int64) error {
	gs.s.mu.Lock()
	defer gs.s.mu.Unlock()
	for id, g := range gs.s.grants {
		if g.ApplicationID == applicationID {
			delete(gs.s.grants, id)
		}
	}
	return nil
}

func (gs grantStore) CountByDuration(_ context.Context, durationID int64) (int, error) {
	gs.s.mu.RLock()
	defer gs.s.mu.RUnlock()
	count := 0
	for _, g := range gs.s.grants {
		if g.DurationID == durationID {
			count++
		}
	}
	return count, nil
}

// intervals

type intervalStore struct{ s *Store }

func (is intervalStore) Create(_ context.Context, i *dds.ActionInterval) error {
	is.s.mu.Lock()
	defer is.s.mu.Unlock()
	for _, existing := range is.s.intervals {
		if existing.GroupID == i.GroupID && existing.Name == i.Name {
			return fmt.Errorf("%w: interval %q", dds.ErrAlreadyExists, i.Name)
		}
	}
	i.ID = is.s.allocID()
	cp := *i
	is.s.intervals[i.ID] = &cp
	return nil
}

func (is intervalStore) Find(_ context.Context, id int64) (*dds.ActionInterval, error) {
	is.s.mu.RLock()
	defer is.s.mu.RUnlock()
	i, ok := is.s.intervals[id]
	if !ok {
		return nil, notFound("interval", id)
	}
	cp := *i
	return &cp, nil
}

func (is intervalStore) ListByGroup(_ context.Context, groupID int64) ([]*dds.ActionInterval, error) {
	is.s.mu.RLock()
	defer is.s.mu.RUnlock()
	var out []*dds.ActionInterval
	for _, i := range is.s.intervals {
		if i.GroupID == groupID {
			cp := *i
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (is intervalStore) Update(_ context.Context, i *dds.ActionInterval) error {
	is.s.mu.Lock()
	defer is.s.mu.Unlock()
	if _, ok := is.s.intervals[i.ID]; !ok {
		return notFound("interval", i.ID)
	}
	cp := *i
	is.s.intervals[i.ID] = &cp
	return nil
}

func (is intervalStore) Delete(_ context.Context, id int64) error {
	is.s.mu.Lock()
	defer is.s.mu.Unlock()
	if _, ok := is.s.intervals[id]; !ok {
		return notFound("interval", id)
	}
	delete(is.s.intervals, id)
	return nil
}

// actions

type actionStore struct{ s *Store }

func cloneAction(a *dds.Action) *dds.Action {
	cp := *a
	cp.TopicIDs = cloneIDs(a.TopicIDs)
	cp.TopicSetIDs = cloneIDs(a.TopicSetIDs)
	cp.Partitions = cloneStrings(a.Partitions)
	return &cp
}

func (as actionStore) Create(_ context.Context, a *dds.Action) error {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()
	a.ID = as.s.allocID()
	as.s.actions[a.ID] = cloneAction(a)
	return nil
}

func (as actionStore) Find(_ context.Context, id int64) (*dds.Action, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()
	a, ok := as.s.actions[id]
	if !ok {
		return nil, notFound("action", id)
	}
	return cloneAction(a), nil
}

func (as actionStore) ListByGrant(_ context.Context, grantID int64) ([]*dds.Action, error) {
	as.s.mu.RLock()
	defer as.s.mu.RUnlock()
	var out []*dds.Action
	for _, a := range as.s.actions {
		if a.GrantID == grantID {
			out = append(out, cloneAction(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (as actionStore) Update(_ context.Context, a *dds.Action) error {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()
	if _, ok := as.s.actions[a.ID]; !ok {
		return notFound("action", a.ID)
	}
	as.s.actions[a.ID] = cloneAction(a)
	return nil
}

func (as actionStore) Delete(_ context.Context, id int64) error {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()
	if _, ok := as.s.actions[id]; !ok {
		return notFound("action", id)
	}
	delete(as.s.actions, id)
	return nil
}

func (as actionStore) DeleteByGrant(_ context.Context, grantID int64) error {
	as.s.mu.Lock()
	defer as.s.mu.Unlock()
	for id, a := range as.s.actions {
		if a.GrantID == grantID {
			delete(as.s.actions, id)
		}
	}
	return nil
}

// permissions

type permissionStore struct{ s *Store }

func clonePermission(p *dds.ApplicationPermission) *dds.ApplicationPermission {
	cp := *p
	cp.ReadPartitions = cloneStrings(p.ReadPartitions)
	cp.WritePartitions = cloneStrings(p.WritePartitions)
	return &cp
}

func (ps permissionStore) Create(_ context.Context, p *dds.ApplicationPermission) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	for _, existing := range ps.s.permissions {
		if existing.ApplicationID == p.ApplicationID && existing.TopicID == p.TopicID {
			return fmt.Errorf("%w: permission for topic %d", dds.ErrAlreadyExists, p.TopicID)
		}
	}
	p.ID = ps.s.allocID()
	ps.s.permissions[p.ID] = clonePermission(p)
	return nil
}

func (ps permissionStore) Find(_ context.Context, id int64) (*dds.ApplicationPermission, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()
	p, ok := ps.s.permissions[id]
	if !ok {
		return nil, notFound("permission", id)
	}
	return clonePermission(p), nil
}

func (ps permissionStore) ListByApplication(_ context.Context, applicationID int64) ([]*dds.ApplicationPermission, error) {
	ps.s.mu.RLock()
	defer ps.s.mu.RUnlock()
	var out []*dds.ApplicationPermission
	for _, p := range ps.s.permissions {
		if p.ApplicationID == applicationID {
			out = append(out, clonePermission(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (ps permissionStore) Delete(_ context.Context, id int64) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	if _, ok := ps.s.permissions[id]; !ok {
		return notFound("permission", id)
	}
	delete(ps.s.permissions, id)
	return nil
}

func (ps permissionStore) DeleteByApplication(_ context.Context, applicationID int64) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	for id, p := range ps.s.permissions {
		if p.ApplicationID == applicationID {
			delete(ps.s.permissions, id)
		}
	}
	return nil
}

// members

type memberStore struct{ s *Store }

func (ms memberStore) Upsert(_ context.Context, m *dds.GroupMember) error {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()
	if _, ok := ms.s.groups[m.GroupID]; !ok {
		return notFound("group", m.GroupID)
	}
	byUser, ok := ms.s.members[m.GroupID]
	if !ok {
		byUser = make(map[int64]*dds.GroupMember)
		ms.s.members[m.GroupID] = byUser
	}
	cp := *m
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	byUser[m.UserID] = &cp
	return nil
}

func (ms memberStore) Remove(_ context.Context, groupID, userID int64) error {
	ms.s.mu.Lock()
	defer ms.s.mu.Unlock()
	byUser, ok := ms.s.members[groupID]
	if !ok {
		return notFound("group", groupID)
	}
	if _, ok := byUser[userID]; !ok {
		return notFound("member", userID)
	}
	delete(byUser, userID)
	return nil
}

func (ms memberStore) Get(_ context.Context, groupID, userID int64) (*dds.GroupMember, error) {
	ms.s.mu.RLock()
	defer ms.s.mu.RUnlock()
	byUser, ok := ms.s.members[groupID]
	if !ok {
		return nil, notFound("member", userID)
	}
	m, ok := byUser[userID]
	if !ok {
		return nil, notFound("member", userID)
	}
	cp := *m
	return &cp, nil
}

func (ms memberStore) GroupsForUser(_ context.Context, userID int64) ([]int64, error) {
	ms.s.mu.RLock()
	defer ms.s.mu.RUnlock()
	var out []int64
	for groupID, byUser := range ms.s.members {
		if _, ok := byUser[userID]; ok {
			out = append(out, groupID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (ms memberStore) IsAdmin(_ context.Context, userID int64) (bool, error) {
	ms.s.mu.RLock()
	defer ms.s.mu.RUnlock()
	return ms.s.admins[userID], nil
}
