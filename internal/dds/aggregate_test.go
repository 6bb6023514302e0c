package dds_test

import (
	"context"
	"testing"
	"time"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/dds"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/store/memory"
)

// fixture builds a group with topics, a set, a duration, an interval, an
// application and one grant, returning the ids needed by aggregation tests.
type fixture struct {
	store    *memory.Store
	group    *dds.Group
	app      *dds.Application
	grant    *dds.ApplicationGrant
	interval *dds.ActionInterval
	topicA   *dds.Topic
	topicB   *dds.Topic
	set      *dds.TopicSet
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	group := &dds.Group{Name: "fleet"}
	if err := store.Groups().Create(ctx, group); err != nil {
		t.Fatalf("create group: %v", err)
	}
	app := &dds.Application{GroupID: group.ID, Name: "sensor"}
	if err := store.Applications().Create(ctx, app); err != nil {
		t.Fatalf("create application: %v", err)
	}
	topicA := &dds.Topic{GroupID: group.ID, Kind: dds.KindBestEffort, Name: "Telemetry"}
	if err := store.Topics().Create(ctx, topicA); err != nil {
		t.Fatalf("create topic: %v", err)
	}
	topicB := &dds.Topic{GroupID: group.ID, Kind: dds.KindReliable, Name: "Commands"}
	if err := store.Topics().Create(ctx, topicB); err != nil {
		t.Fatalf("create topic: %v", err)
	}
	set := &dds.TopicSet{GroupID: group.ID, Name: "all"}
	if err := store.TopicSets().Create(ctx, set); err != nil {
		t.Fatalf("create topic set: %v", err)
	}
	for _, topic := range []*dds.Topic{topicA, topicB} {
		if err := store.TopicSets().AddTopic(ctx, set.ID, topic.ID); err != nil {
			t.Fatalf("add topic to set: %v", err)
		}
	}
	duration := &dds.GrantDuration{GroupID: group.ID, Name: "hour", DurationMillis: 3_600_000}
	if err := store.Durations().Create(ctx, duration); err != nil {
		t.Fatalf("create duration: %v", err)
	}
	interval := &dds.ActionInterval{
		GroupID: group.ID,
		Name:    "june",
		Start:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := store.Intervals().Create(ctx, interval); err != nil {
		t.Fatalf("create interval: %v", err)
	}
	grant := &dds.ApplicationGrant{
		Name:          "telemetry-grant",
		ApplicationID: app.ID,
		GroupID:       group.ID,
		DurationID:    duration.ID,
	}
	if err := store.Grants().Create(ctx, grant); err != nil {
		t.Fatalf("create grant: %v", err)
	}

	return &fixture{
		store:    store,
		group:    group,
		app:      app,
		grant:    grant,
		interval: interval,
		topicA:   topicA,
		topicB:   topicB,
		set:      set,
	}
}

func TestBuildGrantPermissionsDeduplicatesTopics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// topicA both directly and through the set covering topicA and topicB.
	action := &dds.Action{
		GrantID:     f.grant.ID,
		IntervalID:  f.interval.ID,
		CanPublish:  false,
		TopicIDs:    []int64{f.topicA.ID},
		TopicSetIDs: []int64{f.set.ID},
		Partitions:  []string{"east*"},
	}
	if err := f.store.Actions().Create(ctx, action); err != nil {
		t.Fatalf("create action: %v", err)
	}

	perms, err := dds.BuildGrantPermissions(ctx, f.store, f.app, time.Now())
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(perms.Publishes) != 0 {
		t.Fatalf("subscribe action must not produce publish entries")
	}
	if len(perms.Subscribes) != 1 {
		t.Fatalf("want 1 subscribe entry, got %d", len(perms.Subscribes))
	}
	entry := perms.Subscribes[0]
	if len(entry.Topics) != 2 {
		t.Fatalf("want 2 deduplicated topics, got %v", entry.Topics)
	}
	wantA := dds.CanonicalName(f.topicA.Kind, f.group.ID, f.topicA.Name)
	wantB := dds.CanonicalName(f.topicB.Kind, f.group.ID, f.topicB.Name)
	if entry.Topics[0] != wantA || entry.Topics[1] != wantB {
		t.Fatalf("topics = %v, want [%s %s]", entry.Topics, wantA, wantB)
	}
	if !entry.ValidStart.Equal(f.interval.Start) || !entry.ValidEnd.Equal(f.interval.End) {
		t.Fatalf("entry validity must come from the action interval")
	}
}

func TestBuildGrantPermissionsPublishSide(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	action := &dds.Action{
		GrantID:    f.grant.ID,
		IntervalID: f.interval.ID,
		CanPublish: true,
		TopicIDs:   []int64{f.topicB.ID},
	}
	if err := f.store.Actions().Create(ctx, action); err != nil {
		t.Fatalf("create action: %v", err)
	}

	perms, err := dds.BuildGrantPermissions(ctx, f.store, f.app, time.Now())
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(perms.Subscribes) != 0 || len(perms.Publishes) != 1 {
		t.Fatalf("want publish-only, got %d subscribes %d publishes",
			len(perms.Subscribes), len(perms.Publishes))
	}
}

func TestBuildGrantPermissionsDirectPermissions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	perm := &dds.ApplicationPermission{
		ApplicationID:   f.app.ID,
		TopicID:         f.topicA.ID,
		Access:          dds.AccessReadWrite,
		ReadPartitions:  []string{"r*"},
		WritePartitions: []string{"w*"},
	}
	if err := f.store.Permissions().Create(ctx, perm); err != nil {
		t.Fatalf("create permission: %v", err)
	}

	now := time.Now()
	perms, err := dds.BuildGrantPermissions(ctx, f.store, f.app, now)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(perms.Subscribes) != 1 || len(perms.Publishes) != 1 {
		t.Fatalf("read_write must land on both sides, got %d/%d",
			len(perms.Subscribes), len(perms.Publishes))
	}
	sub, pub := perms.Subscribes[0], perms.Publishes[0]
	if sub.Partitions[0] != "r*" || pub.Partitions[0] != "w*" {
		t.Fatalf("read/write partition sets must stay separate: %v / %v",
			sub.Partitions, pub.Partitions)
	}
	// Direct permissions inherit the document-level window.
	if !sub.ValidStart.Equal(perms.ValidStart) || !sub.ValidEnd.Equal(perms.ValidEnd) {
		t.Fatalf("direct permission validity must match the document window")
	}
}

func TestBuildGrantPermissionsWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	perms, err := dds.BuildGrantPermissions(ctx, f.store, f.app, now)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	wantStart := now.Add(-dds.ClockSkewBuffer)
	if !perms.ValidStart.Equal(wantStart) {
		t.Fatalf("window start = %v, want %v", perms.ValidStart, wantStart)
	}
	if got := perms.ValidEnd.Sub(perms.ValidStart); got != time.Hour {
		t.Fatalf("window length = %v, want 1h", got)
	}
}
