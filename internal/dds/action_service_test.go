package dds_test

import (
	"context"
	"errors"
	"testing"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/authz"
	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/dds"
)

func newActionService(t *testing.T, f *fixture) *dds.ActionService {
	t.Helper()
	gate, err := authz.NewGate(dds.NewMembership(f.store.Members()))
	if err != nil {
		t.Fatalf("build gate: %v", err)
	}
	svc, err := dds.NewActionService(f.store, gate)
	if err != nil {
		t.Fatalf("build action service: %v", err)
	}
	return svc
}

func TestActionServiceCreate(t *testing.T) {
	ctx := adminCtx()
	f := newFixture(t)
	svc := newActionService(t, f)

	action, err := svc.Create(ctx, dds.CreateActionRequest{
		GrantID:    f.grant.ID,
		IntervalID: f.interval.ID,
		CanPublish: true,
		TopicIDs:   []int64{f.topicA.ID},
		Partitions: []string{"east*"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if action.ID == 0 || !action.CanPublish {
		t.Fatalf("action not populated: %+v", action)
	}
}

func TestActionServiceCrossGroupInterval(t *testing.T) {
	ctx := adminCtx()
	f := newFixture(t)
	svc := newActionService(t, f)

	other := &dds.Group{Name: "other"}
	if err := f.store.Groups().Create(ctx, other); err != nil {
		t.Fatalf("create group: %v", err)
	}
	foreign := &dds.ActionInterval{
		GroupID: other.ID,
		Name:    "june",
		Start:   f.interval.Start,
		End:     f.interval.End,
	}
	if err := f.store.Intervals().Create(ctx, foreign); err != nil {
		t.Fatalf("create interval: %v", err)
	}

	_, err := svc.Create(ctx, dds.CreateActionRequest{
		GrantID:    f.grant.ID,
		IntervalID: foreign.ID,
		TopicIDs:   []int64{f.topicA.ID},
	})
	if !errors.Is(err, dds.ErrInvalidAssociation) {
		t.Fatalf("want ErrInvalidAssociation, got %v", err)
	}
}

func TestActionServiceUpdatePartial(t *testing.T) {
	ctx := adminCtx()
	f := newFixture(t)
	svc := newActionService(t, f)

	action, err := svc.Create(ctx, dds.CreateActionRequest{
		GrantID:    f.grant.ID,
		IntervalID: f.interval.ID,
		TopicIDs:   []int64{f.topicA.ID},
		Partitions: []string{"p1"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Nil slices leave the stored values alone.
	canPublish := true
	updated, err := svc.Update(ctx, action.ID, dds.UpdateActionRequest{CanPublish: &canPublish})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.CanPublish {
		t.Fatalf("can_publish not applied")
	}
	if len(updated.TopicIDs) != 1 || len(updated.Partitions) != 1 {
		t.Fatalf("unset fields must survive: %+v", updated)
	}

	// An empty non-nil slice clears.
	updated, err = svc.Update(ctx, action.ID, dds.UpdateActionRequest{Partitions: []string{}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(updated.Partitions) != 0 {
		t.Fatalf("empty slice must clear partitions: %+v", updated.Partitions)
	}
}

func TestPermissionServiceAccessValidation(t *testing.T) {
	ctx := adminCtx()
	f := newFixture(t)
	gate, err := authz.NewGate(dds.NewMembership(f.store.Members()))
	if err != nil {
		t.Fatalf("build gate: %v", err)
	}
	svc, err := dds.NewPermissionService(f.store, gate)
	if err != nil {
		t.Fatalf("build permission service: %v", err)
	}

	_, err = svc.AddAccess(ctx, f.app.ID, dds.AddAccessRequest{
		TopicID: f.topicA.ID,
		Access:  "admin",
	})
	if !errors.Is(err, dds.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput for bad access, got %v", err)
	}

	perm, err := svc.AddAccess(ctx, f.app.ID, dds.AddAccessRequest{
		TopicID:        f.topicA.ID,
		Access:         dds.AccessRead,
		ReadPartitions: []string{"r*"},
	})
	if err != nil {
		t.Fatalf("add access: %v", err)
	}
	if perm.Access != dds.AccessRead {
		t.Fatalf("permission = %+v", perm)
	}

	// Second permission for the same pair conflicts.
	_, err = svc.AddAccess(ctx, f.app.ID, dds.AddAccessRequest{
		TopicID: f.topicA.ID,
		Access:  dds.AccessWrite,
	})
	if !errors.Is(err, dds.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}
}

func TestPermissionServiceListPublicApplication(t *testing.T) {
	ctx := adminCtx()
	f := newFixture(t)
	gate, err := authz.NewGate(dds.NewMembership(f.store.Members()))
	if err != nil {
		t.Fatalf("build gate: %v", err)
	}
	svc, err := dds.NewPermissionService(f.store, gate)
	if err != nil {
		t.Fatalf("build permission service: %v", err)
	}
	if _, err := svc.AddAccess(ctx, f.app.ID, dds.AddAccessRequest{
		TopicID: f.topicA.ID,
		Access:  dds.AccessRead,
	}); err != nil {
		t.Fatalf("add access: %v", err)
	}

	anon := context.Background()
	if _, err := svc.ListByApplication(anon, f.app.ID); !errors.Is(err, authz.ErrUnauthorized) {
		t.Fatalf("private application must require membership, got %v", err)
	}

	// Application and group must both opt in before anonymous reads pass.
	f.app.Public = true
	if err := f.store.Applications().Update(ctx, f.app); err != nil {
		t.Fatalf("update application: %v", err)
	}
	if _, err := svc.ListByApplication(anon, f.app.ID); !errors.Is(err, authz.ErrUnauthorized) {
		t.Fatalf("public application in a private group must stay hidden, got %v", err)
	}

	f.group.Public = true
	if err := f.store.Groups().Update(ctx, f.group); err != nil {
		t.Fatalf("update group: %v", err)
	}
	perms, err := svc.ListByApplication(anon, f.app.ID)
	if err != nil {
		t.Fatalf("public application: %v", err)
	}
	if len(perms) != 1 {
		t.Fatalf("permissions = %+v", perms)
	}
}
