package dds

import (
	"context"
	"sort"
	"time"
)

// PubSubEntry is one publish or subscribe rule in the aggregated model.
// Validity bounds come from the action's own interval; the document-level
// window computed by GrantValidity governs the artifact as a whole.
type PubSubEntry struct {
	Topics     []string  `json:"topics"`
	Partitions []string  `json:"partitions"`
	ValidStart time.Time `json:"valid_start"`
	ValidEnd   time.Time `json:"valid_end"`
}

// GrantPermissions is the canonical access model derived from an
// application's grants and direct permissions.
type GrantPermissions struct {
	ValidStart time.Time     `json:"valid_start"`
	ValidEnd   time.Time     `json:"valid_end"`
	Subscribes []PubSubEntry `json:"subscribes"`
	Publishes  []PubSubEntry `json:"publishes"`
}

// BuildGrantPermissions walks the application's grants, actions, topics and
// topic sets, plus its direct topic permissions, and produces the aggregated
// publish/subscribe model. Each action yields exactly one entry on the side
// selected by CanPublish; topics referenced both directly and through a
// topic set collapse to a single canonical name.
func BuildGrantPermissions(ctx context.Context, store Store, app *Application, now time.Time) (GrantPermissions, error) {
	grants, err := store.Grants().ListByApplication(ctx, app.ID)
	if err != nil {
		return GrantPermissions{}, err
	}

	durations := make(map[int64]GrantDuration, len(grants))
	for _, g := range grants {
		if _, ok := durations[g.DurationID]; ok {
			continue
		}
		d, err := store.Durations().Find(ctx, g.DurationID)
		if err != nil {
			return GrantPermissions{}, err
		}
		durations[g.DurationID] = *d
	}

	start, end := GrantValidity(now, grants, durations)
	out := GrantPermissions{ValidStart: start, ValidEnd: end}

	for _, g := range grants {
		actions, err := store.Actions().ListByGrant(ctx, g.ID)
		if err != nil {
			return GrantPermissions{}, err
		}
		for _, action := range actions {
			entry, err := buildActionEntry(ctx, store, action)
			if err != nil {
				return GrantPermissions{}, err
			}
			if action.CanPublish {
				out.Publishes = append(out.Publishes, entry)
			} else {
				out.Subscribes = append(out.Subscribes, entry)
			}
		}
	}

	// Direct topic permissions carry no interval of their own; they inherit
	// the document-level window.
	perms, err := store.Permissions().ListByApplication(ctx, app.ID)
	if err != nil {
		return GrantPermissions{}, err
	}
	for _, p := range perms {
		topic, err := store.Topics().Find(ctx, p.TopicID)
		if err != nil {
			return GrantPermissions{}, err
		}
		name := CanonicalName(topic.Kind, topic.GroupID, topic.Name)
		if p.canRead() {
			out.Subscribes = append(out.Subscribes, PubSubEntry{
				Topics:     []string{name},
				Partitions: append([]string(nil), p.ReadPartitions...),
				ValidStart: start,
				ValidEnd:   end,
			})
		}
		if p.canWrite() {
			out.Publishes = append(out.Publishes, PubSubEntry{
				Topics:     []string{name},
				Partitions: append([]string(nil), p.WritePartitions...),
				ValidStart: start,
				ValidEnd:   end,
			})
		}
	}

	return out, nil
}

func buildActionEntry(ctx context.Context, store Store, action *Action) (PubSubEntry, error) {
	interval, err := store.Intervals().Find(ctx, action.IntervalID)
	if err != nil {
		return PubSubEntry{}, err
	}

	seen := make(map[int64]struct{}, len(action.TopicIDs))
	ids := make([]int64, 0, len(action.TopicIDs))
	for _, id := range action.TopicIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, setID := range action.TopicSetIDs {
		members, err := store.TopicSets().TopicIDs(ctx, setID)
		if err != nil {
			return PubSubEntry{}, err
		}
		for _, id := range members {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	topics, err := store.Topics().FindMany(ctx, ids)
	if err != nil {
		return PubSubEntry{}, err
	}
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		names = append(names, CanonicalName(t.Kind, t.GroupID, t.Name))
	}
	sort.Strings(names)

	return PubSubEntry{
		Topics:     names,
		Partitions: append([]string(nil), action.Partitions...),
		ValidStart: interval.Start.UTC(),
		ValidEnd:   interval.End.UTC(),
	}, nil
}
