package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/dds"
)

// groups

type groupStore struct{ s *Store }

func (gs groupStore) Create(ctx context.Context, g *dds.Group) error {
	row := gs.s.db.QueryRowContext(ctx, `
		insert into groups (name, public)
		values ($1, $2)
		returning id, created_at, updated_at
	`, g.Name, g.Public)
	if err := row.Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (gs groupStore) Find(ctx context.Context, id int64) (*dds.Group, error) {
	var g dds.Group
	err := gs.s.db.QueryRowContext(ctx, `
		select id, name, public, created_at, updated_at
		from groups
		where id = $1
	`, id).Scan(&g.ID, &g.Name, &g.Public, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, mapRowErr(err)
	}
	return &g, nil
}

func (gs groupStore) List(ctx context.Context) ([]*dds.Group, error) {
	rows, err := gs.s.db.QueryContext(ctx, `
		select id, name, public, created_at, updated_at
		from groups
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*dds.Group
	for rows.Next() {
		var g dds.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Public, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &g)
	}
	return result, rows.Err()
}

func (gs groupStore) Update(ctx context.Context, g *dds.Group) error {
	res, err := gs.s.db.ExecContext(ctx, `
		update groups set name = $2, public = $3, updated_at = now()
		where id = $1
	`, g.ID, g.Name, g.Public)
	if err != nil {
		return mapWriteErr(err)
	}
	return requireAffected(res)
}

func (gs groupStore) Delete(ctx context.Context, id int64) error {
	res, err := gs.s.db.ExecContext(ctx, `delete from groups where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// applications

type applicationStore struct{ s *Store }

func (as applicationStore) Create(ctx context.Context, a *dds.Application) error {
	row := as.s.db.QueryRowContext(ctx, `
		insert into applications (group_id, name, description, public, passphrase_hash)
		values ($1, $2, $3, $4, $5)
		returning id, created_at, updated_at
	`, a.GroupID, a.Name, nullIfEmpty(a.Description), a.Public, a.PassphraseHash)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (as applicationStore) Find(ctx context.Context, id int64) (*dds.Application, error) {
	var (
		a    dds.Application
		desc sql.NullString
	)
	err := as.s.db.QueryRowContext(ctx, `
		select id, group_id, name, description, public, passphrase_hash, created_at, updated_at
		from applications
		where id = $1
	`, id).Scan(&a.ID, &a.GroupID, &a.Name, &desc, &a.Public, &a.PassphraseHash, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapRowErr(err)
	}
	if desc.Valid {
		a.Description = desc.String
	}
	return &a, nil
}

func (as applicationStore) ListByGroup(ctx context.Context, groupID int64) ([]*dds.Application, error) {
	rows, err := as.s.db.QueryContext(ctx, `
		select id, group_id, name, description, public, passphrase_hash, created_at, updated_at
		from applications
		where group_id = $1
		order by name
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*dds.Application
	for rows.Next() {
		var (
			a    dds.Application
			desc sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.GroupID, &a.Name, &desc, &a.Public, &a.PassphraseHash, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if desc.Valid {
			a.Description = desc.String
		}
		result = append(result, &a)
	}
	return result, rows.Err()
}

func (as applicationStore) Update(ctx context.Context, a *dds.Application) error {
	res, err := as.s.db.ExecContext(ctx, `
		update applications
		set name = $2, description = $3, public = $4, passphrase_hash = $5, updated_at = now()
		where id = $1
	`, a.ID, a.Name, nullIfEmpty(a.Description), a.Public, a.PassphraseHash)
	if err != nil {
		return mapWriteErr(err)
	}
	return requireAffected(res)
}

func (as applicationStore) Delete(ctx context.Context, id int64) error {
	res, err := as.s.db.ExecContext(ctx, `delete from applications where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// topics

type topicStore struct{ s *Store }

func (ts topicStore) Create(ctx context.Context, t *dds.Topic) error {
	row := ts.s.db.QueryRowContext(ctx, `
		insert into topics (group_id, kind, name, description, public)
		values ($1, $2, $3, $4, $5)
		returning id, created_at, updated_at
	`, t.GroupID, string(t.Kind), t.Name, nullIfEmpty(t.Description), t.Public)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (ts topicStore) Find(ctx context.Context, id int64) (*dds.Topic, error) {
	var (
		t    dds.Topic
		kind string
		desc sql.NullString
	)
	err := ts.s.db.QueryRowContext(ctx, `
		select id, group_id, kind, name, description, public, created_at, updated_at
		from topics
		where id = $1
	`, id).Scan(&t.ID, &t.GroupID, &kind, &t.Name, &desc, &t.Public, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapRowErr(err)
	}
	t.Kind = dds.TopicKind(kind)
	if desc.Valid {
		t.Description = desc.String
	}
	return &t, nil
}

func (ts topicStore) FindMany(ctx context.Context, ids []int64) ([]*dds.Topic, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	rows, err := ts.s.db.QueryContext(ctx, fmt.Sprintf(`
		select id, group_id, kind, name, description, public, created_at, updated_at
		from topics
		where id in (%s)
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[int64]*dds.Topic, len(ids))
	for rows.Next() {
		var (
			t    dds.Topic
			kind string
			desc sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.GroupID, &kind, &t.Name, &desc, &t.Public, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Kind = dds.TopicKind(kind)
		if desc.Valid {
			t.Description = desc.String
		}
		found[t.ID] = &t
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result := make([]*dds.Topic, 0, len(ids))
	for _, id := range ids {
		t, ok := found[id]
		if !ok {
			return nil, fmt.Errorf("%w: topic %d", dds.ErrNotFound, id)
		}
		result = append(result, t)
	}
	return result, nil
}

func (ts topicStore) ListByGroup(ctx context.Context, groupID int64) ([]*dds.Topic, error) {
	rows, err := ts.s.db.QueryContext(ctx, `
		select id, group_id, kind, name, description, public, created_at, updated_at
		from topics
		where group_id = $1
		order by name
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*dds.Topic
	for rows.Next() {
		var (
			t    dds.Topic
			kind string
			desc sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.GroupID, &kind, &t.Name, &desc, &t.Public, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.Kind = dds.TopicKind(kind)
		if desc.Valid {
			t.Description = desc.String
		}
		result = append(result, &t)
	}
	return result, rows.Err()
}

func (ts topicStore) Update(ctx context.Context, t *dds.Topic) error {
	// Name, kind and group are immutable; only metadata changes.
	res, err := ts.s.db.ExecContext(ctx, `
		update topics set description = $2, public = $3, updated_at = now()
		where id = $1
	`, t.ID, nullIfEmpty(t.Description), t.Public)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (ts topicStore) Delete(ctx context.Context, id int64) error {
	res, err := ts.s.db.ExecContext(ctx, `delete from topics where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// topic sets

type topicSetStore struct{ s *Store }

func (ts topicSetStore) Create(ctx context.Context, set *dds.TopicSet) error {
	row := ts.s.db.QueryRowContext(ctx, `
		insert into topic_sets (group_id, name)
		values ($1, $2)
		returning id, created_at, updated_at
	`, set.GroupID, set.Name)
	if err := row.Scan(&set.ID, &set.CreatedAt, &set.UpdatedAt); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (ts topicSetStore) Find(ctx context.Context, id int64) (*dds.TopicSet, error) {
	var set dds.TopicSet
	err := ts.s.db.QueryRowContext(ctx, `
		select id, group_id, name, created_at, updated_at
		from topic_sets
		where id = $1
	`, id).Scan(&set.ID, &set.GroupID, &set.Name, &set.CreatedAt, &set.UpdatedAt)
	if err != nil {
		return nil, mapRowErr(err)
	}
	return &set, nil
}

func (ts topicSetStore) Delete(ctx context.Context, id int64) error {
	res, err := ts.s.db.ExecContext(ctx, `delete from topic_sets where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (ts topicSetStore) AddTopic(ctx context.Context, setID, topicID int64) error {
	_, err := ts.s.db.ExecContext(ctx, `
		insert into topic_set_topics (topic_set_id, topic_id)
		values ($1, $2)
		on conflict do nothing
	`, setID, topicID)
	return mapWriteErr(err)
}

func (ts topicSetStore) RemoveTopic(ctx context.Context, setID, topicID int64) error {
	_, err := ts.s.db.ExecContext(ctx, `
		delete from topic_set_topics
		where topic_set_id = $1 and topic_id = $2
	`, setID, topicID)
	return err
}

func (ts topicSetStore) TopicIDs(ctx context.Context, setID int64) ([]int64, error) {
	rows, err := ts.s.db.QueryContext(ctx, `
		select topic_id from topic_set_topics
		where topic_set_id = $1
		order by topic_id
	`, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func requireAffected(res sql.Result) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return dds.ErrNotFound
	}
	return nil
}
