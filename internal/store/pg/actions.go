package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/dds"
)

// Actions keep their topic, topic-set and partition lists in side tables so
// membership edits never rewrite the action row.

type actionStore struct{ s *Store }

func (as actionStore) Create(ctx context.Context, a *dds.Action) error {
	tx, err := as.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into actions (grant_id, interval_id, can_publish)
		values ($1, $2, $3)
		returning id, created_at, updated_at
	`, a.GrantID, a.IntervalID, a.CanPublish)
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return mapWriteErr(err)
	}
	if err := insertActionLists(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit()
}

func insertActionLists(ctx context.Context, tx *sql.Tx, a *dds.Action) error {
	for _, topicID := range a.TopicIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into action_topics (action_id, topic_id) values ($1, $2)
		`, a.ID, topicID); err != nil {
			return mapWriteErr(err)
		}
	}
	for _, setID := range a.TopicSetIDs {
		if _, err := tx.ExecContext(ctx, `
			insert into action_topic_sets (action_id, topic_set_id) values ($1, $2)
		`, a.ID, setID); err != nil {
			return mapWriteErr(err)
		}
	}
	for pos, partition := range a.Partitions {
		if _, err := tx.ExecContext(ctx, `
			insert into action_partitions (action_id, position, partition) values ($1, $2, $3)
		`, a.ID, pos, partition); err != nil {
			return mapWriteErr(err)
		}
	}
	return nil
}

func (as actionStore) Find(ctx context.Context, id int64) (*dds.Action, error) {
	var a dds.Action
	err := as.s.db.QueryRowContext(ctx, `
		select id, grant_id, interval_id, can_publish, created_at, updated_at
		from actions
		where id = $1
	`, id).Scan(&a.ID, &a.GrantID, &a.IntervalID, &a.CanPublish, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, mapRowErr(err)
	}
	if err := as.loadLists(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (as actionStore) loadLists(ctx context.Context, a *dds.Action) error {
	var err error
	a.TopicIDs, err = queryIDs(ctx, as.s.db, `
		select topic_id from action_topics where action_id = $1 order by topic_id
	`, a.ID)
	if err != nil {
		return err
	}
	a.TopicSetIDs, err = queryIDs(ctx, as.s.db, `
		select topic_set_id from action_topic_sets where action_id = $1 order by topic_set_id
	`, a.ID)
	if err != nil {
		return err
	}
	rows, err := as.s.db.QueryContext(ctx, `
		select partition from action_partitions where action_id = $1 order by position
	`, a.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return err
		}
		a.Partitions = append(a.Partitions, p)
	}
	return rows.Err()
}

func (as actionStore) ListByGrant(ctx context.Context, grantID int64) ([]*dds.Action, error) {
	rows, err := as.s.db.QueryContext(ctx, `
		select id, grant_id, interval_id, can_publish, created_at, updated_at
		from actions
		where grant_id = $1
		order by id
	`, grantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*dds.Action
	for rows.Next() {
		var a dds.Action
		if err := rows.Scan(&a.ID, &a.GrantID, &a.IntervalID, &a.CanPublish, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, a := range result {
		if err := as.loadLists(ctx, a); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (as actionStore) Update(ctx context.Context, a *dds.Action) error {
	tx, err := as.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update actions
		set interval_id = $2, can_publish = $3, updated_at = now()
		where id = $1
	`, a.ID, a.IntervalID, a.CanPublish)
	if err != nil {
		return mapWriteErr(err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	for _, table := range []string{"action_topics", "action_topic_sets", "action_partitions"} {
		if _, err := tx.ExecContext(ctx, `delete from `+table+` where action_id = $1`, a.ID); err != nil {
			return err
		}
	}
	if err := insertActionLists(ctx, tx, a); err != nil {
		return err
	}
	return tx.Commit()
}

func (as actionStore) Delete(ctx context.Context, id int64) error {
	res, err := as.s.db.ExecContext(ctx, `delete from actions where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (as actionStore) DeleteByGrant(ctx context.Context, grantID int64) error {
	_, err := as.s.db.ExecContext(ctx, `delete from actions where grant_id = $1`, grantID)
	return err
}

// permissions

type permissionStore struct{ s *Store }

func (ps permissionStore) Create(ctx context.Context, p *dds.ApplicationPermission) error {
	tx, err := ps.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		insert into application_permissions (application_id, topic_id, access)
		values ($1, $2, $3)
		returning id, created_at
	`, p.ApplicationID, p.TopicID, string(p.Access))
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return mapWriteErr(err)
	}
	for _, ins := range []struct {
		kind       string
		partitions []string
	}{
		{"read", p.ReadPartitions},
		{"write", p.WritePartitions},
	} {
		for pos, partition := range ins.partitions {
			if _, err := tx.ExecContext(ctx, `
				insert into permission_partitions (permission_id, kind, position, partition)
				values ($1, $2, $3, $4)
			`, p.ID, ins.kind, pos, partition); err != nil {
				return mapWriteErr(err)
			}
		}
	}
	return tx.Commit()
}

func (ps permissionStore) Find(ctx context.Context, id int64) (*dds.ApplicationPermission, error) {
	var (
		p      dds.ApplicationPermission
		access string
	)
	err := ps.s.db.QueryRowContext(ctx, `
		select id, application_id, topic_id, access, created_at
		from application_permissions
		where id = $1
	`, id).Scan(&p.ID, &p.ApplicationID, &p.TopicID, &access, &p.CreatedAt)
	if err != nil {
		return nil, mapRowErr(err)
	}
	p.Access = dds.AccessType(access)
	if err := ps.loadPartitions(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (ps permissionStore) loadPartitions(ctx context.Context, p *dds.ApplicationPermission) error {
	rows, err := ps.s.db.QueryContext(ctx, `
		select kind, partition from permission_partitions
		where permission_id = $1
		order by kind, position
	`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var kind, partition string
		if err := rows.Scan(&kind, &partition); err != nil {
			return err
		}
		if kind == "read" {
			p.ReadPartitions = append(p.ReadPartitions, partition)
		} else {
			p.WritePartitions = append(p.WritePartitions, partition)
		}
	}
	return rows.Err()
}

func (ps permissionStore) ListByApplication(ctx context.Context, applicationID int64) ([]*dds.ApplicationPermission, error) {
	rows, err := ps.s.db.QueryContext(ctx, `
		select id, application_id, topic_id, access, created_at
		from application_permissions
		where application_id = $1
		order by id
	`, applicationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*dds.ApplicationPermission
	for rows.Next() {
		var (
			p      dds.ApplicationPermission
			access string
		)
		if err := rows.Scan(&p.ID, &p.ApplicationID, &p.TopicID, &access, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Access = dds.AccessType(access)
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, p := range result {
		if err := ps.loadPartitions(ctx, p); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (ps permissionStore) Delete(ctx context.Context, id int64) error {
	res, err := ps.s.db.ExecContext(ctx, `delete from application_permissions where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (ps permissionStore) DeleteByApplication(ctx context.Context, applicationID int64) error {
	_, err := ps.s.db.ExecContext(ctx, `
		delete from application_permissions where application_id = $1
	`, applicationID)
	return err
}

// members

type memberStore struct{ s *Store }

func (ms memberStore) Upsert(ctx context.Context, m *dds.GroupMember) error {
	row := ms.s.db.QueryRowContext(ctx, `
		insert into group_members (group_id, user_id, email, topic_admin, application_admin)
		values ($1, $2, $3, $4, $5)
		on conflict (group_id, user_id) do update
		set email = excluded.email,
		    topic_admin = excluded.topic_admin,
		    application_admin = excluded.application_admin
		returning created_at
	`, m.GroupID, m.UserID, m.Email, m.TopicAdmin, m.ApplicationAdmin)
	if err := row.Scan(&m.CreatedAt); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (ms memberStore) Remove(ctx context.Context, groupID, userID int64) error {
	res, err := ms.s.db.ExecContext(ctx, `
		delete from group_members where group_id = $1 and user_id = $2
	`, groupID, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (ms memberStore) Get(ctx context.Context, groupID, userID int64) (*dds.GroupMember, error) {
	var m dds.GroupMember
	err := ms.s.db.QueryRowContext(ctx, `
		select group_id, user_id, email, topic_admin, application_admin, created_at
		from group_members
		where group_id = $1 and user_id = $2
	`, groupID, userID).Scan(&m.GroupID, &m.UserID, &m.Email, &m.TopicAdmin, &m.ApplicationAdmin, &m.CreatedAt)
	if err != nil {
		return nil, mapRowErr(err)
	}
	return &m, nil
}

func (ms memberStore) GroupsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return queryIDs(ctx, ms.s.db, `
		select group_id from group_members where user_id = $1 order by group_id
	`, userID)
}

func (ms memberStore) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var one int
	err := ms.s.db.QueryRowContext(ctx, `
		select 1 from admin_users where user_id = $1
	`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func queryIDs(ctx context.Context, db *sql.DB, query string, arg any) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query, arg)
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
