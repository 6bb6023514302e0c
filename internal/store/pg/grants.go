package pg

import (
	"context"
	"database/sql"

	"github.com/OpenDDS/DDSPermissionsManager-sub002/internal/dds"
)

// durations

type durationStore struct{ s *Store }

func (ds durationStore) Create(ctx context.Context, d *dds.GrantDuration) error {
	row := ds.s.db.QueryRowContext(ctx, `
		insert into grant_durations (group_id, name, duration_ms, metadata)
		values ($1, $2, $3, $4)
		returning id, created_at, updated_at
	`, d.GroupID, d.Name, d.DurationMillis, nullIfEmpty(d.Metadata))
	if err := row.Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (ds durationStore) Find(ctx context.Context, id int64) (*dds.GrantDuration, error) {
	var (
		d    dds.GrantDuration
		meta sql.NullString
	)
	err := ds.s.db.QueryRowContext(ctx, `
		select id, group_id, name, duration_ms, metadata, created_at, updated_at
		from grant_durations
		where id = $1
	`, id).Scan(&d.ID, &d.GroupID, &d.Name, &d.DurationMillis, &meta, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, mapRowErr(err)
	}
	if meta.Valid {
		d.Metadata = meta.String
	}
	return &d, nil
}

func (ds durationStore) ListByGroup(ctx context.Context, groupID int64) ([]*dds.GrantDuration, error) {
	rows, err := ds.s.db.QueryContext(ctx, `
		select id, group_id, name, duration_ms, metadata, created_at, updated_at
		from grant_durations
		where group_id = $1
		order by name
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*dds.GrantDuration
	for rows.Next() {
		var (
			d    dds.GrantDuration
			meta sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.GroupID, &d.Name, &d.DurationMillis, &meta, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if meta.Valid {
			d.Metadata = meta.String
		}
		result = append(result, &d)
	}
	return result, rows.Err()
}

func (ds durationStore) Delete(ctx context.Context, id int64) error {
	res, err := ds.s.db.ExecContext(ctx, `delete from grant_durations where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// grants

type grantStore struct{ s *Store }

func (gs grantStore) Create(ctx context.Context, g *dds.ApplicationGrant) error {
	row := gs.s.db.QueryRowContext(ctx, `
		insert into application_grants (name, application_id, group_id, duration_id)
		values ($1, $2, $3, $4)
		returning id, created_at, updated_at
	`, g.Name, g.ApplicationID, g.GroupID, g.DurationID)
	if err := row.Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

const grantColumns = `id, name, application_id, group_id, duration_id, created_at, updated_at`

func scanGrant(row interface{ Scan(...any) error }) (*dds.ApplicationGrant, error) {
	var g dds.ApplicationGrant
	err := row.Scan(&g.ID, &g.Name, &g.ApplicationID, &g.GroupID, &g.DurationID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (gs grantStore) Find(ctx context.Context, id int64) (*dds.ApplicationGrant, error) {
	g, err := scanGrant(gs.s.db.QueryRowContext(ctx, `
		select `+grantColumns+` from application_grants where id = $1
	`, id))
	if err != nil {
		return nil, mapRowErr(err)
	}
	return g, nil
}

func (gs grantStore) FindByName(ctx context.Context, groupID int64, name string) (*dds.ApplicationGrant, error) {
	g, err := scanGrant(gs.s.db.QueryRowContext(ctx, `
		select `+grantColumns+` from application_grants
		where group_id = $1 and name = $2
	`, groupID, name))
	if err != nil {
		return nil, mapRowErr(err)
	}
	return g, nil
}

func (gs grantStore) listWhere(ctx context.Context, where string, arg any) ([]*dds.ApplicationGrant, error) {
	rows, err := gs.s.db.QueryContext(ctx, `
		select `+grantColumns+` from application_grants
		where `+where+`
		order by name
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*dds.ApplicationGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

func (gs grantStore) ListByApplication(ctx context.Context, applicationID int64) ([]*dds.ApplicationGrant, error) {
	return gs.listWhere(ctx, "application_id = $1", applicationID)
}

func (gs grantStore) ListByGroup(ctx context.Context, groupID int64) ([]*dds.ApplicationGrant, error) {
	return gs.listWhere(ctx, "group_id = $1", groupID)
}

func (gs grantStore) Update(ctx context.Context, g *dds.ApplicationGrant) error {
	res, err := gs.s.db.ExecContext(ctx, `
		update application_grants
		set name = $2, duration_id = $3, updated_at = now()
		where id = $1
	`, g.ID, g.Name, g.DurationID)
	if err != nil {
		return mapWriteErr(err)
	}
	return requireAffected(res)
}

func (gs grantStore) Delete(ctx context.Context, id int64) error {
	res, err := gs.s.db.ExecContext(ctx, `delete from application_grants where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (gs grantStore) DeleteByApplication(ctx context.Context, applicationID int64) error {
	_, err := gs.s.db.ExecContext(ctx, `
		delete from application_grants where application_id = $1
	`, applicationID)
	return err
}

func (gs grantStore) CountByDuration(ctx context.Context, durationID int64) (int, error) {
	var count int
	err := gs.s.db.QueryRowContext(ctx, `
		select count(*) from application_grants where duration_id = $1
	`, durationID).Scan(&count)
	return count, err
}

// intervals

type intervalStore struct{ s *Store }

func (is intervalStore) Create(ctx context.Context, i *dds.ActionInterval) error {
	row := is.s.db.QueryRowContext(ctx, `
		insert into action_intervals (group_id, name, start_ts, end_ts)
		values ($1, $2, $3, $4)
		returning id, created_at, updated_at
	`, i.GroupID, i.Name, i.Start, i.End)
	if err := row.Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return mapWriteErr(err)
	}
	return nil
}

func (is intervalStore) Find(ctx context.Context, id int64) (*dds.ActionInterval, error) {
	var i dds.ActionInterval
	err := is.s.db.QueryRowContext(ctx, `
		select id, group_id, name, start_ts, end_ts, created_at, updated_at
		from action_intervals
		where id = $1
	`, id).Scan(&i.ID, &i.GroupID, &i.Name, &i.Start, &i.End, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, mapRowErr(err)
	}
	return &i, nil
}

func (is intervalStore) ListByGroup(ctx context.Context, groupID int64) ([]*dds.ActionInterval, error) {
	rows, err := is.s.db.QueryContext(ctx, `
		select id, group_id, name, start_ts, end_ts, created_at, updated_at
		from action_intervals
		where group_id = $1
		order by name
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*dds.ActionInterval
	for rows.Next() {
		var i dds.ActionInterval
		if err := rows.Scan(&i.ID, &i.GroupID, &i.Name, &i.Start, &i.End, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &i)
	}
	return result, rows.Err()
}

func (is intervalStore) Update(ctx context.Context, i *dds.ActionInterval) error {
	res, err := is.s.db.ExecContext(ctx, `
		update action_intervals
		set name = $2, start_ts = $3, end_ts = $4, updated_at = now()
		where id = $1
	`, i.ID, i.Name, i.Start, i.End)
	if err != nil {
		return mapWriteErr(err)
	}
	return requireAffected(res)
}

func (is intervalStore) Delete(ctx context.Context, id int64) error {
	res, err := is.s.db.ExecContext(ctx, `delete from action_intervals where id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}
