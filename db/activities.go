package db

import (
	"database/sql"

	"github.com/kibouhq/kibou/domain"
	"github.com/kibouhq/kibou/errs"
)

const activityColumns = `id, data, actor_uri, local, created, modified`

func scanActivity(row interface{ Scan(...any) error }) (*domain.Activity, error) {
	var (
		act               domain.Activity
		data              string
		local             int
		created, modified string
	)
	if err := row.Scan(&act.Id, &data, &act.ActorURI, &local, &created, &modified); err != nil {
		return nil, err
	}
	act.Data = []byte(data)
	act.Local = local != 0
	act.CreatedAt = parseTime(created)
	act.ModifiedAt = parseTime(modified)
	return &act, nil
}

// ActivityByInternalID is `activity_by_internal_id`.
func (d *DB) ActivityByInternalID(id int64) (*domain.Activity, error) {
	row := d.conn.QueryRow("SELECT "+activityColumns+" FROM activities WHERE id = ?", id)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("activity id %d not found", id)
	}
	if err != nil {
		return nil, errs.Fatalf(err, "activity_by_internal_id")
	}
	return a, nil
}

// ActivityByActivityID is `activity_by_activity_id`: lookup by data->>'id'.
func (d *DB) ActivityByActivityID(activityID string) (*domain.Activity, error) {
	row := d.conn.QueryRow("SELECT "+activityColumns+` FROM activities WHERE json_extract(data, '$.id') = ?`, activityID)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("activity %s not found", activityID)
	}
	if err != nil {
		return nil, errs.Fatalf(err, "activity_by_activity_id")
	}
	return a, nil
}

// ActivityByObjectID is `activity_by_object_id`: lookup by
// data->object->>'id'.
func (d *DB) ActivityByObjectID(objectID string) (*domain.Activity, error) {
	row := d.conn.QueryRow("SELECT "+activityColumns+` FROM activities WHERE json_extract(data, '$.object.id') = ?`, objectID)
	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("activity for object %s not found", objectID)
	}
	if err != nil {
		return nil, errs.Fatalf(err, "activity_by_object_id")
	}
	return a, nil
}

// ActivityRepliesByObjectID is `activity_replies_by_object_id`: activities
// whose data->object->>'inReplyTo' equals objectID.
func (d *DB) ActivityRepliesByObjectID(objectID string) ([]*domain.Activity, error) {
	rows, err := d.conn.Query("SELECT "+activityColumns+` FROM activities WHERE json_extract(data, '$.object.inReplyTo') = ?`, objectID)
	if err != nil {
		return nil, errs.Fatalf(err, "activity_replies_by_object_id")
	}
	defer rows.Close()
	var out []*domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, errs.Fatalf(err, "activity_replies_by_object_id scan")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ActivityReactionsCount is `activity_reactions_count(object_id, type)`:
// count where data->>'type' = type AND data->>'object' = object_id, i.e.
// the bare object IRI that Like/Announce reactions carry. Activities that
// embed the object as a document are not counted.
func (d *DB) ActivityReactionsCount(objectID, activityType string) (int, error) {
	var count int
	err := d.conn.QueryRow(
		`SELECT COUNT(*) FROM activities WHERE json_extract(data, '$.type') = ? AND json_extract(data, '$.object') = ?`,
		activityType, objectID).Scan(&count)
	if err != nil {
		return 0, errs.Fatalf(err, "activity_reactions_count")
	}
	return count, nil
}

// ActivityInsert is `activity_insert`. Returns a Conflict error (treated as
// idempotent success by callers) when an activity with the same embedded id
// already exists.
func (d *DB) ActivityInsert(a *domain.Activity) (*domain.Activity, error) {
	if _, err := d.ActivityByActivityID(a.ActivityID); err == nil {
		return nil, errs.Conflictf("activity %s already stored", a.ActivityID)
	}
	now := nowString()
	localFlag := 0
	if a.Local {
		localFlag = 1
	}
	var id int64
	err := d.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`INSERT INTO activities (data, actor_uri, local, created, modified) VALUES (?,?,?,?,?)`,
			string(a.Data), a.ActorURI, localFlag, now, now)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, errs.Fatalf(err, "activity_insert")
	}
	a.Id = id
	a.CreatedAt = parseTime(now)
	a.ModifiedAt = parseTime(now)
	return a, nil
}

// ActivityDeleteByObjectID is `activity_delete_by_object_id`.
func (d *DB) ActivityDeleteByObjectID(objectID string) error {
	return d.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM activities WHERE json_extract(data, '$.object.id') = ?`, objectID)
		return err
	})
}

// CountLocalActors and CountLocalCreateNoteActivities back the nodeinfo
// usage block.
func (d *DB) CountLocalActors() (int, error) {
	var n int
	err := d.conn.QueryRow("SELECT COUNT(*) FROM actors WHERE local = 1").Scan(&n)
	return n, err
}

func (d *DB) CountLocalCreateNoteActivities() (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM activities WHERE local = 1 AND json_extract(data, '$.type') = 'Create' AND json_extract(data, '$.object.type') = 'Note'`).Scan(&n)
	return n, err
}
