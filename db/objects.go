package db

import (
	"database/sql"

	"github.com/kibouhq/kibou/domain"
	"github.com/kibouhq/kibou/errs"
)

const objectColumns = `id, object_id, type, attributed_to, in_reply_to, data, created, modified`

func scanObject(row interface{ Scan(...any) error }) (*domain.Object, error) {
	var (
		o                 domain.Object
		data              string
		created, modified string
	)
	if err := row.Scan(&o.Id, &o.ObjectID, &o.Type, &o.AttributedTo, &o.InReplyTo, &data, &created, &modified); err != nil {
		return nil, err
	}
	o.Data = []byte(data)
	o.CreatedAt = parseTime(created)
	o.ModifiedAt = parseTime(modified)
	return &o, nil
}

// ObjectByID looks up a stored content document by its embedded id, used
// both by GET /objects/<uuid> and by reply/attributedTo resolution.
func (d *DB) ObjectByID(objectID string) (*domain.Object, error) {
	row := d.conn.QueryRow("SELECT "+objectColumns+" FROM objects WHERE object_id = ?", objectID)
	o, err := scanObject(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("object %s not found", objectID)
	}
	if err != nil {
		return nil, errs.Fatalf(err, "object_by_id")
	}
	return o, nil
}

// ObjectUpsert stores or replaces a content document by its object id. An
// object is immutable in spirit (spec 3) but re-delivery of the same
// Create must be idempotent, so this upserts rather than erroring.
func (d *DB) ObjectUpsert(o *domain.Object) (*domain.Object, error) {
	now := nowString()
	err := d.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO objects (object_id, type, attributed_to, in_reply_to, data, created, modified)
			VALUES (?,?,?,?,?,?,?)
			ON CONFLICT(object_id) DO UPDATE SET type=excluded.type, attributed_to=excluded.attributed_to,
				in_reply_to=excluded.in_reply_to, data=excluded.data, modified=excluded.modified`,
			o.ObjectID, o.Type, o.AttributedTo, o.InReplyTo, string(o.Data), now, now)
		return err
	})
	if err != nil {
		return nil, errs.Fatalf(err, "object_upsert")
	}
	return d.ObjectByID(o.ObjectID)
}
