package db

import (
	"database/sql"

	"github.com/kibouhq/kibou/domain"
	"github.com/kibouhq/kibou/errs"
)

// NotificationInsert records that activityID raised a notification for the
// local actor actorID.
func (d *DB) NotificationInsert(n *domain.Notification) error {
	now := nowString()
	return d.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO notifications (actor_id, activity_id, kind, created) VALUES (?,?,?,?)`,
			n.ActorID, n.ActivityID, string(n.Kind), now)
		return err
	})
}

// NotificationsForActor lists the most recent notifications for a local actor.
func (d *DB) NotificationsForActor(actorID int64, limit int) ([]*domain.Notification, error) {
	rows, err := d.conn.Query(
		`SELECT id, actor_id, activity_id, kind, created FROM notifications WHERE actor_id = ? ORDER BY id DESC LIMIT ?`,
		actorID, limit)
	if err != nil {
		return nil, errs.Fatalf(err, "notifications_for_actor")
	}
	defer rows.Close()
	var out []*domain.Notification
	for rows.Next() {
		var n domain.Notification
		var kind, created string
		if err := rows.Scan(&n.Id, &n.ActorID, &n.ActivityID, &kind, &created); err != nil {
			return nil, errs.Fatalf(err, "notifications_for_actor scan")
		}
		n.Kind = domain.NotificationKind(kind)
		n.CreatedAt = parseTime(created)
		out = append(out, &n)
	}
	return out, rows.Err()
}
