package db

import (
	"database/sql"
	"encoding/json"

	"github.com/kibouhq/kibou/domain"
	"github.com/kibouhq/kibou/errs"
	"github.com/kibouhq/kibou/util"
)

func scanActor(row interface{ Scan(...any) error }) (*domain.Actor, error) {
	var (
		a                                                      domain.Actor
		local                                                  int
		followersJSON, created, modified                       string
	)
	if err := row.Scan(&a.Id, &a.URI, &a.PreferredUsername, &local, &a.DisplayName,
		&a.Summary, &a.IconURL, &a.Inbox, &a.Keys.PublicKeyPem, &a.Keys.PrivateKeyPem,
		&a.Email, &a.PasswordHash, &followersJSON, &created, &modified); err != nil {
		return nil, err
	}
	a.Local = local != 0
	a.CreatedAt = parseTime(created)
	a.ModifiedAt = parseTime(modified)
	if err := json.Unmarshal([]byte(followersJSON), &a.Followers); err != nil {
		a.Followers = nil
	}
	return &a, nil
}

const actorColumns = `id, uri, preferred_username, local, display_name, summary, icon, inbox,
	public_key_pem, private_key_pem, email, password_hash, followers, created, modified`

// ActorByURI is `actor_by_uri`.
func (d *DB) ActorByURI(uri string) (*domain.Actor, error) {
	row := d.conn.QueryRow("SELECT "+actorColumns+" FROM actors WHERE uri = ?", uri)
	a, err := scanActor(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("actor %s not found", uri)
	}
	if err != nil {
		return nil, errs.Fatalf(err, "actor_by_uri")
	}
	return a, nil
}

// ActorByID is `actor_by_id`.
func (d *DB) ActorByID(id int64) (*domain.Actor, error) {
	row := d.conn.QueryRow("SELECT "+actorColumns+" FROM actors WHERE id = ?", id)
	a, err := scanActor(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("actor id %d not found", id)
	}
	if err != nil {
		return nil, errs.Fatalf(err, "actor_by_id")
	}
	return a, nil
}

// ActorByPreferredUsernameLocal is `actor_by_preferred_username_local`.
func (d *DB) ActorByPreferredUsernameLocal(username string) (*domain.Actor, error) {
	row := d.conn.QueryRow("SELECT "+actorColumns+" FROM actors WHERE preferred_username = ? AND local = 1", username)
	a, err := scanActor(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("local actor %s not found", username)
	}
	if err != nil {
		return nil, errs.Fatalf(err, "actor_by_preferred_username_local")
	}
	return a, nil
}

// ActorByAcct is `actor_by_acct`: acct is either "local-name" or
// "name@host". The latter matches preferred_username AND a LIKE clause on
// uri containing "/<host>/".
func (d *DB) ActorByAcct(name, host string) (*domain.Actor, error) {
	if host == "" {
		return d.ActorByPreferredUsernameLocal(name)
	}
	if !util.IsJSONPathSafe(host) {
		return nil, errs.Validationf("unsafe host fragment %q", host)
	}
	pattern := "%/" + host + "/%"
	row := d.conn.QueryRow("SELECT "+actorColumns+" FROM actors WHERE preferred_username = ? AND uri LIKE ?", name, pattern)
	a, err := scanActor(row)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("actor %s@%s not found", name, host)
	}
	if err != nil {
		return nil, errs.Fatalf(err, "actor_by_acct")
	}
	return a, nil
}

// ActorInsert is `actor_insert`.
func (d *DB) ActorInsert(a *domain.Actor) (*domain.Actor, error) {
	followersJSON, err := json.Marshal(a.Followers)
	if err != nil {
		return nil, errs.Fatalf(err, "marshal followers")
	}
	now := nowString()
	localFlag := 0
	if a.Local {
		localFlag = 1
	}
	var id int64
	err = d.wrapTransaction(func(tx *sql.Tx) error {
		res, err := tx.Exec(`INSERT INTO actors
			(uri, preferred_username, local, display_name, summary, icon, inbox,
			 public_key_pem, private_key_pem, email, password_hash, followers, created, modified)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			a.URI, a.PreferredUsername, localFlag, a.DisplayName, a.Summary, a.IconURL, a.Inbox,
			a.Keys.PublicKeyPem, a.Keys.PrivateKeyPem, a.Email, a.PasswordHash, string(followersJSON), now, now)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, errs.Wrap(errs.Conflict, "actor_insert", err)
	}
	a.Id = id
	a.CreatedAt = parseTime(now)
	a.ModifiedAt = parseTime(now)
	return a, nil
}

// ActorUpdateMutableFields replaces the refreshable fields of a remote
// actor (summary, display name, icon, public key, inbox) without
// touching uri/id/created/local/email/password or the followers list
// (which only ActorUpdateFollowers changes), per the background-refresh
// invariant in spec section 4.5.
func (d *DB) ActorUpdateMutableFields(a *domain.Actor) error {
	now := nowString()
	return d.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE actors SET display_name=?, summary=?, icon=?, inbox=?,
			public_key_pem=?, modified=? WHERE uri=?`,
			a.DisplayName, a.Summary, a.IconURL, a.Inbox, a.Keys.PublicKeyPem, now, a.URI)
		return err
	})
}

// ActorUpdateFollowers performs a compare-and-set update of the followers
// JSON array, making up to 3 attempts in all when a concurrent
// modification intervenes (spec
// section 5: "compare-and-set on the JSON array column... retry up to 3").
// mutate receives the current follower list and returns the new one.
func (d *DB) ActorUpdateFollowers(uri string, mutate func([]domain.Follower) []domain.Follower) error {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		current, err := d.ActorByURI(uri)
		if err != nil {
			return err
		}
		before, err := json.Marshal(current.Followers)
		if err != nil {
			return errs.Fatalf(err, "marshal followers")
		}
		next := mutate(current.Followers)
		after, err := json.Marshal(next)
		if err != nil {
			return errs.Fatalf(err, "marshal followers")
		}
		now := nowString()
		var rows int64
		lastErr = d.wrapTransaction(func(tx *sql.Tx) error {
			res, err := tx.Exec(`UPDATE actors SET followers=?, modified=? WHERE uri=? AND followers=?`,
				string(after), now, uri, string(before))
			if err != nil {
				return err
			}
			rows, err = res.RowsAffected()
			return err
		})
		if lastErr != nil {
			continue
		}
		if rows == 1 {
			return nil
		}
		// followers changed underneath us; retry against the fresh row
	}
	return errs.Wrap(errs.Conflict, "actor_update_followers: exhausted retries", lastErr)
}

// ActorDelete is `actor_delete`.
func (d *DB) ActorDelete(uri string) error {
	return d.wrapTransaction(func(tx *sql.Tx) error {
		_, err := tx.Exec("DELETE FROM actors WHERE uri = ?", uri)
		return err
	})
}

// FolloweesOf is `followees_of`: actors whose followers.activitypub array
// contains an element with href = actorURI.
func (d *DB) FolloweesOf(actorURI string) ([]*domain.Actor, error) {
	rows, err := d.conn.Query(
		`SELECT `+actorColumns+` FROM actors,
		 json_each(actors.followers) AS f
		 WHERE json_extract(f.value, '$.href') = ?`, actorURI)
	if err != nil {
		return nil, errs.Fatalf(err, "followees_of")
	}
	defer rows.Close()
	var out []*domain.Actor
	for rows.Next() {
		a, err := scanActor(rows)
		if err != nil {
			return nil, errs.Fatalf(err, "followees_of scan")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// IsFollowedBy is `is_followed_by`.
func (d *DB) IsFollowedBy(followeeURI, followerURI string) (bool, error) {
	followee, err := d.ActorByURI(followeeURI)
	if err != nil {
		return false, err
	}
	return followee.HasFollower(followerURI), nil
}
