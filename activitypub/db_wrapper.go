package activitypub

import (
	"github.com/kibouhq/kibou/db"
)

// DBWrapper adapts the db.DB singleton to the Database interface
// (activitypub.Database as the documented surface, DBWrapper as the
// concrete adapter over db.GetDB()). Embedding *db.DB satisfies Database
// directly; the wrapper exists so call sites depend on the interface, not
// the concrete singleton, and tests can substitute a fake in its place.
type DBWrapper struct {
	*db.DB
}

func NewDBWrapper(inner *db.DB) *DBWrapper {
	return &DBWrapper{DB: inner}
}

var _ Database = (*DBWrapper)(nil)
