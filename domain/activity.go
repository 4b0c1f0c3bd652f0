package domain

import "time"

// Activity is a stored ActivityPub envelope. Once stored it is immutable:
// an Undo produces a new Activity referencing the original, it never
// rewrites it in place.
type Activity struct {
	Id         int64
	ActivityID string // the embedded document's "id", globally unique
	ActorURI   string
	ObjectID   string // embedded object's "id" when the activity wraps one, else the object URI reference
	Type       string // Create, Follow, Accept, Like, Announce, Undo, ...
	Data       []byte // raw canonical JSON document
	Local      bool
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Object is a content document (Note, Article) addressable independently of
// the activity that introduced it, so GET /objects/<uuid> can serve it
// without exposing the wrapping activity.
type Object struct {
	Id           int64
	ObjectID     string
	Type         string
	AttributedTo string
	InReplyTo    string
	Data         []byte
	CreatedAt    time.Time
	ModifiedAt   time.Time
}
