package domain

import (
	"time"
)

// Follower is one entry in an actor's denormalized followers.activitypub list.
type Follower struct {
	Href       string    `json:"href"`
	FollowDate time.Time `json:"follow_date"`
	ActivityID string    `json:"activity_id"`
}

// Keys holds an actor's RSA key material. Private is empty for remote actors.
type Keys struct {
	PublicKeyPem  string `json:"publicKeyPem"`
	PrivateKeyPem string `json:"privateKeyPem,omitempty"`
}

// Actor is a local or remote ActivityPub participant.
//
// URI is the immutable business key. Local is set once at creation and never
// flips. Remote actors never carry a PrivateKeyPem.
type Actor struct {
	Id                int64
	URI               string
	PreferredUsername string
	DisplayName       string
	Summary           string
	IconURL           string
	Inbox             string
	Keys              Keys
	Local             bool
	Followers         []Follower
	Email             string // local actors only
	PasswordHash      string // local actors only, bcrypt cost >= 10
	CreatedAt         time.Time
	ModifiedAt        time.Time
}

// HasFollower reports whether href already has an edge in Followers.
func (a *Actor) HasFollower(href string) bool {
	for _, f := range a.Followers {
		if f.Href == href {
			return true
		}
	}
	return false
}

// Stale reports whether a remote actor's cached copy is old enough to need
// a background refresh. Local actors are never stale.
func (a *Actor) Stale(now time.Time, maxAge time.Duration) bool {
	if a.Local {
		return false
	}
	return now.Sub(a.ModifiedAt) > maxAge
}
