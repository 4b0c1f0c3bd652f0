package activitypub

import (
	"net/http"
	"time"

	"github.com/kibouhq/kibou/domain"
)

// Database is the subset of the persistence façade (db.DB) the federation
// engine depends on: a documented interface the production code satisfies
// via DBWrapper, and tests satisfy with a hand-written fake.
type Database interface {
	ActorByURI(uri string) (*domain.Actor, error)
	ActorByID(id int64) (*domain.Actor, error)
	ActorByPreferredUsernameLocal(username string) (*domain.Actor, error)
	ActorByAcct(name, host string) (*domain.Actor, error)
	ActorInsert(a *domain.Actor) (*domain.Actor, error)
	ActorUpdateMutableFields(a *domain.Actor) error
	ActorUpdateFollowers(uri string, mutate func([]domain.Follower) []domain.Follower) error
	ActorDelete(uri string) error
	FolloweesOf(actorURI string) ([]*domain.Actor, error)
	IsFollowedBy(followeeURI, followerURI string) (bool, error)

	ActivityByInternalID(id int64) (*domain.Activity, error)
	ActivityByActivityID(activityID string) (*domain.Activity, error)
	ActivityByObjectID(objectID string) (*domain.Activity, error)
	ActivityRepliesByObjectID(objectID string) ([]*domain.Activity, error)
	ActivityReactionsCount(objectID, activityType string) (int, error)
	ActivityInsert(a *domain.Activity) (*domain.Activity, error)
	ActivityDeleteByObjectID(objectID string) error

	ObjectByID(objectID string) (*domain.Object, error)
	ObjectUpsert(o *domain.Object) (*domain.Object, error)

	NotificationInsert(n *domain.Notification) error

	CountLocalActors() (int, error)
	CountLocalCreateNoteActivities() (int, error)
}

// HTTPClient abstracts outbound HTTP so fetcher/federator tests can inject
// an httptest server or a canned transport.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient is the production client: 30s timeout, redirects capped
// at 5.
var DefaultHTTPClient HTTPClient = NewDefaultHTTPClient()

func NewDefaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
