package web

import (
	"github.com/kibouhq/kibou/domain"
)

// activitypubDatabaseStub implements activitypub.Database with panics on
// every method, so a test can embed it and override only the handful of
// methods the code path under test actually calls.
type activitypubDatabaseStub struct{}

func (activitypubDatabaseStub) ActorByURI(uri string) (*domain.Actor, error) {
	panic("unexpected call: ActorByURI")
}
func (activitypubDatabaseStub) ActorByID(id int64) (*domain.Actor, error) {
	panic("unexpected call: ActorByID")
}
func (activitypubDatabaseStub) ActorByPreferredUsernameLocal(username string) (*domain.Actor, error) {
	panic("unexpected call: ActorByPreferredUsernameLocal")
}
func (activitypubDatabaseStub) ActorByAcct(name, host string) (*domain.Actor, error) {
	panic("unexpected call: ActorByAcct")
}
func (activitypubDatabaseStub) ActorInsert(a *domain.Actor) (*domain.Actor, error) {
	panic("unexpected call: ActorInsert")
}
func (activitypubDatabaseStub) ActorUpdateMutableFields(a *domain.Actor) error {
	panic("unexpected call: ActorUpdateMutableFields")
}
func (activitypubDatabaseStub) ActorUpdateFollowers(uri string, mutate func([]domain.Follower) []domain.Follower) error {
	panic("unexpected call: ActorUpdateFollowers")
}
func (activitypubDatabaseStub) ActorDelete(uri string) error {
	panic("unexpected call: ActorDelete")
}
func (activitypubDatabaseStub) FolloweesOf(actorURI string) ([]*domain.Actor, error) {
	panic("unexpected call: FolloweesOf")
}
func (activitypubDatabaseStub) IsFollowedBy(followeeURI, followerURI string) (bool, error) {
	panic("unexpected call: IsFollowedBy")
}
func (activitypubDatabaseStub) ActivityByInternalID(id int64) (*domain.Activity, error) {
	panic("unexpected call: ActivityByInternalID")
}
func (activitypubDatabaseStub) ActivityByActivityID(activityID string) (*domain.Activity, error) {
	panic("unexpected call: ActivityByActivityID")
}
func (activitypubDatabaseStub) ActivityByObjectID(objectID string) (*domain.Activity, error) {
	panic("unexpected call: ActivityByObjectID")
}
func (activitypubDatabaseStub) ActivityRepliesByObjectID(objectID string) ([]*domain.Activity, error) {
	panic("unexpected call: ActivityRepliesByObjectID")
}
func (activitypubDatabaseStub) ActivityReactionsCount(objectID, activityType string) (int, error) {
	panic("unexpected call: ActivityReactionsCount")
}
func (activitypubDatabaseStub) ActivityInsert(a *domain.Activity) (*domain.Activity, error) {
	panic("unexpected call: ActivityInsert")
}
func (activitypubDatabaseStub) ActivityDeleteByObjectID(objectID string) error {
	panic("unexpected call: ActivityDeleteByObjectID")
}
func (activitypubDatabaseStub) ObjectByID(objectID string) (*domain.Object, error) {
	panic("unexpected call: ObjectByID")
}
func (activitypubDatabaseStub) ObjectUpsert(o *domain.Object) (*domain.Object, error) {
	panic("unexpected call: ObjectUpsert")
}
func (activitypubDatabaseStub) NotificationInsert(n *domain.Notification) error {
	panic("unexpected call: NotificationInsert")
}
func (activitypubDatabaseStub) CountLocalActors() (int, error) {
	panic("unexpected call: CountLocalActors")
}
func (activitypubDatabaseStub) CountLocalCreateNoteActivities() (int, error) {
	panic("unexpected call: CountLocalCreateNoteActivities")
}
