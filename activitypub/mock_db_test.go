package activitypub

import (
	"sync"

	"github.com/kibouhq/kibou/domain"
	"github.com/kibouhq/kibou/errs"
)

// mockDB is an in-memory Database fake: plain maps behind a mutex, no
// mocking framework.
type mockDB struct {
	mu sync.Mutex

	actorsByURI map[string]*domain.Actor
	actorsByID  map[int64]*domain.Actor
	nextActorID int64

	activitiesByActivityID map[string]*domain.Activity
	activitiesByObjectID   map[string][]*domain.Activity
	nextActivityID         int64

	objectsByID map[string]*domain.Object

	notifications []*domain.Notification

	ForceError error
}

func newMockDB() *mockDB {
	return &mockDB{
		actorsByURI:             make(map[string]*domain.Actor),
		actorsByID:              make(map[int64]*domain.Actor),
		activitiesByActivityID:  make(map[string]*domain.Activity),
		activitiesByObjectID:    make(map[string][]*domain.Activity),
		objectsByID:             make(map[string]*domain.Object),
	}
}

func (m *mockDB) addActor(a *domain.Actor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextActorID++
	a.Id = m.nextActorID
	m.actorsByURI[a.URI] = a
	m.actorsByID[a.Id] = a
}

func (m *mockDB) ActorByURI(uri string) (*domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ForceError != nil {
		return nil, m.ForceError
	}
	a, ok := m.actorsByURI[uri]
	if !ok {
		return nil, errs.NotFoundf("actor %s", uri)
	}
	return a, nil
}

func (m *mockDB) ActorByID(id int64) (*domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actorsByID[id]
	if !ok {
		return nil, errs.NotFoundf("actor id %d", id)
	}
	return a, nil
}

func (m *mockDB) ActorByPreferredUsernameLocal(username string) (*domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actorsByURI {
		if a.Local && a.PreferredUsername == username {
			return a, nil
		}
	}
	return nil, errs.NotFoundf("local actor %s", username)
}

func (m *mockDB) ActorByAcct(name, host string) (*domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.actorsByURI {
		if a.PreferredUsername == name {
			return a, nil
		}
	}
	_ = host
	return nil, errs.NotFoundf("acct %s@%s", name, host)
}

func (m *mockDB) ActorInsert(a *domain.Actor) (*domain.Actor, error) {
	if m.ForceError != nil {
		return nil, m.ForceError
	}
	m.addActor(a)
	return a, nil
}

func (m *mockDB) ActorUpdateMutableFields(a *domain.Actor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.actorsByURI[a.URI]
	if !ok {
		return errs.NotFoundf("actor %s", a.URI)
	}
	existing.DisplayName = a.DisplayName
	existing.Summary = a.Summary
	existing.IconURL = a.IconURL
	existing.Inbox = a.Inbox
	existing.Keys.PublicKeyPem = a.Keys.PublicKeyPem
	existing.ModifiedAt = a.ModifiedAt
	return nil
}

func (m *mockDB) ActorUpdateFollowers(uri string, mutate func([]domain.Follower) []domain.Follower) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actorsByURI[uri]
	if !ok {
		return errs.NotFoundf("actor %s", uri)
	}
	a.Followers = mutate(a.Followers)
	return nil
}

func (m *mockDB) ActorDelete(uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.actorsByURI, uri)
	return nil
}

func (m *mockDB) FolloweesOf(actorURI string) ([]*domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Actor
	for _, a := range m.actorsByURI {
		if a.HasFollower(actorURI) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockDB) IsFollowedBy(followeeURI, followerURI string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actorsByURI[followeeURI]
	if !ok {
		return false, nil
	}
	return a.HasFollower(followerURI), nil
}

func (m *mockDB) ActivityByInternalID(id int64) (*domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, act := range m.activitiesByActivityID {
		if act.Id == id {
			return act, nil
		}
	}
	return nil, errs.NotFoundf("activity id %d", id)
}

func (m *mockDB) ActivityByActivityID(activityID string) (*domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.activitiesByActivityID[activityID]
	if !ok {
		return nil, errs.NotFoundf("activity %s", activityID)
	}
	return a, nil
}

func (m *mockDB) ActivityByObjectID(objectID string) (*domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.activitiesByObjectID[objectID]
	if len(list) == 0 {
		return nil, errs.NotFoundf("activity for object %s", objectID)
	}
	return list[0], nil
}

func (m *mockDB) ActivityRepliesByObjectID(objectID string) ([]*domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activitiesByObjectID[objectID], nil
}

func (m *mockDB) ActivityReactionsCount(objectID, activityType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.activitiesByObjectID[objectID] {
		if a.Type == activityType {
			count++
		}
	}
	return count, nil
}

func (m *mockDB) ActivityInsert(a *domain.Activity) (*domain.Activity, error) {
	m.mu.Lock()
	if m.ForceError != nil {
		m.mu.Unlock()
		return nil, m.ForceError
	}
	if _, exists := m.activitiesByActivityID[a.ActivityID]; exists {
		m.mu.Unlock()
		return nil, errs.Conflictf("activity %s already exists", a.ActivityID)
	}
	m.nextActivityID++
	a.Id = m.nextActivityID
	m.activitiesByActivityID[a.ActivityID] = a
	if a.ObjectID != "" {
		m.activitiesByObjectID[a.ObjectID] = append(m.activitiesByObjectID[a.ObjectID], a)
	}
	m.mu.Unlock()
	return a, nil
}

func (m *mockDB) ActivityDeleteByObjectID(objectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.activitiesByObjectID, objectID)
	return nil
}

func (m *mockDB) ObjectByID(objectID string) (*domain.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objectsByID[objectID]
	if !ok {
		return nil, errs.NotFoundf("object %s", objectID)
	}
	return o, nil
}

func (m *mockDB) ObjectUpsert(o *domain.Object) (*domain.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objectsByID[o.ObjectID] = o
	return o, nil
}

func (m *mockDB) NotificationInsert(n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *mockDB) CountLocalActors() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.actorsByURI {
		if a.Local {
			count++
		}
	}
	return count, nil
}

func (m *mockDB) CountLocalCreateNoteActivities() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, a := range m.activitiesByActivityID {
		if a.Local && a.Type == "Create" {
			count++
		}
	}
	return count, nil
}

var _ Database = (*mockDB)(nil)
