package activitypub

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kibouhq/kibou/domain"
)

type fakeFollowAccepter struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeFollowAccepter) AcceptFollow(target *domain.Actor, followActivityID, followerActorURI string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, followActivityID)
	return nil
}

func (f *fakeFollowAccepter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func createActivity(id, actorURI string, note map[string]interface{}) []byte {
	b, _ := json.Marshal(map[string]interface{}{
		"id":        id,
		"type":      "Create",
		"actor":     actorURI,
		"published": time.Now().UTC().Format(time.RFC3339),
		"object":    note,
	})
	return b
}

func TestProcessCreateStoresObjectAndActivity(t *testing.T) {
	db := newMockDB()
	fetcher := NewFetcher(&fakeHTTPClient{do: canned(404, "")})
	p := NewInboxProcessor(db, fetcher, nil)

	actorURI := "https://remote.example/actors/alice"
	note := map[string]interface{}{
		"id":           "https://remote.example/objects/1",
		"type":         "Note",
		"attributedTo": actorURI,
		"content":      "hello world",
	}
	body := createActivity("https://remote.example/activities/1", actorURI, note)

	if err := p.Process(body, actorURI); err != nil {
		t.Fatalf("Process: %v", err)
	}

	obj, err := db.ObjectByID("https://remote.example/objects/1")
	if err != nil {
		t.Fatalf("ObjectByID: %v", err)
	}
	if obj.AttributedTo != actorURI {
		t.Errorf("AttributedTo = %q", obj.AttributedTo)
	}

	activity, err := db.ActivityByActivityID("https://remote.example/activities/1")
	if err != nil {
		t.Fatalf("ActivityByActivityID: %v", err)
	}
	if activity.Type != "Create" {
		t.Errorf("Type = %q", activity.Type)
	}
}

func TestProcessCreateIsIdempotentOnRedelivery(t *testing.T) {
	db := newMockDB()
	fetcher := NewFetcher(&fakeHTTPClient{do: canned(404, "")})
	p := NewInboxProcessor(db, fetcher, nil)

	actorURI := "https://remote.example/actors/alice"
	note := map[string]interface{}{
		"id":           "https://remote.example/objects/1",
		"type":         "Note",
		"attributedTo": actorURI,
		"content":      "hello world",
	}
	body := createActivity("https://remote.example/activities/1", actorURI, note)

	if err := p.Process(body, actorURI); err != nil {
		t.Fatalf("first Process: %v", err)
	}
	if err := p.Process(body, actorURI); err != nil {
		t.Fatalf("redelivered Process should be a no-op, got: %v", err)
	}
}

func TestProcessCreateRejectsBareObjectReference(t *testing.T) {
	db := newMockDB()
	fetcher := NewFetcher(&fakeHTTPClient{do: canned(404, "")})
	p := NewInboxProcessor(db, fetcher, nil)

	actorURI := "https://remote.example/actors/alice"
	body, _ := json.Marshal(map[string]interface{}{
		"id":        "https://remote.example/activities/1",
		"type":      "Create",
		"actor":     actorURI,
		"published": time.Now().UTC().Format(time.RFC3339),
		"object":    "https://remote.example/objects/1",
	})

	if err := p.Process(body, actorURI); err == nil {
		t.Fatal("expected rejection of a bare-IRI object on Create")
	}
}

func TestProcessFollowOfLocalActorAppendsFollowerAndSendsAccept(t *testing.T) {
	db := newMockDB()
	target := &domain.Actor{URI: "https://local.example/actors/alice", PreferredUsername: "alice", Local: true}
	db.addActor(target)

	accepter := &fakeFollowAccepter{}
	p := NewInboxProcessor(db, NewFetcher(&fakeHTTPClient{do: canned(404, "")}), accepter)

	followerURI := "https://remote.example/actors/bob"
	body, _ := json.Marshal(map[string]interface{}{
		"id":        "https://remote.example/activities/follow-1",
		"type":      "Follow",
		"actor":     followerURI,
		"object":    target.URI,
		"published": time.Now().UTC().Format(time.RFC3339),
	})

	if err := p.Process(body, followerURI); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if !target.HasFollower(followerURI) {
		t.Error("expected follower edge to be recorded")
	}

	deadline := time.Now().Add(time.Second)
	for accepter.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if accepter.callCount() != 1 {
		t.Errorf("AcceptFollow call count = %d, want 1", accepter.callCount())
	}
}

func TestProcessFollowOfRemoteTargetRejected(t *testing.T) {
	db := newMockDB()
	remoteTarget := &domain.Actor{URI: "https://remote.example/actors/carol", Local: false}
	db.addActor(remoteTarget)

	p := NewInboxProcessor(db, NewFetcher(&fakeHTTPClient{do: canned(404, "")}), nil)

	body, _ := json.Marshal(map[string]interface{}{
		"id":        "https://remote.example/activities/follow-2",
		"type":      "Follow",
		"actor":     "https://remote.example/actors/bob",
		"object":    remoteTarget.URI,
		"published": time.Now().UTC().Format(time.RFC3339),
	})

	if err := p.Process(body, "https://remote.example/actors/bob"); err == nil {
		t.Fatal("expected rejection when the Follow's target isn't local")
	}
}

func TestProcessUndoFollowRemovesFollowerEdge(t *testing.T) {
	db := newMockDB()
	followerURI := "https://remote.example/actors/bob"
	target := &domain.Actor{
		URI:       "https://local.example/actors/alice",
		Local:     true,
		Followers: []domain.Follower{{Href: followerURI, FollowDate: time.Now(), ActivityID: "follow-1"}},
	}
	db.addActor(target)

	p := NewInboxProcessor(db, NewFetcher(&fakeHTTPClient{do: canned(404, "")}), nil)

	undoBody, _ := json.Marshal(map[string]interface{}{
		"id":    "https://remote.example/activities/undo-1",
		"type":  "Follow",
		"actor": followerURI,
		"object": target.URI,
	})
	body, _ := json.Marshal(map[string]interface{}{
		"id":        "https://remote.example/activities/undo-wrap-1",
		"type":      "Undo",
		"actor":     followerURI,
		"published": time.Now().UTC().Format(time.RFC3339),
		"object":    json.RawMessage(undoBody),
	})

	if err := p.Process(body, followerURI); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if target.HasFollower(followerURI) {
		t.Error("expected follower edge to be removed by Undo(Follow)")
	}
}

func TestProcessAcceptPersistsWithoutFolloweeEdge(t *testing.T) {
	db := newMockDB()
	p := NewInboxProcessor(db, NewFetcher(&fakeHTTPClient{do: canned(404, "")}), nil)

	actorURI := "https://remote.example/actors/alice"
	body, _ := json.Marshal(map[string]interface{}{
		"id":        "https://remote.example/activities/accept-1",
		"type":      "Accept",
		"actor":     actorURI,
		"published": time.Now().UTC().Format(time.RFC3339),
		"object": map[string]interface{}{
			"id":     "https://local.example/activities/follow-1",
			"type":   "Follow",
			"actor":  "https://local.example/actors/bob",
			"object": actorURI,
		},
	})

	if err := p.Process(body, actorURI); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, err := db.ActivityByActivityID("https://remote.example/activities/accept-1"); err != nil {
		t.Errorf("expected the Accept activity to be persisted: %v", err)
	}
	if followees, _ := db.FolloweesOf("https://local.example/actors/bob"); len(followees) != 0 {
		t.Errorf("expected no followee edge for the accepted Follow, got %d", len(followees))
	}
}

func TestProcessRejectsUnsignedActivity(t *testing.T) {
	db := newMockDB()
	p := NewInboxProcessor(db, NewFetcher(&fakeHTTPClient{do: canned(404, "")}), nil)

	body := createActivity("https://remote.example/activities/1", "https://remote.example/actors/alice", map[string]interface{}{
		"id": "https://remote.example/objects/1", "type": "Note", "attributedTo": "https://remote.example/actors/alice",
	})
	if err := p.Process(body, ""); err == nil {
		t.Fatal("expected rejection of an activity with no verified signer")
	}
}
