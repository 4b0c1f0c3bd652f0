package db

import (
	"testing"

	"github.com/kibouhq/kibou/domain"
	"github.com/kibouhq/kibou/errs"
)

func sampleActor(uri, username string, local bool) *domain.Actor {
	return &domain.Actor{
		URI:               uri,
		PreferredUsername: username,
		DisplayName:       username,
		Inbox:             uri + "/inbox",
		Keys:              domain.Keys{PublicKeyPem: "pub", PrivateKeyPem: "priv"},
		Local:             local,
	}
}

func TestActorInsertAndByURI(t *testing.T) {
	d := setupTestDB(t)

	inserted, err := d.ActorInsert(sampleActor("https://local.example/actors/alice", "alice", true))
	if err != nil {
		t.Fatalf("ActorInsert: %v", err)
	}
	if inserted.Id == 0 {
		t.Error("expected a nonzero assigned id")
	}

	got, err := d.ActorByURI("https://local.example/actors/alice")
	if err != nil {
		t.Fatalf("ActorByURI: %v", err)
	}
	if got.PreferredUsername != "alice" || !got.Local {
		t.Errorf("got = %+v", got)
	}
}

func TestActorByURINotFound(t *testing.T) {
	d := setupTestDB(t)
	_, err := d.ActorByURI("https://local.example/actors/ghost")
	if errs.KindOf(err) != errs.NotFound {
		t.Fatalf("KindOf(err) = %v, want NotFound", errs.KindOf(err))
	}
}

func TestActorByPreferredUsernameLocalIgnoresRemote(t *testing.T) {
	d := setupTestDB(t)
	if _, err := d.ActorInsert(sampleActor("https://remote.example/actors/bob", "bob", false)); err != nil {
		t.Fatalf("ActorInsert: %v", err)
	}

	_, err := d.ActorByPreferredUsernameLocal("bob")
	if errs.KindOf(err) != errs.NotFound {
		t.Fatalf("expected a remote actor to be invisible to the local-only lookup, got %v", err)
	}
}

func TestActorByAcctWithHost(t *testing.T) {
	d := setupTestDB(t)
	if _, err := d.ActorInsert(sampleActor("https://remote.example/actors/carol", "carol", false)); err != nil {
		t.Fatalf("ActorInsert: %v", err)
	}

	got, err := d.ActorByAcct("carol", "remote.example")
	if err != nil {
		t.Fatalf("ActorByAcct: %v", err)
	}
	if got.URI != "https://remote.example/actors/carol" {
		t.Errorf("URI = %q", got.URI)
	}
}

func TestActorInsertRejectsDuplicateURI(t *testing.T) {
	d := setupTestDB(t)
	a := sampleActor("https://local.example/actors/dave", "dave", true)
	if _, err := d.ActorInsert(a); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := d.ActorInsert(sampleActor("https://local.example/actors/dave", "dave2", true)); err == nil {
		t.Fatal("expected rejection of a duplicate uri")
	}
}

func TestActorUpdateMutableFieldsLeavesImmutableFieldsAlone(t *testing.T) {
	d := setupTestDB(t)
	a := sampleActor("https://remote.example/actors/erin", "erin", false)
	a.Email = "should-not-change@example.com"
	inserted, err := d.ActorInsert(a)
	if err != nil {
		t.Fatalf("ActorInsert: %v", err)
	}

	update := sampleActor(inserted.URI, "erin", false)
	update.DisplayName = "Erin Updated"
	update.Keys.PublicKeyPem = "new-pub"
	if err := d.ActorUpdateMutableFields(update); err != nil {
		t.Fatalf("ActorUpdateMutableFields: %v", err)
	}

	got, err := d.ActorByURI(inserted.URI)
	if err != nil {
		t.Fatalf("ActorByURI: %v", err)
	}
	if got.DisplayName != "Erin Updated" {
		t.Errorf("DisplayName = %q", got.DisplayName)
	}
	if got.Keys.PublicKeyPem != "new-pub" {
		t.Errorf("PublicKeyPem = %q", got.Keys.PublicKeyPem)
	}
	if got.Email != "should-not-change@example.com" {
		t.Errorf("Email changed unexpectedly: %q", got.Email)
	}
}

func TestActorUpdateFollowersAppendsAndDedupes(t *testing.T) {
	d := setupTestDB(t)
	a := sampleActor("https://local.example/actors/frank", "frank", true)
	if _, err := d.ActorInsert(a); err != nil {
		t.Fatalf("ActorInsert: %v", err)
	}

	addFollower := func(href string) {
		if err := d.ActorUpdateFollowers(a.URI, func(followers []domain.Follower) []domain.Follower {
			for _, f := range followers {
				if f.Href == href {
					return followers
				}
			}
			return append(followers, domain.Follower{Href: href})
		}); err != nil {
			t.Fatalf("ActorUpdateFollowers: %v", err)
		}
	}

	addFollower("https://remote.example/actors/gina")
	addFollower("https://remote.example/actors/gina") // duplicate, should be a no-op

	got, err := d.ActorByURI(a.URI)
	if err != nil {
		t.Fatalf("ActorByURI: %v", err)
	}
	if len(got.Followers) != 1 {
		t.Errorf("Followers = %+v, want exactly one entry", got.Followers)
	}
}

func TestIsFollowedByAndFolloweesOf(t *testing.T) {
	d := setupTestDB(t)
	followee := sampleActor("https://local.example/actors/henry", "henry", true)
	if _, err := d.ActorInsert(followee); err != nil {
		t.Fatalf("ActorInsert: %v", err)
	}
	followerURI := "https://remote.example/actors/iris"
	if err := d.ActorUpdateFollowers(followee.URI, func(followers []domain.Follower) []domain.Follower {
		return append(followers, domain.Follower{Href: followerURI})
	}); err != nil {
		t.Fatalf("ActorUpdateFollowers: %v", err)
	}

	ok, err := d.IsFollowedBy(followee.URI, followerURI)
	if err != nil {
		t.Fatalf("IsFollowedBy: %v", err)
	}
	if !ok {
		t.Error("expected IsFollowedBy to report true")
	}

	followees, err := d.FolloweesOf(followerURI)
	if err != nil {
		t.Fatalf("FolloweesOf: %v", err)
	}
	if len(followees) != 1 || followees[0].URI != followee.URI {
		t.Errorf("FolloweesOf = %+v", followees)
	}
}

func TestActorDelete(t *testing.T) {
	d := setupTestDB(t)
	a := sampleActor("https://local.example/actors/jane", "jane", true)
	if _, err := d.ActorInsert(a); err != nil {
		t.Fatalf("ActorInsert: %v", err)
	}
	if err := d.ActorDelete(a.URI); err != nil {
		t.Fatalf("ActorDelete: %v", err)
	}
	if _, err := d.ActorByURI(a.URI); errs.KindOf(err) != errs.NotFound {
		t.Errorf("expected NotFound after delete, got %v", err)
	}
}
