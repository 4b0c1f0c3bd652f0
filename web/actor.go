package web

import (
	"fmt"
	"strings"

	"github.com/kibouhq/kibou/activitypub"
	"github.com/kibouhq/kibou/domain"
)

// RenderActor builds the Person document for actor as ActivityPub JSON.
// Kept as a templated string rather than json.Marshal, so field order is
// stable across servers that diff profile documents byte-for-byte.
func RenderActor(actor *domain.Actor) string {
	pubKey := strings.ReplaceAll(actor.Keys.PublicKeyPem, "\n", "\\n")

	displayName := actor.DisplayName
	if displayName == "" {
		displayName = actor.PreferredUsername
	}

	summary := strings.ReplaceAll(actor.Summary, "\"", "\\\"")
	summary = strings.ReplaceAll(summary, "\n", "\\n")

	return fmt.Sprintf(`{
	"@context": [
		"https://www.w3.org/ns/activitystreams",
		"https://w3id.org/security/v1"
	],
	"id": "%s",
	"type": "Person",
	"preferredUsername": "%s",
	"name": "%s",
	"summary": "%s",
	"inbox": "%s",
	"outbox": "%s/outbox",
	"followers": "%s/followers",
	"following": "%s/following",
	"url": "%s",
	"manuallyApprovesFollowers": false,
	"discoverable": true,
	"icon": {
		"type": "Image",
		"url": "%s"
	},
	"publicKey": {
		"id": "%s#main-key",
		"owner": "%s",
		"publicKeyPem": "%s"
	}
}`,
		actor.URI,
		actor.PreferredUsername, displayName, summary,
		actor.Inbox,
		actor.URI,
		actor.URI,
		actor.URI,
		actor.URI,
		actor.IconURL,
		actor.URI, actor.URI, pubKey,
	)
}

// RenderObject builds a Note/Article object as ActivityPub JSON from its
// already-normalized, already-sanitized stored representation.
func RenderObject(obj *domain.Object) string {
	return string(obj.Data)
}

// followersPageSize bounds an OrderedCollectionPage response.
const followersPageSize = 40

// RenderOrderedCollection builds the top-level OrderedCollection for
// followers/following, pointing at the first page.
func RenderOrderedCollection(collectionURI string, total int) map[string]interface{} {
	return map[string]interface{}{
		"@context":   "https://www.w3.org/ns/activitystreams",
		"id":         collectionURI,
		"type":       "OrderedCollection",
		"totalItems": total,
		"first":      collectionURI + "?page=1",
	}
}

// RenderOrderedCollectionPage builds a single page of items.
func RenderOrderedCollectionPage(collectionURI string, page int, items []string, total int) map[string]interface{} {
	return map[string]interface{}{
		"@context":     "https://www.w3.org/ns/activitystreams",
		"id":           fmt.Sprintf("%s?page=%d", collectionURI, page),
		"type":         "OrderedCollectionPage",
		"partOf":       collectionURI,
		"orderedItems": items,
		"totalItems":   total,
	}
}

// FollowerURIs paginates actor.Followers into at most followersPageSize
// entries for page (1-indexed).
func FollowerURIs(actor *domain.Actor, page int) []string {
	if page < 1 {
		page = 1
	}
	start := (page - 1) * followersPageSize
	if start >= len(actor.Followers) {
		return []string{}
	}
	end := start + followersPageSize
	if end > len(actor.Followers) {
		end = len(actor.Followers)
	}
	uris := make([]string, 0, end-start)
	for _, f := range actor.Followers[start:end] {
		uris = append(uris, f.Href)
	}
	return uris
}

// FolloweeURIs paginates the derived followee list into a page. The
// following collection is computed from other actors' follower lists —
// accepting an inbound Follow never materializes a separate following edge
// for the accepting actor.
func FolloweeURIs(db activitypub.Database, actor *domain.Actor, page int) ([]string, int, error) {
	followees, err := db.FolloweesOf(actor.URI)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * followersPageSize
	if start >= len(followees) {
		return []string{}, len(followees), nil
	}
	end := start + followersPageSize
	if end > len(followees) {
		end = len(followees)
	}
	uris := make([]string, 0, end-start)
	for _, f := range followees[start:end] {
		uris = append(uris, f.URI)
	}
	return uris, len(followees), nil
}
