// Outbound builder: pure functions that assemble the JSON-LD envelope for
// each activity type this instance originates. Nothing here touches the
// database or network; federator.go marshals and delivers what these
// return.
package activitypub

import (
	"time"

	"github.com/google/uuid"

	"github.com/kibouhq/kibou/domain"
)

const activityStreamsContext = "https://www.w3.org/ns/activitystreams"

const securityContext = "https://w3id.org/security/v1"

// Visibility selects the to/cc addressing pattern for an outgoing Create or
// Announce, mirroring Mastodon-style visibility levels.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
	VisibilityDirect   Visibility = "direct"
)

func addressingFor(vis Visibility, actor *domain.Actor, directRecipients []string) (to, cc []string) {
	followersURL := actor.URI + "/followers"
	switch vis {
	case VisibilityPublic:
		return []string{activityStreamsPublic}, []string{followersURL}
	case VisibilityUnlisted:
		return []string{followersURL}, []string{activityStreamsPublic}
	case VisibilityPrivate:
		return []string{followersURL}, []string{}
	case VisibilityDirect:
		return directRecipients, []string{}
	default:
		return []string{activityStreamsPublic}, []string{followersURL}
	}
}

func newID(baseURL, kind string) string {
	return baseURL + "/" + kind + "/" + uuid.New().String()
}

func envelope(id, typ, actorURI string, extra map[string]interface{}) map[string]interface{} {
	m := map[string]interface{}{
		"@context":  []string{activityStreamsContext, securityContext},
		"id":        id,
		"type":      typ,
		"actor":     actorURI,
		"published": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range extra {
		m[k] = v
	}
	return m
}

// BuildNote assembles a Note object, independent of the Create wrapper, so
// it can also be referenced bare (e.g. as the object of a Like/Announce).
func BuildNote(actor *domain.Actor, baseURL, content string, vis Visibility, directRecipients []string, inReplyTo string) map[string]interface{} {
	to, cc := addressingFor(vis, actor, directRecipients)
	obj := map[string]interface{}{
		"id":           newID(baseURL, "objects"),
		"type":         "Note",
		"attributedTo": actor.URI,
		"content":      SanitizeContent(content),
		"published":    time.Now().UTC().Format(time.RFC3339),
		"to":           to,
		"cc":           cc,
	}
	if inReplyTo != "" {
		obj["inReplyTo"] = inReplyTo
	}
	return obj
}

// BuildCreate wraps note in a Create activity addressed the same way as the
// note itself.
func BuildCreate(actor *domain.Actor, baseURL string, note map[string]interface{}) map[string]interface{} {
	extra := map[string]interface{}{"object": note}
	if to, ok := note["to"]; ok {
		extra["to"] = to
	}
	if cc, ok := note["cc"]; ok {
		extra["cc"] = cc
	}
	return envelope(newID(baseURL, "activities"), "Create", actor.URI, extra)
}

// BuildFollow requests actor follow targetActorURI.
func BuildFollow(actor *domain.Actor, baseURL, targetActorURI string) map[string]interface{} {
	return envelope(newID(baseURL, "activities"), "Follow", actor.URI, map[string]interface{}{
		"object": targetActorURI,
		"to":     []string{targetActorURI},
	})
}

// BuildAccept wraps the inbound Follow envelope being accepted, addressed
// back to the follower.
func BuildAccept(actor *domain.Actor, baseURL string, followActivity map[string]interface{}) map[string]interface{} {
	followerURI, _ := followActivity["actor"].(string)
	return envelope(newID(baseURL, "activities"), "Accept", actor.URI, map[string]interface{}{
		"object": followActivity,
		"to":     []string{followerURI},
	})
}

// BuildLike references objectID without fetching or embedding it.
func BuildLike(actor *domain.Actor, baseURL, objectID string) map[string]interface{} {
	return envelope(newID(baseURL, "activities"), "Like", actor.URI, map[string]interface{}{
		"object": objectID,
		"to":     []string{activityStreamsPublic},
	})
}

// BuildAnnounce boosts objectID under vis's addressing rules.
func BuildAnnounce(actor *domain.Actor, baseURL, objectID string, vis Visibility) map[string]interface{} {
	to, cc := addressingFor(vis, actor, nil)
	return envelope(newID(baseURL, "activities"), "Announce", actor.URI, map[string]interface{}{
		"object": objectID,
		"to":     to,
		"cc":     cc,
	})
}

// BuildUndo wraps innerActivity (typically a prior Follow this actor sent).
func BuildUndo(actor *domain.Actor, baseURL string, innerActivity map[string]interface{}) map[string]interface{} {
	return envelope(newID(baseURL, "activities"), "Undo", actor.URI, map[string]interface{}{
		"object": innerActivity,
		"to":     []string{activityStreamsPublic},
	})
}
