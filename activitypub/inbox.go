// Inbound activity processor: the state machine that turns a verified,
// validated ActivityDoc into persisted activities/objects and, where the
// activity type calls for it, side effects (follower list mutation,
// notifications, an outgoing Accept).
package activitypub

import (
	"encoding/json"
	"time"

	"github.com/kibouhq/kibou/domain"
	"github.com/kibouhq/kibou/errs"
)

// followAccepter lets the inbox processor hand off an Accept(Follow) to the
// federator without importing it directly, keeping the inbox/federator
// dependency one-directional.
type followAccepter interface {
	AcceptFollow(target *domain.Actor, followActivityID, followerActorURI string) error
}

// InboxProcessor implements the Create/Announce/Like/Follow/Undo/Accept
// transition table.
type InboxProcessor struct {
	db      Database
	fetcher *Fetcher
	sender  followAccepter
}

func NewInboxProcessor(db Database, fetcher *Fetcher, sender followAccepter) *InboxProcessor {
	return &InboxProcessor{db: db, fetcher: fetcher, sender: sender}
}

// Process validates raw against signedActorURI (the actor the request
// signature resolved to, or "" if verification failed/was absent) and
// dispatches on activity type.
func (p *InboxProcessor) Process(raw []byte, signedActorURI string) error {
	doc, err := ValidateActivity(raw, signedActorURI)
	if err != nil {
		return err
	}

	switch doc.Type {
	case "Create":
		return p.handleCreate(doc)
	case "Announce":
		return p.handleAnnounce(doc)
	case "Like":
		return p.handleLike(doc)
	case "Follow":
		return p.handleFollow(doc)
	case "Undo":
		return p.handleUndo(doc)
	case "Accept":
		return p.handleAccept(doc)
	default:
		return errs.Validationf("process: unhandled activity type %q", doc.Type)
	}
}

func (p *InboxProcessor) handleCreate(doc *ActivityDoc) error {
	if !isEmbeddedObject(doc.ObjectRaw) {
		return errs.Validationf("create: object must be embedded, not a bare reference")
	}
	obj, err := ValidateObject(doc.ObjectRaw, true, p.fetcher)
	if err != nil {
		return err
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return errs.Wrap(errs.Fatal, "create: marshal object", err)
	}
	if _, err := p.db.ObjectUpsert(&domain.Object{
		ObjectID:     stringField(obj, "id"),
		Type:         stringField(obj, "type"),
		AttributedTo: stringField(obj, "attributedTo"),
		InReplyTo:    stringField(obj, "inReplyTo"),
		Data:         data,
	}); err != nil {
		return err
	}

	if inReplyTo := stringField(obj, "inReplyTo"); inReplyTo != "" {
		p.resolveParent(inReplyTo)
	}

	activity, err := p.insertActivity(doc)
	if err != nil || activity == nil {
		return err
	}
	p.notifyMentionsAndReplies(activity.Id, doc, obj)
	return nil
}

func (p *InboxProcessor) handleAnnounce(doc *ActivityDoc) error {
	if doc.ObjectID == "" {
		return errs.Validationf("announce: missing object")
	}
	p.resolveParent(doc.ObjectID)
	_, err := p.insertActivity(doc)
	return err
}

func (p *InboxProcessor) handleLike(doc *ActivityDoc) error {
	if doc.ObjectID == "" {
		return errs.Validationf("like: missing object")
	}
	activity, err := p.insertActivity(doc)
	if err != nil || activity == nil {
		return err
	}
	obj, err := p.db.ObjectByID(doc.ObjectID)
	if err != nil {
		return nil
	}
	actor, err := p.db.ActorByURI(obj.AttributedTo)
	if err == nil && actor.Local {
		_ = p.db.NotificationInsert(&domain.Notification{
			ActorID:    actor.Id,
			ActivityID: activity.Id,
			Kind:       domain.NotificationLike,
		})
	}
	return nil
}

func (p *InboxProcessor) handleFollow(doc *ActivityDoc) error {
	targetURI, err := decodeIRI(doc.ObjectRaw)
	if err != nil || targetURI == "" {
		return errs.Validationf("follow: missing object actor")
	}
	target, err := p.db.ActorByURI(targetURI)
	if err != nil {
		return err
	}
	if !target.Local {
		return errs.Validationf("follow: target %s is not local to this instance", targetURI)
	}

	activity, err := p.insertActivity(doc)
	if err != nil || activity == nil {
		return err
	}

	if err := p.db.ActorUpdateFollowers(target.URI, func(followers []domain.Follower) []domain.Follower {
		for _, f := range followers {
			if f.Href == doc.ActorURI {
				return followers
			}
		}
		return append(followers, domain.Follower{
			Href:       doc.ActorURI,
			FollowDate: time.Now(),
			ActivityID: doc.ID,
		})
	}); err != nil {
		return err
	}

	_ = p.db.NotificationInsert(&domain.Notification{
		ActorID:    target.Id,
		ActivityID: activity.Id,
		Kind:       domain.NotificationFollow,
	})

	if p.sender != nil {
		go func() {
			_ = p.sender.AcceptFollow(target, doc.ID, doc.ActorURI)
		}()
	}
	return nil
}

// handleUndo only implements Undo(Follow): an unrelated embedded activity,
// or a bare-IRI undo the processor can't inspect, is persisted without a
// side effect.
func (p *InboxProcessor) handleUndo(doc *ActivityDoc) error {
	if !isEmbeddedObject(doc.ObjectRaw) {
		_, err := p.insertActivity(doc)
		return err
	}

	var inner struct {
		Type   string          `json:"type"`
		Object json.RawMessage `json:"object"`
	}
	if err := json.Unmarshal(doc.ObjectRaw, &inner); err != nil {
		return errs.Wrap(errs.Validation, "undo: decode embedded activity", err)
	}
	if inner.Type != "Follow" {
		_, err := p.insertActivity(doc)
		return err
	}

	targetURI, _ := decodeIRI(inner.Object)
	if target, err := p.db.ActorByURI(targetURI); err == nil && target.Local {
		_ = p.db.ActorUpdateFollowers(target.URI, func(followers []domain.Follower) []domain.Follower {
			kept := make([]domain.Follower, 0, len(followers))
			for _, f := range followers {
				if f.Href != doc.ActorURI {
					kept = append(kept, f)
				}
			}
			return kept
		})
	}

	_, err := p.insertActivity(doc)
	return err
}

// handleAccept stores Accept(Follow) of an outbound Follow but never
// materializes an outgoing follow edge: "following" is derived by querying
// remote actors' follower lists directly (FolloweesOf), not tracked as
// local state the Accept would populate.
func (p *InboxProcessor) handleAccept(doc *ActivityDoc) error {
	_, err := p.insertActivity(doc)
	return err
}

// resolveParent fetches and stores an inReplyTo target exactly once; it
// never follows that object's own inReplyTo, bounding recursion to depth 1.
func (p *InboxProcessor) resolveParent(objectID string) {
	if _, err := p.db.ObjectByID(objectID); err == nil {
		return
	}
	raw, err := p.fetcher.Fetch(objectID)
	if err != nil {
		return
	}
	obj, err := ValidateObject(raw, false, p.fetcher)
	if err != nil {
		return
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return
	}
	_, _ = p.db.ObjectUpsert(&domain.Object{
		ObjectID:     objectID,
		Type:         stringField(obj, "type"),
		AttributedTo: stringField(obj, "attributedTo"),
		InReplyTo:    stringField(obj, "inReplyTo"),
		Data:         data,
	})
}

func (p *InboxProcessor) notifyMentionsAndReplies(activityID int64, doc *ActivityDoc, obj map[string]interface{}) {
	recipients := make([]string, 0, len(doc.To)+len(doc.Cc))
	recipients = append(recipients, doc.To...)
	recipients = append(recipients, doc.Cc...)
	for _, uri := range recipients {
		actor, err := p.db.ActorByURI(uri)
		if err != nil || !actor.Local {
			continue
		}
		_ = p.db.NotificationInsert(&domain.Notification{
			ActorID:    actor.Id,
			ActivityID: activityID,
			Kind:       domain.NotificationMention,
		})
	}

	inReplyTo := stringField(obj, "inReplyTo")
	if inReplyTo == "" {
		return
	}
	parent, err := p.db.ObjectByID(inReplyTo)
	if err != nil {
		return
	}
	actor, err := p.db.ActorByURI(parent.AttributedTo)
	if err != nil || !actor.Local {
		return
	}
	_ = p.db.NotificationInsert(&domain.Notification{
		ActorID:    actor.Id,
		ActivityID: activityID,
		Kind:       domain.NotificationReply,
	})
}

// insertActivity stores doc and returns the persisted row, or (nil, nil) if
// this activity id was already delivered — inbox delivery is at-least-once,
// so a duplicate must be a silent no-op rather than an error.
func (p *InboxProcessor) insertActivity(doc *ActivityDoc) (*domain.Activity, error) {
	a, err := p.db.ActivityInsert(&domain.Activity{
		ActivityID: doc.ID,
		ActorURI:   doc.ActorURI,
		ObjectID:   doc.ObjectID,
		Type:       doc.Type,
		Data:       doc.Raw,
	})
	if err != nil {
		if errs.KindOf(err) == errs.Conflict {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

func isEmbeddedObject(raw json.RawMessage) bool {
	var m map[string]interface{}
	return len(raw) > 0 && json.Unmarshal(raw, &m) == nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
