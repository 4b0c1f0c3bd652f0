// Actor resolver: the single path by which any other component turns
// an actor URI into a domain.Actor, local or remote.
package activitypub

import (
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kibouhq/kibou/domain"
	"github.com/kibouhq/kibou/errs"
)

// maxActorAge is the staleness window for background refresh of cached
// remote actors.
const maxActorAge = 48 * time.Hour

// Resolver looks up a cached actor, else fetches and persists it, with
// singleflight dedup across concurrent resolves of the same URI and a
// fire-and-forget background refresh of stale remote actors.
type Resolver struct {
	db      Database
	fetcher *Fetcher
	group   singleflight.Group
}

func NewResolver(db Database, fetcher *Fetcher) *Resolver {
	return &Resolver{db: db, fetcher: fetcher}
}

// Resolve returns the actor at uri, fetching and persisting it on first
// sight. A remote actor older than maxActorAge is returned as-is but
// triggers an async refresh of its mutable fields.
func (r *Resolver) Resolve(uri string) (*domain.Actor, error) {
	v, err, _ := r.group.Do(uri, func() (interface{}, error) {
		return r.resolveLocked(uri)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Actor), nil
}

func (r *Resolver) resolveLocked(uri string) (*domain.Actor, error) {
	actor, err := r.db.ActorByURI(uri)
	if err == nil {
		if actor.Stale(time.Now(), maxActorAge) {
			go r.refresh(actor.URI)
		}
		return actor, nil
	}
	if errs.KindOf(err) != errs.NotFound {
		return nil, err
	}

	doc, err := r.fetcher.Fetch(uri)
	if err != nil {
		return nil, err
	}
	fetched, err := validateActor(doc, r)
	if err != nil {
		return nil, err
	}
	if fetched.URI != uri {
		return nil, errs.Validationf("resolve %s: document id %q does not match fetched uri", uri, fetched.URI)
	}
	fetched.Local = false
	return r.db.ActorInsert(fetched)
}

// refresh re-fetches a stale remote actor and updates only its mutable
// fields (display name, summary, icon, inbox, public key), leaving
// followers and local bookkeeping untouched. Errors are swallowed: a failed
// background refresh must not disrupt the caller that already got a result.
func (r *Resolver) refresh(uri string) {
	doc, err := r.fetcher.Fetch(uri)
	if err != nil {
		return
	}
	fetched, err := validateActor(doc, r)
	if err != nil || fetched.URI != uri {
		return
	}
	_ = r.db.ActorUpdateMutableFields(fetched)
}

// ResolvePublicKey satisfies signature.go's actorResolver interface: it
// resolves the actor and returns its public key PEM, used to verify a
// Signature header's keyId.
func (r *Resolver) ResolvePublicKey(actorURI string) (string, error) {
	actor, err := r.Resolve(actorURI)
	if err != nil {
		return "", err
	}
	if actor.Keys.PublicKeyPem == "" {
		return "", errs.NotFoundf("resolve_public_key: %s has no public key", actorURI)
	}
	return actor.Keys.PublicKeyPem, nil
}

// actorDocument is the wire shape of a Person document, decoded by
// decodeActorDocument for validateActor (validate.go).
type actorDocument struct {
	ID                string `json:"id"`
	Type              string `json:"type"`
	PreferredUsername string `json:"preferredUsername"`
	Name              string `json:"name"`
	Summary           string `json:"summary"`
	Inbox             string `json:"inbox"`
	Icon              *struct {
		URL string `json:"url"`
	} `json:"icon"`
	PublicKey struct {
		ID           string `json:"id"`
		Owner        string `json:"owner"`
		PublicKeyPem string `json:"publicKeyPem"`
	} `json:"publicKey"`
}

func (a *actorDocument) toActor() *domain.Actor {
	icon := ""
	if a.Icon != nil {
		icon = a.Icon.URL
	}
	return &domain.Actor{
		URI:               a.ID,
		PreferredUsername: a.PreferredUsername,
		DisplayName:       a.Name,
		Summary:           SanitizeContent(a.Summary),
		IconURL:           icon,
		Inbox:             a.Inbox,
		Keys:              domain.Keys{PublicKeyPem: a.PublicKey.PublicKeyPem},
		ModifiedAt:        time.Now(),
	}
}

func decodeActorDocument(raw []byte) (*actorDocument, error) {
	var doc actorDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errs.Wrap(errs.Validation, "decode actor document", err)
	}
	return &doc, nil
}
