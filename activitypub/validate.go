// Document validator/normalizer: the gate every inbound activity, embedded
// object, and fetched actor document passes through before it reaches
// persistence. Sanitization is delegated to sanitize.go.
package activitypub

import (
	"bytes"
	"encoding/json"
	"net/url"
	"time"

	"github.com/kibouhq/kibou/domain"
	"github.com/kibouhq/kibou/errs"
	"github.com/kibouhq/kibou/util"
)

const activityStreamsPublic = "https://www.w3.org/ns/activitystreams#Public"

// publicSynonyms collects the address forms other implementations use for
// the public collection; all of them normalize to activityStreamsPublic.
var publicSynonyms = map[string]bool{
	activityStreamsPublic: true,
	"as:Public":           true,
	"Public":               true,
}

var allowedActivityTypes = map[string]bool{
	"Accept": true, "Announce": true, "Create": true,
	"Follow": true, "Like": true, "Undo": true,
}

var allowedObjectTypes = map[string]bool{
	"Note": true, "Article": true,
}

// ActivityDoc is the normalized, validated shape of an inbound top-level
// activity, handed to the inbox processor.
type ActivityDoc struct {
	ID        string
	Type      string
	ActorURI  string
	ObjectRaw json.RawMessage
	ObjectID  string
	To        []string
	Cc        []string
	Published time.Time
	Raw       json.RawMessage
}

type rawActivityDoc struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     json.RawMessage `json:"actor"`
	Object    json.RawMessage `json:"object"`
	Published string          `json:"published"`
	To        json.RawMessage `json:"to"`
	Cc        json.RawMessage `json:"cc"`
}

// ValidateActivity accepts only the six activity types the federation
// engine understands; the envelope must carry actor/id/type/published. A
// top-level activity arriving with no independently verified signature is
// rejected outright rather than accepted provisionally pending a later
// check.
func ValidateActivity(body []byte, signedActorURI string) (*ActivityDoc, error) {
	if signedActorURI == "" {
		return nil, errs.BadSignaturef("validate_activity: no verified signature for top-level activity")
	}

	var d rawActivityDoc
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, errs.Wrap(errs.Validation, "validate_activity: decode", err)
	}

	if !allowedActivityTypes[d.Type] {
		return nil, errs.Validationf("validate_activity: unsupported type %q", d.Type)
	}
	if d.ID == "" {
		return nil, errs.Validationf("validate_activity: missing id")
	}
	if d.Published == "" {
		return nil, errs.Validationf("validate_activity: missing published")
	}
	published, err := time.Parse(time.RFC3339, d.Published)
	if err != nil {
		return nil, errs.Wrap(errs.Validation, "validate_activity: bad published", err)
	}

	actorURI, err := decodeIRI(d.Actor)
	if err != nil || actorURI == "" {
		return nil, errs.Validationf("validate_activity: missing or malformed actor")
	}
	if actorURI != signedActorURI {
		return nil, errs.BadSignaturef("validate_activity: actor %q does not match signer %q", actorURI, signedActorURI)
	}

	objectID, _ := decodeIRI(d.Object)

	return &ActivityDoc{
		ID:        d.ID,
		Type:      d.Type,
		ActorURI:  actorURI,
		ObjectRaw: d.Object,
		ObjectID:  objectID,
		To:        normalizeAddressing(d.To),
		Cc:        normalizeAddressing(d.Cc),
		Published: published,
		Raw:       normalizeEnvelope(body),
	}, nil
}

// ValidateObject validates an embedded or fetched content object. When the enclosing activity's
// signature did not cover the embedded object (it arrived as a bare IRI
// rather than inline), the object must be re-fetched and compared
// byte-for-byte against the value being validated before it is trusted.
func ValidateObject(raw json.RawMessage, signatureCoversObject bool, fetcher *Fetcher) (map[string]interface{}, error) {
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errs.Wrap(errs.Validation, "validate_object: decode", err)
	}

	typ, _ := m["type"].(string)
	if !allowedObjectTypes[typ] {
		return nil, errs.Validationf("validate_object: unsupported type %q", typ)
	}
	id, _ := m["id"].(string)
	if id == "" {
		return nil, errs.Validationf("validate_object: missing id")
	}
	if attributedTo, _ := m["attributedTo"].(string); attributedTo == "" {
		return nil, errs.Validationf("validate_object: missing attributedTo")
	}

	if !signatureCoversObject {
		fetched, err := fetcher.Fetch(id)
		if err != nil {
			return nil, errs.Wrap(errs.Validation, "validate_object: self-reference fetch", err)
		}
		if !bytes.Equal(bytes.TrimSpace(fetched), bytes.TrimSpace(raw)) {
			return nil, errs.Validationf("validate_object: self-reference mismatch for %s", id)
		}
	}

	if content, ok := m["content"].(string); ok {
		m["content"] = SanitizeContent(content)
	}

	delete(m, "@context")
	normalizeAddressingField(m, "to")
	normalizeAddressingField(m, "cc")
	if _, ok := m["cc"]; !ok {
		m["cc"] = []string{}
	}

	return m, nil
}

// validateActor validates a fetched actor document. resolver is accepted
// (and currently unused beyond establishing the call boundary with
// resolver.go) so a future cross-posting equality check against the
// resolver's cache can be added without changing every call site.
func validateActor(doc []byte, resolver *Resolver) (*domain.Actor, error) {
	ad, err := decodeActorDocument(doc)
	if err != nil {
		return nil, err
	}
	if ad.Type != "Person" {
		return nil, errs.Validationf("validate_actor: unsupported type %q", ad.Type)
	}
	if ad.ID == "" {
		return nil, errs.Validationf("validate_actor: missing id")
	}
	if !util.IsValidPreferredUsername(ad.PreferredUsername) {
		return nil, errs.Validationf("validate_actor: invalid preferredUsername %q", ad.PreferredUsername)
	}
	if _, err := url.ParseRequestURI(ad.Inbox); err != nil {
		return nil, errs.Validationf("validate_actor: malformed inbox %q", ad.Inbox)
	}
	if ad.PublicKey.PublicKeyPem == "" {
		return nil, errs.Validationf("validate_actor: missing publicKey.publicKeyPem")
	}
	if _, err := util.ParsePublicKeyPEM(ad.PublicKey.PublicKeyPem); err != nil {
		return nil, errs.Wrap(errs.Validation, "validate_actor: bad public key", err)
	}
	return ad.toActor(), nil
}

func decodeIRI(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID, nil
	}
	return "", errs.Validationf("malformed iri")
}

func normalizeAddressing(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var single string
		if err2 := json.Unmarshal(raw, &single); err2 == nil && single != "" {
			list = []string{single}
		}
	}
	for i, v := range list {
		if publicSynonyms[v] {
			list[i] = activityStreamsPublic
		}
	}
	return list
}

func normalizeAddressingField(m map[string]interface{}, key string) {
	v, ok := m[key]
	if !ok {
		return
	}
	var list []string
	switch t := v.(type) {
	case string:
		list = []string{t}
	case []interface{}:
		for _, x := range t {
			if s, ok := x.(string); ok {
				list = append(list, s)
			}
		}
	}
	for i, s := range list {
		if publicSynonyms[s] {
			list[i] = activityStreamsPublic
		}
	}
	m[key] = list
}

// normalizeEnvelope strips @context, coerces to/cc to arrays and defaults a
// missing cc to an empty array, returning the re-marshaled document. Falls
// back to the original bytes if the document doesn't decode as an object.
func normalizeEnvelope(body []byte) json.RawMessage {
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil {
		return body
	}
	delete(m, "@context")
	normalizeAddressingField(m, "to")
	if _, ok := m["cc"]; !ok {
		m["cc"] = []string{}
	} else {
		normalizeAddressingField(m, "cc")
	}
	out, err := json.Marshal(m)
	if err != nil {
		return body
	}
	return out
}
