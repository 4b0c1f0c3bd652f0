// WebFinger resolves an acct: URI to a local actor's profile, the entry
// point every remote server uses before it ever fetches an actor document.
// Never resolves or otherwise leaks information about remote actors
// through this instance's own endpoint.
package activitypub

import (
	"strings"

	"github.com/kibouhq/kibou/errs"
)

type WebFingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href,omitempty"`
}

type WebFingerDocument struct {
	Subject string          `json:"subject"`
	Aliases []string        `json:"aliases,omitempty"`
	Links   []WebFingerLink `json:"links"`
}

// ResolveWebFinger looks up resource ("acct:user@host") among this
// instance's own actors and returns its JRD. A remote account, or any
// account not hosted here, comes back as a NotFound error.
func ResolveWebFinger(db Database, resource string) (*WebFingerDocument, error) {
	name, host, err := parseAcct(resource)
	if err != nil {
		return nil, err
	}

	actor, err := db.ActorByAcct(name, host)
	if err != nil {
		return nil, errs.NotFoundf("webfinger: %s not found", resource)
	}
	if !actor.Local {
		return nil, errs.NotFoundf("webfinger: %s not found", resource)
	}

	return &WebFingerDocument{
		Subject: resource,
		Aliases: []string{actor.URI},
		Links: []WebFingerLink{
			{Rel: "self", Type: "application/activity+json", Href: actor.URI},
			{Rel: "http://webfinger.net/rel/profile-page", Type: "text/html", Href: actor.URI},
		},
	}, nil
}

func parseAcct(resource string) (name, host string, err error) {
	const prefix = "acct:"
	if !strings.HasPrefix(resource, prefix) {
		return "", "", errs.Validationf("webfinger: resource must start with %q", prefix)
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(resource, prefix), "@")
	parts := strings.SplitN(rest, "@", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errs.Validationf("webfinger: malformed resource %q", resource)
	}
	return parts[0], parts[1], nil
}
