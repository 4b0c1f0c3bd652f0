// Federator delivers outbound activities to remote inboxes. Fan-out
// is one goroutine per destination inbox; each goroutine owns its own
// retry schedule and its own dedup key, so one slow or down remote never
// blocks delivery to the rest.
package activitypub

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/kibouhq/kibou/domain"
	"github.com/kibouhq/kibou/errs"
	"github.com/kibouhq/kibou/util"
)

const (
	deliveryInitialBackoff = 30 * time.Second
	deliveryMaxAttempts    = 6
)

// Federator fans a single activity out to many inboxes, routing delivery
// to the sender's own inbox straight into the inbox processor instead of
// over HTTP.
type Federator struct {
	db       Database
	client   HTTPClient
	resolver *Resolver
	inbox    *InboxProcessor
	baseURL  string

	inFlight sync.Map // key: inboxURL+"|"+activityID -> struct{}
}

func NewFederator(db Database, client HTTPClient, resolver *Resolver, inbox *InboxProcessor, baseURL string) *Federator {
	return &Federator{db: db, client: client, resolver: resolver, inbox: inbox, baseURL: baseURL}
}

// SetInbox wires the inbox processor after construction, breaking the
// Federator/InboxProcessor initialization cycle (the federator needs the
// inbox for the self-delivery bypass; the inbox needs the federator, as a
// followAccepter, to send Accept).
func (f *Federator) SetInbox(p *InboxProcessor) {
	f.inbox = p
}

// Deliver marshals activity once and fans it out to every inbox in
// inboxes, deduplicating identical (inbox, activity id) pairs already in
// flight. Delivery to sender's own inbox bypasses HTTP entirely.
func (f *Federator) Deliver(sender *domain.Actor, activity map[string]interface{}, inboxes []string) error {
	data, err := json.Marshal(activity)
	if err != nil {
		return errs.Wrap(errs.Fatal, "deliver: marshal activity", err)
	}
	id, _ := activity["id"].(string)

	seen := make(map[string]bool, len(inboxes))
	for _, inboxURL := range inboxes {
		if inboxURL == "" || seen[inboxURL] {
			continue
		}
		seen[inboxURL] = true

		if inboxURL == sender.Inbox {
			go func() { _ = f.inbox.Process(data, sender.URI) }()
			continue
		}
		go f.deliverOne(sender, data, id, inboxURL)
	}
	return nil
}

// AcceptFollow satisfies the inbox processor's followAccepter interface: it
// builds an Accept wrapping a minimal reconstruction of the inbound Follow
// and delivers it to the follower's inbox.
func (f *Federator) AcceptFollow(target *domain.Actor, followActivityID, followerActorURI string) error {
	follower, err := f.resolver.Resolve(followerActorURI)
	if err != nil {
		return err
	}

	followStub := map[string]interface{}{
		"id":     followActivityID,
		"type":   "Follow",
		"actor":  followerActorURI,
		"object": target.URI,
	}
	accept := BuildAccept(target, f.baseURL, followStub)
	data, err := json.Marshal(accept)
	if err != nil {
		return errs.Wrap(errs.Fatal, "accept_follow: marshal", err)
	}
	acceptID, _ := accept["id"].(string)

	go f.deliverOne(target, data, acceptID, follower.Inbox)
	return nil
}

// deliverOne owns the in-flight guard and retry loop for a single
// destination. Backoff starts at 30s and doubles each attempt with ±20%
// jitter, up to 6 attempts total. A 4xx response other than 408/429 is
// terminal and stops the loop immediately instead of burning attempts.
func (f *Federator) deliverOne(sender *domain.Actor, data []byte, activityID, inboxURL string) {
	key := inboxURL + "|" + activityID
	if _, loaded := f.inFlight.LoadOrStore(key, struct{}{}); loaded {
		return
	}
	defer f.inFlight.Delete(key)

	backoff := deliveryInitialBackoff
	for attempt := 1; attempt <= deliveryMaxAttempts; attempt++ {
		err := f.post(sender, data, inboxURL)
		if err == nil {
			return
		}
		if errs.KindOf(err) == errs.Validation {
			// 4xx other than 408/429: the remote rejected the activity
			// outright, retrying won't change its mind.
			return
		}
		if attempt == deliveryMaxAttempts {
			return
		}
		time.Sleep(jitter(backoff))
		backoff *= 2
	}
}

func jitter(d time.Duration) time.Duration {
	pct := 80 + rand.Intn(41) // 80..120
	return d * time.Duration(pct) / 100
}

func (f *Federator) post(sender *domain.Actor, data []byte, inboxURL string) error {
	req, err := http.NewRequest(http.MethodPost, inboxURL, bytes.NewReader(data))
	if err != nil {
		return errs.Wrap(errs.Network, "federator post: new request", err)
	}
	req.Header.Set("Content-Type", "application/activity+json")
	req.Header.Set("User-Agent", util.GetNameAndVersion())

	sigHeader, dateHeader, err := BuildRequestSignature(sender.Keys.PrivateKeyPem, sender.URI, http.MethodPost, inboxURL, nil)
	if err != nil {
		return errs.Wrap(errs.Fatal, "federator post: sign request", err)
	}
	req.Header.Set("Signature", sigHeader)
	req.Header.Set("Date", dateHeader)
	req.Header.Set("Host", req.URL.Host)

	resp, err := f.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.Network, "federator post: "+inboxURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return errs.Networkf(nil, "federator post: %s returned %d", inboxURL, resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return errs.Validationf("federator post: %s rejected with %d", inboxURL, resp.StatusCode)
	default:
		return errs.Networkf(nil, "federator post: %s returned %d", inboxURL, resp.StatusCode)
	}
}

// StartDeliveryWorker runs for the lifetime of ctx. Delivery itself is
// dispatched eagerly from Deliver/AcceptFollow (one goroutine per inbox);
// this loop is the lifecycle anchor app.go starts and stops the federator
// under, and the home for a future persistent retry queue.
func StartDeliveryWorker(ctx context.Context, f *Federator) {
	<-ctx.Done()
}
