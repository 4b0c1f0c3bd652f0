// Remote fetcher: the only component that initiates outbound GETs.
package activitypub

import (
	"io"
	"net/http"

	"github.com/kibouhq/kibou/errs"
)

const (
	maxFetchBody    = 1 << 20 // 1 MiB
	acceptActivity  = `application/activity+json`
	acceptASProfile = `application/ld+json; profile="https://www.w3.org/ns/activitystreams"`
)

// Fetcher performs authoritative GETs of remote ActivityPub documents.
type Fetcher struct {
	client HTTPClient
}

func NewFetcher(client HTTPClient) *Fetcher {
	return &Fetcher{client: client}
}

// Fetch GETs url with Accept: application/activity+json (tolerating the
// ld+json AS2-profile variant on the response), caps the body at 1 MiB, and
// returns the raw bytes.
func (f *Fetcher) Fetch(url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Validationf("fetch: bad url %q", url)
	}
	req.Header.Set("Accept", acceptActivity+", "+acceptASProfile)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errs.Networkf(err, "fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errs.Networkf(nil, "fetch %s: status %d", url, resp.StatusCode)
	}

	limited := io.LimitReader(resp.Body, maxFetchBody+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, errs.Networkf(err, "fetch %s: read body", url)
	}
	if len(body) > maxFetchBody {
		return nil, errs.Networkf(nil, "fetch %s: body exceeds %d bytes", url, maxFetchBody)
	}
	return body, nil
}
