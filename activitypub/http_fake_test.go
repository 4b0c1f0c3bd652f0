package activitypub

import (
	"bytes"
	"io"
	"net/http"
)

// fakeHTTPClient is a canned-response HTTPClient, the same role an
// httptest server plays elsewhere, without needing a real listener.
type fakeHTTPClient struct {
	do func(req *http.Request) (*http.Response, error)
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return f.do(req)
}

func canned(status int, body string) func(req *http.Request) (*http.Response, error) {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(bytes.NewBufferString(body)),
			Header:     make(http.Header),
		}, nil
	}
}
