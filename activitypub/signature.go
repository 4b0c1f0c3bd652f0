// Key and signature primitives: RSA keys via util.GeneratePemKeypair,
// signing and verifying HTTP requests using
// code.superseriousbusiness.org/httpsig's Signing HTTP Messages
// implementation.
package activitypub

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"code.superseriousbusiness.org/httpsig"

	"github.com/kibouhq/kibou/errs"
	"github.com/kibouhq/kibou/util"
)

const mainKeySuffix = "#main-key"

var signedHeaders = []string{httpsig.RequestTarget, "date", "host"}

// Sign computes the base64 SHA-256-over-RSA signature of message.
func Sign(privateKeyPEM string, message []byte) (string, error) {
	key, err := util.ParsePrivateKeyPEM(privateKeyPEM)
	if err != nil {
		return "", errs.Wrap(errs.Fatal, "sign: parse private key", err)
	}
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return "", errs.Wrap(errs.Fatal, "sign: rsa", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64 SHA-256-over-RSA signature.
func Verify(publicKeyPEM string, message []byte, sigB64 string) (bool, error) {
	key, err := util.ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return false, errs.Wrap(errs.Fatal, "verify: parse public key", err)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false, nil
	}
	digest := sha256.Sum256(message)
	return rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], sig) == nil, nil
}

// BuildRequestSignature signs (request-target), date and host over the
// given request and returns the header value that would be placed in the
// `Signature` header. actorURI + "#main-key" is used as the keyId.
func BuildRequestSignature(privateKeyPEM, actorURI, method, rawURL string, extraHeaders http.Header) (headerValue string, dateHeader string, err error) {
	key, err := util.ParsePrivateKeyPEM(privateKeyPEM)
	if err != nil {
		return "", "", errs.Wrap(errs.Fatal, "build_request_signature: parse private key", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errs.Validationf("build_request_signature: bad url %q", rawURL)
	}

	req, err := http.NewRequest(method, rawURL, nil)
	if err != nil {
		return "", "", errs.Wrap(errs.Fatal, "build_request_signature: new request", err)
	}
	for k, vs := range extraHeaders {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	date := req.Header.Get("Date")
	if date == "" {
		date = time.Now().UTC().Format(http.TimeFormat)
		req.Header.Set("Date", date)
	}
	req.Header.Set("Host", u.Host)

	signer, _, err := httpsig.NewSigner(
		[]httpsig.Algorithm{httpsig.RSA_SHA256},
		httpsig.DigestSha256,
		signedHeaders,
		httpsig.Signature,
		0,
	)
	if err != nil {
		return "", "", errs.Wrap(errs.Fatal, "build_request_signature: new signer", err)
	}

	keyID := actorURI + mainKeySuffix
	if err := signer.SignRequest(key, keyID, req, nil); err != nil {
		return "", "", errs.Wrap(errs.Fatal, "build_request_signature: sign", err)
	}

	return req.Header.Get("Signature"), date, nil
}

// actorResolver is the narrow slice of Resolver that ParseAndVerify needs,
// kept as an interface so signature verification doesn't import the
// resolver's concrete type and can be tested with a stub.
type actorResolver interface {
	ResolvePublicKey(actorURI string) (string, error)
}

// ParseAndVerify tokenizes the Signature header, resolves the keyId's
// owning actor, and verifies. Returns the actor URI on success or a
// BadSignature error on any mismatch, missing field, or unknown key owner.
func ParseAndVerify(r *http.Request, resolver actorResolver) (string, error) {
	sigHeader := r.Header.Get("Signature")
	if sigHeader == "" {
		return "", errs.BadSignaturef("missing Signature header")
	}

	verifier, err := httpsig.NewVerifier(r)
	if err != nil {
		return "", errs.Wrap(errs.BadSignature, "parse_and_verify: parse signature header", err)
	}

	keyID := verifier.KeyId()
	actorURI := strings.TrimSuffix(keyID, mainKeySuffix)
	if actorURI == "" {
		return "", errs.BadSignaturef("empty keyId")
	}

	pubKeyPEM, err := resolver.ResolvePublicKey(actorURI)
	if err != nil {
		return "", errs.Wrap(errs.BadSignature, "parse_and_verify: unknown key owner", err)
	}
	pubKey, err := util.ParsePublicKeyPEM(pubKeyPEM)
	if err != nil {
		return "", errs.Wrap(errs.BadSignature, "parse_and_verify: bad public key", err)
	}

	if err := verifier.Verify(pubKey, httpsig.RSA_SHA256); err != nil {
		return "", errs.Wrap(errs.BadSignature, "parse_and_verify: verification failed", err)
	}

	return actorURI, nil
}
