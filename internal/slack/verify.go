package slack

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"kakeibo/internal/cache"
)

const (
	HeaderSignature = "X-Slack-Signature"
	HeaderTimestamp = "X-Slack-Request-Timestamp"

	// MaxClockSkew bounds the age of a signed request in either direction.
	MaxClockSkew = 5 * time.Minute

	signatureVersion = "v0"
	replayCacheSize  = 10000
)

var (
	ErrVerificationNotConfigured = errors.New("slack verification not configured")
	ErrInvalidSignature          = errors.New("invalid slack signature")
	ErrStaleRequest              = errors.New("slack request timestamp outside allowed window")
	ErrReplayedRequest           = errors.New("slack request already processed")
	ErrInvalidToken              = errors.New("invalid slack token")
)

// Verifier authenticates slash commands. A signing secret takes precedence
// over the legacy verification token.
type Verifier struct {
	signingSecret string
	token         string
	seen          *cache.LRUCache[struct{}]
	now           func() time.Time
}

func NewVerifier(signingSecret, token string) *Verifier {
	return &Verifier{
		signingSecret: signingSecret,
		token:         token,
		// A signature stays acceptable for up to twice the skew window.
		seen: cache.NewLRUCache[struct{}](replayCacheSize, 2*MaxClockSkew),
		now:  time.Now,
	}
}

// WithClock replaces the time source for both the window check and the replay cache.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	v.seen.WithClock(now)
	return v
}

// ReplayCache exposes the seen-signature cache for periodic cleanup.
func (v *Verifier) ReplayCache() cache.Cleaner {
	return v.seen
}

// Mode returns "signature", "token" or "" when nothing is configured.
func (v *Verifier) Mode() string {
	switch {
	case v.signingSecret != "":
		return "signature"
	case v.token != "":
		return "token"
	default:
		return ""
	}
}

// Verify checks a request given its headers, raw body and the form token field.
func (v *Verifier) Verify(h http.Header, body []byte, formToken string) error {
	switch v.Mode() {
	case "signature":
		return v.verifySignature(h.Get(HeaderSignature), h.Get(HeaderTimestamp), body)
	case "token":
		if formToken == "" || subtle.ConstantTimeCompare([]byte(formToken), []byte(v.token)) != 1 {
			return ErrInvalidToken
		}
		return nil
	default:
		return ErrVerificationNotConfigured
	}
}

func (v *Verifier) verifySignature(sig, tsHeader string, body []byte) error {
	ts, err := strconv.ParseInt(strings.TrimSpace(tsHeader), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	skew := v.now().Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxClockSkew {
		return ErrStaleRequest
	}

	expected := Sign(v.signingSecret, ts, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return ErrInvalidSignature
	}
	if !v.seen.SetIfAbsent(sig, struct{}{}) {
		return ErrReplayedRequest
	}
	return nil
}

// Sign computes the v0 signature of body sent at unix time ts.
func Sign(secret string, ts int64, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%d:", signatureVersion, ts)
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
