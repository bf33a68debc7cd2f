// Package payment verifies and decodes payment provider callbacks.  The
// provider signs the raw request body with a shared secret; a callback
// whose signature does not verify is never acted on.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body.
const SignatureHeader = "X-Payment-Signature"

// Webhook event names.
const (
	EventCaptured = "payment.captured"
	EventFailed   = "payment.failed"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

// Event is a decoded payment callback.
type Event struct {
	Event     string `json:"event"`
	BookingID uint64 `json:"booking_id"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason,omitempty"`
}

// Verifier checks callback signatures.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the signature the provider would send for body.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against body in constant time.  An empty
// secret never verifies.
func (v *Verifier) Verify(body []byte, signature string) error {
	if len(v.secret) == 0 || signature == "" {
		return ErrInvalidSignature
	}
	got, err := hex.DecodeString(strings.TrimSpace(strings.TrimPrefix(signature, "sha256=")))
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// Parse verifies body and decodes it.
func (v *Verifier) Parse(body []byte, signature string) (*Event, error) {
	if err := v.Verify(body, signature); err != nil {
		return nil, err
	}
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if evt.BookingID == 0 {
		return nil, fmt.Errorf("%w: booking_id is required", ErrInvalidPayload)
	}
	switch evt.Event {
	case EventCaptured:
		if evt.PaymentID == "" {
			return nil, fmt.Errorf("%w: payment_id is required", ErrInvalidPayload)
		}
	case EventFailed:
	default:
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidPayload, evt.Event)
	}
	return &evt, nil
}
