package webhook

import (
	"crypto/hmac"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v74/webhook"
)

const (
	SignatureHeader  = "Stripe-Signature"
	DefaultTolerance = 5 * time.Minute
)

var (
	ErrSignatureMalformed = errors.New("signature header is malformed")
	ErrSignatureMismatch  = errors.New("signature does not match payload")
	ErrSignatureStale     = errors.New("signature timestamp outside tolerance")
)

// IsSignatureError reports whether err is one of the verifier failures.
func IsSignatureError(err error) bool {
	return errors.Is(err, ErrSignatureMalformed) ||
		errors.Is(err, ErrSignatureMismatch) ||
		errors.Is(err, ErrSignatureStale)
}

type Verifier struct {
	tolerance time.Duration
	now       func() time.Time
}

func NewVerifier(tolerance time.Duration) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Verifier{tolerance: tolerance, now: time.Now}
}

// WithClock returns a copy of the verifier that reads time from now.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	c := *v
	c.now = now
	return &c
}

// Verify checks a `t=<unix>,v1=<hex>` header against the raw request body.
// payload must be the bytes exactly as received.
func (v *Verifier) Verify(payload []byte, header, secret string) error {
	ts, signatures, err := parseHeader(header)
	if err != nil {
		return err
	}

	age := v.now().Sub(ts)
	if age > v.tolerance || age < -v.tolerance {
		return ErrSignatureStale
	}

	if secret == "" {
		return ErrSignatureMismatch
	}

	expected := webhook.ComputeSignature(ts, payload, secret)
	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

func parseHeader(header string) (time.Time, [][]byte, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return time.Time{}, nil, ErrSignatureMalformed
	}

	var (
		ts         time.Time
		haveTS     bool
		signatures [][]byte
	)

	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			return time.Time{}, nil, ErrSignatureMalformed
		}

		switch parts[0] {
		case "t":
			if haveTS {
				return time.Time{}, nil, ErrSignatureMalformed
			}
			unix, err := strconv.ParseInt(parts[1], 10, 64)
			if err != nil {
				return time.Time{}, nil, ErrSignatureMalformed
			}
			ts = time.Unix(unix, 0)
			haveTS = true
		case "v1":
			sig, err := hex.DecodeString(parts[1])
			if err != nil {
				continue
			}
			signatures = append(signatures, sig)
		default:
			// v0 and future schemes are not trusted
		}
	}

	if !haveTS || len(signatures) == 0 {
		return time.Time{}, nil, ErrSignatureMalformed
	}
	return ts, signatures, nil
}
