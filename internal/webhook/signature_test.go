package webhook

import (
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v74/webhook"
)

const testSecret = "whsec_test_secret"

func signedHeader(payload []byte, secret string, ts time.Time) string {
	sig := webhook.ComputeSignature(ts, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(sig))
}

func TestVerifier_Verify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	v := NewVerifier(5 * time.Minute).WithClock(func() time.Time { return now })
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	tests := []struct {
		name    string
		payload []byte
		header  string
		secret  string
		wantErr error
	}{
		{
			name:    "valid signature",
			payload: payload,
			header:  signedHeader(payload, testSecret, now),
			secret:  testSecret,
		},
		{
			name:    "valid signature among several v1 entries",
			payload: payload,
			header:  "t=1700000000,v1=deadbeef," + signedHeader(payload, testSecret, now)[len("t=1700000000,"):],
			secret:  testSecret,
		},
		{
			name:    "signature from another secret",
			payload: payload,
			header:  signedHeader(payload, "whsec_other", now),
			secret:  testSecret,
			wantErr: ErrSignatureMismatch,
		},
		{
			name:    "body altered after signing",
			payload: []byte(`{"id":"evt_1","type":"checkout.session.completed" }`),
			header:  signedHeader(payload, testSecret, now),
			secret:  testSecret,
			wantErr: ErrSignatureMismatch,
		},
		{
			name:    "replay of a valid payload with a stale timestamp",
			payload: payload,
			header:  signedHeader(payload, testSecret, now.Add(-6*time.Minute)),
			secret:  testSecret,
			wantErr: ErrSignatureStale,
		},
		{
			name:    "timestamp too far in the future",
			payload: payload,
			header:  signedHeader(payload, testSecret, now.Add(6*time.Minute)),
			secret:  testSecret,
			wantErr: ErrSignatureStale,
		},
		{
			name:    "timestamp at the edge of the window",
			payload: payload,
			header:  signedHeader(payload, testSecret, now.Add(-5*time.Minute)),
			secret:  testSecret,
		},
		{
			name:    "empty header",
			payload: payload,
			header:  "",
			secret:  testSecret,
			wantErr: ErrSignatureMalformed,
		},
		{
			name:    "missing timestamp",
			payload: payload,
			header:  "v1=abcdef",
			secret:  testSecret,
			wantErr: ErrSignatureMalformed,
		},
		{
			name:    "non numeric timestamp",
			payload: payload,
			header:  "t=yesterday,v1=abcdef",
			secret:  testSecret,
			wantErr: ErrSignatureMalformed,
		},
		{
			name:    "only v0 signatures",
			payload: payload,
			header:  "t=1700000000,v0=abcdef",
			secret:  testSecret,
			wantErr: ErrSignatureMalformed,
		},
		{
			name:    "garbage pair",
			payload: payload,
			header:  "t=1700000000,nonsense",
			secret:  testSecret,
			wantErr: ErrSignatureMalformed,
		},
		{
			name:    "empty secret never verifies",
			payload: payload,
			header:  signedHeader(payload, "", now),
			secret:  "",
			wantErr: ErrSignatureMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.payload, tt.header, tt.secret)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsSignatureError(err))
		})
	}
}

func TestVerifier_RejectsMismatchRegardlessOfPayload(t *testing.T) {
	now := time.Now()
	v := NewVerifier(0)
	header := signedHeader([]byte("original"), testSecret, now)

	for _, body := range []string{"", "{}", "original ", `{"id":"evt_2"}`, "ORIGINAL"} {
		assert.ErrorIs(t, v.Verify([]byte(body), header, testSecret), ErrSignatureMismatch, body)
	}
}
