package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const testSecret = "whsec_test_secret"

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Unix(1713542400, 0)

	tests := []struct {
		name    string
		header  string
		secret  string
		now     time.Time
		wantErr error
	}{
		{
			name:   "valid",
			header: SignPayload(payload, testSecret, now),
			secret: testSecret,
			now:    now,
		},
		{
			name:   "valid among several v1 signatures",
			header: strings.Replace(SignPayload(payload, testSecret, now), ",v1=", ",v1=deadbeef,v1=", 1),
			secret: testSecret,
			now:    now,
		},
		{
			name:    "wrong secret",
			header:  SignPayload(payload, "whsec_other", now),
			secret:  testSecret,
			now:     now,
			wantErr: ErrNoValidSignature,
		},
		{
			name:    "expired",
			header:  SignPayload(payload, testSecret, now.Add(-10*time.Minute)),
			secret:  testSecret,
			now:     now,
			wantErr: ErrTooOld,
		},
		{
			name:    "from the future",
			header:  SignPayload(payload, testSecret, now.Add(10*time.Minute)),
			secret:  testSecret,
			now:     now,
			wantErr: ErrTooOld,
		},
		{
			name:    "empty header",
			header:  "",
			secret:  testSecret,
			now:     now,
			wantErr: ErrNotSigned,
		},
		{
			name:    "garbage header",
			header:  "not-a-signature",
			secret:  testSecret,
			now:     now,
			wantErr: ErrInvalidHeader,
		},
		{
			name:    "missing timestamp",
			header:  "v1=abcdef",
			secret:  testSecret,
			now:     now,
			wantErr: ErrInvalidHeader,
		},
		{
			name:    "missing v1",
			header:  fmt.Sprintf("t=%d,v0=abcdef", now.Unix()),
			secret:  testSecret,
			now:     now,
			wantErr: ErrNoValidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(payload, tt.header, tt.secret, DefaultTolerance, tt.now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestVerifySignature_TamperedPayload(t *testing.T) {
	now := time.Now()
	header := SignPayload([]byte(`{"amount":1000}`), testSecret, now)

	err := VerifySignature([]byte(`{"amount":1}`), header, testSecret, DefaultTolerance, now)
	assert.ErrorIs(t, err, ErrNoValidSignature)
}

func TestHmac256(t *testing.T) {
	// RFC 4231 test case 2
	got := Hmac256([]byte("what do ya want for nothing?"), []byte("Jefe"))
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
}

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		kind   ErrorKind
		status int
	}{
		{KindCard, http.StatusPaymentRequired},
		{KindRateLimited, http.StatusTooManyRequests},
		{KindInvalidRequest, http.StatusBadRequest},
		{KindUnavailable, http.StatusServiceUnavailable},
		{KindAuthentication, http.StatusBadGateway},
		{KindAPI, http.StatusBadGateway},
	}

	for _, tt := range tests {
		err := &Error{Kind: tt.kind, Message: "x"}
		assert.Equal(t, tt.status, err.HTTPStatus(), string(tt.kind))
		assert.NotEmpty(t, err.PublicMessage())
	}
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(&Error{Kind: KindCard}))
	assert.True(t, IsClientError(fmt.Errorf("wrapped: %w", &Error{Kind: KindInvalidRequest})))
	assert.False(t, IsClientError(&Error{Kind: KindAPI}))
	assert.False(t, IsClientError(errors.New("plain")))
}
