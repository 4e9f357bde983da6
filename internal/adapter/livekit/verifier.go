package livekit

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/webhook"
	"github.com/pscheid92/livecart/internal/domain"
)

// Verifier checks webhook signatures against the shared API key and secret
// using the LiveKit webhook receiver.
type Verifier struct {
	keys auth.KeyProvider
}

func NewVerifier(apiKey, apiSecret string) *Verifier {
	return &Verifier{keys: auth.NewSimpleKeyProvider(apiKey, apiSecret)}
}

// Verify returns an error wrapping domain.ErrAuthentication unless authHeader
// carries a valid token signed with the API secret whose body digest matches body.
func (v *Verifier) Verify(body []byte, authHeader string) error {
	token := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(authHeader), "Bearer "))
	if token == "" {
		return fmt.Errorf("%w: missing authorization", domain.ErrAuthentication)
	}

	// The receiver reads from a request; the body is already buffered and capped.
	req, err := http.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	}
	req.Header.Set("Authorization", token)

	if _, err := webhook.Receive(req, v.keys); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrAuthentication, err)
	}
	return nil
}
