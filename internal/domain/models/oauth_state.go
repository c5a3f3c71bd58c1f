package models

import (
	"net/url"
	"time"

	"github.com/soleron/sessiond/pkg/errors"
	"github.com/soleron/sessiond/pkg/utils"
)

// OAuthStateRecord correlates an outbound authorization redirect with the
// inbound callback. Records are keyed by an opaque state token, live in the
// shared store under a TTL, and are consumable at most once. The token itself
// carries no meaning beyond correlation.
type OAuthStateRecord struct {
	Provider    string `json:"provider"`
	IssuedAt    int64  `json:"issued_at"`
	Nonce       string `json:"nonce"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// NewOAuthStateRecord builds a record for the given provider. redirectURL is
// optional; when present it must be an absolute URL.
func NewOAuthStateRecord(provider, redirectURL string) (*OAuthStateRecord, error) {
	if provider == "" {
		return nil, errors.ErrInvalidArgument.WithMessagef("provider is required")
	}
	if redirectURL != "" {
		u, err := url.Parse(redirectURL)
		if err != nil || !u.IsAbs() {
			return nil, errors.ErrInvalidArgument.WithMessagef("redirect URL must be absolute: %q", redirectURL)
		}
	}
	nonce, err := utils.NewOpaqueToken(16)
	if err != nil {
		return nil, err
	}
	return &OAuthStateRecord{
		Provider:    provider,
		IssuedAt:    time.Now().Unix(),
		Nonce:       nonce,
		RedirectURL: redirectURL,
	}, nil
}
