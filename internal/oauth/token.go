package oauth

import (
	"time"
)

// ExpirySkew is subtracted from the token expiry when checking
// validity, so a token about to expire mid-request is refreshed
// ahead of time instead of failing the call.
const ExpirySkew = 60 * time.Second

// TokenSet is the credential triple kept per connected provider.
type TokenSet struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (t TokenSet) Empty() bool {
	return t.AccessToken == "" && t.RefreshToken == ""
}

// Valid reports whether the access token can still be used, with the
// expiry skew applied.
func (t TokenSet) Valid(now time.Time) bool {
	if t.AccessToken == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return now.Before(t.ExpiresAt.Add(-ExpirySkew))
}
