package intuit

import "time"

// Tokens is the OAuth2 bearer credential pair for the ledger API.
// Expirations are absolute epoch milliseconds. The pair is a process-wide
// singleton persisted in the shared cache so that separate worker
// processes sharing one ledger account observe each other's refreshes.
type Tokens struct {
	AccessToken            string `json:"accessToken"`
	AccessTokenExpiration  int64  `json:"accessTokenExpiration"`
	RefreshToken           string `json:"refreshToken"`
	RefreshTokenExpiration int64  `json:"refreshTokenExpiration"`
}

// Valid reports whether the pair is usable at all: a refresh token must be
// present, and either the access token or the refresh token must be
// unexpired. An unexpired access token wins regardless of the refresh
// token's expiration.
func (t *Tokens) Valid(now time.Time) bool {
	if t == nil || t.RefreshToken == "" {
		return false
	}
	if t.AccessValid(now) {
		return true
	}
	return !expired(t.RefreshTokenExpiration, now)
}

// AccessValid reports whether the access token is present and unexpired.
func (t *Tokens) AccessValid(now time.Time) bool {
	return t != nil && t.AccessToken != "" && !expired(t.AccessTokenExpiration, now)
}

// Refreshable reports whether a refresh attempt is permitted: the refresh
// token exists and has not expired.
func (t *Tokens) Refreshable(now time.Time) bool {
	return t != nil && t.RefreshToken != "" && !expired(t.RefreshTokenExpiration, now)
}

func expired(epochMillis int64, now time.Time) bool {
	return epochMillis <= now.UnixMilli()
}

// tokensFromOAuth converts an OAuth token endpoint response into the
// persisted form, translating relative expiries into absolute millis.
func tokensFromOAuth(accessToken, refreshToken string, expiresIn, refreshExpiresIn int64, now time.Time) Tokens {
	return Tokens{
		AccessToken:            accessToken,
		AccessTokenExpiration:  now.UnixMilli() + expiresIn*1000,
		RefreshToken:           refreshToken,
		RefreshTokenExpiration: now.UnixMilli() + refreshExpiresIn*1000,
	}
}
