package credentials

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

// OAuthValues is the map[string]string shape an oauth2.Token is flattened
// into before going through Store.Save, and parsed back from after Get.
// Keeping OAuth tokens inside the generic string-map contract (rather than
// giving CredentialStore a second, oauth-specific method) keeps the
// external interface in §6.2 a single shape regardless of credential kind.
type OAuthValues struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	Expiry       time.Time
}

func FlattenToken(tok *oauth2.Token) map[string]string {
	return map[string]string{
		"access_token":  tok.AccessToken,
		"token_type":    tok.TokenType,
		"refresh_token": tok.RefreshToken,
		"expiry":        strconv.FormatInt(tok.Expiry.Unix(), 10),
	}
}

func ParseToken(values map[string]string) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  values["access_token"],
		TokenType:    values["token_type"],
		RefreshToken: values["refresh_token"],
	}
	if raw, ok := values["expiry"]; ok {
		if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
			tok.Expiry = time.Unix(secs, 0)
		}
	}
	return tok
}

// RefreshIfNeeded exchanges an expired refresh token for a fresh access
// token via conf's TokenSource, returning the original token unchanged if
// it still has life left.
func RefreshIfNeeded(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) (*oauth2.Token, error) {
	if tok.Valid() {
		return tok, nil
	}
	src := conf.TokenSource(ctx, tok)
	fresh, err := src.Token()
	if err != nil {
		return nil, err
	}
	return fresh, nil
}
