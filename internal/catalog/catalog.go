// Package catalog holds the channel catalog and authorization documents served by
// the playlist API, together with their decoding and validation.
//
// Validation treats an empty string the same as an absent field, except for the
// logo URL which may be empty.
package catalog

import (
	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// UserAgentHeader is the manifest header rendered as the player user agent.
const UserAgentHeader = "User-Agent"

// Catalog is the channel catalog document.
type Catalog struct {
	Channels []Channel `json:"channels"`
}

// Channel is a single catalog entry.
type Channel struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Genres          []string          `json:"genres"`
	LogoURL         string            `json:"logo_url"`
	ManifestURL     string            `json:"manifest_url"`
	ManifestHeaders map[string]string `json:"manifest_headers"`
	ClearKeys       []ClearKey        `json:"clearkeys"`
}

// ClearKey is a clearkey DRM key in base64 form.
type ClearKey struct {
	Base64 string `json:"base64"`
}

// HasKeys reports whether the channel carries at least one clear key.
func (c Channel) HasKeys() bool {
	return len(c.ClearKeys) > 0
}

// Auth is the authorization document carrying the CDN token cookie.
type Auth struct {
	HMAC *HMAC `json:"hmac"`
}

// HMAC groups the signed tokens of the authorization document.
type HMAC struct {
	HDNTL *Token `json:"hdntl"`
}

// Token is a single signed token value.
type Token struct {
	Value string `json:"value"`
}

// Cookie returns the hdntl token, empty if the document lacks it.
func (a Auth) Cookie() string {
	if a.HMAC == nil || a.HMAC.HDNTL == nil {
		return ""
	}
	return a.HMAC.HDNTL.Value
}

// envelope is the API response wrapper, documents live under "data".
type envelope struct {
	Data json.RawMessage `json:"data"`
}

// DecodeCatalog unwraps and decodes a catalog API response.
func DecodeCatalog(raw []byte) (*Catalog, error) {
	res := &Catalog{}
	if err := decodeEnvelope(raw, res); err != nil {
		return nil, errors.Wrap(err, "can't decode catalog")
	}
	return res, nil
}

// DecodeAuth unwraps and decodes an authorization API response.
func DecodeAuth(raw []byte) (*Auth, error) {
	res := &Auth{}
	if err := decodeEnvelope(raw, res); err != nil {
		return nil, errors.Wrap(err, "can't decode auth document")
	}
	return res, nil
}

func decodeEnvelope(raw []byte, v interface{}) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &MalformedInputError{Problems: []error{err}}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return &MalformedInputError{Problems: []error{errors.New("missing data")}}
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &MalformedInputError{Problems: []error{err}}
	}
	return nil
}
