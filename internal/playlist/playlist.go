// Package playlist renders the channel catalog as an extended M3U playlist for
// players using Kodi's inputstream.adaptive with clearkey DRM.
package playlist

import (
	"bytes"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/knpwrs/tsm3u/internal/catalog"
)

// DefaultEPGURL is the program guide referenced from the playlist header.
const DefaultEPGURL = "https://raw.githubusercontent.com/mitthu786/tvepg/main/tataplay/epg.xml.gz"

// Options configures rendering.
type Options struct {
	// EPGURL is written to the x-tvg-url header attribute
	EPGURL string
}

// DefaultOptions returns the default rendering options.
func DefaultOptions() Options {
	return Options{EPGURL: DefaultEPGURL}
}

// Result is a rendered playlist.
type Result struct {
	Text     string
	Rendered int // channels written
	Skipped  int // channels without clear keys
}

// Render produces the playlist text for the catalog.
//
// The documents are validated first, nothing is rendered if any rendered field
// is missing. Channels keep their catalog order and only the first clear key of
// each channel is written. The auth cookie is attached to every channel both as
// an HTTP header and as a manifest URL suffix.
//
// Parameters:
//   - cat: The channel catalog
//   - auth: The authorization document holding the cookie
//   - opts: Rendering options
//
// Returns the rendered playlist or a *catalog.MalformedInputError.
func Render(cat *catalog.Catalog, auth *catalog.Auth, opts Options) (Result, error) {
	if err := catalog.Validate(cat, auth); err != nil {
		return Result{}, err
	}

	var res Result
	var b strings.Builder
	fmt.Fprintf(&b, "#EXTM3U x-tvg-url=\"%s\"\n\n", opts.EPGURL)

	cookie := auth.Cookie()
	header, err := jsonLiteral(map[string]string{"cookie": cookie})
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode cookie header: %w", err)
	}

	for _, ch := range cat.Channels {
		if !ch.HasKeys() {
			res.Skipped++
			continue
		}

		key, err := jsonLiteral(ch.ClearKeys[0].Base64)
		if err != nil {
			return Result{}, fmt.Errorf("failed to encode key of %s: %w", ch.ID, err)
		}

		writeChannel(&b, ch, key, header, cookie)
		res.Rendered++
	}

	res.Text = b.String()
	return res, nil
}

// writeChannel writes one channel block followed by a blank line.
func writeChannel(b *strings.Builder, ch catalog.Channel, key, header, cookie string) {
	fmt.Fprintf(b, "#EXTINF:-1 tvg-id=\"%s\" group-title=\"%s\", tvg-logo=\"%s\", %s\n",
		ch.ID, strings.Join(ch.Genres, ", "), ch.LogoURL, ch.Name)
	b.WriteString("#KODIPROP:inputstream.adaptive.license_type=clearkey\n")
	fmt.Fprintf(b, "#KODIPROP:inputstream.adaptive.license_key=%s\n", key)
	fmt.Fprintf(b, "#EXTVLCOPT:http-user-agent=%s\n", ch.ManifestHeaders[catalog.UserAgentHeader])
	fmt.Fprintf(b, "#EXTHTTP:%s\n", header)
	fmt.Fprintf(b, "%s|cookie:%s\n\n", ch.ManifestURL, cookie)
}

// jsonLiteral encodes v as compact JSON, leaving <, > and & unescaped.
func jsonLiteral(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
