package catalog

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// ErrorKind classifies input errors.
type ErrorKind int

// MalformedInput marks documents missing a field the playlist needs.
const MalformedInput ErrorKind = iota + 1

func (k ErrorKind) String() string {
	if k == MalformedInput {
		return "malformed input"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// MalformedInputError lists every problem found in the input documents.
type MalformedInputError struct {
	Problems []error
}

// Kind returns MalformedInput.
func (e *MalformedInputError) Kind() ErrorKind { return MalformedInput }

func (e *MalformedInputError) Error() string {
	merr := &multierror.Error{Errors: e.Problems, ErrorFormat: listFormat}
	return fmt.Sprintf("%s: %s", MalformedInput, merr.Error())
}

// Unwrap exposes the individual problems to errors.Is and errors.As.
func (e *MalformedInputError) Unwrap() []error { return e.Problems }

// IsMalformed reports whether err carries a MalformedInputError.
func IsMalformed(err error) bool {
	var merr *MalformedInputError
	return errors.As(err, &merr)
}

func listFormat(errs []error) string {
	if len(errs) == 1 {
		return errs[0].Error()
	}
	res := fmt.Sprintf("%d problems:", len(errs))
	for _, err := range errs {
		res += "\n\t* " + err.Error()
	}
	return res
}

// Validate checks that the documents carry every field used for rendering.
//
// Channels without clear keys are never rendered and are not checked. An empty
// string counts as missing: id, name, manifest_url, the User-Agent header, the
// first key and the auth token must be non-empty. The logo URL may be empty and
// genres may be an empty list, but not absent. All problems are collected and
// returned together as a *MalformedInputError.
func Validate(cat *Catalog, auth *Auth) error {
	var errs *multierror.Error

	if cat == nil {
		errs = multierror.Append(errs, errors.New("catalog is missing"))
	}
	if auth == nil || auth.HMAC == nil || auth.HMAC.HDNTL == nil {
		errs = multierror.Append(errs, errors.New("auth: hmac.hdntl.value is missing"))
	} else if auth.HMAC.HDNTL.Value == "" {
		errs = multierror.Append(errs, errors.New("auth: hmac.hdntl.value is empty"))
	}

	if cat != nil {
		for i, ch := range cat.Channels {
			if !ch.HasKeys() {
				continue
			}
			for _, err := range ch.problems() {
				errs = multierror.Append(errs, fmt.Errorf("channels[%d] (id %q): %w", i, ch.ID, err))
			}
		}
	}

	if errs.ErrorOrNil() == nil {
		return nil
	}
	return &MalformedInputError{Problems: errs.Errors}
}

func (c Channel) problems() (res []error) {
	if c.ID == "" {
		res = append(res, errors.New("id is missing"))
	}
	if c.Name == "" {
		res = append(res, errors.New("name is missing"))
	}
	if c.Genres == nil {
		res = append(res, errors.New("genres is missing"))
	}
	if c.ManifestURL == "" {
		res = append(res, errors.New("manifest_url is missing"))
	}
	if c.ManifestHeaders == nil {
		res = append(res, errors.New("manifest_headers is missing"))
	} else if ua, ok := c.ManifestHeaders[UserAgentHeader]; !ok {
		res = append(res, fmt.Errorf("manifest_headers has no %s", UserAgentHeader))
	} else if ua == "" {
		res = append(res, fmt.Errorf("manifest_headers %s is empty", UserAgentHeader))
	}
	if len(c.ClearKeys) > 0 && c.ClearKeys[0].Base64 == "" {
		res = append(res, errors.New("clearkeys[0].base64 is missing"))
	}
	return res
}
