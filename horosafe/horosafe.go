// CLAUDE:SUMMARY Bounded reads and URL scheme checks used by the sheet fetcher and the S3 snapshot backend.
// Package horosafe provides the small safety primitives used at the edges of
// the relay: bounded reads of request and response bodies, and URL checks
// for configured upstreams.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// MaxResponseBody is the default cap for HTTP body reads (10 MiB).
const MaxResponseBody int64 = 10 << 20

// ErrTooLarge is returned by LimitedReadAll when the limit is exceeded.
var ErrTooLarge = errors.New("horosafe: body exceeds limit")

// ErrUnsafeScheme is returned when a URL uses a non-HTTP(S) scheme.
var ErrUnsafeScheme = errors.New("horosafe: only http and https schemes are allowed")

// LimitedReadAll reads at most maxBytes from r. It returns ErrTooLarge
// (wrapped with the limit) if r holds more.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = MaxResponseBody
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, maxBytes)
	}
	return data, nil
}

// ValidateHTTPURL checks that rawURL is absolute, uses http or https, and
// names a host.
func ValidateHTTPURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("horosafe: invalid URL: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return fmt.Errorf("horosafe: URL has no host")
	}
	return nil
}
