package shortener

import (
	"fmt"
	"net/url"
	"strings"
)

// MaxURLLength bounds the length of a link target.
const MaxURLLength = 2048

// NormalizeURL validates a link target and returns it with the scheme and
// host lowercased and the default port removed. Path, query and fragment are
// kept as given.
func NormalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("%w: original url is required", ErrInvalidInput)
	}

	if len(rawURL) > MaxURLLength {
		return "", fmt.Errorf("%w: original url is longer than %d characters", ErrInvalidInput, MaxURLLength)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: original url is malformed", ErrInvalidInput)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: original url must use http or https", ErrInvalidInput)
	}

	if u.Host == "" {
		return "", fmt.Errorf("%w: original url has no host", ErrInvalidInput)
	}

	u.Host = strings.ToLower(u.Host)

	host := u.Host
	if strings.HasSuffix(host, ":80") && u.Scheme == "http" {
		u.Host = strings.TrimSuffix(host, ":80")
	} else if strings.HasSuffix(host, ":443") && u.Scheme == "https" {
		u.Host = strings.TrimSuffix(host, ":443")
	}

	return u.String(), nil
}
