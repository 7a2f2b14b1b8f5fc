package urlkeep

import (
	"net/url"
	"strings"
)

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// CanonicalizeURL normalizes rawURL into the form used as the deduplication
// key. Scheme and host are lower-cased, default ports are dropped and a lone
// trailing slash on an empty path is removed. Query and fragment are kept as
// given. Returns EINVALID if rawURL is not an absolute URL with a host.
func CanonicalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", Errorf(EINVALID, "URL required")
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", WrapError(EINVALID, err, "invalid URL %q", rawURL)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", Errorf(EINVALID, "URL %q must be absolute", rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", Errorf(EINVALID, "URL %q has no host", rawURL)
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" && port != defaultPorts[u.Scheme] {
		host += ":" + port
	}
	u.Host = host

	if u.Path == "/" && u.RawPath == "" {
		u.Path = ""
	}

	out := u.String()
	// An empty fragment is still part of the URL as given.
	if u.Fragment == "" && strings.HasSuffix(rawURL, "#") {
		out += "#"
	}
	return out, nil
}

// IsBareURL reports whether text is nothing but an http(s) URL, which is what
// marks a pending entry as a URL import.
func IsBareURL(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" || strings.ContainsAny(text, " \t\r\n") {
		return false
	}
	u, err := url.Parse(text)
	if err != nil || u.Host == "" {
		return false
	}
	return strings.EqualFold(u.Scheme, "http") || strings.EqualFold(u.Scheme, "https")
}
