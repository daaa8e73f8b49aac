package driver

import (
	"strconv"
	"strings"
)

// EndpointURL assembles the endpoint URL for a storage backend from a
// hostname, an optional port (0 means absent), and a TLS flag.
//
// A scheme already embedded in hostname is kept verbatim, ignoring isSecure.
// The port argument is appended only when the hostname does not already
// carry an inline port; an inline port wins over the argument.
func EndpointURL(hostname string, port int, isSecure bool) string {
	endpoint := hostname
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		scheme := "http"
		if isSecure {
			scheme = "https"
		}
		endpoint = scheme + "://" + hostname
	}

	authority := endpoint[strings.Index(endpoint, "://")+len("://"):]
	if port != 0 && !strings.Contains(authority, ":") {
		endpoint += ":" + strconv.Itoa(port)
	}
	return endpoint
}
