package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		port     int
		isSecure bool
		want     string
	}{
		{
			name:     "bare hostname insecure",
			hostname: "somehost",
			port:     0,
			isSecure: false,
			want:     "http://somehost",
		},
		{
			name:     "bare hostname with port insecure",
			hostname: "somehost",
			port:     8080,
			isSecure: false,
			want:     "http://somehost:8080",
		},
		{
			name:     "bare hostname with port secure",
			hostname: "somehost",
			port:     8080,
			isSecure: true,
			want:     "https://somehost:8080",
		},
		{
			name:     "https scheme kept even when insecure requested",
			hostname: "https://somehost.withscheme",
			port:     0,
			isSecure: false,
			want:     "https://somehost.withscheme",
		},
		{
			name:     "http scheme kept even when secure requested",
			hostname: "http://somehost.withscheme",
			port:     0,
			isSecure: true,
			want:     "http://somehost.withscheme",
		},
		{
			name:     "inline port wins over port argument",
			hostname: "somehost.withport:8080",
			port:     9090,
			isSecure: true,
			want:     "https://somehost.withport:8080",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EndpointURL(tt.hostname, tt.port, tt.isSecure)
			assert.Equal(t, tt.want, got)
		})
	}
}
