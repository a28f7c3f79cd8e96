package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectHostname(t *testing.T) {
	tests := []struct {
		name         string
		projectID    int64
		customDomain string
		want         string
	}{
		{
			name:      "synthesized when no domain",
			projectID: 7,
			want:      "project-7.local",
		},
		{
			name:         "blank domain is ignored",
			projectID:    7,
			customDomain: "   ",
			want:         "project-7.local",
		},
		{
			name:         "custom domain wins",
			projectID:    7,
			customDomain: "shop.example.com",
			want:         "shop.example.com",
		},
		{
			name:         "custom domain normalized",
			projectID:    7,
			customDomain: "Shop.Example.COM.",
			want:         "shop.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectHostname(tt.projectID, tt.customDomain)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeHostname(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		want     string
		wantErr  bool
	}{
		{"simple", "example.com", "example.com", false},
		{"with port", "example.com:8080", "example.com", false},
		{"nested subdomain", "v1.api.example.com", "v1.api.example.com", false},
		{"single label", "localhost", "localhost", false},
		{"empty", "", "", true},
		{"directive injection", "example.com; return 302 http://evil", "", true},
		{"leading hyphen", "-bad.example.com", "", true},
		{"empty label", "a..b", "", true},
		{"underscore", "my_app.example.com", "", true},
		{"brace", "example.com{", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeHostname(tt.hostname)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidHostname)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "http://project-7.local", PublicURL("project-7.local"))
}
