package service

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeResourceURI(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://API.Example.COM/mcp", "https://api.example.com/mcp"},
		{"drops default https port", "https://api.example.com:443/mcp", "https://api.example.com/mcp"},
		{"drops default http port", "http://api.example.com:80/mcp", "http://api.example.com/mcp"},
		{"keeps non-default port", "https://api.example.com:8443/mcp", "https://api.example.com:8443/mcp"},
		{"strips trailing slash", "https://api.example.com/mcp/", "https://api.example.com/mcp"},
		{"strips root slash", "https://api.example.com/", "https://api.example.com"},
		{"preserves path case", "https://api.example.com/MCP/Api", "https://api.example.com/MCP/Api"},
		{"bare origin unchanged", "https://api.example.com", "https://api.example.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeResourceURI(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}

	t.Run("rejects relative uris", func(t *testing.T) {
		_, err := NormalizeResourceURI("/mcp/api")
		require.Error(t, err)
	})

	t.Run("rejects empty input", func(t *testing.T) {
		_, err := NormalizeResourceURI("")
		require.Error(t, err)
	})

	t.Run("is idempotent", func(t *testing.T) {
		once, err := NormalizeResourceURI("HTTPS://API.Example.COM:443/mcp/")
		require.NoError(t, err)
		twice, err := NormalizeResourceURI(once)
		require.NoError(t, err)
		require.Equal(t, once, twice)
	})
}

func TestAudienceMatches(t *testing.T) {
	t.Parallel()

	audience := "https://api.example.com/mcp"

	t.Run("exact match", func(t *testing.T) {
		require.True(t, AudienceMatches(audience, audience))
	})

	t.Run("path extension matches", func(t *testing.T) {
		require.True(t, AudienceMatches(audience, "https://api.example.com/mcp/tools"))
		require.True(t, AudienceMatches(audience, "https://api.example.com/mcp/tools/search"))
	})

	t.Run("sibling path with shared prefix does not match", func(t *testing.T) {
		require.False(t, AudienceMatches(audience, "https://api.example.com/mcp2"))
		require.False(t, AudienceMatches(audience, "https://api.example.com/mcpextra"))
	})

	t.Run("different host does not match", func(t *testing.T) {
		require.False(t, AudienceMatches(audience, "https://other.example.com/mcp"))
	})

	t.Run("parent path does not match", func(t *testing.T) {
		require.False(t, AudienceMatches(audience, "https://api.example.com"))
	})

	t.Run("empty sides never match", func(t *testing.T) {
		require.False(t, AudienceMatches("", audience))
		require.False(t, AudienceMatches(audience, ""))
	})
}
