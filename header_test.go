package oblivion

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequestHeader(t *testing.T) {
	h, err := ParseRequestHeader("CONNECT /welcome Oblivion/2.0")
	require.NoError(t, err)
	require.Equal(t, "CONNECT", h.Method)
	require.Equal(t, "/welcome", h.Entrance)
	require.Equal(t, "Oblivion", h.Protocol)
	require.Equal(t, 2, h.VersionMajor)
	require.Equal(t, 0, h.VersionMinor)
	require.Equal(t, "CONNECT /welcome Oblivion/2.0", h.String())
}

func TestParseRequestHeaderRejectsWrongTokenCount(t *testing.T) {
	_, err := ParseRequestHeader("CONNECT /welcome")
	require.ErrorIs(t, err, ErrInvalidHeader)

	_, err = ParseRequestHeader("CONNECT /welcome Oblivion/2.0 extra")
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestParseRequestHeaderRejectsMissingVersion(t *testing.T) {
	_, err := ParseRequestHeader("CONNECT /welcome Oblivion")
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestParseEndpointDefaults(t *testing.T) {
	ep, err := ParseEndpoint("example.com")
	require.NoError(t, err)
	require.Equal(t, "example.com", ep.Host)
	require.Equal(t, 80, ep.Port)
	require.Equal(t, "/", ep.Entrance)
}

func TestParseEndpointFull(t *testing.T) {
	ep, err := ParseEndpoint("oblivion://example.com:9000/api/items")
	require.NoError(t, err)
	require.Equal(t, "example.com", ep.Host)
	require.Equal(t, 9000, ep.Port)
	require.Equal(t, "/api/items", ep.Entrance)
	require.Equal(t, "oblivion://example.com:9000/api/items", ep.String())
}

func TestParseEndpointRejectsBadScheme(t *testing.T) {
	_, err := ParseEndpoint("http://example.com")
	require.ErrorIs(t, err, ErrInvalidEndpoint)
}

func TestParseEndpointRejectsEmpty(t *testing.T) {
	_, err := ParseEndpoint("")
	require.ErrorIs(t, err, ErrInvalidEndpoint)
}
