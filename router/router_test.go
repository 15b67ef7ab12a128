package router

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	method, entrance string
}

func (f fakeSession) Send([]byte) error         { return nil }
func (f fakeSession) Receive() (Response, error) { return nil, nil }
func (f fakeSession) Header() (string, string)  { return f.method, f.entrance }
func (f fakeSession) PeerAddr() string          { return "127.0.0.1:0" }

func handlerNamed(name string) Handler {
	return func(Session) ([]byte, error) { return []byte(name), nil }
}

func TestLiteralRouteMatchesTrailingSlash(t *testing.T) {
	rt := New()
	rt.Handle(MustRoutePath("/welcome", Literal), handlerNamed("welcome"))

	h := rt.Lookup("/welcome/")
	out, err := h(fakeSession{entrance: "/welcome/"})
	require.NoError(t, err)
	require.Equal(t, "welcome", string(out))
}

func TestPrefixRoute(t *testing.T) {
	rt := New()
	rt.Handle(MustRoutePath("/api", Prefix), handlerNamed("api"))

	h := rt.Lookup("/api/v1/items")
	out, err := h(fakeSession{entrance: "/api/v1/items"})
	require.NoError(t, err)
	require.Equal(t, "api", string(out))

	h = rt.Lookup("/other")
	out, err = h(fakeSession{entrance: "/other"})
	require.NoError(t, err)
	require.Equal(t, `path "/other" is not found`, string(out))
}

func TestRegexRoute(t *testing.T) {
	rt := New()
	rt.Handle(MustRoutePath(`^/users/\d+$`, Regex), handlerNamed("user"))

	h := rt.Lookup("/users/42")
	out, err := h(fakeSession{entrance: "/users/42"})
	require.NoError(t, err)
	require.Equal(t, "user", string(out))

	h = rt.Lookup("/users/abc")
	out, err = h(fakeSession{entrance: "/users/abc"})
	require.NoError(t, err)
	require.Equal(t, `path "/users/abc" is not found`, string(out))
}

func TestFirstMatchWins(t *testing.T) {
	rt := New()
	rt.Handle(MustRoutePath("/a", Prefix), handlerNamed("first"))
	rt.Handle(MustRoutePath("/a/b", Literal), handlerNamed("second"))

	h := rt.Lookup("/a/b")
	out, _ := h(fakeSession{entrance: "/a/b"})
	require.Equal(t, "first", string(out))
}

func TestCustomNotFound(t *testing.T) {
	rt := New()
	rt.NotFound(handlerNamed("custom-404"))

	h := rt.Lookup("/missing")
	out, _ := h(fakeSession{entrance: "/missing"})
	require.Equal(t, "custom-404", string(out))
}
