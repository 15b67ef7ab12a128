// Package router matches a request's entrance string against a table of
// literal, prefix, or regex patterns and resolves a handler.
package router

import (
	"fmt"
	"regexp"
	"strings"
)

// RouteType tags how a RoutePath's pattern is matched against an
// entrance string.
type RouteType int

const (
	// Literal matches an entrance exactly, ignoring trailing slashes on
	// both sides.
	Literal RouteType = iota
	// Prefix matches when the entrance starts with the pattern.
	Prefix
	// Regex matches when the pattern, compiled as a regular expression,
	// finds anywhere in the entrance.
	Regex
)

func (t RouteType) String() string {
	switch t {
	case Literal:
		return "literal"
	case Prefix:
		return "prefix"
	case Regex:
		return "regex"
	default:
		return "unknown"
	}
}

// RoutePath is one registered pattern: its raw text plus how to
// interpret it.
type RoutePath struct {
	pattern string
	kind    RouteType
	re      *regexp.Regexp
}

// NewRoutePath builds a RoutePath. Trailing slashes on a Literal or
// Prefix pattern are trimmed up front so registration and lookup agree
// on normalization. A Regex pattern is compiled immediately so a bad
// expression fails at registration, not at first request.
func NewRoutePath(pattern string, kind RouteType) (RoutePath, error) {
	rp := RoutePath{pattern: pattern, kind: kind}
	switch kind {
	case Literal, Prefix:
		rp.pattern = strings.TrimRight(pattern, "/")
	case Regex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return RoutePath{}, fmt.Errorf("router: compiling pattern %q: %w", pattern, err)
		}
		rp.re = re
	default:
		return RoutePath{}, fmt.Errorf("router: unknown route type %v", kind)
	}
	return rp, nil
}

// MustRoutePath is NewRoutePath for call sites registering routes at
// startup, where a bad pattern is a programming error.
func MustRoutePath(pattern string, kind RouteType) RoutePath {
	rp, err := NewRoutePath(pattern, kind)
	if err != nil {
		panic(err)
	}
	return rp
}

// check reports whether entrance matches this route's pattern.
func (rp RoutePath) check(entrance string) bool {
	switch rp.kind {
	case Regex:
		return rp.re.MatchString(entrance)
	case Prefix:
		return strings.HasPrefix(entrance, rp.pattern)
	default: // Literal
		return rp.pattern == strings.TrimRight(entrance, "/")
	}
}

func (rp RoutePath) String() string {
	return fmt.Sprintf("%s(%q)", rp.kind, rp.pattern)
}

// Handler owns a session exclusively once selected; it drives whatever
// send/receive traffic the entrance's contract calls for and returns the
// bytes the server sends back as the terminal message.
type Handler func(Session) ([]byte, error)

// Session is the minimal surface a Handler needs from a connection. The
// root package wraps its *oblivion.Session in an adapter that implements
// it, so router never imports the root package and the wire layer and
// dispatch form no import cycle.
type Session interface {
	Send([]byte) error
	Receive() (Response, error)
	Header() (method, entrance string)
	PeerAddr() string
}

// Response is the minimal surface router needs from a received message.
type Response interface {
	Bytes() []byte
}

type route struct {
	path    RoutePath
	handler Handler
}

// Router holds an ordered table of routes plus the implicit fallback
// handler returned when nothing matches.
type Router struct {
	routes   []route
	notFound Handler
}

// New returns a Router whose fallback handler is the built-in
// not-found responder; callers may override it with NotFound.
func New() *Router {
	return &Router{notFound: defaultNotFound}
}

// Handle registers a route. Routes are scanned in registration order,
// first match wins, so more specific patterns should be registered
// before broader ones that could also match.
func (r *Router) Handle(path RoutePath, handler Handler) *Router {
	r.routes = append(r.routes, route{path: path, handler: handler})
	return r
}

// NotFound overrides the fallback handler run when no route matches.
func (r *Router) NotFound(handler Handler) *Router {
	r.notFound = handler
	return r
}

// Lookup scans the route table for the first pattern matching entrance
// and returns its handler, or the fallback handler if none match.
// Lookup never fails to return a handler.
func (r *Router) Lookup(entrance string) Handler {
	for _, rt := range r.routes {
		if rt.path.check(entrance) {
			return rt.handler
		}
	}
	return r.notFound
}

func defaultNotFound(s Session) ([]byte, error) {
	_, entrance := s.Header()
	return []byte(fmt.Sprintf("path %q is not found", entrance)), nil
}
