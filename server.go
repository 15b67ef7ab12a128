package oblivion

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/oblivion-proto/oblivion/common/log"
	"github.com/oblivion-proto/oblivion/router"
)

// routerSession adapts a *Session to router.Session, keeping the wire
// package free of any dependency on router's types.
type routerSession struct {
	s *Session
}

func (rs routerSession) Send(b []byte) error { return rs.s.Send(b) }

func (rs routerSession) Receive() (router.Response, error) {
	resp, err := rs.s.Receive()
	if err != nil {
		return nil, err
	}
	return routerResponse{resp}, nil
}

func (rs routerSession) Header() (method, entrance string) {
	if h := rs.s.Header(); h != nil {
		return h.Method, h.Entrance
	}
	return "", ""
}

func (rs routerSession) PeerAddr() string {
	if a := rs.s.PeerAddr(); a != nil {
		return a.String()
	}
	return ""
}

type routerResponse struct {
	r *Response
}

func (rr routerResponse) Bytes() []byte { return rr.r.Content }

// Server accepts TCP connections, runs the responder handshake on each,
// and dispatches to router-selected handlers.
type Server struct {
	host   string
	port   int
	router *router.Router
	limits Limits
	replay *pubkeyFilter

	ln net.Listener
	wg sync.WaitGroup
}

// NewServer builds a Server bound to host:port, dispatching through
// router once started.
func NewServer(host string, port int, rt *router.Router) *Server {
	return &Server{
		host:   host,
		port:   port,
		router: rt,
		limits: DefaultLimits(),
		replay: newPubkeyFilter(),
	}
}

// WithLimits overrides the server's defensive length limits.
func (srv *Server) WithLimits(l Limits) *Server {
	srv.limits = l.orDefaults()
	return srv
}

// Run binds the listener, prints a startup banner, and accepts
// connections until a SIGINT/SIGTERM or Close stops it. It blocks until
// every in-flight handler has returned.
func (srv *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", srv.host, srv.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("oblivion: listen %s: %w", addr, err)
	}
	srv.ln = ln

	printBanner(addr)
	log.Noticef("server: listening on %s", addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	acceptDone := make(chan error, 1)
	go func() {
		acceptDone <- srv.acceptLoop()
	}()

	select {
	case <-sigChan:
		log.Noticef("server: shutdown signal received")
	case err := <-acceptDone:
		if err != nil {
			log.Errorf("server: accept loop stopped: %v", err)
		}
	}

	_ = srv.ln.Close()
	srv.wg.Wait()
	log.Noticef("server: all connections drained, exiting")
	return nil
}

// Close stops the accept loop without waiting for in-flight handlers.
func (srv *Server) Close() error {
	if srv.ln == nil {
		return nil
	}
	return srv.ln.Close()
}

func (srv *Server) acceptLoop() error {
	for {
		conn, err := srv.ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				continue
			}
			return err
		}
		srv.wg.Add(1)
		go func() {
			defer srv.wg.Done()
			srv.handle(conn)
		}()
	}
}

func (srv *Server) handle(conn net.Conn) {
	peer := conn.RemoteAddr().String()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("server: %s: handler panic: %v", peer, r)
		}
	}()

	if err := tuneTCP(conn); err != nil {
		log.Warnf("server: %s: tcp tuning failed: %v", peer, err)
	}

	sess := newSession(conn, srv.limits)
	sess.replay = srv.replay
	defer sess.Close()

	if err := sess.handshakeResponder(); err != nil {
		log.Warnf("server: %s: handshake failed: %v", peer, err)
		return
	}

	header := sess.Header()
	log.Noticef("%s -> %q OK", peer, header.String())

	handler := srv.router.Lookup(header.Entrance)
	reply, err := handler(routerSession{sess})
	if err != nil {
		log.Errorf("server: %s: handler error: %v", peer, err)
		reply = []byte(err.Error())
	}

	if err := sess.sendTerminal(reply); err != nil {
		log.Warnf("server: %s: sending terminal reply: %v", peer, err)
		return
	}
	log.Noticef("%s <- %q OK", peer, header.String())
}
