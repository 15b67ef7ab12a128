package oblivion

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/oblivion-proto/oblivion/csrand"
)

// Response is what Session.Receive returns: the flag that accompanied
// the payload and the decrypted content itself.
type Response struct {
	Content  []byte
	Entrance string
	Flag     uint32
}

// Text decodes Content as UTF-8.
func (r *Response) Text() (string, error) {
	if !isValidUTF8(r.Content) {
		return "", fmt.Errorf("oblivion: response content is not valid UTF-8")
	}
	return string(r.Content), nil
}

// JSON decodes Content as JSON into v.
func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.Content, v)
}

// ListenCallback is invoked once per received message while a listening
// loop is active. Returning false stops the loop.
type ListenCallback func(*Response, *Session) bool

// Session holds the framed socket, derived key, request metadata, and
// closed flag for one Oblivion conversation, and orchestrates the
// handshake in either direction.
type Session struct {
	sock   *socket
	limits Limits
	key    [sessionKeySize]byte

	header *RequestHeader
	peer   net.Addr

	opened atomic.Bool
	closed atomic.Bool

	replay *pubkeyFilter
}

func newSession(conn net.Conn, limits Limits) *Session {
	return &Session{
		sock:   newSocket(conn),
		limits: limits.orDefaults(),
	}
}

// handshakeInitiator drives the client-side role: send the plaintext
// header, then run the OKE exchange that derives the session key.
func (s *Session) handshakeInitiator(headerLine string) error {
	return s.withHandshakeDeadline(handshakeTimeout, func() error {
		if err := s.sock.sendBlob([]byte(headerLine)); err != nil {
			return err
		}
		key, err := clientHandshakeOKE(s.sock)
		if err != nil {
			return err
		}
		s.key = key
		s.opened.Store(true)
		return nil
	})
}

// handshakeResponder drives the server-side role: read and parse the
// header, then run the OKE exchange in the opposite order.
func (s *Session) handshakeResponder() error {
	return s.withHandshakeDeadline(handshakeTimeout, func() error {
		raw, err := s.sock.recvBlob("header", s.limits.MaxHeaderLength)
		if err != nil {
			return err
		}
		header, err := ParseRequestHeader(string(raw))
		if err != nil {
			return err
		}
		s.header = header
		s.peer = s.sock.peerAddr()

		kp, err := newEphemeralKeypair()
		if err != nil {
			return err
		}
		salt := make([]byte, saltSize)
		if err := csrand.Bytes(salt); err != nil {
			return fmt.Errorf("oblivion: generating salt: %w", err)
		}
		if err := serverSendFirst(s.sock, kp, salt); err != nil {
			return err
		}

		key, clientPub, err := serverReceiveSecond(s.sock, kp, salt)
		if err != nil {
			return err
		}
		if s.replay != nil && s.replay.testAndSet(clientPub) {
			return ErrReplayedKey
		}

		s.key = key
		s.opened.Store(true)
		return nil
	})
}

// handshakeTimeout bounds how long either side of a handshake may take
// before it is abandoned.
const handshakeTimeout = 30 * time.Second

// Send writes an OSC(StatusNormal) followed by the encrypted payload.
func (s *Session) Send(data []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := sendOSC(s.sock, StatusNormal); err != nil {
		return err
	}
	return sendOED(s.sock, s.key, data)
}

// SendJSON marshals v and sends it the same way Send does.
func (s *Session) SendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("oblivion: marshaling json: %w", err)
	}
	return s.Send(data)
}

// sendTerminal writes an OSC(StatusTerminal) followed by the encrypted
// payload; used by the server to deliver a handler's reply and signal
// that it will close the socket next.
func (s *Session) sendTerminal(data []byte) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := sendOSC(s.sock, StatusTerminal); err != nil {
		return err
	}
	return sendOED(s.sock, s.key, data)
}

// Receive reads one OSC + OED pair. If the observed flag is
// StatusTerminal the session transitions to closed after returning the
// payload.
func (s *Session) Receive() (*Response, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	flag, err := recvOSC(s.sock)
	if err != nil {
		return nil, err
	}
	content, err := recvOED(s.sock, s.key, s.limits)
	if err != nil {
		return nil, err
	}

	entrance := ""
	if s.header != nil {
		entrance = s.header.Entrance
	}
	resp := &Response{Content: content, Entrance: entrance, Flag: flag}

	if flag == StatusTerminal {
		_ = s.Close()
	}
	return resp, nil
}

// ReceiveJSON reads one message and decodes its content as JSON.
func (s *Session) ReceiveJSON(v interface{}) error {
	resp, err := s.Receive()
	if err != nil {
		return err
	}
	return resp.JSON(v)
}

// Listen repeatedly receives until the session closes or callback
// returns false.
func (s *Session) Listen(callback ListenCallback) error {
	for !s.closed.Load() {
		resp, err := s.Receive()
		if err != nil {
			if errors.Is(err, ErrConnectionClosed) {
				return nil
			}
			return err
		}
		if !callback(resp, s) {
			return nil
		}
	}
	return nil
}

// Close idempotently shuts the socket and sets the closed flag. The
// flag is monotonic: false -> true, never the reverse.
func (s *Session) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		return s.sock.close()
	}
	return nil
}

// Closed reports whether Close has already run.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Header returns the parsed request header, populated on the responder
// side once the handshake has read it.
func (s *Session) Header() *RequestHeader {
	return s.header
}

// PeerAddr returns the remote endpoint, populated on the responder side.
func (s *Session) PeerAddr() net.Addr {
	return s.peer
}

func (s *Session) checkOpen() error {
	if s.closed.Load() || !s.opened.Load() {
		return ErrConnectionClosed
	}
	return nil
}

// withHandshakeDeadline applies a temporary read/write deadline for the
// duration of the handshake; an unbounded handshake against an inert
// peer would otherwise park the accepting goroutine forever.
func (s *Session) withHandshakeDeadline(d time.Duration, fn func() error) error {
	if tc, ok := s.sock.conn.(interface {
		SetDeadline(time.Time) error
	}); ok {
		_ = tc.SetDeadline(time.Now().Add(d))
		defer tc.SetDeadline(time.Time{})
	}
	return fn()
}

func isValidUTF8(b []byte) bool {
	return utf8.Valid(b)
}
