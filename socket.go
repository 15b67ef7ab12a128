package oblivion

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
)

// lengthPrefixSize is the width, in bytes, of every big-endian length
// prefix and bare OSC integer on the wire.
const lengthPrefixSize = 4

// socket is the framed byte channel a Session is built on: exact-length
// reads and writes over a single TCP connection, with the two framing
// primitives (fixed 4-byte big-endian integers and length-prefixed blobs)
// that every higher layer is built from exclusively.
//
// Reads and writes are independently serialized (rmu/wmu) so a single
// session can be driven full-duplex from two goroutines, one per
// direction, without corrupting the frame boundary of either side.
type socket struct {
	conn net.Conn

	rmu sync.Mutex
	wmu sync.Mutex
}

func newSocket(conn net.Conn) *socket {
	return &socket{conn: conn}
}

// tuneTCP applies the socket options used on every accepted/dialed
// connection: a short TTL, TCP_NODELAY, keepalive, and a short linger so
// a closed session doesn't leave sockets lingering in TIME_WAIT under
// load. TTL requires x/net/ipv4 since the stdlib net package exposes no
// portable TTL setter on *net.TCPConn.
func tuneTCP(conn net.Conn) error {
	tc, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tc.SetNoDelay(true); err != nil {
		return err
	}
	if err := tc.SetKeepAlive(true); err != nil {
		return err
	}
	if err := tc.SetKeepAlivePeriod(30 * time.Second); err != nil {
		return err
	}
	if err := tc.SetLinger(0); err != nil {
		return err
	}
	if err := ipv4.NewConn(tc).SetTTL(20); err != nil {
		// Not all platforms/address families honor this; it is a
		// best-effort hardening knob, not load-bearing for correctness.
		return nil
	}
	return nil
}

// recvExact reads exactly n bytes or fails with a wrapped I/O error if the
// peer closes the connection before n bytes arrive. It never returns a
// short read without an error.
func (s *socket) recvExact(n uint32) ([]byte, error) {
	buf := make([]byte, n)
	s.rmu.Lock()
	_, err := io.ReadFull(s.conn, buf)
	s.rmu.Unlock()
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("oblivion: socket closed mid-frame: %w", ErrConnectionClosed)
		}
		return nil, fmt.Errorf("oblivion: recv: %w", err)
	}
	return buf, nil
}

// recvUint32 reads a bare 4-byte big-endian integer, used both for OSC
// frames and for the length prefix ahead of every blob.
func (s *socket) recvUint32() (uint32, error) {
	buf, err := s.recvExact(lengthPrefixSize)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf), nil
}

// recvBlob reads a length-prefixed byte blob, rejecting any advertised
// length over limit before allocating — the defensive ceiling against
// resource exhaustion the data model requires.
func (s *socket) recvBlob(kind string, limit uint32) ([]byte, error) {
	n, err := s.recvUint32()
	if err != nil {
		return nil, err
	}
	if n > limit {
		return nil, &FrameLengthError{Kind: kind, Length: n, Limit: limit}
	}
	return s.recvExact(n)
}

// send writes data in full and never silently truncates on a short
// underlying write.
func (s *socket) send(data []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_, err := s.conn.Write(data)
	if err != nil {
		return fmt.Errorf("oblivion: send: %w", err)
	}
	return nil
}

// sendUint32 writes a bare 4-byte big-endian integer.
func (s *socket) sendUint32(v uint32) error {
	var buf [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return s.send(buf[:])
}

// sendBlob writes a length prefix followed by data.
func (s *socket) sendBlob(data []byte) error {
	if err := s.sendUint32(uint32(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return s.send(data)
}

// close shuts the write half and releases the underlying connection.
// Idempotent at the Session level; socket.close itself just proxies to
// net.Conn.Close, which tolerates being called more than once.
func (s *socket) close() error {
	return s.conn.Close()
}

// peerAddr returns the remote endpoint, used for request-metadata
// decoration and logging.
func (s *socket) peerAddr() net.Addr {
	return s.conn.RemoteAddr()
}
