package oblivion

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"github.com/oblivion-proto/oblivion/csrand"
)

// Wire constants for the key-exchange format.
const (
	x25519Size     = 32
	saltSize       = 16
	sessionKeySize = 16

	pubkeyFieldLimit = 256
	saltFieldLimit   = 256
)

// ephemeralKeypair is a single-use X25519 key pair. Its private half is
// consumed by sharedSecret and must never be reused; reuse is a
// programming error in this package, not a caller mistake, so it panics
// rather than returning an error.
type ephemeralKeypair struct {
	private  [x25519Size]byte
	public   [x25519Size]byte
	consumed bool
}

func newEphemeralKeypair() (*ephemeralKeypair, error) {
	kp := new(ephemeralKeypair)
	if err := csrand.Bytes(kp.private[:]); err != nil {
		return nil, fmt.Errorf("oblivion: oke: generating private key: %w", err)
	}
	pub, err := curve25519.X25519(kp.private[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("oblivion: oke: deriving public key: %w", err)
	}
	copy(kp.public[:], pub)
	return kp, nil
}

// sharedSecret performs the ECDH step against peerPublic and consumes the
// private key: the backing array is zeroed so the scalar cannot be used
// for a second exchange even if the ephemeralKeypair value lingers.
func (kp *ephemeralKeypair) sharedSecret(peerPublic [x25519Size]byte) ([x25519Size]byte, error) {
	if kp.consumed {
		panic("oblivion: ephemeral private key reused")
	}
	var shared [x25519Size]byte
	out, err := curve25519.X25519(kp.private[:], peerPublic[:])
	kp.private = [x25519Size]byte{}
	kp.consumed = true
	if err != nil {
		return shared, fmt.Errorf("oblivion: oke: %w: %v", ErrKeyAgreementFailed, err)
	}
	copy(shared[:], out)
	return shared, nil
}

// deriveSessionKey runs HKDF-SHA-256 over (shared secret, salt, empty
// info) and truncates to the 16-byte Oblivion session key.
func deriveSessionKey(shared [x25519Size]byte, salt []byte) ([sessionKeySize]byte, error) {
	var key [sessionKeySize]byte
	hk := hkdf.New(sha256.New, shared[:], salt, nil)
	if _, err := io.ReadFull(hk, key[:]); err != nil {
		return key, fmt.Errorf("oblivion: oke: %w: %v", ErrKeyAgreementFailed, err)
	}
	return key, nil
}

func parsePublicKey(b []byte) ([x25519Size]byte, error) {
	var pub [x25519Size]byte
	if len(b) != x25519Size {
		return pub, fmt.Errorf("oblivion: oke: public key length %d: %w", len(b), ErrKeyAgreementFailed)
	}
	copy(pub[:], b)
	return pub, nil
}

// serverSendFirst is step 2 of the responder handshake: send the
// server's ephemeral public key and the salt the client will derive the
// session key with.
func serverSendFirst(s *socket, kp *ephemeralKeypair, salt []byte) error {
	if err := s.sendBlob(kp.public[:]); err != nil {
		return err
	}
	return s.sendBlob(salt)
}

// serverReceiveSecond is step 3-4 of the responder handshake: read the
// client's ephemeral public key and derive the session key.
func serverReceiveSecond(s *socket, kp *ephemeralKeypair, salt []byte) ([sessionKeySize]byte, [x25519Size]byte, error) {
	var zero [sessionKeySize]byte
	raw, err := s.recvBlob("oke-client-pubkey", pubkeyFieldLimit)
	if err != nil {
		return zero, [x25519Size]byte{}, err
	}
	clientPub, err := parsePublicKey(raw)
	if err != nil {
		return zero, clientPub, err
	}
	shared, err := kp.sharedSecret(clientPub)
	if err != nil {
		return zero, clientPub, err
	}
	key, err := deriveSessionKey(shared, salt)
	return key, clientPub, err
}

// clientHandshakeOKE drives the full initiator side: read the server's
// public key and salt, derive the session key, then send the client's
// own public key.
func clientHandshakeOKE(s *socket) ([sessionKeySize]byte, error) {
	var zero [sessionKeySize]byte

	kp, err := newEphemeralKeypair()
	if err != nil {
		return zero, err
	}

	rawServerPub, err := s.recvBlob("oke-server-pubkey", pubkeyFieldLimit)
	if err != nil {
		return zero, err
	}
	serverPub, err := parsePublicKey(rawServerPub)
	if err != nil {
		return zero, err
	}

	salt, err := s.recvBlob("oke-salt", saltFieldLimit)
	if err != nil {
		return zero, err
	}

	shared, err := kp.sharedSecret(serverPub)
	if err != nil {
		return zero, err
	}
	key, err := deriveSessionKey(shared, salt)
	if err != nil {
		return zero, err
	}

	if err := s.sendBlob(kp.public[:]); err != nil {
		return zero, err
	}

	return key, nil
}
