package oblivion

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/oblivion-proto/oblivion/csrand"
)

// Wire constants for the encrypted datagram format.
const (
	// maxChunkLength is the largest ciphertext slice written per
	// (length-prefix, chunk) pair; a transport convenience only, not a
	// security boundary — chunks are not individually authenticated.
	maxChunkLength = 1024

	// stopFlag is the terminal 4-byte zero marking end-of-ciphertext.
	stopFlag uint32 = 0x00000000

	nonceSize = 12 // AES-128-GCM standard nonce size.
	tagSize   = 16 // AES-128-GCM authentication tag size.

	// nonceTagFieldLimit bounds the nonce/tag length prefixes; these are
	// fixed-size by construction, so any advertised length outside a
	// small envelope around the expected size is already malformed.
	nonceTagFieldLimit = 256
)

// sendOED encrypts plaintext in a single AEAD operation with key and
// writes nonce, tag, and chunked ciphertext terminated by STOP_FLAG.
func sendOED(s *socket, key [16]byte, plaintext []byte) error {
	gcm, err := newGCM(key)
	if err != nil {
		return err
	}

	nonce := make([]byte, nonceSize)
	if err := csrand.Bytes(nonce); err != nil {
		return fmt.Errorf("oblivion: oed: generating nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	if err := s.sendBlob(nonce); err != nil {
		return err
	}
	if err := s.sendBlob(tag); err != nil {
		return err
	}

	for off := 0; off < len(ciphertext); off += maxChunkLength {
		end := off + maxChunkLength
		if end > len(ciphertext) {
			end = len(ciphertext)
		}
		if err := s.sendBlob(ciphertext[off:end]); err != nil {
			return err
		}
	}

	return s.sendUint32(stopFlag)
}

// recvOED reads nonce, tag, and chunked ciphertext up to STOP_FLAG,
// enforcing limits against resource exhaustion, then decrypts the
// accumulated ciphertext with key. Decryption failure is reported as
// ErrDecryptFailed; the caller must treat the payload as discarded.
func recvOED(s *socket, key [16]byte, limits Limits) ([]byte, error) {
	nonce, err := s.recvBlob("oed-nonce", nonceTagFieldLimit)
	if err != nil {
		return nil, err
	}
	tag, err := s.recvBlob("oed-tag", nonceTagFieldLimit)
	if err != nil {
		return nil, err
	}

	var ciphertext []byte
	var total uint64
	for {
		n, err := s.recvUint32()
		if err != nil {
			return nil, err
		}
		if n == stopFlag {
			break
		}
		if n > limits.MaxChunkLength {
			return nil, &FrameLengthError{Kind: "oed-chunk", Length: n, Limit: limits.MaxChunkLength}
		}
		total += uint64(n)
		if total > limits.MaxOEDLength {
			return nil, &PayloadLengthError{Accumulated: total, Limit: limits.MaxOEDLength}
		}
		chunk, err := s.recvExact(n)
		if err != nil {
			return nil, err
		}
		ciphertext = append(ciphertext, chunk...)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("oblivion: oed: nonce size %d: %w", len(nonce), ErrDecryptFailed)
	}

	sealed := append(append([]byte{}, ciphertext...), tag...)
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("oblivion: oed: %w", ErrDecryptFailed)
	}
	return plaintext, nil
}

func newGCM(key [16]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("oblivion: oed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("oblivion: oed: %w", err)
	}
	return gcm, nil
}
