package oblivion

import (
	"crypto/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func pipeSockets(t *testing.T) (*socket, *socket) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return newSocket(a), newSocket(b)
}

func TestOEDRoundTrip(t *testing.T) {
	var key [16]byte
	_, err := rand.Read(key[:])
	require.NoError(t, err)

	client, server := pipeSockets(t)
	limits := DefaultLimits()

	cases := [][]byte{
		nil,
		[]byte("a"),
		[]byte("the quick brown fox jumps over the lazy dog"),
		make([]byte, 5000), // spans multiple 1024-byte chunks
	}

	for _, plaintext := range cases {
		errCh := make(chan error, 1)
		go func(pt []byte) {
			errCh <- sendOED(client, key, pt)
		}(plaintext)

		got, err := recvOED(server, key, limits)
		require.NoError(t, err)
		require.NoError(t, <-errCh)
		require.Equal(t, plaintext, got)
	}
}

func TestOEDDecryptFailsWithWrongKey(t *testing.T) {
	var key, otherKey [16]byte
	_, err := rand.Read(key[:])
	require.NoError(t, err)
	_, err = rand.Read(otherKey[:])
	require.NoError(t, err)

	client, server := pipeSockets(t)

	go func() {
		_ = sendOED(client, key, []byte("secret"))
	}()

	_, err = recvOED(server, otherKey, DefaultLimits())
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestOEDLargePayload(t *testing.T) {
	var key [16]byte
	_, err := rand.Read(key[:])
	require.NoError(t, err)

	plaintext := make([]byte, 1_000_000)
	_, err = rand.Read(plaintext)
	require.NoError(t, err)

	client, server := pipeSockets(t)

	go func() {
		_ = sendOED(client, key, plaintext)
	}()

	got, err := recvOED(server, key, DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestOEDRejectsOversizedChunk(t *testing.T) {
	var key [16]byte
	_, err := rand.Read(key[:])
	require.NoError(t, err)

	client, server := pipeSockets(t)
	limits := Limits{MaxChunkLength: 16, MaxHeaderLength: DefaultLimits().MaxHeaderLength, MaxOEDLength: DefaultLimits().MaxOEDLength}

	go func() {
		_ = sendOED(client, key, make([]byte, 100))
	}()

	_, err = recvOED(server, key, limits)
	var lenErr *FrameLengthError
	require.ErrorAs(t, err, &lenErr)
}
