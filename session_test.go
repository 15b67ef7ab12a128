package oblivion

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func pipeSessions(t *testing.T) (client *Session, server *Session) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	client = newSession(a, DefaultLimits())
	server = newSession(b, DefaultLimits())
	server.replay = newPubkeyFilter()
	return client, server
}

func TestHandshakeAndEcho(t *testing.T) {
	client, server := pipeSessions(t)

	var wg sync.WaitGroup
	wg.Add(2)

	var clientErr, serverErr error
	go func() {
		defer wg.Done()
		clientErr = client.handshakeInitiator("CONNECT /echo Oblivion/2.0")
	}()
	go func() {
		defer wg.Done()
		serverErr = server.handshakeResponder()
	}()
	wg.Wait()

	require.NoError(t, clientErr)
	require.NoError(t, serverErr)
	require.Equal(t, client.key, server.key)
	require.NotNil(t, server.Header())
	require.Equal(t, "CONNECT", server.Header().Method)
	require.Equal(t, "/echo", server.Header().Entrance)

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Send([]byte("hello"))
	}()
	resp, err := server.Receive()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	require.Equal(t, []byte("hello"), resp.Content)
	require.Equal(t, StatusNormal, resp.Flag)

	go func() {
		errCh <- server.sendTerminal(resp.Content)
	}()
	echo, err := client.Receive()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	require.Equal(t, []byte("hello"), echo.Content)
	require.Equal(t, StatusTerminal, echo.Flag)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	client, _ := pipeSessions(t)
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	require.True(t, client.Closed())
}

func TestSendFailsBeforeHandshake(t *testing.T) {
	client, _ := pipeSessions(t)
	err := client.Send([]byte("too early"))
	require.ErrorIs(t, err, ErrConnectionClosed)
}

func TestReceiveFailsAfterClose(t *testing.T) {
	client, _ := pipeSessions(t)
	client.opened.Store(true)
	require.NoError(t, client.Close())

	_, err := client.Receive()
	require.ErrorIs(t, err, ErrConnectionClosed)
}

func TestHandshakeResponderRejectsMalformedHeader(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	server := newSession(b, DefaultLimits())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.handshakeResponder()
	}()

	clientSock := newSocket(a)
	require.NoError(t, clientSock.sendBlob([]byte("NOT A VALID HEADER")))

	err := <-errCh
	require.ErrorIs(t, err, ErrInvalidHeader)
}

func TestTerminalFlagClosesSession(t *testing.T) {
	client, server := pipeSessions(t)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = client.handshakeInitiator("CONNECT /bye Oblivion/2.0")
	}()
	go func() {
		defer wg.Done()
		_ = server.handshakeResponder()
	}()
	wg.Wait()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.sendTerminal([]byte("goodbye"))
	}()

	resp, err := client.Receive()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	require.Equal(t, StatusTerminal, resp.Flag)
	require.True(t, client.Closed())
}
