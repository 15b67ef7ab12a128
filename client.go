package oblivion

import (
	"fmt"
	"net"
)

// Client is a dialed Oblivion connection: resolved endpoint, underlying
// session, and the handshake already complete by the time Dial returns.
type Client struct {
	endpoint *Endpoint
	sess     *Session
}

// Dial resolves endpoint, opens the TCP connection, tunes it, sends the
// CONNECT request header, and runs the initiator handshake.
func Dial(endpoint string, limits Limits) (*Client, error) {
	ep, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	conn, err := net.Dial("tcp", ep.Addr())
	if err != nil {
		return nil, fmt.Errorf("oblivion: dialing %s: %w: %v", ep.Addr(), ErrConnectionRefused, err)
	}
	if err := tuneTCP(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	sess := newSession(conn, limits)
	header := fmt.Sprintf("CONNECT %s %s", ep.Entrance, RequestProtocolVersion)
	if err := sess.handshakeInitiator(header); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &Client{endpoint: ep, sess: sess}, nil
}

// Send writes an encrypted message on the underlying session.
func (c *Client) Send(data []byte) error { return c.sess.Send(data) }

// SendJSON marshals v and sends it.
func (c *Client) SendJSON(v interface{}) error { return c.sess.SendJSON(v) }

// Receive reads the next encrypted message.
func (c *Client) Receive() (*Response, error) { return c.sess.Receive() }

// ReceiveJSON reads the next message and decodes it as JSON into v.
func (c *Client) ReceiveJSON(v interface{}) error { return c.sess.ReceiveJSON(v) }

// Close shuts down the underlying session.
func (c *Client) Close() error { return c.sess.Close() }

// Endpoint returns the resolved endpoint this client is connected to.
func (c *Client) Endpoint() *Endpoint { return c.endpoint }
