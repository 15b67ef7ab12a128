package oblivion

// Oblivion Status Code values the core interprets. Any other value is
// opaque: handlers may observe it via Response.Flag but the core never
// acts on it.
const (
	// StatusNormal precedes an in-band OED payload sent by either peer.
	StatusNormal uint32 = 0
	// StatusTerminal marks the sender's intent to close the connection
	// after the accompanying OED payload.
	StatusTerminal uint32 = 1
)

// sendOSC writes a bare 4-byte big-endian status code.
func sendOSC(s *socket, code uint32) error {
	return s.sendUint32(code)
}

// recvOSC reads a bare 4-byte big-endian status code.
func recvOSC(s *socket) (uint32, error) {
	return s.recvUint32()
}
