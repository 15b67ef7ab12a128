package oblivion

// Limits bounds the length-prefixed fields Oblivion will accept off the
// wire: the plaintext request header, and the chunks of every encrypted
// datagram. Both Session and Server consult it; Dial's limits argument
// and Server.WithLimits override the conservative defaults for traffic
// profiles known to exceed them.
//
// These ceilings are documented, per-instance defaults rather than
// silent compile-time constants, so a caller can raise or lower them
// for a traffic profile without touching the wire code.
type Limits struct {
	// MaxHeaderLength bounds the plaintext request header frame.
	MaxHeaderLength uint32
	// MaxChunkLength bounds a single OED chunk's length prefix.
	MaxChunkLength uint32
	// MaxOEDLength bounds the aggregate ciphertext accumulated across all
	// chunks of a single OED before STOP_FLAG.
	MaxOEDLength uint64
}

// DefaultLimits returns the module's conservative defaults: 64 KiB for the
// header, 16 MiB aggregate for a single encrypted datagram, 1024-byte max
// per chunk as fixed by the wire format.
func DefaultLimits() Limits {
	return Limits{
		MaxHeaderLength: 64 * 1024,
		MaxChunkLength:  maxChunkLength,
		MaxOEDLength:    16 * 1024 * 1024,
	}
}

func (l Limits) orDefaults() Limits {
	d := DefaultLimits()
	if l.MaxHeaderLength == 0 {
		l.MaxHeaderLength = d.MaxHeaderLength
	}
	if l.MaxChunkLength == 0 {
		l.MaxChunkLength = d.MaxChunkLength
	}
	if l.MaxOEDLength == 0 {
		l.MaxOEDLength = d.MaxOEDLength
	}
	return l
}
