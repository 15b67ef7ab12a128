package oblivion

import (
	"container/list"
	"sync"
	"time"

	"github.com/oblivion-proto/oblivion/csrand"
)

// pubkeyReplayTTL bounds how long a server remembers a client's ephemeral
// public key for replay detection.
const pubkeyReplayTTL = 3 * time.Hour

// maxPubkeyFilterSize caps memory use: once full, the oldest entry is
// forced out regardless of its age.
const maxPubkeyFilterSize = 100 * 1024

// pubkeyFilter answers whether a server has already completed a
// handshake with a given ephemeral client public key. It hardens the
// "ephemeral keys must not be reused" invariant against an observed wire
// replay of a captured client handshake message; it is not a
// peer-identity check.
type pubkeyFilter struct {
	mu     sync.Mutex
	seen   map[[x25519Size]byte]*list.Element
	fifo   *list.List
	ttl    time.Duration
	nowFn  func() time.Time
}

type pubkeyFilterEntry struct {
	key       [x25519Size]byte
	firstSeen time.Time
}

// newPubkeyFilter jitters the TTL by up to a minute. The jitter is drawn
// once per filter, so every entry of one filter shares the same TTL.
func newPubkeyFilter() *pubkeyFilter {
	jitter := time.Duration(csrand.IntRange(0, 60)) * time.Second
	return &pubkeyFilter{
		seen:  make(map[[x25519Size]byte]*list.Element),
		fifo:  list.New(),
		ttl:   pubkeyReplayTTL + jitter,
		nowFn: time.Now,
	}
}

// testAndSet returns true if key has been seen within the TTL window,
// otherwise records it and returns false. Threadsafe.
func (f *pubkeyFilter) testAndSet(key [x25519Size]byte) bool {
	now := f.nowFn()

	f.mu.Lock()
	defer f.mu.Unlock()

	f.compact(now)

	if _, ok := f.seen[key]; ok {
		return true
	}

	elem := f.fifo.PushBack(&pubkeyFilterEntry{key: key, firstSeen: now})
	f.seen[key] = elem
	return false
}

// compact purges entries older than the TTL, and force-evicts the
// oldest entry once the filter is at capacity. Not threadsafe; callers
// must hold f.mu.
func (f *pubkeyFilter) compact(now time.Time) {
	for e := f.fifo.Front(); e != nil; {
		entry := e.Value.(*pubkeyFilterEntry)
		next := e.Next()

		atCapacity := f.fifo.Len() >= maxPubkeyFilterSize
		expired := now.Sub(entry.firstSeen) >= f.ttl
		if !atCapacity && !expired {
			break
		}

		delete(f.seen, entry.key)
		f.fifo.Remove(e)
		e = next
	}
}
