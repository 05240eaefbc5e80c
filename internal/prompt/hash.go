package prompt

import (
	"hash/fnv"
	"math/rand"
)

// hashIndex maps key to a stable index in [0, n). The same key always lands
// on the same index so per-session choices survive prompt recomposition.
func hashIndex(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New64a()
	h.Write([]byte(key))
	return int(h.Sum64() % uint64(n))
}

// randIndex returns a uniformly random index in [0, n) for callers without a
// session ID to hash.
func randIndex(n int) int {
	if n <= 1 {
		return 0
	}
	return rand.Intn(n)
}

// sessionRand returns a deterministic random source seeded from the session
// ID, or nil when the ID is empty. Skills use it so randomized strategy picks
// stay stable within a session.
func sessionRand(sessionID string) *rand.Rand {
	if sessionID == "" {
		return nil
	}
	h := fnv.New64a()
	h.Write([]byte(sessionID))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}
