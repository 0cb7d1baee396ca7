package remote

import (
	"math/rand"
	"sync"
	"time"
)

// Push IDs are 20-character keys: 8 characters encode the creation time
// in milliseconds, 12 are random. Keys generated later always sort
// lexicographically after earlier ones; within the same millisecond the
// random suffix is incremented instead of redrawn.
const pushChars = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

type pushIDGenerator struct {
	mu           sync.Mutex
	lastMillis   int64
	lastRandBits [12]int
}

func (g *pushIDGenerator) next(now time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	millis := now.UnixMilli()
	duplicate := millis == g.lastMillis
	g.lastMillis = millis

	var id [20]byte
	for i := 7; i >= 0; i-- {
		id[i] = pushChars[millis%64]
		millis /= 64
	}

	if duplicate {
		// Increment the previous suffix so the key still sorts after it.
		i := 11
		for ; i >= 0 && g.lastRandBits[i] == 63; i-- {
			g.lastRandBits[i] = 0
		}
		if i >= 0 {
			g.lastRandBits[i]++
		}
	} else {
		for i := range g.lastRandBits {
			g.lastRandBits[i] = rand.Intn(64)
		}
	}

	for i, b := range g.lastRandBits {
		id[8+i] = pushChars[b]
	}
	return string(id[:])
}
