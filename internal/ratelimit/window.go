package ratelimit

import (
	"strings"
	"time"
)

const defaultKeyspace = "homestay:rl"

// quota is the fixed-window rule applied by every backend: at most max hits
// per window, counted from the first hit.
type quota struct {
	max    int64
	window time.Duration
}

func newQuota(max int, window time.Duration) quota {
	return quota{max: int64(max), window: window}
}

// judge rules on a hit. hits includes the hit being judged and left is what
// remains of its window. Denials report left clamped into [0, window].
func (q quota) judge(hits int64, left time.Duration) (bool, time.Duration) {
	if hits <= q.max {
		return true, 0
	}
	if left < 0 {
		left = 0
	}
	if left > q.window {
		left = q.window
	}
	return false, left
}

// keyspace namespaces counter keys in a shared store.
type keyspace string

// newKeyspace normalizes prefix to "<name>:". Blank prefixes fall back to
// the service default.
func newKeyspace(prefix string) keyspace {
	name := strings.TrimRight(strings.TrimSpace(prefix), ":")
	if name == "" {
		name = defaultKeyspace
	}
	return keyspace(name + ":")
}

func (k keyspace) key(caller string) string { return string(k) + caller }
