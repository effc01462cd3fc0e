// Package analyzer implements three stateless scorers: Importance,
// DateSize, and LabelClassifier. Each is a pure function of an Input and a
// configuration object, following a "many small pure scorers feeding one
// pipeline" shape, rebuilt here as three analyzers rather than a
// seven-stage pipeline.
package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// Input is the subset of a message's metadata every analyzer reads. It is
// deliberately decoupled from both mailprovider.Message and
// domain.MessageIndex: analyzers must stay provider- and storage-agnostic,
// callable from the categorization engine regardless of where the fields
// came from.
type Input struct {
	Sender    string
	Subject   string
	Labels    []string
	SizeBytes int64
	Date      time.Time
	Now       time.Time // clock reference; tests fix this, production uses time.Now()
}

// CanonicalKey projects Input onto the fields that determine an analyzer's
// output, for memoization: two messages with the same sender, label set,
// size bucket, and age bucket score identically, so there is no reason to
// recompute. Subject is excluded from this shared key; Importance, whose
// subject-keyword rules read it, appends the lowercased subject to this key
// for its own cache entries.
func CanonicalKey(in Input) string {
	labels := append([]string(nil), in.Labels...)
	sort.Strings(labels)

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(in.Sender))))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(labels, ",")))
	h.Write([]byte{0})
	h.Write([]byte(sizeBucket(in.SizeBytes)))
	h.Write([]byte{0})
	h.Write([]byte(ageBucket(now.Sub(in.Date))))
	return hex.EncodeToString(h.Sum(nil))
}

func sizeBucket(size int64) string {
	switch {
	case size < 100*1024:
		return "s"
	case size < 1024*1024:
		return "m"
	default:
		return "l"
	}
}

func ageBucket(age time.Duration) string {
	days := int(age.Hours() / 24)
	switch {
	case days <= 30:
		return "r"
	case days <= 180:
		return "mo"
	default:
		return "o"
	}
}

// clip bounds x to [0, 1], the common contract every analyzer's score
// fields share.
func clip(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
