// Package session holds per-connection state: the ordered log of recorded
// thoughts. One Session exists per transport connection; sessions on
// different connections share nothing.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ThoughtEntry is one recorded thought. Entries are append-only: once
// recorded they are never mutated or deleted for the session's lifetime.
type ThoughtEntry struct {
	// Seq is the connection-scoped sequence number, assigned on append,
	// starting at 1 with no gaps.
	Seq int `json:"seq"`
	// Thought is the caller-supplied text, recorded verbatim.
	Thought string `json:"thought"`
	// RecordedAt is the append time in the server's local timezone.
	RecordedAt time.Time `json:"recorded_at"`

	// Optional structured fields, present only when the caller supplied them.
	Pattern       string   `json:"pattern,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	Alternatives  []string `json:"alternatives,omitempty"`
	Justification string   `json:"justification,omitempty"`
}

// Session is the state scoped to one connection. It is safe for concurrent
// use; Append is the single serialization point for log mutation.
type Session struct {
	id string

	mu              sync.Mutex
	protocolVersion string
	entries         []ThoughtEntry
	startedAt       time.Time
}

// New creates an empty Session with a fresh connection identity.
func New() *Session {
	return &Session{id: uuid.NewString(), startedAt: time.Now()}
}

// ID returns the connection identity.
func (s *Session) ID() string { return s.id }

// StartedAt returns the session creation time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// SetProtocolVersion records the version negotiated during the handshake.
func (s *Session) SetProtocolVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.protocolVersion = v
}

// ProtocolVersion returns the negotiated protocol version, or "" before the
// handshake completes.
func (s *Session) ProtocolVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocolVersion
}

// Append records a thought and returns the entry with its assigned sequence
// number. The entry's Seq is overwritten with the next number in the log;
// RecordedAt is stamped with the current local time when zero.
func (s *Session) Append(e ThoughtEntry) ThoughtEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Seq = len(s.entries) + 1
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now()
	}
	s.entries = append(s.entries, e)
	return e
}

// Len returns the number of recorded thoughts.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Snapshot returns a copy of the log in append order. The caller may hold it
// across further appends without seeing them.
func (s *Session) Snapshot() []ThoughtEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ThoughtEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Clear discards all recorded thoughts and returns how many were dropped.
func (s *Session) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	s.entries = nil
	return n
}

// Stats summarizes the recorded thoughts for host-side introspection.
type Stats struct {
	TotalThoughts     int            `json:"total_thoughts"`
	AverageLength     float64        `json:"average_length"`
	LongestSeq        int            `json:"longest_thought_seq,omitempty"`
	LongestLength     int            `json:"longest_thought_length,omitempty"`
	PatternCounts     map[string]int `json:"pattern_distribution,omitempty"`
	AverageConfidence *float64       `json:"average_confidence,omitempty"`
	WithJustification int            `json:"thoughts_with_justification"`
	WithAlternatives  int            `json:"thoughts_with_alternatives"`
}

// Stats computes summary statistics over the current log.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{TotalThoughts: len(s.entries)}
	if len(s.entries) == 0 {
		return st
	}

	var totalLen int
	var confSum float64
	var confCount int
	for _, e := range s.entries {
		totalLen += len(e.Thought)
		if len(e.Thought) > st.LongestLength {
			st.LongestLength = len(e.Thought)
			st.LongestSeq = e.Seq
		}
		if e.Pattern != "" {
			if st.PatternCounts == nil {
				st.PatternCounts = make(map[string]int)
			}
			st.PatternCounts[e.Pattern]++
		}
		if e.Confidence != nil {
			confSum += *e.Confidence
			confCount++
		}
		if e.Justification != "" {
			st.WithJustification++
		}
		if len(e.Alternatives) > 0 {
			st.WithAlternatives++
		}
	}
	st.AverageLength = float64(totalLen) / float64(len(s.entries))
	if confCount > 0 {
		avg := confSum / float64(confCount)
		st.AverageConfidence = &avg
	}
	return st
}

// Format renders the log as a human-readable review, one block per thought.
func (s *Session) Format() string {
	entries := s.Snapshot()
	if len(entries) == 0 {
		return "No thoughts have been recorded yet."
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "Thought #%d (%s):", e.Seq, e.RecordedAt.Format(time.RFC3339))
		var meta []string
		if e.Pattern != "" {
			meta = append(meta, "Pattern: "+e.Pattern)
		}
		if e.Confidence != nil {
			meta = append(meta, fmt.Sprintf("Confidence: %.2f", *e.Confidence))
		}
		if len(meta) > 0 {
			fmt.Fprintf(&b, " [%s]", strings.Join(meta, ", "))
		}
		b.WriteByte('\n')
		b.WriteString(e.Thought)
		b.WriteByte('\n')
		if e.Justification != "" {
			b.WriteString("Justification: " + e.Justification + "\n")
		}
		if len(e.Alternatives) > 0 {
			b.WriteString("Alternatives considered: " + strings.Join(e.Alternatives, ", ") + "\n")
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
