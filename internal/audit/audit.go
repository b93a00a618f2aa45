// Package audit records origin decisions for operational review. Recent
// entries are held in a bounded in-memory ring; sinks persist them beyond
// the process lifetime.
package audit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/origin-gateway/internal/logging"
	"github.com/R3E-Network/origin-gateway/internal/originpolicy"
)

// Entry is one recorded origin decision.
type Entry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Origin     string    `json:"origin"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	UserAgent  string    `json:"user_agent,omitempty"`
	TraceID    string    `json:"trace_id,omitempty"`
}

// NewEntry builds an entry from a request and its decision.
func NewEntry(r *http.Request, d originpolicy.Decision) Entry {
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	return Entry{
		ID:         uuid.NewString(),
		Time:       time.Now().UTC(),
		Origin:     r.Header.Get("Origin"),
		Outcome:    d.Outcome(),
		Reason:     d.Reason,
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: remote,
		UserAgent:  r.UserAgent(),
		TraceID:    logging.GetTraceID(r.Context()),
	}
}

// Sink persists entries beyond the in-memory ring. Write must be safe for
// concurrent use.
type Sink interface {
	Write(entry Entry) error
}

// Log is a bounded, append-only record of recent entries. When the buffer
// is full the oldest entry is dropped. Sink failures are counted, never
// propagated; persistence is best effort.
type Log struct {
	mu        sync.Mutex
	entries   []Entry
	max       int
	sinks     []Sink
	sinkFails uint64
}

// NewLog creates a log holding at most max entries in memory. A max of
// zero falls back to 200.
func NewLog(max int, sinks ...Sink) *Log {
	if max <= 0 {
		max = 200
	}
	active := make([]Sink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			active = append(active, sink)
		}
	}
	return &Log{
		entries: make([]Entry, 0, max),
		max:     max,
		sinks:   active,
	}
}

// Add records an entry, filling in the ID and timestamp when unset.
func (l *Log) Add(entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}

	l.mu.Lock()
	if len(l.entries) == l.max {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:l.max-1]
	}
	l.entries = append(l.entries, entry)
	sinks := l.sinks
	l.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.Write(entry); err != nil {
			l.mu.Lock()
			l.sinkFails++
			l.mu.Unlock()
		}
	}
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns everything buffered.
func (l *Log) Recent(limit int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = l.entries[len(l.entries)-1-i]
	}
	return out
}

// Len reports the number of buffered entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// SinkFailures reports how many sink writes have failed since start.
func (l *Log) SinkFailures() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sinkFails
}
