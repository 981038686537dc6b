// Package star implements the shooting-star catch game: a scheduled
// announcement arms a round, and the first message matching the round's
// phrase within the catch window wins.
package star

import (
	"strings"
	"sync"
	"time"
)

// MessageRef identifies a posted announcement so it can be deleted when
// the round expires unclaimed.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Round is one armed catch attempt.
type Round struct {
	ChatID       int64
	Phrase       string
	Announcement MessageRef
	Deadline     time.Time
}

// Machine is the round state machine. At most one round is armed per
// process; an armed round resolves to won on the first matching message
// or to expired when the catch window elapses. Absence of an armed
// round is the idle state.
type Machine struct {
	mu       sync.Mutex
	round    *Round
	timer    *time.Timer
	window   time.Duration
	onExpire func(Round)
}

// NewMachine creates a round machine with the given catch window.
// onExpire runs on its own goroutine when a round times out unclaimed;
// it may be nil.
func NewMachine(window time.Duration, onExpire func(Round)) *Machine {
	return &Machine{window: window, onExpire: onExpire}
}

// Arm starts a round for the given chat and phrase. Returns false
// without touching the current round if one is already armed; the
// scheduler spaces events so this only happens if an operator fires
// one manually.
func (m *Machine) Arm(chatID int64, phrase string, announcement MessageRef) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.round != nil {
		return false
	}

	round := &Round{
		ChatID:       chatID,
		Phrase:       phrase,
		Announcement: announcement,
		Deadline:     time.Now().Add(m.window),
	}
	m.round = round
	m.timer = time.AfterFunc(m.window, func() { m.expire(round) })
	return true
}

// Claim attempts to resolve the armed round with a message. The match
// is case-insensitive on the trimmed text and only counts in the chat
// the round was announced in. The check and the clear happen under one
// lock, so two simultaneous correct answers produce exactly one winner.
func (m *Machine) Claim(chatID int64, text string) (Round, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.round == nil || m.round.ChatID != chatID {
		return Round{}, false
	}
	if !strings.EqualFold(strings.TrimSpace(text), m.round.Phrase) {
		return Round{}, false
	}

	round := *m.round
	m.clearLocked()
	return round, true
}

// Armed reports whether a round is currently live.
func (m *Machine) Armed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.round != nil
}

// Disarm cancels any live round without resolving it. Used on shutdown.
func (m *Machine) Disarm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

// expire fires from the window timer. The round pointer identifies the
// round the timer belongs to; if a claim already cleared it (or a new
// round replaced it) the timer is stale and does nothing.
func (m *Machine) expire(round *Round) {
	m.mu.Lock()
	if m.round != round {
		m.mu.Unlock()
		return
	}
	expired := *round
	m.clearLocked()
	m.mu.Unlock()

	if m.onExpire != nil {
		m.onExpire(expired)
	}
}

func (m *Machine) clearLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.round = nil
}
