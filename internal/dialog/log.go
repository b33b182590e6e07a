// Package dialog implements the AI-assisted room publishing dialog: the
// conversation log, the dialog controller state machine, and per-session
// management of both.
//
// # Design Overview
//
// One Controller exists per publish dialog. It owns the current DialogState,
// the image asset tracker, and the conversation log, and it is the only
// writer to any of them. Turns are strictly sequential: while a turn is in
// flight the controller is in StateNegotiating and rejects new submissions,
// which approximates at-most-once submission for the non-idempotent confirm
// operation (true at-most-once, if any, is the backend's job).
//
// The conversation log is display/audit only. It is never used as the
// negotiation payload: each protocol call carries only the current turn, and
// the backend correlates turns through the session id.
package dialog

import "time"

const (
	// MaxLogSize is the maximum number of messages kept in the
	// conversation log. Older messages are dropped first. This bounds
	// memory in long negotiations; the backend does not read the log.
	MaxLogSize = 100
)

// Role constants for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one human-visible turn in the conversation log.
type Message struct {
	// ID is a stable integer identifier within the dialog, assigned
	// sequentially starting from 1.
	ID int `json:"id"`

	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// Timestamp is when the message was appended.
	Timestamp time.Time `json:"timestamp"`
}

// Log is the append-only ordered record of user and assistant turns.
// Ordering is insertion order; turns are never reordered.
//
// Log is not thread-safe; it is owned and serialized by a Controller.
type Log struct {
	messages []Message
	nextID   int
}

// NewLog creates an empty conversation log.
func NewLog() *Log {
	return &Log{nextID: 1}
}

// AppendUser appends a user message and returns it.
func (l *Log) AppendUser(content string) Message {
	return l.append(RoleUser, content, time.Now())
}

// AppendAssistant appends an assistant message with the given timestamp and
// returns it. The timestamp comes from the negotiation response so the log
// reflects the backend's reply time.
func (l *Log) AppendAssistant(content string, ts time.Time) Message {
	if ts.IsZero() {
		ts = time.Now()
	}
	return l.append(RoleAssistant, content, ts)
}

func (l *Log) append(role, content string, ts time.Time) Message {
	msg := Message{
		ID:        l.nextID,
		Role:      role,
		Content:   content,
		Timestamp: ts,
	}
	l.nextID++
	l.messages = append(l.messages, msg)

	if len(l.messages) > MaxLogSize {
		excess := len(l.messages) - MaxLogSize
		l.messages = l.messages[excess:]
	}
	return msg
}

// Messages returns a copy of all messages in insertion order.
func (l *Log) Messages() []Message {
	if len(l.messages) == 0 {
		return nil
	}
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages in the log.
func (l *Log) Len() int {
	return len(l.messages)
}

// Clear removes all messages. Message IDs keep incrementing so an ID is
// never reused within one dialog.
func (l *Log) Clear() {
	l.messages = l.messages[:0]
}
