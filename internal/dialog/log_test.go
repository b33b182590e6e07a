package dialog

import (
	"testing"
	"time"
)

func TestAppendAssignsSequentialIDs(t *testing.T) {
	l := NewLog()

	first := l.AppendUser("hello")
	second := l.AppendAssistant("hi there", time.Time{})
	third := l.AppendUser("more")

	if first.ID != 1 || second.ID != 2 || third.ID != 3 {
		t.Errorf("ids = %d, %d, %d, want 1, 2, 3", first.ID, second.ID, third.ID)
	}
}

func TestAppendPreservesOrderAndRoles(t *testing.T) {
	l := NewLog()
	l.AppendUser("question")
	l.AppendAssistant("answer", time.Time{})

	msgs := l.Messages()
	if len(msgs) != 2 {
		t.Fatalf("log has %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != RoleUser || msgs[0].Content != "question" {
		t.Errorf("msgs[0] = {%s, %q}, want user question", msgs[0].Role, msgs[0].Content)
	}
	if msgs[1].Role != RoleAssistant || msgs[1].Content != "answer" {
		t.Errorf("msgs[1] = {%s, %q}, want assistant answer", msgs[1].Role, msgs[1].Content)
	}
}

func TestAppendAssistantKeepsServerTimestamp(t *testing.T) {
	l := NewLog()
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	m := l.AppendAssistant("answer", ts)
	if !m.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want server-provided %v", m.Timestamp, ts)
	}
}

func TestAppendAssistantZeroTimestampFallsBack(t *testing.T) {
	l := NewLog()
	before := time.Now()

	m := l.AppendAssistant("answer", time.Time{})
	if m.Timestamp.Before(before) {
		t.Errorf("timestamp %v predates append", m.Timestamp)
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	l := NewLog()
	l.AppendUser("original")

	msgs := l.Messages()
	msgs[0].Content = "mutated"

	if got := l.Messages()[0].Content; got != "original" {
		t.Errorf("log content = %q, mutation leaked through the copy", got)
	}
}

func TestClearKeepsIDCounter(t *testing.T) {
	l := NewLog()
	l.AppendUser("one")
	l.AppendUser("two")

	l.Clear()
	if l.Len() != 0 {
		t.Fatalf("log has %d messages after Clear, want 0", l.Len())
	}

	// IDs never restart; entries are identified for the life of the session.
	m := l.AppendUser("three")
	if m.ID != 3 {
		t.Errorf("id after Clear = %d, want 3", m.ID)
	}
}

func TestLogTrimsOldestPastLimit(t *testing.T) {
	l := NewLog()
	for i := 0; i < MaxLogSize+10; i++ {
		l.AppendUser("msg")
	}

	if l.Len() != MaxLogSize {
		t.Fatalf("log has %d messages, want %d", l.Len(), MaxLogSize)
	}
	// The oldest entries are dropped, so the first surviving id is 11.
	if got := l.Messages()[0].ID; got != 11 {
		t.Errorf("first surviving id = %d, want 11", got)
	}
}
