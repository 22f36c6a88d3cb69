package core

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func msg(id, inReplyTo string, refs []string, minutes int) Message {
	return Message{
		ID:         id,
		InReplyTo:  inReplyTo,
		References: refs,
		Date:       t0.Add(time.Duration(minutes) * time.Minute),
		Sender:     "Spammer <spammer@scam.example>",
		Recipient:  "me@example.org",
		Subject:    "Business proposal",
		Body:       "body of " + id,
	}
}

func threadIDs(threads []*Thread) [][]string {
	out := make([][]string, len(threads))
	for i, th := range threads {
		out[i] = th.MessageIDs()
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestReconstructConcreteScenario(t *testing.T) {
	messages := []Message{
		msg("1", "", nil, 0),
		msg("2", "1", []string{"1"}, 1),
		msg("3", "9", nil, 2),
	}

	result := NewThreadReconstructor(nil).Reconstruct(messages)

	if len(result.Threads) != 2 {
		t.Fatalf("expected 2 threads, got %d: %v", len(result.Threads), threadIDs(result.Threads))
	}
	if got := result.Threads[0].MessageIDs(); !equalIDs(got, []string{"1", "2"}) {
		t.Fatalf("expected first thread [1 2], got %v", got)
	}
	if got := result.Threads[1].MessageIDs(); !equalIDs(got, []string{"3"}) {
		t.Fatalf("expected second thread [3], got %v", got)
	}
	if result.Threads[0].ID != "1" || result.Threads[1].ID != "3" {
		t.Fatalf("unexpected thread ids %q, %q", result.Threads[0].ID, result.Threads[1].ID)
	}
	if !equalIDs(result.MissingParents, []string{"9"}) {
		t.Fatalf("expected missing parent 9, got %v", result.MissingParents)
	}
}

func TestReconstructParentResolutionAnyOrder(t *testing.T) {
	a := msg("a", "", nil, 0)
	b := msg("b", "a", nil, 1)
	c := msg("c", "b", nil, 2)

	orders := [][]Message{
		{a, b, c}, {a, c, b}, {b, a, c}, {b, c, a}, {c, a, b}, {c, b, a},
	}
	for _, order := range orders {
		result := NewThreadReconstructor(nil).Reconstruct(order)
		if len(result.Threads) != 1 {
			t.Fatalf("order %v: expected 1 thread, got %v", []string{order[0].ID, order[1].ID, order[2].ID}, threadIDs(result.Threads))
		}
		if got := result.Threads[0].MessageIDs(); !equalIDs(got, []string{"a", "b", "c"}) {
			t.Fatalf("expected [a b c], got %v", got)
		}
	}
}

func TestReconstructReferenceFallback(t *testing.T) {
	result := NewThreadReconstructor(nil).Reconstruct([]Message{
		msg("a", "", nil, 0),
		msg("b", "", []string{"a"}, 1),
	})

	if len(result.Threads) != 1 {
		t.Fatalf("expected 1 thread, got %v", threadIDs(result.Threads))
	}
	if got := result.Threads[0].MessageIDs(); !equalIDs(got, []string{"a", "b"}) {
		t.Fatalf("expected [a b], got %v", got)
	}
}

func TestReconstructReferenceOrderFirstMatchWins(t *testing.T) {
	// "x" is unknown; "b" resolves before "a" because it is declared first
	result := NewThreadReconstructor(nil).Reconstruct([]Message{
		msg("a", "", nil, 0),
		msg("b", "", nil, 1),
		msg("c", "x", []string{"b", "a"}, 2),
	})

	if len(result.Threads) != 2 {
		t.Fatalf("expected 2 threads, got %v", threadIDs(result.Threads))
	}
	if got := result.Threads[1].MessageIDs(); !equalIDs(got, []string{"b", "c"}) {
		t.Fatalf("expected c to join b's thread, got %v", threadIDs(result.Threads))
	}
}

func TestReconstructInReplyToBeatsReferences(t *testing.T) {
	result := NewThreadReconstructor(nil).Reconstruct([]Message{
		msg("a", "", nil, 0),
		msg("b", "", nil, 1),
		msg("c", "a", []string{"b"}, 2),
	})

	if got := result.Threads[0].MessageIDs(); !equalIDs(got, []string{"a", "c"}) {
		t.Fatalf("expected c to join a's thread, got %v", threadIDs(result.Threads))
	}
}

func TestReconstructOrphanPromotion(t *testing.T) {
	result := NewThreadReconstructor(nil).Reconstruct([]Message{
		msg("b", "ghost-id", nil, 0),
	})

	if len(result.Threads) != 1 || result.Threads[0].ID != "b" {
		t.Fatalf("expected orphan to root its own thread, got %v", threadIDs(result.Threads))
	}
	if !equalIDs(result.MissingParents, []string{"ghost-id"}) {
		t.Fatalf("expected ghost-id reported missing, got %v", result.MissingParents)
	}
}

func TestReconstructOrphanAdoptedByEarlierChild(t *testing.T) {
	// The root is missing but two replies share it through References
	result := NewThreadReconstructor(nil).Reconstruct([]Message{
		msg("b", "root", []string{"root"}, 1),
		msg("c", "b", []string{"root", "b"}, 2),
	})

	if len(result.Threads) != 1 {
		t.Fatalf("expected 1 thread, got %v", threadIDs(result.Threads))
	}
	if result.Threads[0].ID != "b" {
		t.Fatalf("expected thread rooted at b, got %q", result.Threads[0].ID)
	}
}

func TestReconstructNoDataLossAndDedup(t *testing.T) {
	messages := []Message{
		msg("1", "", nil, 0),
		msg("2", "1", nil, 1),
		msg("3", "2", []string{"1", "2"}, 2),
		msg("4", "", nil, 3),
		msg("5", "4", nil, 4),
		msg("6", "missing", nil, 5),
		msg("7", "", []string{"5"}, 6),
		{ID: "", Date: t0}, // malformed: no id
		{ID: "bad-date"},   // malformed: no date
	}

	result := NewThreadReconstructor(nil).Reconstruct(messages)

	if got := result.MessageCount(); got != 7 {
		t.Fatalf("expected 7 messages across threads, got %d", got)
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("expected 2 skipped messages, got %d", len(result.Skipped))
	}
	for _, skipped := range result.Skipped {
		if !errors.Is(skipped, ErrMalformedMessage) {
			t.Fatalf("expected malformed error, got %v", skipped)
		}
	}
	if result.Skipped[0].Index != 7 || result.Skipped[1].ID != "bad-date" {
		t.Fatalf("unexpected skipped entries: %v, %v", result.Skipped[0], result.Skipped[1])
	}

	seen := make(map[string]bool)
	for _, th := range result.Threads {
		if seen[th.ID] {
			t.Fatalf("thread %q returned twice", th.ID)
		}
		seen[th.ID] = true
	}
	if len(result.Threads) != 3 {
		t.Fatalf("expected 3 threads, got %v", threadIDs(result.Threads))
	}
}

func TestReconstructDuplicateIDs(t *testing.T) {
	original := msg("1", "", nil, 0)
	redelivered := original
	conflicting := original
	conflicting.Body = "different body"
	conflicting.Date = original.Date.Add(time.Minute)

	core, logs := observer.New(zap.WarnLevel)
	result := NewThreadReconstructor(zap.New(core)).Reconstruct([]Message{original, redelivered, conflicting})

	if result.MessageCount() != 1 {
		t.Fatalf("expected 1 message kept, got %d", result.MessageCount())
	}
	if kept := result.Threads[0].Messages[0]; kept.Body != original.Body {
		t.Fatalf("expected first occurrence kept, got body %q", kept.Body)
	}
	if !equalIDs(result.Redelivered, []string{"1"}) {
		t.Fatalf("expected redelivery reported, got %v", result.Redelivered)
	}
	if len(result.Conflicts) != 1 || !errors.Is(result.Conflicts[0], ErrDuplicateMessageID) {
		t.Fatalf("expected one duplicate id conflict, got %v", result.Conflicts)
	}
	if logs.FilterMessage("Ignoring later message with a duplicate id").Len() != 1 {
		t.Fatalf("expected conflict to be logged")
	}
}

func TestReconstructThreadsOrderedByFirstMessage(t *testing.T) {
	result := NewThreadReconstructor(nil).Reconstruct([]Message{
		msg("late", "", nil, 10),
		msg("early", "", nil, 0),
		msg("reply", "late", nil, 11),
	})

	if result.Threads[0].ID != "early" || result.Threads[1].ID != "late" {
		t.Fatalf("unexpected thread order %v", threadIDs(result.Threads))
	}
}

func TestReconstructEmpty(t *testing.T) {
	result := NewThreadReconstructor(nil).Reconstruct(nil)
	if len(result.Threads) != 0 || result.MessageCount() != 0 {
		t.Fatalf("expected no threads, got %v", threadIDs(result.Threads))
	}
}

func TestThreadTableLookupPanicsOnCorruption(t *testing.T) {
	table := newThreadTable(1)
	table.owner["x"] = 3

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on dangling handle")
		}
	}()
	table.lookup("x")
}
