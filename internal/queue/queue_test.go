package queue

import "testing"

func TestDrainSeparation(t *testing.T) {
	q := New()
	q.AddSteering("s1")
	q.AddFollowUp("f1")
	q.AddSteering("s2")

	steering := q.TakeSteering()
	if len(steering) != 1 || steering[0].Content != "s1" {
		t.Fatalf("expected one-at-a-time head s1, got %+v", steering)
	}
	if !q.HasSteering() {
		t.Fatalf("expected s2 to remain queued")
	}
	if !q.HasFollowUp() {
		t.Fatalf("follow-up queue must be unaffected by TakeSteering")
	}

	q.SetSteeringMode(DrainAll)
	rest := q.TakeSteering()
	if len(rest) != 1 || rest[0].Content != "s2" {
		t.Fatalf("expected remaining s2, got %+v", rest)
	}
	if q.HasSteering() {
		t.Fatalf("steering queue should be empty after drain-all")
	}

	followUp := q.TakeFollowUp()
	if len(followUp) != 1 || followUp[0].Content != "f1" {
		t.Fatalf("expected f1, got %+v", followUp)
	}
}

func TestStatus(t *testing.T) {
	q := New()
	if got := q.Status(); got != "Queue empty" {
		t.Fatalf("got %q", got)
	}
	q.AddSteering("a")
	q.AddFollowUp("b")
	q.AddFollowUp("c")
	if got := q.Status(); got != "Queued: 1 steering, 2 follow-up" {
		t.Fatalf("got %q", got)
	}
}

func TestClearReturnsDrainedContents(t *testing.T) {
	q := New()
	q.AddSteering("s1")
	q.AddFollowUp("f1")
	drained := q.Clear()
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained messages, got %d", len(drained))
	}
	if q.HasSteering() || q.HasFollowUp() {
		t.Fatalf("queue must be empty after Clear")
	}
}
