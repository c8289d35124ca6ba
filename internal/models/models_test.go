package models

import "testing"

func TestStatus_Valid(t *testing.T) {
	for _, s := range StatusOrder {
		if !s.Valid() {
			t.Fatalf("%s should be valid", s)
		}
	}
	if Status("banana").Valid() {
		t.Fatal("unknown status should not be valid")
	}
}

func TestStatus_Terminal(t *testing.T) {
	terminals := map[Status]bool{StatusSubmitted: true, StatusSkipped: true}
	for _, s := range StatusOrder {
		if got := s.Terminal(); got != terminals[s] {
			t.Fatalf("%s.Terminal() = %v", s, got)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusDiscovered, StatusApproved},
		{StatusDiscovered, StatusSkipped},
		{StatusApproved, StatusTailoring},
		{StatusApproved, StatusReady},
		{StatusApproved, StatusManual},
		{StatusApproved, StatusFailed},
		{StatusTailoring, StatusReady},
		{StatusReady, StatusFilling},
		{StatusReady, StatusSubmitted},
		{StatusFilling, StatusReady},
		{StatusFilling, StatusFailed},
		{StatusFilling, StatusSkipped},
		{StatusFailed, StatusApproved},
		{StatusManual, StatusApproved},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusDiscovered, StatusFilling},
		{StatusDiscovered, StatusSubmitted},
		{StatusReady, StatusApproved},
		{StatusSubmitted, StatusApproved},
		{StatusSkipped, StatusApproved},
		{StatusFilling, StatusSubmitted},
		{StatusTailoring, StatusFilling},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Fatalf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}

// The operator can abandon a job from any non-terminal status.
func TestNonTerminalStatusesCanBeSkipped(t *testing.T) {
	for _, from := range StatusOrder {
		if from.Terminal() {
			continue
		}
		if !CanTransition(from, StatusSkipped) {
			t.Fatalf("%s -> skipped should be allowed", from)
		}
	}
}

func TestTerminalStatusesHaveNoEdges(t *testing.T) {
	for _, from := range StatusOrder {
		if !from.Terminal() {
			continue
		}
		for _, to := range StatusOrder {
			if CanTransition(from, to) {
				t.Fatalf("terminal %s has outgoing edge to %s", from, to)
			}
		}
	}
}

func TestFillResult_Append(t *testing.T) {
	var r FillResult
	r.Append(LogOK, "filled #email")
	r.Append(LogSkip, "skipped question")
	if len(r.Log) != 2 {
		t.Fatalf("log = %d entries", len(r.Log))
	}
	if r.Log[0].Level != LogOK || r.Log[1].Level != LogSkip {
		t.Fatalf("unexpected log: %+v", r.Log)
	}
}
