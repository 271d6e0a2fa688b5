package main

import (
	"errors"
	"testing"
	"time"
)

func TestProgressPercentage(t *testing.T) {
	tests := []struct {
		current, total int
		want           string
	}{
		{0, 0, "0%"},
		{0, 10, "0%"},
		{1, 3, "33%"},
		{2, 3, "66%"},
		{9, 10, "90%"},
		{99, 100, "99%"},
		{10, 10, "100%"},
	}
	for _, tt := range tests {
		got := ProgressEvent{Current: tt.current, Total: tt.total}.Percentage()
		if got != tt.want {
			t.Errorf("Percentage(%d/%d) = %q, want %q", tt.current, tt.total, got, tt.want)
		}
	}
}

func TestProgressStateForwardOnly(t *testing.T) {
	s := NewProgressState()
	s.Apply(StageEvent{Stage: StageComparingTables})
	s.Apply(StageEvent{Stage: StageFetchingBaseTableList})
	if s.Stage != StageComparingTables {
		t.Errorf("Stage = %s, want ComparingTables", s.Stage)
	}

	s.Apply(ProgressEvent{Stage: StageFetchingTargetTableList, Current: 3, Total: 4})
	if _, ok := s.Progress[StageFetchingTargetTableList]; ok {
		t.Error("progress for an earlier stage was recorded")
	}

	s.Apply(ProgressEvent{Stage: StageComparingTables, Current: 2, Total: 4})
	s.Apply(ProgressEvent{Stage: StageComparingTables, Current: 3, Total: 4})
	if got := s.Current(StageComparingTables); got.Current != 3 {
		t.Errorf("Current = %d, want latest value 3", got.Current)
	}
}

func TestProgressStateTerminal(t *testing.T) {
	s := NewProgressState()
	s.Apply(StageEvent{Stage: StageFetchingBaseTableList})
	s.Apply(ErrorEvent{Message: "boom"})
	s.Apply(StageEvent{Stage: StageFinished})

	if s.Stage != StageError {
		t.Errorf("Stage = %s, want Error", s.Stage)
	}
	if s.Reached != StageFetchingBaseTableList {
		t.Errorf("Reached = %s, want FetchingBaseTableList", s.Reached)
	}
	if s.Err != "boom" {
		t.Errorf("Err = %q", s.Err)
	}
	if !s.Done() {
		t.Error("Done() = false after error")
	}
}

func TestProgressStateDrainCoalesces(t *testing.T) {
	ch := make(chan Event, 8)
	s := NewProgressState()

	if s.Drain(ch) {
		t.Error("Drain reported a change on an empty channel")
	}

	for i := 1; i <= 5; i++ {
		ch <- ProgressEvent{Stage: StageFetchingBaseTableList, Current: i, Total: 5}
	}
	if !s.Drain(ch) {
		t.Fatal("Drain reported no change")
	}
	if got := s.Current(StageFetchingBaseTableList); got.Current != 5 {
		t.Errorf("Current = %d, want 5", got.Current)
	}
	if len(ch) != 0 {
		t.Errorf("%d events left in channel", len(ch))
	}

	close(ch)
	if !s.Drain(ch) || !s.Closed || !s.Done() {
		t.Error("closed channel not treated as terminal")
	}
	if s.Drain(ch) {
		t.Error("second drain of a closed channel reported a change")
	}
}

func TestBusFinishClosesAfterTerminalEvent(t *testing.T) {
	bus := NewBus(4)
	bus.Emit(StageEvent{Stage: StageStart})
	bus.Finish()
	bus.Fail(errors.New("ignored after finish"))

	var got []Event
	for e := range bus.Events() {
		got = append(got, e)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(got), got)
	}
	if got[1] != (StageEvent{Stage: StageFinished}) {
		t.Errorf("last event = %+v, want Finished", got[1])
	}
}

func TestBusAbandonUnblocksWorker(t *testing.T) {
	bus := NewBus(1)
	bus.Emit(StageEvent{Stage: StageStart}) // fills the buffer

	done := make(chan bool)
	go func() {
		done <- bus.Emit(StageEvent{Stage: StageFetchingBaseTableList})
	}()

	select {
	case <-done:
		t.Fatal("Emit returned while the buffer was full")
	case <-time.After(20 * time.Millisecond):
	}

	bus.Abandon()
	select {
	case sent := <-done:
		if sent {
			t.Error("Emit reported success after Abandon")
		}
	case <-time.After(time.Second):
		t.Fatal("Emit still blocked after Abandon")
	}

	// Finish must not block either.
	finished := make(chan struct{})
	go func() {
		bus.Finish()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Finish blocked after Abandon")
	}
}
