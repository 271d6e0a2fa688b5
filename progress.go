package main

import (
	"fmt"
	"sync"
)

// Stage is a step of one comparison run. Stages only move forward;
// StageFinished and StageError are terminal.
type Stage int

const (
	StageStart Stage = iota
	StageFetchingBaseTableList
	StageFetchingTargetTableList
	StageComparingTables
	StageSavingReportFile
	StageFinished
	StageError
)

func (s Stage) String() string {
	switch s {
	case StageStart:
		return "Start"
	case StageFetchingBaseTableList:
		return "FetchingBaseTableList"
	case StageFetchingTargetTableList:
		return "FetchingTargetTableList"
	case StageComparingTables:
		return "ComparingTables"
	case StageSavingReportFile:
		return "SavingReportFile"
	case StageFinished:
		return "Finished"
	case StageError:
		return "Error"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

func (s Stage) Terminal() bool { return s == StageFinished || s == StageError }

// Event is sent from the worker to the display. The set of events is closed.
type Event interface {
	isEvent()
}

// StageEvent marks entry into a stage.
type StageEvent struct {
	Stage Stage
}

// ProgressEvent carries the counters of a stage that walks tables.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
}

// ErrorEvent terminates a failed run.
type ErrorEvent struct {
	Message string
}

func (StageEvent) isEvent()    {}
func (ProgressEvent) isEvent() {}
func (ErrorEvent) isEvent()    {}

// Percentage renders the completed share, rounded down, e.g. "42%".
func (p ProgressEvent) Percentage() string {
	if p.Total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%d%%", p.Current*100/p.Total)
}

const defaultBusBuffer = 64

// Bus carries events from one worker to one display. The worker owns the
// channel and closes it with Finish or Fail; the display may Abandon it, after
// which sends are dropped instead of blocking.
type Bus struct {
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
	abandon   sync.Once
}

func NewBus(buffer int) *Bus {
	if buffer < 0 {
		buffer = 0
	}
	return &Bus{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Events is the receive side for the display.
func (b *Bus) Events() <-chan Event { return b.ch }

// Emit sends e, blocking while the buffer is full. It reports false when
// the display has gone away and the event was dropped.
func (b *Bus) Emit(e Event) bool {
	select {
	case <-b.done:
		return false
	default:
	}
	select {
	case b.ch <- e:
		return true
	case <-b.done:
		return false
	}
}

// Finish sends StageFinished and closes the channel.
func (b *Bus) Finish() {
	b.closeOnce.Do(func() {
		b.Emit(StageEvent{Stage: StageFinished})
		close(b.ch)
	})
}

// Fail sends a single ErrorEvent and closes the channel.
func (b *Bus) Fail(err error) {
	b.closeOnce.Do(func() {
		b.Emit(ErrorEvent{Message: err.Error()})
		close(b.ch)
	})
}

// Abandon tells the worker nobody is listening anymore.
func (b *Bus) Abandon() {
	b.abandon.Do(func() { close(b.done) })
}

// ProgressState is what the display knows about the run so far.
type ProgressState struct {
	Stage    Stage
	Reached  Stage // last stage entered before any error
	Progress map[Stage]ProgressEvent
	Err      string
	Closed   bool
}

func NewProgressState() *ProgressState {
	return &ProgressState{Stage: StageStart, Progress: make(map[Stage]ProgressEvent)}
}

// Apply folds one event into the state. Events for earlier stages than the
// current one are ignored, as is anything after a terminal stage.
func (s *ProgressState) Apply(e Event) {
	if s.Stage.Terminal() {
		return
	}
	switch ev := e.(type) {
	case StageEvent:
		if ev.Stage > s.Stage {
			s.Stage = ev.Stage
			if ev.Stage != StageError {
				s.Reached = ev.Stage
			}
		}
	case ProgressEvent:
		if ev.Stage < s.Stage || ev.Stage.Terminal() {
			return
		}
		s.Stage = ev.Stage
		s.Reached = ev.Stage
		s.Progress[ev.Stage] = ev
	case ErrorEvent:
		s.Stage = StageError
		s.Err = ev.Message
	}
}

// Drain applies every event already waiting on ch without blocking. It
// reports whether anything changed.
func (s *ProgressState) Drain(ch <-chan Event) bool {
	changed := false
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				if !s.Closed {
					s.Closed = true
					changed = true
				}
				return changed
			}
			s.Apply(e)
			changed = true
		default:
			return changed
		}
	}
}

// Done reports whether the run has ended, either by a terminal event or by
// the channel closing.
func (s *ProgressState) Done() bool {
	return s.Closed || s.Stage.Terminal()
}

// Current returns the latest counters for stage.
func (s *ProgressState) Current(stage Stage) ProgressEvent {
	if p, ok := s.Progress[stage]; ok {
		return p
	}
	return ProgressEvent{Stage: stage}
}
