package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
)

func withoutColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestRenderState(t *testing.T) {
	withoutColor(t)

	tests := []struct {
		name   string
		events []Event
		want   []string
	}{
		{
			name:   "connecting",
			events: []Event{StageEvent{Stage: StageStart}},
			want: []string{
				"Report Generation",
				" **Step**  □ □ □ □ □",
				">>> Database Connecting...",
			},
		},
		{
			name: "fetching base",
			events: []Event{
				StageEvent{Stage: StageStart},
				StageEvent{Stage: StageFetchingBaseTableList},
				ProgressEvent{Stage: StageFetchingBaseTableList, Current: 1, Total: 4},
			},
			want: []string{
				"Report Generation",
				" **Step**  ■ □ □ □ □",
				">> Database Connected - DONE ☑",
				">>> Fetching base table list... - [25%]",
			},
		},
		{
			name: "finished",
			events: []Event{
				StageEvent{Stage: StageSavingReportFile},
				StageEvent{Stage: StageFinished},
			},
			want: []string{
				"Report Generation",
				" **Step**  ■ ■ ■ ■ ■",
				">> Database Connected - DONE ☑",
				">> Fetching base table list - DONE ☑",
				">> Fetching target table list - DONE ☑",
				">> Comparing table - DONE ☑",
				">> Saving report file - DONE ☑",
				">> Finished",
				"",
				"------------ Description ------------",
				"All process has been finished.",
				"Press [Enter] to close the interactive window.",
			},
		},
		{
			name: "error while comparing",
			events: []Event{
				StageEvent{Stage: StageComparingTables},
				ErrorEvent{Message: "connection reset"},
			},
			want: []string{
				"Report Generation",
				" **Step**  ■ ■ ■ □ □",
				">> Database Connected - DONE ☑",
				">> Fetching base table list - DONE ☑",
				">> Fetching target table list - DONE ☑",
				">>> Comparing table... - [0%]",
				"!! Error",
				"connection reset",
				"",
				"------------ Description ------------",
				"An error occurred during the process.",
				"Press [Enter] to close the interactive window.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := NewProgressState()
			for _, e := range tt.events {
				state.Apply(e)
			}
			got := renderState(state)
			if strings.Join(got, "\n") != strings.Join(tt.want, "\n") {
				t.Errorf("renderState() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(tt.want, "\n"))
			}
		})
	}
}

func TestRunPlainDisplay(t *testing.T) {
	withoutColor(t)

	bus := NewBus(32)
	bus.Emit(StageEvent{Stage: StageStart})
	bus.Emit(StageEvent{Stage: StageFetchingBaseTableList})
	bus.Emit(ProgressEvent{Stage: StageFetchingBaseTableList, Current: 1, Total: 1})
	bus.Emit(StageEvent{Stage: StageFetchingTargetTableList})
	bus.Emit(ProgressEvent{Stage: StageFetchingTargetTableList, Current: 1, Total: 1})
	bus.Emit(StageEvent{Stage: StageComparingTables})
	bus.Emit(StageEvent{Stage: StageSavingReportFile})
	bus.Finish()

	var out bytes.Buffer
	runPlainDisplay(bus, &out)

	want := strings.Join([]string{
		">> Database Connected - DONE",
		">> Fetching base table list - DONE",
		">> Fetching target table list - DONE",
		">> Comparing table - DONE",
		">> Saving report file - DONE",
		">> Finished",
	}, "\n") + "\n"
	if out.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", out.String(), want)
	}
}

func TestRunPlainDisplay_Error(t *testing.T) {
	withoutColor(t)

	bus := NewBus(8)
	bus.Emit(StageEvent{Stage: StageStart})
	bus.Fail(errors.New("failed to connect to base database (postgres): refused"))

	var out bytes.Buffer
	runPlainDisplay(bus, &out)

	want := "!! Error: failed to connect to base database (postgres): refused\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func runDriveDisplay(bus *Bus, keys <-chan byte) (<-chan bool, *bytes.Buffer, func()) {
	var out bytes.Buffer
	ticker := time.NewTicker(time.Millisecond)
	result := make(chan bool, 1)
	go func() {
		result <- driveDisplay(bus, keys, ticker.C, &out)
	}()
	return result, &out, ticker.Stop
}

func TestDriveDisplay_ClosedInputEndsAfterRun(t *testing.T) {
	withoutColor(t)

	bus := NewBus(8)
	bus.Emit(StageEvent{Stage: StageStart})
	keys := make(chan byte)
	close(keys)

	result, out, stop := runDriveDisplay(bus, keys)
	defer stop()

	select {
	case <-result:
		t.Fatal("view closed while the run was still going")
	case <-time.After(20 * time.Millisecond):
	}

	bus.Finish()
	select {
	case quit := <-result:
		if quit {
			t.Error("quit = true for a finished run")
		}
	case <-time.After(time.Second):
		t.Fatal("view did not return after input closed and the run finished")
	}
	if !strings.Contains(out.String(), "All process has been finished.") {
		t.Errorf("final frame missing:\n%s", out.String())
	}
}

func TestDriveDisplay_QuitAbandonsBus(t *testing.T) {
	bus := NewBus(1)
	bus.Emit(StageEvent{Stage: StageStart})
	keys := make(chan byte, 1)
	keys <- 'q'

	result, _, stop := runDriveDisplay(bus, keys)
	defer stop()

	select {
	case quit := <-result:
		if !quit {
			t.Error("quit = false after q before the run ended")
		}
	case <-time.After(time.Second):
		t.Fatal("view did not return after q")
	}
	if bus.Emit(StageEvent{Stage: StageFetchingBaseTableList}) {
		t.Error("Emit succeeded after the view quit")
	}
}

func TestDriveDisplay_EnterClosesFinishedRun(t *testing.T) {
	bus := NewBus(4)
	bus.Emit(StageEvent{Stage: StageStart})
	bus.Finish()
	keys := make(chan byte, 1)

	result, _, stop := runDriveDisplay(bus, keys)
	defer stop()
	keys <- '\r'

	select {
	case quit := <-result:
		if quit {
			t.Error("quit = true after Enter on a finished run")
		}
	case <-time.After(time.Second):
		t.Fatal("view did not return after Enter")
	}
}
