package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

const displayTick = 16 * time.Millisecond

// workStages are the stages shown in the step bar, in order.
var workStages = []Stage{
	StageStart,
	StageFetchingBaseTableList,
	StageFetchingTargetTableList,
	StageComparingTables,
	StageSavingReportFile,
}

var (
	doneColor   = color.New(color.FgGreen)
	activeColor = color.New(color.FgCyan, color.Bold)
	errorColor  = color.New(color.FgRed, color.Bold)
	titleColor  = color.New(color.FgMagenta, color.Bold)
)

func stageDoneLabel(s Stage) string {
	switch s {
	case StageStart:
		return "Database Connected"
	case StageFetchingBaseTableList:
		return "Fetching base table list"
	case StageFetchingTargetTableList:
		return "Fetching target table list"
	case StageComparingTables:
		return "Comparing table"
	case StageSavingReportFile:
		return "Saving report file"
	}
	return s.String()
}

func stageActiveLine(state *ProgressState) string {
	switch s := state.Reached; s {
	case StageStart:
		return ">>> Database Connecting..."
	case StageFetchingBaseTableList, StageFetchingTargetTableList, StageComparingTables:
		return fmt.Sprintf(">>> %s... - [%s]", stageDoneLabel(s), state.Current(s).Percentage())
	case StageSavingReportFile:
		return ">>> Saving report file..."
	case StageFinished:
		return ">> Finished"
	}
	return ""
}

// renderState lays out the progress view for the current state.
func renderState(state *ProgressState) []string {
	var bar strings.Builder
	bar.WriteString(" **Step** ")
	for _, s := range workStages {
		if s < state.Reached {
			bar.WriteString(" ■")
		} else {
			bar.WriteString(" □")
		}
	}

	lines := []string{titleColor.Sprint("Report Generation"), bar.String()}
	for _, s := range workStages {
		if s >= state.Reached {
			break
		}
		lines = append(lines, doneColor.Sprintf(">> %s - DONE ☑", stageDoneLabel(s)))
	}
	lines = append(lines, activeColor.Sprint(stageActiveLine(state)))

	var description []string
	switch {
	case state.Stage == StageError:
		lines = append(lines, errorColor.Sprint("!! Error"), state.Err)
		description = []string{
			"An error occurred during the process.",
			"Press [Enter] to close the interactive window.",
		}
	case state.Stage == StageFinished:
		description = []string{
			"All process has been finished.",
			"Press [Enter] to close the interactive window.",
		}
	case state.Closed:
		description = []string{"Press [Enter] to close the interactive window."}
	}
	if len(description) > 0 {
		lines = append(lines, "", "------------ Description ------------")
		lines = append(lines, description...)
	}
	return lines
}

// runTerminalDisplay renders the progress view on a raw-mode terminal until
// the user closes it. It reports whether the user quit before the run ended;
// in that case the bus is abandoned and the worker keeps running unobserved.
func runTerminalDisplay(bus *Bus, in *os.File, out io.Writer) (quit bool, err error) {
	fd := int(in.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return false, fmt.Errorf("enter raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	keys := make(chan byte, 16)
	go readKeys(in, keys)

	ticker := time.NewTicker(displayTick)
	defer ticker.Stop()
	return driveDisplay(bus, keys, ticker.C, out), nil
}

// driveDisplay redraws after every tick that brought new events and handles
// keys until the view is closed. It reports whether the user quit early.
func driveDisplay(bus *Bus, keys <-chan byte, ticks <-chan time.Time, out io.Writer) bool {
	state := NewProgressState()
	printed := 0
	redraw := func() {
		if printed > 0 {
			fmt.Fprintf(out, "\x1b[%dA\x1b[J", printed)
		}
		lines := renderState(state)
		fmt.Fprint(out, strings.Join(lines, "\r\n")+"\r\n")
		printed = len(lines)
	}
	redraw()

	for range ticks {
		if state.Drain(bus.Events()) {
			redraw()
		}
		for pending := true; pending; {
			select {
			case k, ok := <-keys:
				if !ok {
					keys = nil
					continue
				}
				switch k {
				case 'q', 'Q', 0x1b, 0x03: // q, Esc, Ctrl-C
					if !state.Done() {
						bus.Abandon()
						return true
					}
					return false
				case '\r', '\n':
					if state.Done() {
						return false
					}
				}
			default:
				pending = false
			}
		}
		// Input is gone, so nobody can press Enter.
		if keys == nil && state.Done() {
			return false
		}
	}
	return false
}

// readKeys forwards single bytes from in until it fails. The goroutine is
// left blocked in Read once the display returns.
func readKeys(in io.Reader, keys chan<- byte) {
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if err != nil {
			close(keys)
			return
		}
		if n == 1 {
			keys <- buf[0]
		}
	}
}

// runPlainDisplay prints one line per stage change and returns when the bus
// closes. It is used when stdout is not a terminal.
func runPlainDisplay(bus *Bus, out io.Writer) {
	state := NewProgressState()
	last := Stage(-1)
	for e := range bus.Events() {
		state.Apply(e)
		if state.Stage == StageError {
			if last != StageError {
				fmt.Fprintf(out, "%s %s\n", errorColor.Sprint("!! Error:"), state.Err)
				last = StageError
			}
			continue
		}
		if state.Reached == last {
			continue
		}
		if last >= StageStart && last < StageFinished {
			fmt.Fprintln(out, doneColor.Sprintf(">> %s - DONE", stageDoneLabel(last)))
		}
		last = state.Reached
		if last == StageFinished {
			fmt.Fprintln(out, ">> Finished")
		}
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
