package observability

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
	colorGreen    = "\033[92m"
	colorRed      = "\033[91m"
)

var spinnerFrames = []string{"◜", "◝", "◞", "◟"}
var spinnerIdx = 0

// termMu serialises every write to the terminal so the status line and
// log output never interleave mid-line.
var termMu sync.Mutex

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

type termWriter struct{}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput().
func NewTermWriter() io.Writer {
	return termWriter{}
}

func PrintBanner(w io.Writer) {
	banner := `
     _                          _       _     _
 ___| |_ ___ _ ____      ___ __(_) __ _| |__ | |_
/ __| __/ _ \ '_ \ \ /\ / / '__| |/ _' | '_ \| __|
\__ \ ||  __/ |_) \ V  V /| |  | | (_| | | | | |_
|___/\__\___| .__/ \_/\_/ |_|  |_|\__, |_| |_|\__|
            |_|                   |___/
        >> ADAPTIVE SCENARIO RUNNER <<
`
	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Fprintf(w, "%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

// StatusLine renders the current phase, task and uptime on one line.
func StatusLine() string {
	phase, task, lastHB := GetStatus()

	phaseColor := colorPurple
	switch phase {
	case PhaseDone:
		phaseColor = colorGreen
	case PhaseFailed:
		phaseColor = colorRed
	case PhaseExecuting, PhaseRePlanning:
		phaseColor = colorNeonMag
	case PhasePlanning, PhaseValidating:
		phaseColor = colorNeonCyan
	}

	spinner := " "
	if phase != PhaseIdle && phase != PhaseDone && phase != PhaseFailed {
		spinner = spinnerFrames[spinnerIdx]
		spinnerIdx = (spinnerIdx + 1) % len(spinnerFrames)
	}

	if task == "" {
		task = "Waiting..."
	}
	if limit := termWidth() - 40; limit > 10 && len(task) > limit {
		task = task[:limit-3] + "..."
	}

	return fmt.Sprintf("[%s] %s%s %-10s%s %s [%v]",
		lastHB.Format("15:04:05"),
		phaseColor, spinner, phase, colorReset,
		task,
		time.Since(startTime).Round(time.Second),
	)
}

// PrintLiveStatus rewrites the status line in place.
func PrintLiveStatus() {
	line := StatusLine()
	termMu.Lock()
	fmt.Print("\r\033[K" + line)
	termMu.Unlock()
}
