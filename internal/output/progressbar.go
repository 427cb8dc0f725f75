package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/falkerops/partnerload/internal/utils"
)

var (
	globalActiveProgressBar *ProgressBar
	progressBarMu           sync.Mutex
)

// SetActiveProgressBar makes pb the bar the logger steps around. Passing nil, or a bar
// not drawn on a terminal, removes the logger callbacks.
func SetActiveProgressBar(pb *ProgressBar) {
	progressBarMu.Lock()
	defer progressBarMu.Unlock()
	globalActiveProgressBar = pb
	if pb != nil && pb.IsTerminal() {
		utils.RegisterLogCallbacks(pb.MoveForLog, pb.ShowAfterLog)
	} else {
		utils.UnregisterLogCallbacks()
	}
}

// ProgressBar draws "current/total", elapsed time and ETA on a single terminal line.
// Off a terminal it only tracks counts and draws nothing.
type ProgressBar struct {
	total         int
	current       int
	width         int
	refresh       time.Duration
	startTime     time.Time
	mu            sync.Mutex
	done          chan struct{}
	stopped       sync.WaitGroup
	writer        io.Writer
	isActive      bool
	spinner       int
	spinnerChars  []string
	prefix        string
	isTerminal    bool
	renderPaused  bool
	outputControl chan struct{}
}

// NewProgressBar creates a bar drawn on stderr.
func NewProgressBar(total int, width int) *ProgressBar {
	return NewProgressBarWithWriter(total, width, os.Stderr, utils.IsTerminal(os.Stderr.Fd()))
}

// NewProgressBarWithWriter creates a bar drawn on w. isTerminal decides whether it renders.
func NewProgressBarWithWriter(total int, width int, w io.Writer, isTerminal bool) *ProgressBar {
	return &ProgressBar{
		total:         total,
		width:         width,
		refresh:       250 * time.Millisecond,
		done:          make(chan struct{}),
		writer:        w,
		spinnerChars:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		isTerminal:    isTerminal,
		outputControl: make(chan struct{}, 1),
	}
}

// Start begins drawing. Calling it twice is a no-op.
func (pb *ProgressBar) Start() {
	pb.mu.Lock()
	if pb.isActive {
		pb.mu.Unlock()
		return
	}
	pb.startTime = time.Now()
	pb.isActive = true
	pb.mu.Unlock()

	SetActiveProgressBar(pb)

	if !pb.isTerminal {
		return
	}
	pb.stopped.Add(2)
	go pb.outputManager()
	go pb.ticker()
	pb.requestRender()
}

func (pb *ProgressBar) ticker() {
	defer pb.stopped.Done()
	t := time.NewTicker(pb.refresh)
	defer t.Stop()
	for {
		select {
		case <-pb.done:
			return
		case <-t.C:
			pb.requestRender()
		}
	}
}

func (pb *ProgressBar) outputManager() {
	defer pb.stopped.Done()
	for {
		select {
		case <-pb.done:
			return
		case <-pb.outputControl:
			pb.actualRender()
		}
	}
}

func (pb *ProgressBar) requestRender() {
	pb.mu.Lock()
	want := pb.isActive && !pb.renderPaused && pb.isTerminal
	pb.mu.Unlock()
	if !want {
		return
	}
	select {
	case pb.outputControl <- struct{}{}:
	default:
	}
}

// Stop halts drawing, waits for the render goroutines and clears the line.
func (pb *ProgressBar) Stop() {
	pb.mu.Lock()
	if !pb.isActive {
		pb.mu.Unlock()
		return
	}
	pb.isActive = false
	close(pb.done)
	pb.mu.Unlock()

	pb.stopped.Wait()

	progressBarMu.Lock()
	if globalActiveProgressBar == pb {
		globalActiveProgressBar = nil
		utils.UnregisterLogCallbacks()
	}
	progressBarMu.Unlock()

	pb.clearBar()
}

// Finalize stops the bar and drops any pending render request.
func (pb *ProgressBar) Finalize() {
	pb.Stop()
	select {
	case <-pb.outputControl:
	default:
	}
}

// Increment adds one completed item.
func (pb *ProgressBar) Increment() {
	pb.mu.Lock()
	pb.current++
	pb.mu.Unlock()
	pb.requestRender()
}

// Current returns the number of completed items.
func (pb *ProgressBar) Current() int {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.current
}

func (pb *ProgressBar) SetPrefix(prefix string) {
	pb.mu.Lock()
	pb.prefix = prefix
	pb.mu.Unlock()
}

// render builds the status line. Caller holds pb.mu.
func (pb *ProgressBar) render() string {
	pb.spinner = (pb.spinner + 1) % len(pb.spinnerChars)

	total := pb.total
	current := pb.current
	if current > total {
		current = total
	}

	percent := 0.0
	if total > 0 {
		percent = float64(current) / float64(total) * 100
	}

	elapsed := time.Since(pb.startTime)
	var eta string
	switch {
	case total > 0 && current >= total:
		eta = "Done"
	case current > 0:
		eta = formatDuration(time.Duration(float64(elapsed) * float64(total-current) / float64(current)))
	default:
		eta = "N/A"
	}

	filled := 0
	if total > 0 {
		filled = pb.width * current / total
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.width-filled)

	return fmt.Sprintf("%s%s [%s] %d/%d (%.2f%%) | Elapsed: %s | ETA: %s",
		pb.prefix,
		pb.spinnerChars[pb.spinner],
		bar,
		current, total,
		percent,
		formatDuration(elapsed),
		eta,
	)
}

func (pb *ProgressBar) actualRender() {
	pb.mu.Lock()
	if !pb.isActive || !pb.isTerminal || pb.renderPaused {
		pb.mu.Unlock()
		return
	}
	status := pb.render()
	pb.mu.Unlock()

	tc := GetTerminalController()
	tc.BeginOutput()
	fmt.Fprint(pb.writer, "\033[2K\r"+status)
	tc.EndOutput()
}

// MoveForLog is called by the logger before a line is printed: it pauses the bar and
// clears its line.
func (pb *ProgressBar) MoveForLog() {
	pb.mu.Lock()
	visible := pb.isActive && pb.isTerminal
	pb.renderPaused = true
	pb.mu.Unlock()

	if !visible {
		return
	}
	select {
	case <-pb.outputControl:
	default:
	}
	tc := GetTerminalController()
	tc.BeginOutput()
	fmt.Fprint(pb.writer, "\033[2K\r")
	tc.EndOutput()
}

// ShowAfterLog is called by the logger after a line is printed and redraws the bar.
func (pb *ProgressBar) ShowAfterLog() {
	pb.mu.Lock()
	wasPaused := pb.renderPaused
	pb.renderPaused = false
	pb.mu.Unlock()
	if wasPaused {
		pb.requestRender()
	}
}

func (pb *ProgressBar) clearBar() {
	if !pb.isTerminal {
		return
	}
	tc := GetTerminalController()
	tc.BeginOutput()
	fmt.Fprint(pb.writer, "\033[2K\r")
	tc.EndOutput()
}

func (pb *ProgressBar) IsTerminal() bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	return pb.isTerminal
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	s := d.Seconds()
	if s < 0 {
		s = 0
	}
	if s < 60 {
		return fmt.Sprintf("%.0fs", s)
	}

	m := int(s/60) % 60
	h := int(s / 3600)
	sRemaining := int(s) % 60
	if h < 1 {
		return fmt.Sprintf("%dm%02ds", m, sRemaining)
	}
	return fmt.Sprintf("%dh%02dm%02ds", h, m, sRemaining)
}
