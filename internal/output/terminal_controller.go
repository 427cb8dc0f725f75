package output

import (
	"sync"
)

// TerminalController serialises writes to the terminal between log lines and the
// progress bar so neither tears the other.
type TerminalController struct {
	outputMu sync.Mutex
}

var (
	terminalController *TerminalController
	once               sync.Once
)

// GetTerminalController returns the process-wide controller.
func GetTerminalController() *TerminalController {
	once.Do(func() {
		terminalController = &TerminalController{}
	})
	return terminalController
}

// BeginOutput takes exclusive access to the terminal.
func (tc *TerminalController) BeginOutput() {
	tc.outputMu.Lock()
}

// EndOutput releases access taken by BeginOutput.
func (tc *TerminalController) EndOutput() {
	tc.outputMu.Unlock()
}
