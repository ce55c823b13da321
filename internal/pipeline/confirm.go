package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"dpconv/internal/plan"
)

// Decision is the user's answer to a per-file confirmation prompt.
type Decision int

const (
	DecisionYes Decision = iota
	DecisionNo
	DecisionAll // yes, and stop asking for the rest of the batch
	DecisionQuit
)

// Confirmer asks whether a file should be converted. Implementations must
// be safe for concurrent use; encode workers call Confirm from multiple
// goroutines.
type Confirmer interface {
	Confirm(path string, action plan.Action) (Decision, error)
}

// TerminalConfirmer prompts on a terminal. Prompts are serialized so two
// workers cannot interleave questions.
type TerminalConfirmer struct {
	In  io.Reader
	Out io.Writer

	mu      sync.Mutex
	scanner *bufio.Scanner
	all     bool
}

// Confirm asks for one of yes/no/all/quit and re-prompts on anything else.
// Once the user answers "all", every later call returns yes immediately.
func (c *TerminalConfirmer) Confirm(path string, action plan.Action) (Decision, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.all {
		return DecisionYes, nil
	}
	if c.scanner == nil {
		c.scanner = bufio.NewScanner(c.In)
	}

	for {
		fmt.Fprintf(c.Out, "%s\n  %s. Convert? [y]es/[n]o/[a]ll/[q]uit: ", path, action.Describe())
		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil {
				return DecisionQuit, err
			}
			// EOF on stdin means nobody is answering; stop the batch.
			return DecisionQuit, nil
		}
		switch strings.ToLower(strings.TrimSpace(c.scanner.Text())) {
		case "y", "yes":
			return DecisionYes, nil
		case "n", "no":
			return DecisionNo, nil
		case "a", "all":
			c.all = true
			return DecisionYes, nil
		case "q", "quit":
			return DecisionQuit, nil
		}
	}
}
