package process

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/creack/pty"
	"go.uber.org/multierr"
)

// Pty is a master/slave pseudo-terminal pair
type Pty struct {
	Master *os.File
	Slave  *os.File

	mu sync.Mutex
}

// AllocatePty opens a new pty pair. The caller owns both ends.
func AllocatePty() (*Pty, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, &PtyAllocationError{Call: "posix_openpt", Err: err}
	}
	return &Pty{Master: master, Slave: slave}, nil
}

// CopySize copies the window size of the terminal from onto the pty. This is
// done once at startup; later resizes are not propagated.
func (p *Pty) CopySize(from *os.File) error {
	size, err := pty.GetsizeFull(from)
	if err != nil {
		return fmt.Errorf("get terminal size: %w", err)
	}
	if err := pty.Setsize(p.Master, size); err != nil {
		return fmt.Errorf("set pty size: %w", err)
	}
	return nil
}

// CloseSlave closes the parent's copy of the slave once the child holds its own
func (p *Pty) CloseSlave() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return closeFile(p.Slave)
}

// Close closes both ends. Ends that are already closed are skipped.
func (p *Pty) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return multierr.Combine(closeFile(p.Slave), closeFile(p.Master))
}

func closeFile(f *os.File) error {
	if f == nil {
		return nil
	}
	if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
