// Package input tracks the byte sources the relay loop multiplexes: standard
// input, the pty master and any files or named pipes admitted on top of them.
package input

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Handle identifies an admitted input for the lifetime of the registry.
// Handles are never reused.
type Handle uint64

// Input is one tracked source
type Input struct {
	handle Handle
	fd     int
	kind   Kind
	name   string
	closer io.Closer
}

// Handle returns the input's registry handle
func (in *Input) Handle() Handle { return in.handle }

// FD returns the tracked descriptor
func (in *Input) FD() int { return in.fd }

// Kind returns the source kind
func (in *Input) Kind() Kind { return in.kind }

// Name returns the display name used in diagnostics
func (in *Input) Name() string { return in.name }

// Read reads from the descriptor, retrying on EINTR
func (in *Input) Read(p []byte) (int, error) {
	for {
		n, err := unix.Read(in.fd, p)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// Registry holds the admitted inputs in admission order.
//
// Inputs live in an arena keyed by handle; order holds the handles in
// admission order and byFD indexes descriptors, so a descriptor is tracked at
// most once. highest is the largest tracked descriptor, or -1.
type Registry struct {
	mu      sync.Mutex
	entries map[Handle]*Input
	order   []Handle
	byFD    map[int]Handle
	next    Handle
	highest int
	limit   int
	logger  *zap.Logger
}

// Option configures a Registry
type Option func(*Registry)

// WithLimit rejects descriptors >= limit with an AllocationError. Used by the
// select multiplexer, whose descriptor set is bounded.
func WithLimit(limit int) Option {
	return func(r *Registry) {
		r.limit = limit
	}
}

// WithLogger sets the debug logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[Handle]*Input),
		byFD:    make(map[int]Handle),
		highest: -1,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Admit starts tracking src. A descriptor that is already tracked is
// rejected with ErrDuplicate and the registry is left unchanged. On error the
// caller still owns src.
func (r *Registry) Admit(src Source) (*Input, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byFD[src.FD]; ok {
		return nil, fmt.Errorf("admit %s (fd %d): %w", src.Name, src.FD, ErrDuplicate)
	}

	if r.limit > 0 && src.FD >= r.limit {
		return nil, &AllocationError{FD: src.FD, Limit: r.limit}
	}

	if src.Kind == KindPipe {
		fifo, err := isFIFO(src.FD)
		if err != nil {
			return nil, &SourceError{Stage: "add pipe input", Call: "fstat", Path: src.Name, Err: err}
		}
		if !fifo {
			return nil, &NotAPipeError{Path: src.Name}
		}
	}

	if src.Kind.nonBlocking() {
		if err := unix.SetNonblock(src.FD, true); err != nil {
			return nil, &SourceError{Stage: "enable blocking", Call: "fcntl", Path: src.Name, Err: err}
		}
	}

	r.next++
	in := &Input{
		handle: r.next,
		fd:     src.FD,
		kind:   src.Kind,
		name:   src.Name,
		closer: src.Closer,
	}
	r.entries[in.handle] = in
	r.order = append(r.order, in.handle)
	r.byFD[in.fd] = in.handle
	if in.fd > r.highest {
		r.highest = in.fd
	}

	r.logger.Debug("input admitted",
		zap.String("name", in.name),
		zap.Stringer("kind", in.kind),
		zap.Int("fd", in.fd),
	)

	return in, nil
}

// Remove stops tracking the input with handle h. Standard input has its
// blocking mode restored; every other descriptor is closed.
func (r *Registry) Remove(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(h)
}

func (r *Registry) removeLocked(h Handle) error {
	in, ok := r.entries[h]
	if !ok {
		return ErrUnknown
	}

	var err error
	switch {
	case in.kind == KindStdin:
		if serr := unix.SetNonblock(in.fd, false); serr != nil {
			err = &SourceError{Stage: "enable blocking", Call: "fcntl", Path: in.name, Err: serr}
		}
	case in.closer != nil:
		err = in.closer.Close()
	default:
		err = unix.Close(in.fd)
	}

	delete(r.byFD, in.fd)
	delete(r.entries, h)
	for i, oh := range r.order {
		if oh == h {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if in.fd == r.highest {
		r.findHighest()
	}

	r.logger.Debug("input removed",
		zap.String("name", in.name),
		zap.Stringer("kind", in.kind),
		zap.Int("fd", in.fd),
	)

	return err
}

// findHighest rescans the remaining inputs, newest first
func (r *Registry) findHighest() {
	r.highest = -1
	for i := len(r.order) - 1; i >= 0; i-- {
		if fd := r.entries[r.order[i]].fd; fd > r.highest {
			r.highest = fd
		}
	}
}

// RemoveAll removes every input, newest first, and returns the combined
// release errors
func (r *Registry) RemoveAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs error
	for len(r.order) > 0 {
		h := r.order[len(r.order)-1]
		if err := r.removeLocked(h); err != nil && !errors.Is(err, ErrUnknown) {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// Inputs returns the tracked inputs in admission order. The slice is a
// snapshot; removing inputs while iterating it is safe.
func (r *Registry) Inputs() []*Input {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Input, 0, len(r.order))
	for _, h := range r.order {
		out = append(out, r.entries[h])
	}
	return out
}

// Descriptors returns the tracked descriptors in admission order
func (r *Registry) Descriptors() []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]int, 0, len(r.order))
	for _, h := range r.order {
		out = append(out, r.entries[h].fd)
	}
	return out
}

// Contains reports whether h is still tracked
func (r *Registry) Contains(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[h]
	return ok
}

// Lookup returns the input tracking fd
func (r *Registry) Lookup(fd int) (*Input, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byFD[fd]
	if !ok {
		return nil, false
	}
	return r.entries[h], true
}

// HasKind reports whether an input of kind k is tracked
func (r *Registry) HasKind(k Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.order {
		if r.entries[h].kind == k {
			return true
		}
	}
	return false
}

// Len returns the number of tracked inputs
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Highest returns the largest tracked descriptor, or -1 when empty
func (r *Registry) Highest() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.highest
}
