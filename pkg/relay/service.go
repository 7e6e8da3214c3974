package relay

import (
	"errors"
	"io"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/nakkulla/iix/pkg/input"
)

// DefaultChunkSize is the read size used when none is configured
const DefaultChunkSize = 8192

// FDWriter writes to a raw descriptor, retrying on EINTR. Short writes are
// returned as-is for the caller to continue.
//
// Standard output usually shares its open file description with standard
// input, so it turns non-blocking when standard input is admitted; EAGAIN
// waits for the descriptor to drain instead of failing.
type FDWriter int

func (w FDWriter) Write(p []byte) (int, error) {
	for {
		n, err := unix.Write(int(w), p)
		switch err {
		case nil:
			return n, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			if perr := waitWritable(int(w)); perr != nil {
				return 0, perr
			}
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

func waitWritable(fd int) error {
	for {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		return err
	}
}

// Service moves one chunk from a ready input to its destination
type Service struct {
	registry *input.Registry

	// Master receives everything read from inputs other than the master
	Master io.Writer
	// Output receives everything read from the master
	Output io.Writer

	buf    []byte
	logger *zap.Logger
}

// NewService creates a service reading chunkSize bytes at a time
func NewService(registry *input.Registry, master, output io.Writer, chunkSize int, logger *zap.Logger) *Service {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry: registry,
		Master:   master,
		Output:   output,
		buf:      make([]byte, chunkSize),
		logger:   logger,
	}
}

// Serve services one ready input. A nil return keeps the session alive;
// end-of-input on a file or pipe retires that input. End-of-input on
// standard input (ErrEndOfInput) or on the pty master (ErrHangup) ends the
// session.
func (s *Service) Serve(in *input.Input) error {
	dst := s.Master
	if in.Kind() == input.KindMaster {
		dst = s.Output
	}

	n, err := in.Read(s.buf)
	if err != nil {
		switch {
		case errors.Is(err, unix.EAGAIN):
			return nil
		case errors.Is(err, unix.EIO) && in.Kind() == input.KindMaster:
			// Linux reports EIO once every slave descriptor is closed
			return s.fail(in, "read", ErrHangup)
		}
		return s.fail(in, "read", err)
	}

	if n == 0 {
		switch in.Kind() {
		case input.KindStdin:
			return s.fail(in, "read", ErrEndOfInput)
		case input.KindMaster:
			return s.fail(in, "read", ErrHangup)
		}
		s.logger.Debug("input exhausted", zap.String("name", in.Name()))
		if err := s.registry.Remove(in.Handle()); err != nil {
			s.logger.Warn("release exhausted input", zap.String("name", in.Name()), zap.Error(err))
		}
		return nil
	}

	if err := writeFull(dst, s.buf[:n]); err != nil {
		return s.fail(in, "write", err)
	}
	return nil
}

func (s *Service) fail(in *input.Input, call string, err error) error {
	return &ServiceError{Input: in.Name(), Kind: in.Kind(), Call: call, Err: err}
}

// writeFull writes p to w, continuing after partial writes
func writeFull(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}
