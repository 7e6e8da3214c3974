package input

import (
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Kind classifies a tracked source
type Kind int

const (
	KindFile Kind = iota
	KindPipe
	KindStdin
	KindMaster
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindPipe:
		return "pipe"
	case KindStdin:
		return "stdin"
	case KindMaster:
		return "pty master"
	default:
		return "unknown"
	}
}

// Source describes a descriptor waiting to be admitted
type Source struct {
	FD   int
	Kind Kind
	Name string

	// Closer, when set, owns FD and is used instead of closing FD directly.
	Closer io.Closer
}

// Stdin returns the standard input source for fd. Standard input is never
// closed by the registry.
func Stdin(fd int) Source {
	return Source{FD: fd, Kind: KindStdin, Name: "stdin"}
}

// Master returns the pty master source. The file keeps ownership of the
// descriptor; Fd puts it in blocking mode.
func Master(master *os.File) Source {
	return Source{
		FD:     int(master.Fd()),
		Kind:   KindMaster,
		Name:   master.Name(),
		Closer: master,
	}
}

// OpenFile opens a regular file as a non-blocking source
func OpenFile(path string) (Source, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return Source{}, &SourceError{Stage: "add file input", Call: "open", Path: path, Err: err}
	}
	return Source{FD: fd, Kind: KindFile, Name: path}, nil
}

// OpenPipe opens a named pipe as a source. The path must already be a FIFO;
// it is opened read-write so the pipe never reports end-of-input while no
// writer is attached.
func OpenPipe(path string) (Source, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return Source{}, &SourceError{Stage: "add pipe input", Call: "stat", Path: path, Err: err}
	}
	if st.Mode&unix.S_IFMT != unix.S_IFIFO {
		return Source{}, &NotAPipeError{Path: path}
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return Source{}, &SourceError{Stage: "add pipe input", Call: "open", Path: path, Err: err}
	}
	return Source{FD: fd, Kind: KindPipe, Name: path}, nil
}

// Close releases a source that was opened but never admitted
func (s Source) Close() error {
	switch {
	case s.Kind == KindStdin:
		return nil
	case s.Closer != nil:
		return s.Closer.Close()
	default:
		return unix.Close(s.FD)
	}
}

// isFIFO reports whether fd refers to a FIFO
func isFIFO(fd int) (bool, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return false, err
	}
	return st.Mode&unix.S_IFMT == unix.S_IFIFO, nil
}

// nonBlocking reports whether the registry puts a source of kind k in
// non-blocking mode. The pty master stays blocking: it is the write
// destination for every other source.
func (k Kind) nonBlocking() bool {
	return k != KindMaster
}
