// Package interfaces defines the core interfaces used throughout the application.
package interfaces

// StopFlag is the cooperative stop request observed by the relay loop.
type StopFlag interface {
	Running() bool
}

// Stopper requests a cooperative stop.
type Stopper interface {
	Stop()
}

// SessionRunner runs one relay session around a child program.
type SessionRunner interface {
	Run() error
	Close() error
	ExitCode() int
}
