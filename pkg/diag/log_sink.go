package diag

import "go.uber.org/zap"

// LogSink wraps another sink and records every diagnostic in the debug log
type LogSink struct {
	underlying Sink
	logger     *zap.Logger
}

// NewLogSink creates a new log sink. A nil logger is replaced by a no-op one.
func NewLogSink(underlying Sink, logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{
		underlying: underlying,
		logger:     logger,
	}
}

// Report implements the Sink interface
func (ls *LogSink) Report(d Diagnostic) {
	ls.logger.Error("diagnostic",
		zap.String("stage", d.Stage),
		zap.Error(d.Err),
		zap.Time("at", d.Time),
	)

	if ls.underlying != nil {
		ls.underlying.Report(d)
	}
}
