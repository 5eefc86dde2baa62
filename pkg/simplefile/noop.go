package simplefile

import (
	"context"
	"errors"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

// FileCreated does nothing and returns nil
func (n *NoopEventSink) FileCreated(ctx context.Context, record Record) error {
	return nil
}

// FileRejected does nothing and returns nil
func (n *NoopEventSink) FileRejected(ctx context.Context, source string, err error) error {
	return nil
}

// FileFetched does nothing and returns nil
func (n *NoopEventSink) FileFetched(ctx context.Context, record Record) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

// FileCreated logs the file creation event
func (l *LoggingEventSink) FileCreated(ctx context.Context, record Record) error {
	f := record.Base()
	l.logger.InfoContext(ctx, "File created",
		"uid", f.UID(), "name", f.Name(), "mime", f.Mime(), "length", f.Length(), "kind", record.Kind())
	return nil
}

// FileRejected logs the rejected source
func (l *LoggingEventSink) FileRejected(ctx context.Context, source string, err error) error {
	l.logger.InfoContext(ctx, "File rejected", "source", source, "error", err)
	return nil
}

// FileFetched logs the lookup
func (l *LoggingEventSink) FileFetched(ctx context.Context, record Record) error {
	l.logger.DebugContext(ctx, "File fetched", "uid", record.Base().UID())
	return nil
}

// MultiEventSink fans events out to several sinks
type MultiEventSink []EventSink

// FileCreated forwards to every sink and joins their errors
func (m MultiEventSink) FileCreated(ctx context.Context, record Record) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.FileCreated(ctx, record))
	}
	return errors.Join(errs...)
}

// FileRejected forwards to every sink and joins their errors
func (m MultiEventSink) FileRejected(ctx context.Context, source string, err error) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.FileRejected(ctx, source, err))
	}
	return errors.Join(errs...)
}

// FileFetched forwards to every sink and joins their errors
func (m MultiEventSink) FileFetched(ctx context.Context, record Record) error {
	var errs []error
	for _, sink := range m {
		errs = append(errs, sink.FileFetched(ctx, record))
	}
	return errors.Join(errs...)
}
