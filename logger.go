package topictrends

import (
	"context"
	"log/slog"
	"os"

	"github.com/santhoshtr/topictrends/core"
)

// Logger wraps slog.Logger with topictrends-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithWiki adds a wiki field to the logger.
func (l *Logger) WithWiki(wiki string) *Logger {
	return &Logger{
		Logger: l.Logger.With("wiki", wiki),
	}
}

// WithQID adds a qid field to the logger.
func (l *Logger) WithQID(qid core.QID) *Logger {
	return &Logger{
		Logger: l.Logger.With("qid", qid.String()),
	}
}

// WithDate adds a date field to the logger.
func (l *Logger) WithDate(d core.Date) *Logger {
	return &Logger{
		Logger: l.Logger.With("date", d.String()),
	}
}

// LogCorpusLoad logs a corpus load.
func (l *Logger) LogCorpusLoad(ctx context.Context, wiki, tag string, articles, categories int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "corpus load failed",
			"wiki", wiki,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "corpus load completed",
			"wiki", wiki,
			"tag", tag,
			"articles", articles,
			"categories", categories,
		)
	}
}

// LogRefresh logs a snapshot refresh. On failure the previous corpus
// stays in service, so the old tag is logged alongside the error.
func (l *Logger) LogRefresh(ctx context.Context, wiki, previousTag, tag string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "refresh failed",
			"wiki", wiki,
			"serving_tag", previousTag,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "refresh completed",
			"wiki", wiki,
			"previous_tag", previousTag,
			"tag", tag,
		)
	}
}

// LogQuery logs a query operation.
func (l *Logger) LogQuery(ctx context.Context, op, wiki string, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			"op", op,
			"wiki", wiki,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "query completed",
			"op", op,
			"wiki", wiki,
			"results", results,
		)
	}
}

// LogTaxonomyIndex logs a taxonomy indexing run.
func (l *Logger) LogTaxonomyIndex(ctx context.Context, wiki string, categories int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "taxonomy indexing failed",
			"wiki", wiki,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "taxonomy indexing completed",
			"wiki", wiki,
			"categories", categories,
		)
	}
}
