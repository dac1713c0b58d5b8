// Package logger configures the global zerolog logger of the generator.
//
// Records go to the console and, when configured, to a rotated log file.
// The file sink never gets color codes. Repeated warnings of one target
// are condensed into a single summary record.
package logger

import (
	"container/ring"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Field names attached by Run and Target
const (
	RunFieldName    = "run"
	TargetFieldName = "target"
)

var (
	mu      sync.Mutex
	out     zerolog.LevelWriter = zerolog.MultiLevelWriter()
	logFile io.WriteCloser
)

// Run returns the global logger annotated with the run id
func Run(id string) zerolog.Logger {
	return log.With().Str(RunFieldName, id).Logger()
}

// Target returns l annotated with the generation target
func Target(l *zerolog.Logger, target string) zerolog.Logger {
	return l.With().Str(TargetFieldName, target).Logger()
}

// CondenseWriter passes the first record of every level, target and
// message and counts the repeats arriving within Condense. The count is
// written as one record when the entry expires.
type CondenseWriter struct {
	mu       sync.Mutex
	next     zerolog.LevelWriter
	seen     *cache.Cache
	Condense time.Duration
}

type condensed struct {
	lvl     zerolog.Level
	target  string
	message string
	repeats int
}

// NewCondenseWriter wraps next, zero d passes everything through
func NewCondenseWriter(next zerolog.LevelWriter, d time.Duration) *CondenseWriter {
	w := &CondenseWriter{next: next, Condense: d}
	if d > 0 {
		w.seen = cache.New(d, max(d/4, time.Millisecond))
		w.seen.OnEvicted(w.flush)
	}
	return w
}

// Write implements io.Writer interface
func (w *CondenseWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter interface
func (w *CondenseWriter) WriteLevel(lvl zerolog.Level, p []byte) (int, error) {
	if w.seen == nil {
		return w.next.WriteLevel(lvl, p)
	}
	var fields map[string]any
	_ = json.Unmarshal(p, &fields)
	entry := &condensed{lvl: lvl}
	entry.target, _ = fields[TargetFieldName].(string)
	entry.message, _ = fields[zerolog.MessageFieldName].(string)
	key := lvl.String() + "\x00" + entry.target + "\x00" + entry.message

	w.mu.Lock()
	defer w.mu.Unlock()
	if v, ok := w.seen.Get(key); ok {
		v.(*condensed).repeats++
		return len(p), nil
	}
	w.seen.SetDefault(key, entry)
	return w.next.WriteLevel(lvl, p)
}

/* called by the cache janitor outside of the cache lock */
func (w *CondenseWriter) flush(_ string, v any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	entry := v.(*condensed)
	if entry.repeats == 0 {
		return
	}
	l := zerolog.New(w.next)
	e := l.WithLevel(entry.lvl).Timestamp()
	if entry.target != "" {
		e = e.Str(TargetFieldName, entry.target)
	}
	e.Str("condensed", entry.message).
		Msgf("condensed %d more entries within %v", entry.repeats, w.Condense)
}

// LogBuffer keeps the last Size records of Level and above
type LogBuffer struct {
	mu    sync.Mutex
	once  sync.Once
	ring  *ring.Ring
	Level zerolog.Level
	Size  int
}

// LogRecord is a buffered JSON record
type LogRecord struct {
	Level zerolog.Level
	Data  []byte
}

func (lb *LogBuffer) init() {
	lb.once.Do(func() { lb.ring = ring.New(max(lb.Size, 1)) })
}

// Records returns buffered records, oldest first
func (lb *LogBuffer) Records() []LogRecord {
	lb.init()
	lb.mu.Lock()
	defer lb.mu.Unlock()
	var records []LogRecord
	lb.ring.Do(func(v any) {
		if v != nil {
			records = append(records, v.(LogRecord))
		}
	})
	return records
}

// Write implements io.Writer interface
func (lb *LogBuffer) Write(p []byte) (int, error) {
	return lb.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel implements zerolog.LevelWriter interface
func (lb *LogBuffer) WriteLevel(lvl zerolog.Level, p []byte) (int, error) {
	if lvl < lb.Level {
		return len(p), nil
	}
	lb.init()
	lb.mu.Lock()
	defer lb.mu.Unlock()
	/* zerolog reuses p */
	lb.ring.Value = LogRecord{Level: lvl, Data: append([]byte(nil), p...)}
	lb.ring = lb.ring.Next()
	return len(p), nil
}

type settings struct {
	level      zerolog.Level
	console    io.Writer
	file       io.WriteCloser
	noColor    bool
	timeFormat string
	condense   time.Duration
}

// Option defines logger option type
type Option func(*settings)

// SetLogger replaces the global logger and bridges log/slog into it
func SetLogger(opts ...Option) {
	s := settings{
		level:      zerolog.InfoLevel,
		console:    os.Stderr,
		timeFormat: time.RFC3339,
	}
	for _, opt := range opts {
		opt(&s)
	}

	mu.Lock()
	defer mu.Unlock()
	log.Logger = zerolog.Nop()
	if logFile != nil && logFile != s.file {
		_ = logFile.Close()
	}
	logFile = s.file

	var sinks []io.Writer
	if s.console != nil {
		sinks = append(sinks, &zerolog.ConsoleWriter{
			Out:        s.console,
			NoColor:    s.noColor,
			TimeFormat: s.timeFormat,
		})
	}
	if s.file != nil {
		sinks = append(sinks, &zerolog.ConsoleWriter{
			Out:        s.file,
			NoColor:    true,
			TimeFormat: s.timeFormat,
		})
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	zerolog.SetGlobalLevel(s.level)
	out = NewCondenseWriter(zerolog.MultiLevelWriter(sinks...), s.condense)
	log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger()
	slog.SetDefault(slog.New(&SLogHandler{CallerSkipFrame: 3}))
}

// WithLevel sets the global level
func WithLevel(lvl zerolog.Level) Option {
	return func(s *settings) { s.level = lvl }
}

// WithConsole sets the console sink, nil turns it off
func WithConsole(w io.Writer) Option {
	return func(s *settings) { s.console = w }
}

// WithLogFile adds the file sink
func WithLogFile(w io.WriteCloser) Option {
	return func(s *settings) { s.file = w }
}

// WithCondense enables condensing similar records
func WithCondense(d time.Duration) Option {
	return func(s *settings) { s.condense = d }
}

// WithNoColor turns off console colors
func WithNoColor(b bool) Option {
	return func(s *settings) { s.noColor = b }
}

// WithTimeFormat sets the timestamp layout of both sinks
func WithTimeFormat(layout string) Option {
	return func(s *settings) {
		if layout != "" {
			s.timeFormat = layout
		}
	}
}

// WriteLogBuffer replays buffered records passing the global level
func WriteLogBuffer(lb *LogBuffer) {
	lvl := zerolog.GlobalLevel()
	mu.Lock()
	w := out
	mu.Unlock()
	for _, p := range lb.Records() {
		if p.Level >= lvl {
			_, _ = w.WriteLevel(p.Level, p.Data)
		}
	}
}
