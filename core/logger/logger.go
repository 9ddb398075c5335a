package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/linzabot/core/buildinfo"
	coreconfig "github.com/m3rciful/linzabot/core/config"
)

// LogFileName is the file written inside logging.dir when a directory is configured.
const LogFileName = "linzabot.log"

var (
	initOnce sync.Once

	shutdownMu sync.Mutex
	shutdown   bool
	logWriter  *asyncWriter
	logFile    io.Closer

	levelVar     slog.LevelVar
	debugSampler = newRatioSampler(1, 50)

	// L is the base logger. Component loggers below are derived from it.
	L *slog.Logger = slog.Default()

	// DB logs database connection and store events.
	DB *slog.Logger = L
	// MIG logs database migration events.
	MIG *slog.Logger = L
	// TG logs Telegram transport events.
	TG *slog.Logger = L
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger = L
	// Form logs questionnaire conversation events.
	Form *slog.Logger = L
	// State logs session manager events.
	State *slog.Logger = L
)

// options is the logging setup derived from configuration.
type options struct {
	format  logFormat
	level   slog.Level
	profile string
	// sampleNum/sampleDen is the share of sampled debug events kept; 0/0 keeps all.
	sampleNum, sampleDen int
	file                 string
}

func optionsFrom(cfg *coreconfig.Config) options {
	o := options{format: formatJSON, level: slog.LevelInfo, profile: "prod", sampleNum: 1, sampleDen: 50}
	if cfg == nil {
		return o
	}
	lc := cfg.Logging

	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		o.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		o.format = formatKV
	case "json":
	default:
		if o.profile == "debug" || o.profile == "dev" {
			o.format = formatKV
		}
	}
	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		o.level = slog.LevelDebug
	case "warn", "warning":
		o.level = slog.LevelWarn
	case "error":
		o.level = slog.LevelError
	}
	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		if n, d := parseRatioSpec(spec); (n > 0 && d > 0) || (n == 0 && d == 0) {
			o.sampleNum, o.sampleDen = n, d
		}
	}
	if dir := strings.TrimSpace(lc.Dir); dir != "" {
		o.file = filepath.Join(dir, LogFileName)
	}
	return o
}

// InitLogger installs the structured logger as slog default and derives the
// component loggers. Only the first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		o := optionsFrom(cfg)
		levelVar.Set(o.level)
		debugSampler.Set(o.sampleNum, o.sampleDen)

		sinks := []io.Writer{os.Stdout}
		if f := openLogFile(o.file); f != nil {
			sinks = append(sinks, f)
			logFile = f
		}
		logWriter = newAsyncWriter(sinks, 64*1024)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:  &levelVar,
			writer: logWriter,
			format: o.format,
		}))
		slog.SetDefault(L)

		DB = Component("db")
		MIG = Component("db.migrate")
		TG = Component("tg")
		TWire = Component("tg.wire")
		Form = Component("service.form")
		State = Component("state")

		mode := ""
		if cfg != nil {
			mode = cfg.Telegram.RunMode
		}
		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", o.profile),
			slog.String("mode", mode),
		)
	})
	return nil
}

func openLogFile(path string) *os.File {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("logger: create log dir: %v", err)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: open log file: %v", err)
		return nil
	}
	return f
}

// Shutdown flushes buffered output and closes the log file. Later calls are no-ops.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutdown {
		return nil
	}
	shutdown = true

	var errs []error
	if logWriter != nil {
		errs = append(errs, logWriter.Flush(), logWriter.Close())
	}
	if logFile != nil {
		errs = append(errs, logFile.Close())
	}
	return errors.Join(errs...)
}

// LogEvent logs attrs under the given event name, resolving the logger from ctx when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to a component name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Debug logs a debug event for component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

// Warn logs a warning event for component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

// Error logs an error event for component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug line should be written.
func ShouldSampleDebug() bool {
	return debugSampler.Allow()
}
