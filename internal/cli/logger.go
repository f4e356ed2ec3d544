package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mrz1836/deskpilot/internal/config"
	"github.com/mrz1836/deskpilot/internal/constants"
	"github.com/mrz1836/deskpilot/internal/logging"
)

// logFileWriter holds the rotating log file so CloseLogFile can release it.
var (
	logFileWriter   io.WriteCloser //nolint:gochecknoglobals // Needed for cleanup
	logFileWriterMu sync.Mutex     //nolint:gochecknoglobals // Protects logFileWriter
)

var zerologConfigOnce sync.Once //nolint:gochecknoglobals // One-time configuration

// zerologGlobalMu is separate from globalLoggerMu to avoid lock ordering issues.
var zerologGlobalMu sync.Mutex //nolint:gochecknoglobals // Protects zerolog global

// configureZerologGlobals renames the timestamp and message fields once.
func configureZerologGlobals() {
	zerologConfigOnce.Do(func() {
		zerolog.TimestampFieldName = "ts"
		zerolog.MessageFieldName = "event"
	})
}

// InitLogger creates the CLI logger.
//
// Log levels are set as follows:
//   - verbose=true: Debug level
//   - quiet=true: Warn level
//   - default: Info level
//
// A TTY without NO_COLOR gets a console writer; anything else gets JSON on
// stderr. Entries are also written to ~/.deskpilot/logs/deskpilot.log with
// rotation and redaction. When the log file cannot be created the logger
// falls back to console-only output.
func InitLogger(verbose, quiet bool) zerolog.Logger {
	configureZerologGlobals()

	var writer io.Writer = selectOutput()
	if fw, err := createLogFileWriter(); err == nil {
		logFileWriterMu.Lock()
		if logFileWriter != nil {
			_ = logFileWriter.Close()
		}
		logFileWriter = fw
		logFileWriterMu.Unlock()
		writer = zerolog.MultiLevelWriter(writer, fw)
	}

	logger := buildLogger(writer, selectLevel(verbose, quiet))
	setGlobalLogger(logger)
	return logger
}

// InitLoggerWithWriter creates the CLI logger on w only. It is used by tests.
func InitLoggerWithWriter(verbose, quiet bool, w io.Writer) zerolog.Logger {
	configureZerologGlobals()
	logger := buildLogger(w, selectLevel(verbose, quiet))
	setGlobalLogger(logger)
	return logger
}

func buildLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).Hook(logging.NewSensitiveDataHook()).With().Timestamp().Logger()
}

// setGlobalLogger points the zerolog/log package at the CLI logger.
func setGlobalLogger(cliLogger zerolog.Logger) {
	zerologGlobalMu.Lock()
	defer zerologGlobalMu.Unlock()
	log.Logger = cliLogger
}

// CloseLogFile closes the log file writer if it was opened.
func CloseLogFile() {
	logFileWriterMu.Lock()
	defer logFileWriterMu.Unlock()
	if logFileWriter != nil {
		_ = logFileWriter.Close()
		logFileWriter = nil
	}
}

// selectLevel determines the log level from the verbosity flags.
func selectLevel(verbose, quiet bool) zerolog.Level {
	switch {
	case verbose:
		return zerolog.DebugLevel
	case quiet:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}

// selectOutput picks the console format from the terminal and NO_COLOR.
func selectOutput() io.Writer {
	if term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("NO_COLOR") == "" {
		return zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
		}
	}
	return os.Stderr
}

// filteringWriteCloser redacts entries before they reach the rotating file.
type filteringWriteCloser struct {
	filter *logging.FilteringWriter
	closer io.Closer
}

func (fwc *filteringWriteCloser) Write(p []byte) (n int, err error) {
	return fwc.filter.Write(p)
}

func (fwc *filteringWriteCloser) Close() error {
	return fwc.closer.Close()
}

// createLogFileWriter opens the rotating CLI log file.
func createLogFileWriter() (io.WriteCloser, error) {
	logPath, err := LogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    constants.LogMaxSizeMB,
		MaxBackups: constants.LogMaxBackups,
		MaxAge:     constants.LogMaxAgeDays,
		Compress:   constants.LogCompress,
	}
	return &filteringWriteCloser{
		filter: logging.NewFilteringWriter(lj),
		closer: lj,
	}, nil
}

// LogFilePath returns the path of the CLI log file.
func LogFilePath() (string, error) {
	dir, err := config.LogsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.CLILogFileName), nil
}
