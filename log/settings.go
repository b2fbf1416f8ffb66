package log

import (
	"io"

	"github.com/awaketai/crawlrt/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// StderrFile as LOG_FILE sends the log to stderr.
const StderrFile = "stderr"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// FromSettings builds the process logger from LOG_LEVEL and LOG_FILE and
// installs it as the zap global logger. An empty LOG_FILE logs to stdout.
func FromSettings(s *config.Settings) (*zap.Logger, io.Closer, error) {
	logLevel, err := zapcore.ParseLevel(s.String("LOG_LEVEL"))
	if err != nil {
		return nil, nil, &config.Error{Key: "LOG_LEVEL", Value: s.String("LOG_LEVEL"), Err: err}
	}

	var (
		plugin Plugin
		closer io.Closer = nopCloser{}
	)
	switch path := s.String("LOG_FILE"); path {
	case "":
		plugin = NewStdoutPlugin(logLevel)
	case StderrFile:
		plugin = NewStderrPlugin(logLevel)
	default:
		rot := DefaultRotation()
		rot.MaxSizeMB = s.Int("LOG_FILE_MAX_MB")
		rot.MaxBackups = s.Int("LOG_FILE_BACKUPS")
		plugin, closer = NewRotatingFilePlugin(path, rot, logLevel)
	}
	logger := NewLogger(plugin)
	logger.Debug("log init end", zap.Stringer("level", logLevel))

	// set zap global logger
	zap.ReplaceGlobals(logger)

	return logger, closer, nil
}
