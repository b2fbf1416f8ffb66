package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Plugin is one output of a logger.
type Plugin = zapcore.Core

func NewLogger(plugin Plugin, options ...zap.Option) *zap.Logger {
	return zap.New(plugin, append(DefaultOption(), options...)...)
}

func NewPlugin(writer zapcore.WriteSyncer, enabler zapcore.LevelEnabler) Plugin {
	return zapcore.NewCore(DefaultEncoder(), writer, enabler)
}

func NewStdoutPlugin(enabler zapcore.LevelEnabler) Plugin {
	return zapcore.NewCore(ConsoleEncoder(), zapcore.Lock(zapcore.AddSync(os.Stdout)), enabler)
}

func NewStderrPlugin(enabler zapcore.LevelEnabler) Plugin {
	return zapcore.NewCore(ConsoleEncoder(), zapcore.Lock(zapcore.AddSync(os.Stderr)), enabler)
}

// NewFilePlugin writes json lines to a lumberjack rotated file. The returned
// closer flushes and closes the file.
func NewFilePlugin(filePath string, enabler zapcore.LevelEnabler) (Plugin, io.Closer) {
	return NewRotatingFilePlugin(filePath, DefaultRotation(), enabler)
}

func NewRotatingFilePlugin(filePath string, rot Rotation, enabler zapcore.LevelEnabler) (Plugin, io.Closer) {
	writer := newRotatingWriter(filePath, rot)
	return NewPlugin(zapcore.AddSync(writer), enabler), writer
}
