package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger is the shared logrus instance.
	Logger *logrus.Logger
	mu     sync.Mutex
)

// Config controls log level and optional file rotation.
type Config struct {
	Level      string // debug, info, warn, error
	OutputFile string // empty means console only
	MaxSize    int    // MB per file before rotation
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// Init sets up the shared logger. Safe to call more than once; the last
// call wins.
func Init(config Config) error {
	mu.Lock()
	defer mu.Unlock()

	l := logrus.New()

	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if config.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.OutputFile), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		rotator := &lumberjack.Logger{
			Filename:   config.OutputFile,
			MaxSize:    config.MaxSize,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAge,
			Compress:   config.Compress,
		}
		l.SetOutput(io.MultiWriter(os.Stdout, rotator))
	} else {
		l.SetOutput(os.Stdout)
	}

	Logger = l
	return nil
}

// InitDefault configures a console-only logger at info level.
func InitDefault() error {
	return Init(Config{Level: "info"})
}

func ensure() *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()
	if Logger == nil {
		l := logrus.New()
		l.SetOutput(os.Stdout)
		l.SetLevel(logrus.InfoLevel)
		Logger = l
	}
	return Logger
}

func Debug(args ...interface{}) { ensure().Debug(args...) }

func Debugf(format string, args ...interface{}) { ensure().Debugf(format, args...) }

func Info(args ...interface{}) { ensure().Info(args...) }

func Infof(format string, args ...interface{}) { ensure().Infof(format, args...) }

func Warn(args ...interface{}) { ensure().Warn(args...) }

func Warnf(format string, args ...interface{}) { ensure().Warnf(format, args...) }

func Error(args ...interface{}) { ensure().Error(args...) }

func Errorf(format string, args ...interface{}) { ensure().Errorf(format, args...) }

// WithField returns an entry tagged with a single field.
func WithField(key string, value interface{}) *logrus.Entry {
	return ensure().WithField(key, value)
}

// WithFields returns an entry tagged with multiple fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return ensure().WithFields(fields)
}
