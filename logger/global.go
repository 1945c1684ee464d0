package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is usable before Init (stdout, info level).
var Logger = newLogger(os.Stdout, logrus.InfoLevel)

func newLogger(w io.Writer, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(w)
	return l
}

// Init switches the global logger to stdout plus a daily file under dir.
// An empty dir keeps stdout only. The returned closer releases the file.
func Init(level, dir string) (io.Closer, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		Logger = newLogger(os.Stdout, lvl)
		return io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, fmt.Sprintf("log_%s.txt", time.Now().Format("2006-01-02"))), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("error opening log file for writing: %w", err)
	}
	Logger = newLogger(io.MultiWriter(os.Stdout, f), lvl)
	return f, nil
}
