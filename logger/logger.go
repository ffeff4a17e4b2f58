package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	once sync.Once
	log  *zap.Logger
)

// L returns the process-wide logger, building it on first use.
// Set DEBUG=1 to enable debug-level output.
func L() *zap.Logger {
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if os.Getenv("DEBUG") == "1" {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		log, err = cfg.Build()
		if err != nil {
			log = zap.NewNop()
		}
	})
	return log
}

// Sync flushes buffered log entries. Call before process exit.
func Sync() {
	_ = L().Sync()
}
