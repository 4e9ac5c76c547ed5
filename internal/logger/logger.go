package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"messenger-service/internal/config"
)

// Setup configures the global zerolog logger to write to stdout and a
// rotating file. Safe to call once at startup.
func Setup(cfg config.LoggerConfig) error {
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Directory, "messenger.log"),
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	writer := io.MultiWriter(os.Stdout, rotating)
	log.Logger = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return nil
}
