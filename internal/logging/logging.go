package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "team-health.log"

// Init configures the global logger: a console writer on stderr plus a rotating file.
// DEBUG=true in the environment (or .env) has the same effect as verbose.
func Init(verbose bool) {
	// Init runs before config.Load, so LOGS_FOLDER and DEBUG need the binary-relative .env here.
	exePath, exeErr := os.Executable()
	if exeErr == nil {
		_ = godotenv.Load(filepath.Join(filepath.Dir(exePath), ".env"))
	}
	_ = godotenv.Load()

	level := zerolog.InfoLevel
	if verbose || os.Getenv("DEBUG") == "true" || os.Getenv("DEBUG") == "1" {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	isTerminal := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !isTerminal,
	}

	logDir := os.Getenv("LOGS_FOLDER")
	if logDir == "" {
		if exeErr == nil {
			logDir = filepath.Join(filepath.Dir(exePath), "logs")
		} else {
			logDir = "logs"
		}
	}

	var out io.Writer = consoleWriter
	if fileWriter, err := rotatingFile(logDir); err != nil {
		// The dashboard still works without a log file; say so once and keep the console sink.
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
	} else {
		out = zerolog.MultiLevelWriter(consoleWriter, fileWriter)
	}

	log.Logger = zerolog.New(out).
		With().
		Timestamp().
		Logger()
}

func rotatingFile(dir string) (io.Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory %q: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		return nil, fmt.Errorf("log directory %q is not writable: %w", dir, err)
	}
	_ = os.Remove(testFile)

	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    16, // megabytes
		MaxBackups: 32,
		MaxAge:     90, // days
		Compress:   true,
	}, nil
}
