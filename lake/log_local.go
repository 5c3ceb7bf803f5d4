package lake

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/natefinch/lumberjack"
)

type stdLogger struct {
	*lumberjack.Logger
}

var logger Logger = stdLogger{}

// LogConfig is the [logging] table of the TOML configuration.
type LogConfig struct {
	Logfile string
	MaxSize int  `toml:"max_log_size"`
	MaxAge  int  `toml:"max_log_age"`
	Verbose bool `toml:"verbose"`
}

// SetLogger creates a logger that saves to a rotating log file, or leaves
// logging on stderr if no log file is specified.
func (c *LogConfig) SetLogger() {
	if c != nil && c.Verbose {
		Verbose = true
		SetLogMode(DebugMode)
	}
	if c == nil || c.Logfile == "" {
		log.SetOutput(os.Stderr)
		logger = stdLogger{}
		return
	}
	fmt.Fprintf(os.Stderr, "Sending log messages to: %s\n", c.Logfile)
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	log.SetOutput(io.MultiWriter(os.Stderr, l))
	logger = stdLogger{l}
}

// --- Logger implementation ----

func (slog stdLogger) Debugf(format string, args ...interface{}) {
	log.Printf("   DEBUG "+format, args...)
}

func (slog stdLogger) Infof(format string, args ...interface{}) {
	log.Printf("    INFO "+format, args...)
}

func (slog stdLogger) Warningf(format string, args ...interface{}) {
	log.Printf(" WARNING "+format, args...)
}

func (slog stdLogger) Errorf(format string, args ...interface{}) {
	log.Printf("   ERROR "+format, args...)
}

func (slog stdLogger) Criticalf(format string, args ...interface{}) {
	log.Printf("CRITICAL "+format, args...)
}

func (slog stdLogger) Shutdown() {
	if slog.Logger != nil {
		log.Printf("Closing log file...\n")
		log.SetOutput(os.Stderr)
		slog.Close()
	}
}
