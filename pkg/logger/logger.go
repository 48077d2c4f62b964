package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/williamokano/backup_receiver/pkg/naming"
)

// Init initializes the global logger with the specified level and format
func Init(level, format string) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	log.Logger = New(os.Stdout, format)
}

// ParseLevel maps a config level name to a zerolog level (default: info)
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New builds a logger writing to w. The console format renders lines as
//
//	[2024/01/02 03:04:05] [INFO]: message key=value
func New(w io.Writer, format string) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{
			Out:             w,
			NoColor:         true,
			FormatTimestamp: formatTimestamp,
			FormatLevel:     formatLevel,
		}
	}
	// JSON format (default)
	return zerolog.New(w).With().Timestamp().Logger()
}

func formatTimestamp(i interface{}) string {
	s, ok := i.(string)
	if !ok {
		return fmt.Sprintf("[%v]", i)
	}
	t, err := time.Parse(zerolog.TimeFieldFormat, s)
	if err != nil {
		return "[" + s + "]"
	}
	return "[" + naming.FormatDate(t, "/") + " " + naming.FormatTime(t, ":") + "]"
}

func formatLevel(i interface{}) string {
	if s, ok := i.(string); ok && s != "" {
		return "[" + strings.ToUpper(s) + "]:"
	}
	return "[???]:"
}

// Get returns a reference to the global logger
func Get() *zerolog.Logger {
	return &log.Logger
}
