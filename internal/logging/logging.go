// Package logging builds the process loggers. Output goes to stderr for the
// operator at the console and to a size-rotated file for diagnosing sync
// issues after the fact, since a machine may run unattended for weeks.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger writing to both stderr and a rotating file at
// logPath. An empty logPath gives a stderr-only logger.
func New(prefix, logPath string) *log.Logger {
	var w io.Writer = os.Stderr
	if logPath != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    5, // megabytes
			MaxBackups: 3,
			MaxAge:     60, // days
			Compress:   true,
		})
	}
	return log.New(w, prefix, log.LstdFlags)
}
