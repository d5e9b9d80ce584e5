package logflags

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var executor = false
var script = false
var viewer = false
var platform = false

var logOut io.WriteCloser

func makeLogger(flag bool, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(flag, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = textFormatterInstance
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.ErrorLevel
	}
	return &logrusLogger{logger}
}

// Executor returns true if the vm package should log every operation.
func Executor() bool {
	return executor
}

// ExecutorLogger returns a logger for the vm package.
func ExecutorLogger() Logger {
	return makeLogger(executor, Fields{"layer": "executor"})
}

// Script returns true if the script reader should log parsed records.
func Script() bool {
	return script
}

// ScriptLogger returns a logger for the script reader.
func ScriptLogger() Logger {
	return makeLogger(script, Fields{"layer": "script"})
}

// Viewer returns true if the visualization launcher and mapper should log.
func Viewer() bool {
	return viewer
}

// ViewerLogger returns a logger for the viewer package.
func ViewerLogger() Logger {
	return makeLogger(viewer, Fields{"layer": "viewer"})
}

// Platform returns true if platform backends should log system calls.
func Platform() bool {
	return platform
}

// PlatformLogger returns a logger for the platform backends.
func PlatformLogger() Logger {
	return makeLogger(platform, Fields{"layer": "platform"})
}

// WriteError writes an error message to the log, if logging is enabled,
// or to stderr otherwise.
func WriteError(msg string) {
	if logOut != nil {
		fmt.Fprintln(logOut, msg)
	} else {
		fmt.Fprintln(os.Stderr, msg)
	}
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets logging flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "vmdriver-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "executor"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		// If adding another value, do make sure to
		// update "Help about logging flags" in commands.go.
		switch logcmd {
		case "executor":
			executor = true
		case "script":
			script = true
		case "viewer":
			viewer = true
		case "platform":
			platform = true
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown log output value %q, run 'vmdriver help log' for usage.\n", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}

// textFormatter is a simplified version of logrus.TextFormatter that
// doesn't make logs unreadable when they are output to a text file or to a
// terminal that doesn't support colors.
type textFormatter struct {
}

var textFormatterInstance = &textFormatter{}

func (f *textFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	fmt.Fprintf(b, "%s %s ", entry.Time.Format("2006-01-02T15:04:05.000Z07:00"), entry.Level.String())
	if layer, ok := entry.Data["layer"]; ok {
		fmt.Fprintf(b, "%v ", layer)
	}
	for k, v := range entry.Data {
		if k == "layer" {
			continue
		}
		fmt.Fprintf(b, "%s=%v ", k, v)
	}
	b.WriteString(entry.Message)
	b.WriteByte('\n')
	return b.Bytes(), nil
}
