package logflags

import (
	"bytes"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestMakeLogger_usingLoggerFactory(t *testing.T) {
	if loggerFactory != nil {
		t.Fatalf("expected loggerFactory to be nil; but was <%v>", loggerFactory)
	}
	defer func() {
		loggerFactory = nil
	}()
	if logOut != nil {
		t.Fatalf("expected logOut to be nil; but was <%v>", logOut)
	}
	logOut = &bufferWriter{}
	defer func() {
		logOut = nil
	}()

	expectedLogger := &logrusLogger{}
	SetLoggerFactory(func(flag bool, fields Fields, out io.Writer) Logger {
		if !flag {
			t.Fatalf("expected flag to be <%v>; but was <%v>", true, flag)
		}
		if len(fields) != 1 || fields["foo"] != "bar" {
			t.Fatalf("expected fields to be {'foo':'bar'}; but was <%v>", fields)
		}
		if out != logOut {
			t.Fatalf("expected out to be <%v>; but was <%v>", logOut, out)
		}
		return expectedLogger
	})

	actual := makeLogger(true, Fields{"foo": "bar"})
	if actual != expectedLogger {
		t.Fatalf("expected actual to <%v>; but was <%v>", expectedLogger, actual)
	}
}

func TestMakeLogger_withFlagFalse(t *testing.T) {
	actual := makeLogger(false, Fields{"foo": "bar"})
	actualEntry, expectedType := actual.(*logrusLogger)
	if !expectedType {
		t.Fatalf("expected actual to be of type <%v>; but was <%v>", reflect.TypeOf((*logrus.Entry)(nil)), reflect.TypeOf(actualEntry))
	}
	if actualEntry.Entry.Logger.Level != logrus.ErrorLevel {
		t.Fatalf("expected actualEntry.Entry.Logger.Level to be <%v>; but was <%v>", logrus.ErrorLevel, actualEntry.Logger.Level)
	}
	if len(actualEntry.Entry.Data) != 1 || actualEntry.Data["foo"] != "bar" {
		t.Fatalf("expected actualEntry.Entry.Data to be {'foo':'bar'}; but was <%v>", actualEntry.Data)
	}
}

func TestMakeLogger_withFlagTrue(t *testing.T) {
	logOut = &bufferWriter{}
	defer func() {
		logOut = nil
	}()

	actual := makeLogger(true, Fields{"foo": "bar"})
	actualEntry, expectedType := actual.(*logrusLogger)
	if !expectedType {
		t.Fatalf("expected actual to be of type <%v>; but was <%v>", reflect.TypeOf((*logrus.Entry)(nil)), reflect.TypeOf(actualEntry))
	}
	if actualEntry.Entry.Logger.Level != logrus.DebugLevel {
		t.Fatalf("expected actualEntry.Entry.Logger.Level to be <%v>; but was <%v>", logrus.DebugLevel, actualEntry.Logger.Level)
	}
	if actualEntry.Entry.Logger.Out != logOut {
		t.Fatalf("expected actualEntry.Entry.Logger.Out to be <%v>; but was <%v>", logOut, actualEntry.Logger.Out)
	}
	if actualEntry.Entry.Logger.Formatter != textFormatterInstance {
		t.Fatalf("expected actualEntry.Entry.Logger.Formatter to be <%v>; but was <%v>", textFormatterInstance, actualEntry.Logger.Formatter)
	}
}

func TestTextFormatter(t *testing.T) {
	out := &bufferWriter{}
	logOut = out
	defer func() {
		logOut = nil
	}()

	makeLogger(true, Fields{"layer": "executor"}).WithField("op", "Reserve").Debugf("reserved %d bytes", 65536)
	line := out.String()
	for _, want := range []string{"debug executor ", "op=Reserve ", "reserved 65536 bytes\n"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q to contain %q", line, want)
		}
	}
}

func TestSetupLogOutputWithoutLog(t *testing.T) {
	if err := Setup(false, "executor", ""); err != errLogstrWithoutLog {
		t.Fatalf("expected <%v>; but was <%v>", errLogstrWithoutLog, err)
	}
}

func TestSetupSelectsLayers(t *testing.T) {
	defer func() {
		executor, script, viewer, platform = false, false, false, false
	}()
	if err := Setup(true, "script,platform", ""); err != nil {
		t.Fatal(err)
	}
	if Executor() || !Script() || Viewer() || !Platform() {
		t.Fatalf("unexpected layers: executor=%v script=%v viewer=%v platform=%v", Executor(), Script(), Viewer(), Platform())
	}
}

type bufferWriter struct {
	bytes.Buffer
}

func (bw *bufferWriter) Close() error {
	return nil
}
