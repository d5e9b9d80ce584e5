package viewer

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func TestMaps(t *testing.T) {
	m := &Mapper{Root: "testdata/proc"}
	maps, err := m.Maps(4242)
	require.NoError(t, err)
	require.Len(t, maps, 4)

	assert.Equal(t, Mapping{Start: 0x400000, End: 0x452000, Perms: "r-xp", Path: "/usr/bin/vmdriver"}, maps[0])
	assert.Equal(t, Mapping{Start: 0x20000000, End: 0x20020000, Perms: "rw-p"}, maps[1])
	assert.Equal(t, "---p", maps[2].Perms)
	assert.True(t, maps[2].Anonymous())
	assert.Equal(t, uintptr(0x20000), maps[2].Size())
	assert.Equal(t, "[stack]", maps[3].Path)
}

func TestMapsMissingProcess(t *testing.T) {
	m := &Mapper{Root: "testdata/proc"}
	_, err := m.Maps(1)
	assert.Error(t, err)
}

func TestPrintAnonOnly(t *testing.T) {
	out := new(bytes.Buffer)
	m := &Mapper{Root: "testdata/proc", AnonOnly: true, Out: out}
	require.NoError(t, m.Run(context.Background(), 4242))

	s := out.String()
	assert.True(t, strings.HasPrefix(s, "process 4242 at "), s)
	assert.NotContains(t, s, "/usr/bin/vmdriver")
	assert.NotContains(t, s, "[stack]")
	assert.Contains(t, s, "rw-p")
	assert.Contains(t, s, "256KiB")
}

func TestRunInterval(t *testing.T) {
	out := new(bytes.Buffer)
	clk := testingclock.NewFakeClock(time.Unix(0, 0))
	m := &Mapper{Root: "testdata/proc", Interval: time.Second, Clock: clk, Out: out}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- m.Run(ctx, 4242) }()

	for !clk.HasWaiters() {
		time.Sleep(time.Millisecond)
	}
	clk.Step(time.Second)
	for !clk.HasWaiters() {
		time.Sleep(time.Millisecond)
	}
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 2, strings.Count(out.String(), "process 4242 at "))
}

func TestMapsSelf(t *testing.T) {
	if _, err := os.Stat("/proc/self/maps"); err != nil {
		t.Skip("no proc filesystem")
	}
	maps, err := (&Mapper{}).Maps(os.Getpid())
	require.NoError(t, err)
	assert.NotEmpty(t, maps)
}
