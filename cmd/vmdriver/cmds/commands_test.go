package cmds

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmdriver/vmdriver/pkg/logflags"
)

const roundTrip = `0 1 20000000 2 2
0 2 20000000 32 2
0 3 20000000 2 2
0 7 20000000 32 2
0 8 20000000 0 2
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, ioutil.WriteFile(path, []byte(content), 0600))
	return path
}

// vmdriver runs the command tree with args and returns its output.
func vmdriver(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := New()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func emptyConfig(t *testing.T) string {
	return writeFile(t, "config.yml", "")
}

func TestRunScriptFile(t *testing.T) {
	script := writeFile(t, "script.txt", roundTrip)
	out, errOut, err := vmdriver(t, "", "--config", emptyConfig(t), "--backend", "sim", "--keep-alive=false", script)
	require.NoError(t, err, errOut)

	assert.Equal(t, 5, strings.Count(out, "Processed "))
	assert.Equal(t, 6, strings.Count(out, "next VM command: "))
	assert.Contains(t, out, "Reserve succeeded at ")
	assert.Contains(t, out, "5 commands processed: 5 succeeded, 0 failed")
}

func TestRunStdin(t *testing.T) {
	out, errOut, err := vmdriver(t, "0 2 50000000 1 2\n0 1 0 1 7\n", "run", "--config", emptyConfig(t), "--backend=sim", "--keep-alive=false")
	require.NoError(t, err, errOut)

	assert.Contains(t, out, "Commit failed.")
	assert.Contains(t, errOut, "Commit failed on error 487: ")
	assert.Contains(t, out, "Access Level input is invalid")
	assert.Contains(t, out, "2 commands processed: 0 succeeded, 2 failed")
}

func TestRunMissingScript(t *testing.T) {
	_, _, err := vmdriver(t, "", "--config", emptyConfig(t), "--backend=sim", filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestRunUnknownBackend(t *testing.T) {
	_, _, err := vmdriver(t, "", "--config", emptyConfig(t), "--backend=qemu")
	assert.Error(t, err)
}

func TestRunBackendFromConfig(t *testing.T) {
	conf := writeFile(t, "config.yml", "backend: sim\nkeep-alive: false\nreserve-unit: 131072\n")
	out, errOut, err := vmdriver(t, "0 1 0 1 2\n", "--config", conf)
	require.NoError(t, err, errOut)
	// The simulator places the first region at its base address.
	assert.Contains(t, out, "Reserve succeeded at 0x")
	assert.Contains(t, out, "10000000 (131072 bytes, PAGE_READWRITE)")
}

func TestConfigOverride(t *testing.T) {
	conf := writeFile(t, "config.yml", "backend: sim\nkeep-alive: false\npage-size: 8192\nstats: true\n")
	out, _, err := vmdriver(t, "", "config", "--config", conf, "--page-size", "16384")
	require.NoError(t, err)

	for _, line := range []string{
		"backend      sim\n",
		"keep-alive   false\n",
		"page-size    16384\n",
		"reserve-unit 65536\n",
		"stats        true\n",
		"metrics-addr <not defined>\n",
	} {
		assert.Contains(t, out, line)
	}
}

func TestConfigDefault(t *testing.T) {
	out, _, err := vmdriver(t, "", "config", "--default")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "# Configuration file for vmdriver."))
}

func TestConfigInvalid(t *testing.T) {
	_, _, err := vmdriver(t, "", "config", "--config", emptyConfig(t), "--page-size", "1000")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, _, err := vmdriver(t, "", "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "vmdriver\nVersion: "), out)
}

func TestMapOnce(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("memory maps are read from /proc")
	}
	out, _, err := vmdriver(t, "", "map", "--once", strconv.Itoa(os.Getpid()))
	require.NoError(t, err)
	assert.Contains(t, out, "START")
	assert.Contains(t, out, "total")
}

func TestMapInvalidPid(t *testing.T) {
	_, _, err := vmdriver(t, "", "map", "self")
	assert.Error(t, err)
}

func TestHelpHidesRunFlags(t *testing.T) {
	out, _, err := vmdriver(t, "", "help", "map")
	require.NoError(t, err)
	assert.Contains(t, out, "--interval")
	assert.NotContains(t, out, "--backend")

	out, _, err = vmdriver(t, "", "help", "run")
	require.NoError(t, err)
	assert.Contains(t, out, "--backend")
}

func TestServeMetricsBadAddress(t *testing.T) {
	_, _, err := serveMetrics("not an address", xid.New(), logflags.Discard())
	assert.Error(t, err)
}
