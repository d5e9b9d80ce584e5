package config

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/yaml.v2"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "config.yml")
	if err := ioutil.WriteFile(file, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return file
}

func TestLoadConfig(t *testing.T) {
	file := writeConfig(t, `
backend: sim
viewer: "vmmap -p"
viewer-delay: 2s
keep-alive: false
page-size: 8192
stats: true
`)
	c, err := LoadConfig(file)
	if err != nil {
		t.Fatal(err)
	}
	if c.Backend != "sim" || c.Viewer != "vmmap -p" || c.ViewerDelay != 2*time.Second {
		t.Fatalf("unexpected config %#v", c)
	}
	if c.KeepAlive == nil || *c.KeepAlive {
		t.Fatalf("keep-alive not loaded: %v", c.KeepAlive)
	}
	if c.PageSize != 8192 || c.ReserveUnit != 0 || !c.Stats {
		t.Fatalf("unexpected config %#v", c)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err == nil {
		t.Fatal("expected an error for a missing explicit config file")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	for _, content := range []string{
		"backend: qemu\n",
		"page-size: 3000\n",
		"viewer-delay: -1s\n",
		"unknown-option: 1\n",
	} {
		if _, err := LoadConfig(writeConfig(t, content)); err == nil {
			t.Errorf("expected an error for %q", content)
		}
	}
}

func TestDefaultConfigIsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteDefaultConfig(&buf); err != nil {
		t.Fatal(err)
	}
	var c Config
	if err := yaml.UnmarshalStrict(buf.Bytes(), &c); err != nil {
		t.Fatal(err)
	}
	if c != (Config{}) {
		t.Fatalf("default config enables options: %#v", c)
	}
}

func TestGetConfigFilePath(t *testing.T) {
	p, err := GetConfigFilePath(configFile)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p) != configFile || filepath.Base(filepath.Dir(p)) != configDir {
		t.Fatalf("unexpected path %s", p)
	}
}

func TestList(t *testing.T) {
	keepAlive := false
	c := &Config{Backend: "sim", ViewerDelay: time.Second, KeepAlive: &keepAlive, PageSize: 4096}
	var buf bytes.Buffer
	if err := List(&buf, c); err != nil {
		t.Fatal(err)
	}
	const want = `backend      sim
viewer       <not defined>
viewer-delay 1s
keep-alive   false
page-size    4096
reserve-unit <not defined>
stats        <not defined>
metrics-addr <not defined>
`
	if buf.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}
