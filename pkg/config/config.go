package config

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/user"
	"path"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".vmdriver"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set through the config file.
// Command line flags take precedence over every field.
type Config struct {
	// Backend is the platform commands are applied to, "native" or "sim".
	Backend string `yaml:"backend,omitempty"`

	// Viewer is the command line of the visualization helper. The process
	// id of vmdriver is appended to it.
	Viewer string `yaml:"viewer,omitempty"`
	// ViewerDelay is how long to wait after starting the viewer before
	// reading commands.
	ViewerDelay time.Duration `yaml:"viewer-delay,omitempty"`

	// KeepAlive keeps the process running after the last command so that
	// its address space can still be inspected.
	KeepAlive *bool `yaml:"keep-alive,omitempty"`

	// PageSize and ReserveUnit are the byte sizes of a unit for commit-like
	// operations and for reserve and guard respectively.
	PageSize    int `yaml:"page-size,omitempty"`
	ReserveUnit int `yaml:"reserve-unit,omitempty"`

	// Stats prints the resident and virtual size of the process after
	// every command.
	Stats bool `yaml:"stats,omitempty"`

	// MetricsAddr is the listen address of the Prometheus endpoint.
	MetricsAddr string `yaml:"metrics-addr,omitempty"`
}

// LoadConfig populates a Config object from file, or from the config.yml
// file in the user's configuration directory if file is empty. A missing
// default file is not an error, the configuration file is never created
// implicitly.
func LoadConfig(file string) (*Config, error) {
	explicit := file != ""
	if !explicit {
		var err error
		file, err = GetConfigFilePath(configFile)
		if err != nil {
			return &Config{}, err
		}
	}

	f, err := os.Open(file)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &Config{}, nil
		}
		return &Config{}, errors.Wrap(err, "unable to open config file")
	}
	defer f.Close()

	data, err := ioutil.ReadAll(f)
	if err != nil {
		return &Config{}, errors.Wrap(err, "unable to read config data")
	}

	var c Config
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return &Config{}, errors.Wrapf(err, "unable to decode config file %s", file)
	}
	if err := c.Validate(); err != nil {
		return &Config{}, errors.Wrapf(err, "invalid config file %s", file)
	}
	return &c, nil
}

// Validate checks the fields that have a restricted set of values.
func (c *Config) Validate() error {
	switch c.Backend {
	case "", "native", "sim":
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.PageSize < 0 || c.PageSize&(c.PageSize-1) != 0 {
		return fmt.Errorf("page-size %d is not a power of two", c.PageSize)
	}
	if c.ReserveUnit < 0 || c.ReserveUnit&(c.ReserveUnit-1) != 0 {
		return fmt.Errorf("reserve-unit %d is not a power of two", c.ReserveUnit)
	}
	if c.ViewerDelay < 0 {
		return fmt.Errorf("negative viewer-delay %v", c.ViewerDelay)
	}
	return nil
}

// WriteDefaultConfig writes a commented configuration file with every
// option disabled.
func WriteDefaultConfig(w io.Writer) error {
	_, err := io.WriteString(w,
		`# Configuration file for vmdriver.

# Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Platform the commands are applied to: native (this process) or sim.
# backend: native

# Visualization helper started with the process id of vmdriver appended.
# viewer: "VMmapper.exe"
# viewer-delay: 5s

# Keep the process alive after the last command.
# keep-alive: true

# Unit sizes in bytes for commit-like operations and for reserve and guard.
# page-size: 4096
# reserve-unit: 65536

# Print process memory statistics after every command.
# stats: false

# Serve Prometheus metrics on this address.
# metrics-addr: "localhost:9464"
`)
	return err
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return path.Join(userHomeDir, configDir, file), nil
}
