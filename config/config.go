// Package config loads the server's YAML configuration.
package config

import (
	"os"
	"strings"

	"BlurServer/engine"
	"BlurServer/ndarray"
	iface "BlurServer/interface"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	PortName          string `yaml:"portName"`
	HTTPPort          int    `yaml:"httpPort"`
	RPCPort           int    `yaml:"rpcPort"`
	MonitorPort       int    `yaml:"monitorPort"`
	QueueSize         int    `yaml:"queueSize"`
	BlockingCallbacks bool   `yaml:"blockingCallbacks"`
	MaxBuffers        int    `yaml:"maxBuffers"`
	MaxMemory         int64  `yaml:"maxMemory"`
	Priority          int    `yaml:"priority"`
	StackSize         int    `yaml:"stackSize"`
	Backend           string `yaml:"backend"`
	KernelWidth       int    `yaml:"kernelWidth"`
	KernelHeight      int    `yaml:"kernelHeight"`
	BlurType          string `yaml:"blurType"`
	DataType          string `yaml:"dataType"`
	LegacyKernelCheck bool   `yaml:"legacyKernelCheck"`
	Development       bool   `yaml:"development"`
	UseRegServer      bool   `yaml:"useRegServer"`
	RegServerHost     string `yaml:"regServerHost"`
	RegServerPort     int    `yaml:"regServerPort"`
	SinkURL           string `yaml:"sinkURL"`
}

func Default() Config {
	return Config{
		PortName:     "BLUR1",
		HTTPPort:     8080,
		RPCPort:      50051,
		MonitorPort:  50052,
		QueueSize:    2,
		Backend:      "opencv",
		KernelWidth:  3,
		KernelHeight: 3,
		BlurType:     "None",
		DataType:     "Auto",
	}
}

// Load reads path over the defaults. A missing file is an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown names and negative sizes. Kernel sizes are left
// to the engine, which rejects them per cycle.
func (c *Config) Validate() error {
	var mode iface.Mode
	if err := mode.UnmarshalText([]byte(c.BlurType)); err != nil {
		return errors.Wrapf(ErrInvalid, "blurType %q", c.BlurType)
	}
	if _, err := ndarray.ParseDataType(c.DataType); err != nil {
		return errors.Wrapf(ErrInvalid, "dataType %q", c.DataType)
	}
	switch strings.ToLower(c.Backend) {
	case "opencv", "native":
	default:
		return errors.Wrapf(ErrInvalid, "backend %q", c.Backend)
	}
	if c.QueueSize < 0 {
		return errors.Wrapf(ErrInvalid, "queueSize %d", c.QueueSize)
	}
	if c.PortName == "" {
		return errors.Wrap(ErrInvalid, "portName is empty")
	}
	return nil
}

// Params converts the smoothing fields into the engine's parameter set.
func (c *Config) Params() engine.ParamValues {
	var mode iface.Mode
	_ = mode.UnmarshalText([]byte(c.BlurType))
	dt, err := ndarray.ParseDataType(c.DataType)
	if err != nil {
		dt = ndarray.Auto
	}
	return engine.ParamValues{
		KernelWidth:       c.KernelWidth,
		KernelHeight:      c.KernelHeight,
		Mode:              mode,
		OutputType:        dt,
		LegacyKernelCheck: c.LegacyKernelCheck,
	}
}
