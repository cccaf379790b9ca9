package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/netplume/wifimgr-go/internal/params"
)

// Config is the daemon bootstrap configuration. Everything here is static
// wiring; runtime state (credentials, parameter values) lives in the
// settings store.
type Config struct {
	Listen    string `yaml:"listen"`
	ConfigDir string `yaml:"config_dir"`
	Product   string `yaml:"product"`

	AP struct {
		SSID   string `yaml:"ssid"`   // empty: derived from machine identity
		Secret string `yaml:"secret"` // empty or <8 chars: open AP
	} `yaml:"ap"`

	Radio struct {
		Backend    string `yaml:"backend"`   // dbus | atmodem | mock
		Interface  string `yaml:"interface"` // dbus: wireless interface name
		SerialPort string `yaml:"serial_port"`
		BaudRate   int    `yaml:"baud_rate"`
	} `yaml:"radio"`

	ResetPin string `yaml:"reset_pin"` // e.g. "GPIO17"; empty disables the watcher

	// Params declares the typed portal parameters this deployment exposes.
	Params []ParamDecl `yaml:"params"`
}

// ParamDecl is one portal parameter declaration from the config file.
type ParamDecl struct {
	Key         string `yaml:"key"`
	Label       string `yaml:"label"`
	Type        string `yaml:"type"` // string | int | bool | float
	Default     string `yaml:"default"`
	Required    bool   `yaml:"required"`
	MaxLen      int    `yaml:"max_len"`
	Placeholder string `yaml:"placeholder"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.Listen = ":8080"
	cfg.Product = "Netplume"
	cfg.Radio.Backend = "dbus"
	cfg.Radio.Interface = "wlan0"
	cfg.Radio.SerialPort = "/dev/ttyUSB0"
	cfg.Radio.BaudRate = 115200
	return cfg
}

// loadConfig reads the YAML bootstrap file over the defaults. A missing
// path just returns the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// toParameter converts a declaration into a store parameter.
func (d ParamDecl) toParameter() (params.Parameter, error) {
	var typ params.Type
	switch d.Type {
	case "", "string":
		typ = params.TypeString
	case "int":
		typ = params.TypeInt
	case "bool":
		typ = params.TypeBool
	case "float":
		typ = params.TypeFloat
	default:
		return params.Parameter{}, fmt.Errorf("param %q: unknown type %q", d.Key, d.Type)
	}
	label := d.Label
	if label == "" {
		label = d.Key
	}
	return params.Parameter{
		Key:         d.Key,
		Label:       label,
		Type:        typ,
		Default:     d.Default,
		Required:    d.Required,
		MaxLen:      d.MaxLen,
		Placeholder: d.Placeholder,
	}, nil
}
