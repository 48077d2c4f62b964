package config

import (
	"net"
	"strconv"
)

// BackupConfig describes one upload route
type BackupConfig struct {
	Filename        string `yaml:"filename"`         // template used when no default_filename is set
	DefaultFilename string `yaml:"default_filename"` // template used when the client sends no name
	Separator       string `yaml:"separator"`        // date/time component separator (default: "-")
	Storage         string `yaml:"storage"`          // backend name in the storage section
}

// ListenConfig is a plain HTTP listener
type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port the listener binds to
func (l ListenConfig) Addr() string {
	return net.JoinHostPort(l.Host, strconv.Itoa(l.Port))
}

// TLSListenConfig is an HTTPS listener with PEM key and certificate paths
type TLSListenConfig struct {
	ListenConfig `yaml:",inline"`
	Key          string `yaml:"key"`
	Cert         string `yaml:"cert"`
}

// ServerConfig lists the listeners to start; either may be omitted
type ServerConfig struct {
	HTTP  *ListenConfig    `yaml:"http"`
	HTTPS *TLSListenConfig `yaml:"https"`
}

// ReloadConfig enables the file watchers
type ReloadConfig struct {
	SSL               bool `yaml:"ssl"`                 // watch server.https key and cert
	StorageAndBackups bool `yaml:"storage_and_backups"` // watch the config file itself
}

// Config is the root configuration structure. A Config is never modified
// after parsing; a reload produces a new one.
type Config struct {
	LogLevel  string                  `yaml:"log_level"`  // debug, info, warn, error (default: info)
	LogFormat string                  `yaml:"log_format"` // json, console (default: json)
	Storage   map[string]BackendSpec  `yaml:"storage"`
	Backups   map[string]BackupConfig `yaml:"backups"`
	Server    ServerConfig            `yaml:"server"`
	Reload    ReloadConfig            `yaml:"reload"`
}

// GetLogLevel returns the log level (defaults to info)
func (c *Config) GetLogLevel() string {
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return "info"
}

// GetLogFormat returns the log format (defaults to json)
func (c *Config) GetLogFormat() string {
	if c.LogFormat != "" {
		return c.LogFormat
	}
	return "json"
}

// GetSeparator returns the templater separator for the route (defaults to "-")
func (b BackupConfig) GetSeparator() string {
	if b.Separator != "" {
		return b.Separator
	}
	return "-"
}
