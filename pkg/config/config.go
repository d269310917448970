package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied to fields left empty in the config file
const (
	DefaultListenAddr      = ":7420"
	DefaultMetricsAddr     = ":9420"
	DefaultDataDir         = "/var/lib/skiff"
	DefaultDownloadTimeout = 60 * time.Second
	DefaultLogLevel        = "info"
)

// Config is the daemon configuration for both roles. A single file can
// configure a machine that runs the control plane, an agent, or both.
type Config struct {
	LogLevel string `yaml:"logLevel"`
	LogJSON  bool   `yaml:"logJson"`

	ControlPlane ControlPlaneConfig `yaml:"controlPlane"`
	Agent        AgentConfig        `yaml:"agent"`
}

// ControlPlaneConfig configures the cluster coordination role
type ControlPlaneConfig struct {
	ListenAddr  string `yaml:"listenAddr"`
	MetricsAddr string `yaml:"metricsAddr"`
	DataDir     string `yaml:"dataDir"`

	// DownloadTimeout bounds how long a volume download waits for a
	// node reply
	DownloadTimeout time.Duration `yaml:"downloadTimeout"`
}

// AgentConfig configures the node role
type AgentConfig struct {
	NodeID    string `yaml:"nodeId"`
	ServerURL string `yaml:"serverUrl"`
	DataDir   string `yaml:"dataDir"`

	// Sandbox keeps all node state in memory instead of the host
	// filesystem
	Sandbox bool `yaml:"sandbox"`
}

// Default returns a config with every field at its default value
func Default() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		ControlPlane: ControlPlaneConfig{
			ListenAddr:      DefaultListenAddr,
			MetricsAddr:     DefaultMetricsAddr,
			DataDir:         DefaultDataDir,
			DownloadTimeout: DefaultDownloadTimeout,
		},
		Agent: AgentConfig{
			DataDir: DefaultDataDir,
		},
	}
}

// Load reads a YAML config file and fills unset fields with defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.ControlPlane.ListenAddr == "" {
		c.ControlPlane.ListenAddr = def.ControlPlane.ListenAddr
	}
	if c.ControlPlane.MetricsAddr == "" {
		c.ControlPlane.MetricsAddr = def.ControlPlane.MetricsAddr
	}
	if c.ControlPlane.DataDir == "" {
		c.ControlPlane.DataDir = def.ControlPlane.DataDir
	}
	if c.ControlPlane.DownloadTimeout == 0 {
		c.ControlPlane.DownloadTimeout = def.ControlPlane.DownloadTimeout
	}
	if c.Agent.DataDir == "" {
		c.Agent.DataDir = def.Agent.DataDir
	}
}

// ValidateAgent checks the fields the agent role requires
func (c *Config) ValidateAgent() error {
	if c.Agent.NodeID == "" {
		return fmt.Errorf("agent.nodeId is required")
	}
	if c.Agent.ServerURL == "" {
		return fmt.Errorf("agent.serverUrl is required")
	}
	return nil
}
