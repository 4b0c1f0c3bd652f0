package util

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

// AppConfig mirrors the configuration keys this engine reads: endpoint.*,
// database.*, node.*, nodeinfo.enabled, plus the ambient withJournald/
// withPprof flags.
type AppConfig struct {
	Conf struct {
		Endpoint struct {
			BaseScheme string `yaml:"baseScheme"`
			BaseDomain string `yaml:"baseDomain"`
			BindAddr   string `yaml:"bindAddr"`
		}
		Database struct {
			Path         string `yaml:"path"`
			MaxOpenConns int    `yaml:"maxOpenConns"`
		}
		Node struct {
			Name                  string `yaml:"name"`
			Description           string `yaml:"description"`
			RegistrationsEnabled  bool   `yaml:"registrationsEnabled"`
		}
		NodeInfo struct {
			Enabled bool `yaml:"enabled"`
		}
		WithJournald bool `yaml:"withJournald"`
		WithPprof    bool `yaml:"withPprof"`
	}
}

// ReadConf loads config.yaml from the working directory if present,
// otherwise the embedded defaults, then applies KIBOU_* environment
// overrides. Exit code on config error is left to the caller (spec: 1).
func ReadConf() (*AppConfig, error) {
	c := &AppConfig{}

	buf, err := os.ReadFile(ConfigFileName)
	if err != nil {
		log.Printf("config file not found at %s, using embedded defaults", ConfigFileName)
		buf = embeddedConfig
	}

	if err := yaml.Unmarshal(buf, c); err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	if v := os.Getenv("KIBOU_BASE_SCHEME"); v != "" {
		c.Conf.Endpoint.BaseScheme = v
	}
	if v := os.Getenv("KIBOU_BASE_DOMAIN"); v != "" {
		c.Conf.Endpoint.BaseDomain = v
	}
	if v := os.Getenv("KIBOU_BIND_ADDR"); v != "" {
		c.Conf.Endpoint.BindAddr = v
	}
	if v := os.Getenv("KIBOU_DB_PATH"); v != "" {
		c.Conf.Database.Path = v
	}
	if v := os.Getenv("KIBOU_NODE_NAME"); v != "" {
		c.Conf.Node.Name = v
	}
	if v := os.Getenv("KIBOU_NODE_DESCRIPTION"); v != "" {
		c.Conf.Node.Description = v
	}
	if v := os.Getenv("KIBOU_REGISTRATIONS_ENABLED"); v == "true" {
		c.Conf.Node.RegistrationsEnabled = true
	}
	if v := os.Getenv("KIBOU_NODEINFO_ENABLED"); v != "" {
		c.Conf.NodeInfo.Enabled = v == "true"
	}
	if v := os.Getenv("KIBOU_WITH_JOURNALD"); v == "true" {
		c.Conf.WithJournald = true
	}
	if v := os.Getenv("KIBOU_WITH_PPROF"); v == "true" {
		c.Conf.WithPprof = true
	}
	if v := os.Getenv("KIBOU_MAX_OPEN_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("error parsing KIBOU_MAX_OPEN_CONNS: %v", err)
		} else {
			c.Conf.Database.MaxOpenConns = n
		}
	}

	if c.Conf.Database.MaxOpenConns == 0 {
		c.Conf.Database.MaxOpenConns = 8
	}

	return c, nil
}

// BaseURL returns the scheme://domain prefix used to build actor and
// activity URIs.
func (c *AppConfig) BaseURL() string {
	return fmt.Sprintf("%s://%s", c.Conf.Endpoint.BaseScheme, c.Conf.Endpoint.BaseDomain)
}
