package util

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const Name = "lattice"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host     string
		HttpPort int    `yaml:"httpPort"`
		Domain   string `yaml:"domain"`
		Federate bool   `yaml:"federate"`

		// Federation allow/deny lists. An empty allow list means every
		// domain not on the block list may federate.
		AllowedDomains []string `yaml:"allowedDomains"`
		BlockedDomains []string `yaml:"blockedDomains"`

		// Actor cache refresh window in hours.
		ActorRefreshHours int `yaml:"actorRefreshHours"`

		// Outbound delivery tuning.
		DeliveryWorkers        int `yaml:"deliveryWorkers"`
		DeliveryMaxAttempts    int `yaml:"deliveryMaxAttempts"`
		DeliveryBackoffSeconds int `yaml:"deliveryBackoffSeconds"`
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	var buf []byte
	var err error

	// Try to read from resolved path
	buf, err = os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		// Try to write default config to user config directory
		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	envHost := os.Getenv("LATTICE_HOST")
	envHttpPort := os.Getenv("LATTICE_HTTPPORT")
	envDomain := os.Getenv("LATTICE_DOMAIN")
	envFederate := os.Getenv("LATTICE_FEDERATE")
	envAllowed := os.Getenv("LATTICE_ALLOWED_DOMAINS")
	envBlocked := os.Getenv("LATTICE_BLOCKED_DOMAINS")
	envWorkers := os.Getenv("LATTICE_DELIVERY_WORKERS")
	envAttempts := os.Getenv("LATTICE_DELIVERY_MAX_ATTEMPTS")

	if envHost != "" {
		c.Conf.Host = envHost
	}

	if envHttpPort != "" {
		v, err := strconv.Atoi(envHttpPort)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.HttpPort = v
	}

	if envDomain != "" {
		c.Conf.Domain = envDomain
	}

	if envFederate == "true" {
		c.Conf.Federate = true
	}

	if envAllowed != "" {
		c.Conf.AllowedDomains = SplitDomainList(envAllowed)
	}

	if envBlocked != "" {
		c.Conf.BlockedDomains = SplitDomainList(envBlocked)
	}

	if envWorkers != "" {
		v, err := strconv.Atoi(envWorkers)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.DeliveryWorkers = v
	}

	if envAttempts != "" {
		v, err := strconv.Atoi(envAttempts)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.DeliveryMaxAttempts = v
	}

	applyDefaults(c)

	return c, nil
}

func applyDefaults(c *AppConfig) {
	if c.Conf.ActorRefreshHours <= 0 {
		c.Conf.ActorRefreshHours = 24
	}
	if c.Conf.DeliveryWorkers <= 0 {
		c.Conf.DeliveryWorkers = 4
	}
	if c.Conf.DeliveryMaxAttempts <= 0 {
		c.Conf.DeliveryMaxAttempts = 6
	}
	if c.Conf.DeliveryBackoffSeconds <= 0 {
		c.Conf.DeliveryBackoffSeconds = 30
	}
}

// SplitDomainList parses a comma-separated domain list into lowercase entries.
func SplitDomainList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
