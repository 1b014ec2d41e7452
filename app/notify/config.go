package notify

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type channelsFile struct {
	Channels []channelConfig `yaml:"channels"`
}

type channelConfig struct {
	Type    string   `yaml:"type"`
	URL     string   `yaml:"url"`     // webhook
	Command string   `yaml:"command"` // command
	Args    []string `yaml:"args"`    // command
	Timeout int      `yaml:"timeout"` // seconds
}

// LoadChannels reads the channels YAML file and builds the configured
// channel list. At least one channel must be configured: a watcher with
// nowhere to announce new items is a misconfiguration, not a valid state.
func LoadChannels(path string) ([]Channel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read channels file: %w", err)
	}

	var parsed channelsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse channels YAML: %w", err)
	}

	channels := make([]Channel, 0, len(parsed.Channels))
	for i, cc := range parsed.Channels {
		timeout := time.Duration(cc.Timeout) * time.Second

		switch cc.Type {
		case "webhook":
			if cc.URL == "" {
				return nil, fmt.Errorf("channel %d: webhook URL is required", i)
			}
			channels = append(channels, NewWebhook(cc.URL, timeout))
		case "command":
			if cc.Command == "" {
				return nil, fmt.Errorf("channel %d: command is required", i)
			}
			channels = append(channels, NewCommand(cc.Command, cc.Args, timeout))
		default:
			return nil, fmt.Errorf("channel %d: unknown type '%s'", i, cc.Type)
		}
	}

	if len(channels) == 0 {
		return nil, fmt.Errorf("no notification channels configured in %s", path)
	}

	return channels, nil
}
