package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all settings for the fwbox CLI. Every component receives it
// explicitly at construction so tests can substitute repositories, binaries
// and build numbers without touching the environment.
type Config struct {
	// ImageRepository is the local image repository toolchain images are
	// tagged into, e.g. "fwbox/toolchain:v2.7.16-1".
	ImageRepository string `env:"FWBOX_IMAGE_REPOSITORY" envDefault:"fwbox/toolchain"`

	// BuildNumber distinguishes repeated builds of the same firmware version.
	// Bump it to force a rebuild that coexists with earlier images.
	BuildNumber int `env:"FWBOX_BUILD_NUMBER" envDefault:"1"`

	// FirmwareDir is the local firmware checkout (usually a git submodule)
	// whose tags drive version selection.
	FirmwareDir string `env:"FWBOX_FIRMWARE_DIR" envDefault:"firmware"`

	// ContextDir is the image build context; the Dockerfile lives here.
	ContextDir string `env:"FWBOX_CONTEXT_DIR" envDefault:"."`

	// Shell is the program spawned inside the image by "fwbox shell".
	Shell string `env:"FWBOX_SHELL" envDefault:"/bin/bash"`

	// DockerBin is the container runtime binary used for interactive runs.
	DockerBin string `env:"FWBOX_DOCKER_BIN" envDefault:"docker"`

	LogLevel    string `env:"FWBOX_LOG_LEVEL" envDefault:"info"`
	Environment string `env:"FWBOX_ENVIRONMENT" envDefault:"development"` // development, production
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment config: %w", err)
	}
	if cfg.BuildNumber < 1 {
		return nil, fmt.Errorf("build number must be >= 1, got %d", cfg.BuildNumber)
	}
	return cfg, nil
}
