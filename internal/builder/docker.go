package builder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/go-archive"
)

// DockerBuilder implements ImageBuilder using the Docker Go SDK. The build
// context is the working directory containing the toolchain Dockerfile; the
// firmware version, cache-bust token and cache-cleanup list are handed to the
// Dockerfile as build args.
type DockerBuilder struct {
	logger       *slog.Logger
	contextDir   string
	out          io.Writer
	dockerClient *client.Client
}

// NewDockerBuilder creates a new DockerBuilder instance.
func NewDockerBuilder(contextDir string, logger *slog.Logger) (*DockerBuilder, error) {
	if contextDir == "" {
		contextDir = "."
	}

	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	// Verify Docker is available by pinging the daemon
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := dockerClient.Ping(ctx); err != nil {
		return nil, fmt.Errorf("docker daemon is not available: %w", err)
	}

	return &DockerBuilder{
		logger:       logger,
		contextDir:   contextDir,
		out:          os.Stdout,
		dockerClient: dockerClient,
	}, nil
}

// Name returns the name of the Docker builder
func (d *DockerBuilder) Name() string {
	return "docker"
}

// Build builds one toolchain image using Docker.
func (d *DockerBuilder) Build(ctx context.Context, spec *BuildSpec) *BuildResult {
	startTime := time.Now()

	result := &BuildResult{
		ID:       spec.ID,
		Version:  spec.Entry.Version.String(),
		ImageTag: spec.ImageTag,
	}

	d.logger.Info("starting docker build",
		"build_id", spec.ID,
		"firmware_tag", spec.Entry.Tag,
		"image_tag", spec.ImageTag)

	if err := d.buildDockerImage(ctx, spec); err != nil {
		result.Err = fmt.Errorf("docker build failed: %w", err)
		result.Duration = time.Since(startTime)
		return result
	}

	result.Success = true
	result.Duration = time.Since(startTime)

	d.logger.Info("docker build completed",
		"build_id", spec.ID,
		"image_tag", spec.ImageTag,
		"duration", result.Duration)

	return result
}

// buildDockerImage runs the image build and relays its output live.
func (d *DockerBuilder) buildDockerImage(ctx context.Context, spec *BuildSpec) error {
	dockerfilePath := filepath.Join(d.contextDir, "Dockerfile")
	if _, err := os.Stat(dockerfilePath); os.IsNotExist(err) {
		return fmt.Errorf("dockerfile not found in %s", d.contextDir)
	}

	buildContext, err := archive.TarWithOptions(d.contextDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("failed to create build context: %w", err)
	}
	defer buildContext.Close()

	firmwareTag := spec.Entry.Tag
	cacheBust := spec.CacheBust
	cacheClean := strings.Join(spec.CacheCleanPaths, " ")

	buildOptions := build.ImageBuildOptions{
		Tags:        []string{spec.ImageTag},
		Dockerfile:  "Dockerfile",
		Remove:      true,
		ForceRemove: true,
		BuildArgs: map[string]*string{
			"FIRMWARE_TAG":      &firmwareTag,
			"CACHE_BUST":        &cacheBust,
			"CACHE_CLEAN_PATHS": &cacheClean,
		},
	}

	buildResponse, err := d.dockerClient.ImageBuild(ctx, buildContext, buildOptions)
	if err != nil {
		return err
	}
	defer buildResponse.Body.Close()

	// Relay build output incrementally; a failed step surfaces as a
	// JSONError from the stream.
	if err := jsonmessage.DisplayJSONMessagesStream(buildResponse.Body, d.out, 0, false, nil); err != nil {
		return err
	}

	return nil
}

// Cleanup performs cleanup operations for the Docker builder.
func (d *DockerBuilder) Cleanup() error {
	if d.dockerClient != nil {
		if err := d.dockerClient.Close(); err != nil {
			d.logger.Warn("failed to close docker client", "error", err)
			return err
		}
	}
	return nil
}
