// Package shell resolves a toolchain image, building it on demand, and execs
// an interactive shell inside it.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/Masterminds/semver/v3"

	"github.com/fwbox/fwbox/internal/images"
	"github.com/fwbox/fwbox/internal/shared/config"
)

var (
	// ErrBuildOrFindFailed indicates no usable image exists even after an
	// on-demand build attempt.
	ErrBuildOrFindFailed = errors.New("could not find or build a toolchain image")

	// ErrLaunchFailed indicates the interactive session process could not
	// be started at all.
	ErrLaunchFailed = errors.New("failed to launch interactive shell")
)

// Finder locates a local toolchain image.
type Finder interface {
	Find(ctx context.Context, desired *semver.Version) (*images.Ref, bool)
}

// BuildFunc builds the requested (or latest, when nil) version on demand.
type BuildFunc func(ctx context.Context, desired *semver.Version) error

// Launcher opens interactive shells inside toolchain images.
type Launcher struct {
	cfg          *config.Config
	finder       Finder
	buildMissing BuildFunc
	runShell     func(ctx context.Context, imageRef string) error
	logger       *slog.Logger
}

// NewLauncher creates a launcher that resolves images through finder and
// falls back to buildMissing when none exists locally.
func NewLauncher(cfg *config.Config, finder Finder, buildMissing BuildFunc, logger *slog.Logger) *Launcher {
	l := &Launcher{
		cfg:          cfg,
		finder:       finder,
		buildMissing: buildMissing,
		logger:       logger,
	}
	l.runShell = l.dockerRun
	return l
}

// Open resolves an image for the desired version (latest when nil), building
// it once if absent, then replaces this process's interaction with a shell in
// the image. The child's exit status is returned as an *exec.ExitError so the
// caller can propagate its code.
func (l *Launcher) Open(ctx context.Context, desired *semver.Version) error {
	ref, ok := l.finder.Find(ctx, desired)
	if !ok {
		l.logger.Info("no local toolchain image, building on demand", "version", versionLabel(desired))

		if err := l.buildMissing(ctx, desired); err != nil {
			return fmt.Errorf("on-demand build failed: %w", err)
		}

		ref, ok = l.finder.Find(ctx, desired)
		if !ok {
			return fmt.Errorf("%w: image for %s still missing after build",
				ErrBuildOrFindFailed, versionLabel(desired))
		}
	}

	l.logger.Info("opening shell", "image", ref.String())
	return l.runShell(ctx, ref.String())
}

// dockerRun spawns an interactive container inheriting this terminal.
func (l *Launcher) dockerRun(ctx context.Context, imageRef string) error {
	cmd := exec.CommandContext(ctx, l.cfg.DockerBin, "run", "--rm", "-it", imageRef, l.cfg.Shell)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The shell ran and exited non-zero; its code is the
			// command's code.
			return err
		}
		return fmt.Errorf("%w: %v", ErrLaunchFailed, err)
	}
	return nil
}

func versionLabel(v *semver.Version) string {
	if v == nil {
		return "latest"
	}
	return v.String()
}
