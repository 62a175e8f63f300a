package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"

	"github.com/fwbox/fwbox/internal/builder"
	"github.com/fwbox/fwbox/internal/catalog"
	"github.com/fwbox/fwbox/internal/images"
	"github.com/fwbox/fwbox/internal/shared/config"
	"github.com/fwbox/fwbox/internal/shared/logging"
	"github.com/fwbox/fwbox/internal/shell"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	var levelVar slog.LevelVar
	if level, err := logging.ParseLevel(cfg.LogLevel); err == nil {
		levelVar.Set(level)
	}

	logger := logging.NewLogger(&levelVar, cfg.Environment)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(cfg, logger, &levelVar)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("command interrupted", "error", err)
			os.Exit(130)
		}

		// An interactive shell that exited non-zero sets our exit code.
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}

		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand(cfg *config.Config, logger *slog.Logger, levelVar *slog.LevelVar) *cobra.Command {
	logLevel := cfg.LogLevel

	root := &cobra.Command{
		Use:           "fwbox",
		Short:         "Build and enter versioned firmware toolchain images",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log verbosity (debug, info, warning, error)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		levelVar.Set(level)
		return nil
	}

	root.AddCommand(
		newBuildCommand(cfg, logger),
		newShellCommand(cfg, logger),
		newListCommand(cfg, logger),
	)
	return root
}

func newBuildCommand(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var (
		cacheBust       string
		allPatches      bool
		cacheCleanPaths []string
		buildNumber     int
	)

	cmd := &cobra.Command{
		Use:   "build [version-filter]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Build toolchain images for the selected firmware versions",
		Long: "Selects firmware versions from the checkout's tags and builds one image per\n" +
			"version, sequentially from newest to oldest so the shared dependency cache\n" +
			"populated by a newer build is reused by the older ones.",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := "latest"
			if len(args) == 1 {
				filter = strings.TrimSpace(args[0])
			}

			cmdLogger := logger.With("command", "build", "filter", filter)

			plan, err := selectVersions(cfg, filter, !allPatches)
			if err != nil {
				return err
			}
			if len(plan) == 0 {
				cmdLogger.Info("no versions match, nothing to build")
				return nil
			}

			dockerBuilder, err := builder.NewDockerBuilder(cfg.ContextDir, cmdLogger.With("component", "docker-builder"))
			if err != nil {
				return err
			}
			defer dockerBuilder.Cleanup()

			specs := builder.Plan(plan, builder.PlanOptions{
				Repository:      cfg.ImageRepository,
				BuildNumber:     buildNumber,
				CacheBust:       cacheBust,
				CacheCleanPaths: cacheCleanPaths,
			})

			cmdLogger.Info("starting build plan", "versions", len(specs))

			_, err = builder.NewOrchestrator(dockerBuilder, cmdLogger).Run(cmd.Context(), specs)
			return err
		},
	}

	cmd.Flags().StringVar(&cacheBust, "cache-bust", "", "Opaque token; change it to invalidate cached build layers")
	cmd.Flags().BoolVar(&allPatches, "all-patches", false, "Build every matching patch version instead of the latest per minor line")
	cmd.Flags().StringArrayVar(&cacheCleanPaths, "clean-cache-path", nil, "Dependency-cache path to purge before installing; repeat to add more")
	cmd.Flags().IntVar(&buildNumber, "build-number", cfg.BuildNumber, "Build number embedded in the image tag")

	return cmd
}

func newShellCommand(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "shell [version]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Open an interactive shell inside a toolchain image, building it if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			var desired *semver.Version
			if len(args) == 1 {
				v, err := semver.NewVersion(strings.TrimPrefix(strings.TrimSpace(args[0]), "v"))
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				desired = v
			}

			cmdLogger := logger.With("command", "shell")

			locator, err := images.NewLocator(cfg.ImageRepository, cmdLogger.With("component", "locator"))
			if err != nil {
				return err
			}

			launcher := shell.NewLauncher(cfg, locator, buildOnDemand(cfg, cmdLogger), cmdLogger)
			return launcher.Open(cmd.Context(), desired)
		},
	}
}

func newListCommand(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	var allPatches bool

	cmd := &cobra.Command{
		Use:   "list [version-filter]",
		Args:  cobra.MaximumNArgs(1),
		Short: "List selectable firmware versions and whether a local image exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := "*"
			if len(args) == 1 {
				filter = strings.TrimSpace(args[0])
			}

			cmdLogger := logger.With("command", "list")

			plan, err := selectVersions(cfg, filter, !allPatches)
			if err != nil {
				return err
			}
			if len(plan) == 0 {
				cmdLogger.Info("no versions match", "filter", filter)
				return nil
			}

			locator, err := images.NewLocator(cfg.ImageRepository, cmdLogger.With("component", "locator"))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, entry := range plan {
				if ref, ok := locator.Find(cmd.Context(), entry.Version); ok {
					fmt.Fprintf(out, "%s\t%s\t%s\n", entry.Version, entry.Tag, ref)
				} else {
					fmt.Fprintf(out, "%s\t%s\t-\n", entry.Version, entry.Tag)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&allPatches, "all-patches", false, "List every matching patch version instead of the latest per minor line")

	return cmd
}

// selectVersions reads the firmware catalog and applies the version filter.
func selectVersions(cfg *config.Config, filter string, collapse bool) ([]catalog.VersionEntry, error) {
	tags, err := catalog.ListTags(cfg.FirmwareDir)
	if err != nil {
		return nil, err
	}
	return catalog.Select(catalog.ParseValidVersions(tags), filter, collapse)
}

// buildOnDemand returns the single-version build used when "fwbox shell"
// finds no local image.
func buildOnDemand(cfg *config.Config, logger *slog.Logger) shell.BuildFunc {
	return func(ctx context.Context, desired *semver.Version) error {
		tags, err := catalog.ListTags(cfg.FirmwareDir)
		if err != nil {
			return err
		}
		entries := catalog.ParseValidVersions(tags)

		var plan []catalog.VersionEntry
		if desired == nil {
			plan, err = catalog.Select(entries, "latest", true)
			if err != nil {
				return err
			}
		} else {
			entry, ok := catalog.FindExact(entries, desired)
			if !ok {
				return fmt.Errorf("version %s not found among firmware tags", desired)
			}
			plan = []catalog.VersionEntry{entry}
		}
		if len(plan) == 0 {
			return fmt.Errorf("no firmware versions available to build")
		}

		dockerBuilder, err := builder.NewDockerBuilder(cfg.ContextDir, logger.With("component", "docker-builder"))
		if err != nil {
			return err
		}
		defer dockerBuilder.Cleanup()

		specs := builder.Plan(plan, builder.PlanOptions{
			Repository:  cfg.ImageRepository,
			BuildNumber: cfg.BuildNumber,
		})

		_, err = builder.NewOrchestrator(dockerBuilder, logger).Run(ctx, specs)
		return err
	}
}
