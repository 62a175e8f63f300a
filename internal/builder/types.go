package builder

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fwbox/fwbox/internal/catalog"
)

// BuildSpec describes one planned image build.
type BuildSpec struct {
	ID    uuid.UUID
	Entry catalog.VersionEntry

	// ImageTag is the full destination reference, "<repo>:v<version>-<n>".
	ImageTag string

	// CacheBust is an opaque token passed into the build; changing it
	// invalidates cache layers from that point forward.
	CacheBust string

	// CacheCleanPaths are dependency-cache paths purged inside the build
	// before installing, used to recover from corrupted cache entries.
	CacheCleanPaths []string
}

// BuildResult represents the result of one build attempt.
type BuildResult struct {
	ID       uuid.UUID
	Version  string
	ImageTag string
	Success  bool
	Err      error
	Duration time.Duration
}

// ImageBuilder defines the interface for building toolchain images.
type ImageBuilder interface {
	// Build builds one image; failures are reported in the result, never
	// as a panic or lost error.
	Build(ctx context.Context, spec *BuildSpec) *BuildResult

	// Name returns the name of the builder implementation
	Name() string

	// Cleanup performs any necessary cleanup operations
	Cleanup() error
}
