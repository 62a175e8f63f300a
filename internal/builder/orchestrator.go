package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/fwbox/fwbox/internal/catalog"
)

// ErrBuildFailed indicates at least one build in the plan failed. All planned
// builds are still attempted before it is returned.
var ErrBuildFailed = errors.New("one or more builds failed")

// PlanOptions parameterize how a build plan is derived from version entries.
type PlanOptions struct {
	Repository      string
	BuildNumber     int
	CacheBust       string
	CacheCleanPaths []string
}

// Plan derives build specs from selected version entries, preserving their
// order (newest to oldest).
func Plan(entries []catalog.VersionEntry, opts PlanOptions) []*BuildSpec {
	return lo.Map(entries, func(e catalog.VersionEntry, _ int) *BuildSpec {
		return &BuildSpec{
			ID:              uuid.New(),
			Entry:           e,
			ImageTag:        fmt.Sprintf("%s:v%s-%d", opts.Repository, e.Version, opts.BuildNumber),
			CacheBust:       opts.CacheBust,
			CacheCleanPaths: opts.CacheCleanPaths,
		}
	})
}

// Orchestrator runs a build plan strictly in order, one build at a time.
// Builds are deliberately sequential: a newer version populates the shared
// dependency cache that the next (older) version's build then reuses.
type Orchestrator struct {
	builder ImageBuilder
	logger  *slog.Logger
}

// NewOrchestrator creates an orchestrator driving the given image builder.
func NewOrchestrator(imageBuilder ImageBuilder, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{builder: imageBuilder, logger: logger}
}

// Run attempts every build in the plan. A failed build is recorded and the
// remaining plan continues; only cancellation stops the loop early. When any
// build failed, the returned error wraps ErrBuildFailed after all attempts.
func (o *Orchestrator) Run(ctx context.Context, specs []*BuildSpec) ([]BuildResult, error) {
	results := make([]BuildResult, 0, len(specs))

	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			o.logger.Warn("build plan interrupted",
				"completed", len(results),
				"remaining", len(specs)-i)
			return results, err
		}

		o.logger.Info("building version",
			"build_id", spec.ID,
			"version", spec.Entry.Version,
			"position", fmt.Sprintf("%d/%d", i+1, len(specs)))

		result := o.builder.Build(ctx, spec)
		results = append(results, *result)

		if !result.Success {
			o.logger.Error("build failed, continuing with remaining plan",
				"build_id", spec.ID,
				"version", result.Version,
				"error", result.Err)
		}
	}

	succeeded := lo.CountBy(results, func(r BuildResult) bool { return r.Success })
	failed := len(results) - succeeded

	o.logger.Info("build plan finished", "succeeded", succeeded, "failed", failed)

	if failed > 0 {
		for _, r := range results {
			if !r.Success {
				o.logger.Error("build summary", "version", r.Version, "error", r.Err)
			}
		}
		return results, fmt.Errorf("%d of %d builds failed: %w", failed, len(results), ErrBuildFailed)
	}

	return results, nil
}
