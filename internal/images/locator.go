// Package images locates locally built toolchain images by version tag.
package images

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/samber/lo"
)

// Ref identifies one locally available toolchain image.
type Ref struct {
	Repository  string
	Version     *semver.Version
	BuildNumber int
}

// String renders the full image reference, e.g. "fwbox/toolchain:v2.7.16-3".
func (r Ref) String() string {
	return fmt.Sprintf("%s:v%s-%d", r.Repository, r.Version, r.BuildNumber)
}

// imageTagPattern matches "v<semver>-<buildNumber>". Tags in any other shape
// ("latest", digests, dangling) never produce a Ref.
var imageTagPattern = regexp.MustCompile(`^v(\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?)-(\d+)$`)

// Lister is the slice of the Docker client the locator needs.
type Lister interface {
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
}

// Locator finds toolchain images in the local image store.
type Locator struct {
	client     Lister
	repository string
	logger     *slog.Logger
}

// NewLocator connects to the container runtime and returns a locator for the
// given image repository.
func NewLocator(repository string, logger *slog.Logger) (*Locator, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := dockerClient.Ping(ctx); err != nil {
		return nil, fmt.Errorf("docker daemon is not available: %w", err)
	}

	return &Locator{client: dockerClient, repository: repository, logger: logger}, nil
}

// NewLocatorWithClient returns a locator backed by an existing client.
func NewLocatorWithClient(lister Lister, repository string, logger *slog.Logger) *Locator {
	return &Locator{client: lister, repository: repository, logger: logger}
}

// Find returns the best matching local image. With a desired version it is
// the exact-version image with the highest build number; without one it is
// the image with the highest (version, build number). A failed or empty
// listing means "no image found", never an error.
func (l *Locator) Find(ctx context.Context, desired *semver.Version) (*Ref, bool) {
	summaries, err := l.client.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", l.repository)),
	})
	if err != nil {
		l.logger.Warn("image listing failed, treating as no images", "error", err)
		return nil, false
	}

	var refs []Ref
	for _, summary := range summaries {
		for _, repoTag := range summary.RepoTags {
			if ref, ok := l.parseRepoTag(repoTag); ok {
				refs = append(refs, ref)
			}
		}
	}

	if desired != nil {
		refs = lo.Filter(refs, func(r Ref, _ int) bool {
			return r.Version.Equal(desired)
		})
	}
	if len(refs) == 0 {
		return nil, false
	}

	best := lo.MaxBy(refs, func(a, b Ref) bool {
		if cmp := a.Version.Compare(b.Version); cmp != 0 {
			return cmp > 0
		}
		return a.BuildNumber > b.BuildNumber
	})

	l.logger.Debug("located image", "image", best.String())
	return &best, true
}

// parseRepoTag parses "<repository>:v<version>-<n>", ignoring everything else.
func (l *Locator) parseRepoTag(repoTag string) (Ref, bool) {
	idx := strings.LastIndex(repoTag, ":")
	if idx < 0 || repoTag[:idx] != l.repository {
		return Ref{}, false
	}

	m := imageTagPattern.FindStringSubmatch(repoTag[idx+1:])
	if m == nil {
		return Ref{}, false
	}

	version, err := semver.StrictNewVersion(m[1])
	if err != nil {
		return Ref{}, false
	}
	buildNumber, err := strconv.Atoi(m[2])
	if err != nil {
		return Ref{}, false
	}

	return Ref{Repository: l.repository, Version: version, BuildNumber: buildNumber}, true
}
