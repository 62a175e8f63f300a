package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestParseValidVersions_DropsInvalidAndSortsDescending(t *testing.T) {
	tags := []string{"v2.7.16", "v2.7.15", "v2.6.0", "v2.6.1", "notaversion"}

	entries := ParseValidVersions(tags)
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d: %#v", len(entries), entries)
	}

	want := []string{"2.7.16", "2.7.15", "2.6.1", "2.6.0"}
	for i, w := range want {
		if got := entries[i].Version.String(); got != w {
			t.Fatalf("position %d: expected %s, got %s", i, w, got)
		}
	}
}

func TestParseValidVersions_StripsDescribeSuffix(t *testing.T) {
	entries := ParseValidVersions([]string{"v2.7.16-g1a2b3c4", "v2.7.14-12-gdeadbee"})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if got := entries[0].Version.String(); got != "2.7.16" {
		t.Fatalf("expected describe suffix to be discarded, got version %s", got)
	}
	if got := entries[1].Version.String(); got != "2.7.14" {
		t.Fatalf("expected describe suffix to be discarded, got version %s", got)
	}
	if entries[0].Tag != "v2.7.16-g1a2b3c4" {
		t.Fatalf("expected original tag to be retained, got %s", entries[0].Tag)
	}
}

func TestParseValidVersions_KeepsPrerelease(t *testing.T) {
	entries := ParseValidVersions([]string{"v3.0.0-rc.1", "v3.0.0"})
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	// A prerelease sorts below its release.
	if entries[0].Version.String() != "3.0.0" || entries[1].Version.String() != "3.0.0-rc.1" {
		t.Fatalf("unexpected order: %s, %s", entries[0].Version, entries[1].Version)
	}
}

func TestParseValidVersions_TiesKeepCatalogOrder(t *testing.T) {
	entries := ParseValidVersions([]string{"v1.2.3", "release-1.2.3"})
	if len(entries) != 1 {
		// "release-1.2.3" has no leading version, so only one survives.
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	entries = ParseValidVersions([]string{"v1.2.3", "1.2.3"})
	if len(entries) != 2 {
		t.Fatalf("expected both decorations of 1.2.3 retained, got %d", len(entries))
	}
	if entries[0].Tag != "v1.2.3" || entries[1].Tag != "1.2.3" {
		t.Fatalf("expected catalog order preserved for ties, got %s, %s", entries[0].Tag, entries[1].Tag)
	}
}

func TestSelect_LatestYieldsAtMostOne(t *testing.T) {
	entries := ParseValidVersions([]string{"v2.7.16", "v2.6.1", "v2.6.0"})

	plan, err := Select(entries, "latest", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(plan) != 1 || plan[0].Version.String() != "2.7.16" {
		t.Fatalf("unexpected plan: %#v", plan)
	}

	plan, err = Select(nil, "latest", true)
	if err != nil {
		t.Fatalf("expected no error on empty catalog, got %v", err)
	}
	if len(plan) != 0 {
		t.Fatalf("expected empty plan, got %#v", plan)
	}
}

func TestSelect_RangeWithCollapse(t *testing.T) {
	entries := ParseValidVersions([]string{"v2.7.16", "v2.7.15", "v2.6.0", "v2.6.1", "notaversion"})

	plan, err := Select(entries, ">2.6.0", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := []string{"2.7.16", "2.6.1"}
	if len(plan) != len(want) {
		t.Fatalf("expected %d entries, got %d: %#v", len(want), len(plan), plan)
	}
	for i, w := range want {
		if got := plan[i].Version.String(); got != w {
			t.Fatalf("position %d: expected %s, got %s", i, w, got)
		}
	}
}

func TestSelect_RangeWithoutCollapseKeepsAllMatches(t *testing.T) {
	entries := ParseValidVersions([]string{"v2.7.16", "v2.7.15", "v2.6.0", "v2.6.1"})

	all, err := Select(entries, ">2.6.0", false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	collapsed, err := Select(entries, ">2.6.0", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(all) != 3 {
		t.Fatalf("expected 3 matches, got %d: %#v", len(all), all)
	}
	if len(all) < len(collapsed) {
		t.Fatalf("uncollapsed plan shorter than collapsed: %d < %d", len(all), len(collapsed))
	}
}

func TestSelect_Idempotent(t *testing.T) {
	entries := ParseValidVersions([]string{"v2.7.16", "v2.6.1", "v2.6.0"})

	first, err := Select(entries, ">=2.6.0", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := Select(entries, ">=2.6.0", true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("plans differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Tag != second[i].Tag {
			t.Fatalf("plans differ at %d: %s vs %s", i, first[i].Tag, second[i].Tag)
		}
	}
}

func TestSelect_InvalidFilter(t *testing.T) {
	entries := ParseValidVersions([]string{"v1.0.0"})
	if _, err := Select(entries, ">>nope", true); err == nil {
		t.Fatal("expected error for invalid range expression")
	}
}

func TestFindExact(t *testing.T) {
	entries := ParseValidVersions([]string{"v2.7.16", "v2.6.1"})

	e, ok := FindExact(entries, entries[1].Version)
	if !ok || e.Tag != "v2.6.1" {
		t.Fatalf("expected to find v2.6.1, got %#v ok=%t", e, ok)
	}

	missing := ParseValidVersions([]string{"v9.9.9"})
	if _, ok := FindExact(entries, missing[0].Version); ok {
		t.Fatal("expected lookup miss for 9.9.9")
	}
}

func TestListTags_ReadsRepositoryTags(t *testing.T) {
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README"), []byte("firmware\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := wt.Add("README"); err != nil {
		t.Fatalf("add: %v", err)
	}
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	for _, tag := range []string{"v1.0.0", "v1.1.0", "notaversion"} {
		if _, err := repo.CreateTag(tag, hash, nil); err != nil {
			t.Fatalf("tag %s: %v", tag, err)
		}
	}

	tags, err := ListTags(dir)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(tags) != 3 {
		t.Fatalf("expected 3 tags, got %d: %#v", len(tags), tags)
	}

	seen := map[string]bool{}
	for _, tag := range tags {
		seen[tag] = true
	}
	for _, want := range []string{"v1.0.0", "v1.1.0", "notaversion"} {
		if !seen[want] {
			t.Fatalf("missing tag %s in %#v", want, tags)
		}
	}
}

func TestListTags_MissingCheckout(t *testing.T) {
	_, err := ListTags(filepath.Join(t.TempDir(), "firmware"))
	if err == nil {
		t.Fatal("expected error for missing checkout")
	}
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}
