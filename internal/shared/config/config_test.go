package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.ImageRepository != "fwbox/toolchain" {
		t.Fatalf("unexpected default repository: %s", cfg.ImageRepository)
	}
	if cfg.BuildNumber != 1 {
		t.Fatalf("unexpected default build number: %d", cfg.BuildNumber)
	}
	if cfg.FirmwareDir != "firmware" {
		t.Fatalf("unexpected default firmware dir: %s", cfg.FirmwareDir)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("FWBOX_IMAGE_REPOSITORY", "acme/toolchain")
	t.Setenv("FWBOX_BUILD_NUMBER", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.ImageRepository != "acme/toolchain" {
		t.Fatalf("override not applied: %s", cfg.ImageRepository)
	}
	if cfg.BuildNumber != 7 {
		t.Fatalf("override not applied: %d", cfg.BuildNumber)
	}
}

func TestLoad_RejectsInvalidBuildNumber(t *testing.T) {
	t.Setenv("FWBOX_BUILD_NUMBER", "0")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for build number 0")
	}
}
