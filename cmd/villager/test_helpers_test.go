package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"villager/internal/config"
	"villager/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	archiveDir string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)

	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(base, "villager.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		configPath: configPath,
		baseDir:    base,
		archiveDir: filepath.Join(base, "archives"),
	}
}

// writeSample stores the sample archive as <name>.xml and returns its path.
func (e *cliTestEnv) writeSample(t *testing.T, name string) string {
	t.Helper()
	return testsupport.WriteArchive(t, e.archiveDir, name+".xml", testsupport.SampleArchive)
}

func (e *cliTestEnv) packageDir(name string) string {
	return filepath.Join(e.cfg.Paths.LibraryDir, name)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\nlibrary_dir = %q\nlog_dir = %q\ncatalog_path = %q\n\n[convert]\noverwrite = %t\njobs = %d\n\n[archive]\nprefetch_workers = %d\n\n[logging]\nlevel = \"error\"\nformat = \"json\"\n",
		cfg.Paths.LibraryDir,
		cfg.Paths.LogDir,
		cfg.Paths.CatalogPath,
		cfg.Convert.Overwrite,
		cfg.Convert.Jobs,
		cfg.Archive.PrefetchWorkers,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
