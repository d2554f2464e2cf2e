package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"villager/internal/archive"
	"villager/internal/testsupport"
)

func TestCatalogListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"catalog", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog list: %v", err)
	}
	requireContains(t, out, "No packages converted yet")

	out, _, err = runCLI(t, []string{"catalog", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog list --json: %v", err)
	}
	requireContains(t, out, "[]")
}

func TestCatalogListTable(t *testing.T) {
	env := setupCLITestEnv(t)
	source := env.writeSample(t, "listed")
	if _, _, err := runCLI(t, []string{"convert", source}, env.configPath); err != nil {
		t.Fatalf("convert: %v", err)
	}

	out, _, err := runCLI(t, []string{"catalog", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog list: %v", err)
	}
	requireContains(t, out, "Village of Tests")
	requireContains(t, out, env.packageDir("listed"))
}

func TestCatalogRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	source := env.writeSample(t, "removed")
	if _, _, err := runCLI(t, []string{"convert", source}, env.configPath); err != nil {
		t.Fatalf("convert: %v", err)
	}
	dir := env.packageDir("removed")

	out, _, err := runCLI(t, []string{"catalog", "remove", dir}, env.configPath)
	if err != nil {
		t.Fatalf("catalog remove: %v", err)
	}
	requireContains(t, out, "Removed")
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("package files should survive without --delete-files: %v", err)
	}

	if _, _, err := runCLI(t, []string{"catalog", "remove", dir}, env.configPath); err == nil {
		t.Fatal("expected error removing an unknown package")
	}
}

func TestCatalogRemoveDeletesFiles(t *testing.T) {
	env := setupCLITestEnv(t)
	source := env.writeSample(t, "purged")
	if _, _, err := runCLI(t, []string{"convert", source}, env.configPath); err != nil {
		t.Fatalf("convert: %v", err)
	}
	dir := env.packageDir("purged")

	out, _, err := runCLI(t, []string{"catalog", "remove", "--delete-files", dir}, env.configPath)
	if err != nil {
		t.Fatalf("catalog remove: %v", err)
	}
	requireContains(t, out, "Deleted")
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected package dir removed, stat err = %v", err)
	}
}

func TestCatalogRemoveKeepsUnrelatedFiles(t *testing.T) {
	env := setupCLITestEnv(t)
	source := env.writeSample(t, "shared")
	outDir := filepath.Join(env.baseDir, "documents")
	notes := testsupport.WriteArchive(t, outDir, "notes.txt", "unrelated")

	if _, _, err := runCLI(t, []string{"convert", "--out", outDir, source}, env.configPath); err != nil {
		t.Fatalf("convert: %v", err)
	}
	out, _, err := runCLI(t, []string{"catalog", "remove", "--delete-files", outDir}, env.configPath)
	if err != nil {
		t.Fatalf("catalog remove: %v", err)
	}
	requireContains(t, out, "kept "+outDir)

	data, err := os.ReadFile(notes)
	if err != nil || string(data) != "unrelated" {
		t.Fatalf("unrelated file lost: %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Join(outDir, archive.VillageFile)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("village.xml should be deleted, stat err = %v", err)
	}
}

func TestCatalogCheckNamedPackage(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, name := range []string{"chosen", "broken"} {
		if _, _, err := runCLI(t, []string{"convert", env.writeSample(t, name)}, env.configPath); err != nil {
			t.Fatalf("convert %s: %v", name, err)
		}
	}
	if err := os.RemoveAll(env.packageDir("broken")); err != nil {
		t.Fatalf("remove package: %v", err)
	}

	out, _, err := runCLI(t, []string{"catalog", "check", env.packageDir("chosen")}, env.configPath)
	if err != nil {
		t.Fatalf("catalog check chosen: %v", err)
	}
	requireContains(t, out, "chosen:")
	if strings.Contains(out, "broken") {
		t.Fatalf("only the named package should be checked, got %q", out)
	}

	_, _, err = runCLI(t, []string{"catalog", "check", filepath.Join(env.baseDir, "unknown")}, env.configPath)
	if err == nil {
		t.Fatal("expected error for a package outside the catalog")
	}
	requireContains(t, err.Error(), "not in the catalog")
}

func TestCatalogCheck(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, name := range []string{"healthy", "vanished"} {
		if _, _, err := runCLI(t, []string{"convert", env.writeSample(t, name)}, env.configPath); err != nil {
			t.Fatalf("convert %s: %v", name, err)
		}
	}

	out, _, err := runCLI(t, []string{"catalog", "check"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog check: %v", err)
	}
	requireContains(t, out, "[OK] readable")

	if err := os.RemoveAll(env.packageDir("vanished")); err != nil {
		t.Fatalf("remove package: %v", err)
	}
	out, _, err = runCLI(t, []string{"catalog", "check"}, env.configPath)
	if err == nil {
		t.Fatal("expected check to fail for a vanished package")
	}
	requireContains(t, err.Error(), "1 of 2 packages")
	requireContains(t, out, "[WARN] missing")
	requireContains(t, out, "[OK] readable")
}
