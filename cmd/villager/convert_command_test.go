package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"villager/internal/archive"
	"villager/internal/catalog"
	"villager/internal/pack"
	"villager/internal/testsupport"
)

func TestConvertWritesPackageAndCatalogEntry(t *testing.T) {
	env := setupCLITestEnv(t)
	source := env.writeSample(t, "village-1024")

	out, _, err := runCLI(t, []string{"convert", source}, env.configPath)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	requireContains(t, out, "village-1024.xml")
	requireContains(t, out, "ok")

	dir := env.packageDir("village-1024")
	for _, name := range []string{archive.VillageFile, archive.PeriodFile(0), archive.PeriodFile(1), archive.PeriodFile(2)} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s in package: %v", name, err)
		}
	}

	out, _, err = runCLI(t, []string{"catalog", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("catalog list: %v", err)
	}
	var entries []catalog.Entry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode catalog: %v\n%s", err, out)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 catalog entry, got %d", len(entries))
	}
	got := entries[0]
	if got.Dir != dir || got.SourcePath != source {
		t.Fatalf("unexpected paths: dir=%q source=%q", got.Dir, got.SourcePath)
	}
	if got.VillageName != "Village of Tests" || got.VillageID != "1024" || got.State != "gameover" {
		t.Fatalf("unexpected village fields: %+v", got)
	}
	if got.Periods != 3 || got.Elements != 12 || got.RunID == "" {
		t.Fatalf("unexpected counts: %+v", got)
	}
}

func TestConvertJSONOutput(t *testing.T) {
	env := setupCLITestEnv(t)
	source := env.writeSample(t, "sample")
	outDir := filepath.Join(env.baseDir, "custom")

	out, _, err := runCLI(t, []string{"convert", "--json", "--out", outDir, source}, env.configPath)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	var outcomes []convertOutcome
	if err := json.Unmarshal([]byte(out), &outcomes); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(outcomes) != 1 || outcomes[0].Result == nil {
		t.Fatalf("unexpected outcomes: %s", out)
	}
	res := outcomes[0].Result
	if res.Dir != outDir || len(res.Periods) != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := os.Stat(filepath.Join(outDir, archive.VillageFile)); err != nil {
		t.Fatalf("expected package under --out: %v", err)
	}
}

func TestConvertRefusesExistingPackageUnlessOverwrite(t *testing.T) {
	env := setupCLITestEnv(t)
	source := env.writeSample(t, "again")

	if _, _, err := runCLI(t, []string{"convert", source}, env.configPath); err != nil {
		t.Fatalf("first convert: %v", err)
	}
	_, _, err := runCLI(t, []string{"convert", source}, env.configPath)
	if err == nil {
		t.Fatal("expected second convert to fail")
	}
	if !errors.Is(err, pack.ErrPackageExists) {
		t.Fatalf("second convert = %v, want ErrPackageExists", err)
	}

	if _, _, err := runCLI(t, []string{"convert", "--overwrite", source}, env.configPath); err != nil {
		t.Fatalf("convert --overwrite: %v", err)
	}
}

func TestConvertOverwriteFromConfig(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithOverwrite(true))
	source := env.writeSample(t, "configured")

	for i := range 2 {
		if _, _, err := runCLI(t, []string{"convert", source}, env.configPath); err != nil {
			t.Fatalf("convert #%d: %v", i+1, err)
		}
	}
}

func TestConvertReportsEachFailure(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithJobs(2))
	good := env.writeSample(t, "good")
	bad := testsupport.WriteArchive(t, env.archiveDir, "bad.xml", "<html><body/></html>")

	out, _, err := runCLI(t, []string{"convert", good, bad}, env.configPath)
	if err == nil {
		t.Fatal("expected conversion failure")
	}
	requireContains(t, err.Error(), "1 of 2 conversions failed")
	requireContains(t, out, "good.xml")
	requireContains(t, out, "bad.xml")

	store := testsupport.MustOpenCatalog(t, env.cfg)
	entry, err := store.Get(t.Context(), env.packageDir("good"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry == nil {
		t.Fatal("successful conversion should be catalogued")
	}
	if _, err := os.Stat(filepath.Join(env.packageDir("bad"), archive.VillageFile)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failed conversion must not leave village.xml, stat err = %v", err)
	}
}

func TestConvertOutRequiresSingleArchive(t *testing.T) {
	env := setupCLITestEnv(t)
	a := env.writeSample(t, "a")
	b := env.writeSample(t, "b")

	_, _, err := runCLI(t, []string{"convert", "--out", env.baseDir, a, b}, env.configPath)
	if err == nil {
		t.Fatal("expected --out with two archives to fail")
	}
	requireContains(t, err.Error(), "--out")
}
