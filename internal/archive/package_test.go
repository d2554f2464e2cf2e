package archive_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"villager/internal/archive"
	"villager/internal/story"
	"villager/internal/testsupport"
)

const packageVillage = `<?xml version="1.0" encoding="UTF-8"?>
<village xmlns="http://jindolf.osdn.jp/xml/ns/501" xmlns:xlink="http://www.w3.org/1999/xlink" fullName="Packed" state="epilogue">
  <avatarList><avatar avatarId="a" fullName="Anna"/><avatar avatarId="b" fullName="Bert"/></avatarList>
  <period type="prologue" day="0" xlink:type="simple" xlink:href="period-0.xml"/>
  <period type="progress" day="1" xlink:type="simple" xlink:href="period-1.xml"/>
</village>
`

const packagePeriod0 = `<?xml version="1.0" encoding="UTF-8"?>
<period xmlns="http://jindolf.osdn.jp/xml/ns/501" type="prologue" day="0">
  <talk type="public" avatarId="a" time="09:00:00"><li>morning</li></talk>
</period>
`

const packagePeriod1 = `<?xml version="1.0" encoding="UTF-8"?>
<period xmlns="http://jindolf.osdn.jp/xml/ns/501" type="progress" day="1">
  <talk type="public" avatarId="b" time="10:00:00"><li>noon</li></talk>
  <playerList><playerInfo avatarId="b" role="hunter"/></playerList>
</period>
`

func writePackage(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testsupport.WriteArchive(t, dir, archive.VillageFile, packageVillage)
	testsupport.WriteArchive(t, dir, archive.PeriodFile(0), packagePeriod0)
	testsupport.WriteArchive(t, dir, archive.PeriodFile(1), packagePeriod1)
	return dir
}

func TestOpenPackageDefersPeriods(t *testing.T) {
	dir := writePackage(t)

	st, err := archive.OpenPackage(dir)
	if err != nil {
		t.Fatalf("OpenPackage: %v", err)
	}
	if st.Name != "Packed" || st.Cast.Len() != 2 || len(st.Periods) != 2 {
		t.Fatalf("unexpected story: name=%q avatars=%d periods=%d", st.Name, st.Cast.Len(), len(st.Periods))
	}

	p := st.Periods[1]
	if p.IsReady() {
		t.Fatal("package period should start unready")
	}
	if _, err := p.Elements(); !errors.Is(err, story.ErrNotReady) {
		t.Fatalf("Elements before Ready = %v, want ErrNotReady", err)
	}
	if st.Cast.Role("b") != story.RoleUnknown {
		t.Fatal("role must stay unknown until the period loads")
	}

	if err := p.Ready(); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if err := p.Ready(); err != nil {
		t.Fatalf("second Ready: %v", err)
	}
	elements := elementsOf(t, p)
	if len(elements) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(elements))
	}
	talk := elements[0].(*story.Talk)
	if talk.Speaker != "b" || story.Text(talk) != "noon" || story.PeriodIndexOf(talk) != 1 {
		t.Fatalf("unexpected talk %+v", talk)
	}
	if st.Cast.Role("b") != story.RoleHunter {
		t.Fatalf("role after load = %v", st.Cast.Role("b"))
	}
	if st.Periods[0].IsReady() {
		t.Fatal("loading one period must not load the others")
	}
}

func TestPackagePeriodLoadFailureIsRetryable(t *testing.T) {
	dir := writePackage(t)
	periodPath := filepath.Join(dir, archive.PeriodFile(0))
	if err := os.Rename(periodPath, periodPath+".bak"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	st, err := archive.OpenPackage(dir)
	if err != nil {
		t.Fatalf("OpenPackage: %v", err)
	}
	p := st.Periods[0]
	if err := p.Ready(); err == nil {
		t.Fatal("expected error for missing period file")
	}
	if p.IsReady() {
		t.Fatal("failed load must leave the period unready")
	}

	if err := os.Rename(periodPath+".bak", periodPath); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := p.Ready(); err != nil {
		t.Fatalf("retry Ready: %v", err)
	}
	if got := elementsOf(t, p); len(got) != 1 {
		t.Fatalf("expected 1 element after retry, got %d", len(got))
	}
}

func TestPackagePeriodWithWrongRootFails(t *testing.T) {
	dir := writePackage(t)
	testsupport.WriteArchive(t, dir, archive.PeriodFile(0), `<village xmlns="http://jindolf.osdn.jp/xml/ns/501"/>`)

	st, err := archive.OpenPackage(dir)
	if err != nil {
		t.Fatalf("OpenPackage: %v", err)
	}
	if err := st.Periods[0].Ready(); !errors.Is(err, archive.ErrNotArchive) {
		t.Fatalf("Ready = %v, want ErrNotArchive", err)
	}
}

func TestPackageLinkMustStayInsideDirectory(t *testing.T) {
	dir := t.TempDir()
	testsupport.WriteArchive(t, dir, archive.VillageFile, `<village xmlns="http://jindolf.osdn.jp/xml/ns/501" xmlns:xlink="http://www.w3.org/1999/xlink">
<period type="prologue" day="0" xlink:href="../elsewhere.xml"/></village>`)

	if _, err := archive.OpenPackage(dir); !errors.Is(err, archive.ErrMalformed) {
		t.Fatalf("OpenPackage = %v, want ErrMalformed", err)
	}
}

func TestOpenDetectsPackagesAndFiles(t *testing.T) {
	dir := writePackage(t)
	st, err := archive.Open(dir)
	if err != nil {
		t.Fatalf("Open dir: %v", err)
	}
	if st.Periods[0].IsReady() {
		t.Fatal("directory should open as a lazy package")
	}

	file := testsupport.WriteArchive(t, t.TempDir(), "village.xml", testsupport.SampleArchive)
	st, err = archive.Open(file)
	if err != nil {
		t.Fatalf("Open file: %v", err)
	}
	if !st.Periods[0].IsReady() {
		t.Fatal("archive file should parse eagerly")
	}

	if _, err := archive.Open(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestPrefetchLoadsEveryPackagePeriod(t *testing.T) {
	st, err := archive.OpenPackage(writePackage(t))
	if err != nil {
		t.Fatalf("OpenPackage: %v", err)
	}
	if err := st.Prefetch(context.Background(), 2); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	for _, p := range st.Periods {
		if !p.IsReady() {
			t.Fatalf("period %d not ready after prefetch", p.Day)
		}
	}
}
