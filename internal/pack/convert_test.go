package pack_test

import (
	"context"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/japanese"

	"villager/internal/archive"
	"villager/internal/pack"
	"villager/internal/story"
	"villager/internal/testsupport"
)

func convertString(t *testing.T, doc, dir string, opts ...pack.Option) *pack.Result {
	t.Helper()
	res, err := pack.Convert(context.Background(), strings.NewReader(doc), dir, opts...)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	return res
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestConvertRoundTripMatchesDirectParse(t *testing.T) {
	direct, err := archive.Parse(strings.NewReader(testsupport.SampleArchive))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "pkg")
	convertString(t, testsupport.SampleArchive, dir)
	packed, err := archive.OpenPackage(dir)
	if err != nil {
		t.Fatalf("OpenPackage: %v", err)
	}
	for _, p := range packed.Periods {
		if p.IsReady() {
			t.Fatalf("period %d loaded before it was requested", p.Day)
		}
	}
	if err := packed.Prefetch(context.Background(), 3); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}

	if packed.Name != direct.Name || packed.State != direct.State || packed.VillageID != direct.VillageID {
		t.Fatalf("village header differs: %q/%v vs %q/%v", packed.Name, packed.State, direct.Name, direct.State)
	}
	if !reflect.DeepEqual(packed.Cast.Avatars(), direct.Cast.Avatars()) {
		t.Fatalf("cast differs:\n%+v\n%+v", packed.Cast.Avatars(), direct.Cast.Avatars())
	}
	if len(packed.Periods) != len(direct.Periods) {
		t.Fatalf("period count %d, want %d", len(packed.Periods), len(direct.Periods))
	}
	for i := range direct.Periods {
		want, _ := direct.Periods[i].Elements()
		got, err := packed.Periods[i].Elements()
		if err != nil {
			t.Fatalf("period %d: %v", i, err)
		}
		if packed.Periods[i].Kind != direct.Periods[i].Kind || packed.Periods[i].Day != direct.Periods[i].Day {
			t.Fatalf("period %d header differs", i)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("period %d elements differ:\n%#v\n%#v", i, got, want)
		}
	}
	for _, a := range direct.Cast.Avatars() {
		if packed.Cast.Role(a.ID) != direct.Cast.Role(a.ID) {
			t.Fatalf("role of %s differs", a.ID)
		}
	}
}

func TestConvertResult(t *testing.T) {
	dir := t.TempDir()
	res := convertString(t, testsupport.SampleArchive, dir)

	if _, err := uuid.Parse(res.RunID); err != nil {
		t.Fatalf("run id %q is not a uuid: %v", res.RunID, err)
	}
	if res.Dir != dir || res.VillageName != "Village of Tests" || res.VillageID != "1024" || res.State != "gameover" {
		t.Fatalf("unexpected result header %+v", res)
	}
	want := []pack.PeriodFile{
		{Day: 0, Kind: "prologue", File: "period-0.xml", Elements: 4},
		{Day: 1, Kind: "progress", File: "period-1.xml", Elements: 5},
		{Day: 2, Kind: "epilogue", File: "period-2.xml", Elements: 3},
	}
	if !reflect.DeepEqual(res.Periods, want) {
		t.Fatalf("periods = %+v", res.Periods)
	}
	if res.Elements != 12 {
		t.Fatalf("elements = %d, want 12", res.Elements)
	}
}

func TestConvertWritesLinkedStubs(t *testing.T) {
	dir := t.TempDir()
	convertString(t, testsupport.SampleArchive, dir)

	village := readFile(t, filepath.Join(dir, archive.VillageFile))
	if !strings.HasPrefix(village, `<?xml version="1.0" encoding="UTF-8"?>`) {
		t.Fatalf("village.xml lacks prolog: %.60s", village)
	}
	for _, want := range []string{
		`<period type="progress" day="1" xmlns:xlink="http://www.w3.org/1999/xlink" xlink:type="simple" xlink:href="period-1.xml"/>`,
		`<avatar avatarId="gerd"`,
	} {
		if !strings.Contains(village, want) {
			t.Fatalf("village.xml missing %q:\n%s", want, village)
		}
	}
	if strings.Contains(village, "sample village") {
		t.Fatal("comments outside the root element are not copied")
	}
	if strings.Contains(village, "Tonight.") {
		t.Fatal("period content leaked into village.xml")
	}
}

func TestConvertPeriodFilesAreSelfContained(t *testing.T) {
	dir := t.TempDir()
	convertString(t, testsupport.SampleArchive, dir)

	content := readFile(t, filepath.Join(dir, archive.PeriodFile(1)))
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<period xmlns="http://jindolf.osdn.jp/xml/ns/501" xmlns:ext="urn:example:annotations" type="progress" day="1">`,
		`<ext:note ext:by="editor">annotation<ext:inner/></ext:note>`,
		`<li>Bite <rawdata><b>Gerd</b></rawdata>!</li>`,
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("period-1.xml missing %q:\n%s", want, content)
		}
	}

	dec := xml.NewDecoder(strings.NewReader(content))
	for {
		tok, err := dec.Token()
		if err != nil {
			t.Fatalf("period file did not contain ext:note: %v", err)
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == "note" {
			if start.Name.Space != "urn:example:annotations" {
				t.Fatalf("ext prefix resolved to %q", start.Name.Space)
			}
			break
		}
	}

	prologue := readFile(t, filepath.Join(dir, archive.PeriodFile(0)))
	if !strings.Contains(prologue, "<li>Second &amp; last</li>") {
		t.Fatalf("character data not re-escaped:\n%s", prologue)
	}
}

func TestConvertReusesBoundXLinkPrefix(t *testing.T) {
	doc := `<village xmlns="http://jindolf.osdn.jp/xml/ns/501" xmlns:xl="http://www.w3.org/1999/xlink">
<period type="prologue" day="0"><talk type="public" time="00:00:00"><li>x</li></talk></period></village>`
	dir := t.TempDir()
	convertString(t, doc, dir)

	village := readFile(t, filepath.Join(dir, archive.VillageFile))
	if !strings.Contains(village, `<period type="prologue" day="0" xl:type="simple" xl:href="period-0.xml"/>`) {
		t.Fatalf("expected stub to reuse xl prefix:\n%s", village)
	}
	period := readFile(t, filepath.Join(dir, archive.PeriodFile(0)))
	if !strings.Contains(period, `xmlns:xl="http://www.w3.org/1999/xlink"`) {
		t.Fatalf("inherited binding not replicated:\n%s", period)
	}
}

func TestConvertAvoidsClashingXLinkPrefix(t *testing.T) {
	doc := `<village xmlns="http://jindolf.osdn.jp/xml/ns/501" xmlns:xlink="urn:not-xlink">
<period type="prologue" day="0"/></village>`
	dir := t.TempDir()
	convertString(t, doc, dir)

	village := readFile(t, filepath.Join(dir, archive.VillageFile))
	if !strings.Contains(village, `xmlns:xlink2="http://www.w3.org/1999/xlink" xlink2:type="simple" xlink2:href="period-0.xml"`) {
		t.Fatalf("expected fresh prefix:\n%s", village)
	}
	st, err := archive.OpenPackage(dir)
	if err != nil {
		t.Fatalf("OpenPackage: %v", err)
	}
	if err := st.Periods[0].Ready(); err != nil {
		t.Fatalf("Ready: %v", err)
	}
}

func TestConvertTranscodesToUTF8(t *testing.T) {
	doc := `<?xml version="1.0" encoding="Shift_JIS"?>
<village xmlns="http://jindolf.sourceforge.jp/xml/ns/401" fullName="人狼の村">
<period type="prologue" day="0"><talk type="public" time="00:00:00"><li>こんにちは</li></talk></period></village>`
	encoded, err := japanese.ShiftJIS.NewEncoder().String(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	dir := t.TempDir()
	res := convertString(t, encoded, dir)
	if res.VillageName != "人狼の村" {
		t.Fatalf("village name = %q", res.VillageName)
	}
	if period := readFile(t, filepath.Join(dir, archive.PeriodFile(0))); !strings.Contains(period, "こんにちは") {
		t.Fatalf("period text not utf-8:\n%s", period)
	}
}

func TestConvertRejectsBusyDirectory(t *testing.T) {
	dir := t.TempDir()
	lock := flock.New(filepath.Join(dir, pack.LockFile))
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: locked=%v err=%v", locked, err)
	}
	defer lock.Unlock()

	_, err = pack.Convert(context.Background(), strings.NewReader(testsupport.SampleArchive), dir)
	if !errors.Is(err, pack.ErrPackageBusy) {
		t.Fatalf("Convert = %v, want ErrPackageBusy", err)
	}
}

func TestConvertOverwrite(t *testing.T) {
	dir := t.TempDir()
	convertString(t, testsupport.SampleArchive, dir)

	_, err := pack.Convert(context.Background(), strings.NewReader(testsupport.SampleArchive), dir)
	if !errors.Is(err, pack.ErrPackageExists) {
		t.Fatalf("second Convert = %v, want ErrPackageExists", err)
	}

	single := `<village xmlns="http://jindolf.osdn.jp/xml/ns/501" fullName="Smaller"><period type="prologue" day="0"/></village>`
	convertString(t, single, dir, pack.WithOverwrite(true))

	for _, stale := range []string{archive.PeriodFile(1), archive.PeriodFile(2)} {
		if _, err := os.Stat(filepath.Join(dir, stale)); !os.IsNotExist(err) {
			t.Fatalf("stale %s should be removed: %v", stale, err)
		}
	}
	st, err := archive.OpenPackage(dir)
	if err != nil {
		t.Fatalf("OpenPackage: %v", err)
	}
	if st.Name != "Smaller" || len(st.Periods) != 1 {
		t.Fatalf("unexpected package after overwrite: %q, %d periods", st.Name, len(st.Periods))
	}
}

func TestConvertInstallsWorldReadableFiles(t *testing.T) {
	dir := t.TempDir()
	res := convertString(t, testsupport.SampleArchive, dir)

	names := []string{archive.VillageFile}
	for _, p := range res.Periods {
		names = append(names, p.File)
	}
	for _, name := range names {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
		if perm := info.Mode().Perm(); perm != pack.FileMode {
			t.Fatalf("%s mode = %v, want %v", name, perm, pack.FileMode)
		}
	}
}

func TestConvertRollsBackWhenInstallFails(t *testing.T) {
	dir := t.TempDir()
	convertString(t, testsupport.SampleArchive, dir)
	before := readFile(t, filepath.Join(dir, archive.PeriodFile(1)))

	// A non-empty directory in place of village.xml makes the final rename fail
	// after every period file has been installed.
	villagePath := filepath.Join(dir, archive.VillageFile)
	if err := os.Remove(villagePath); err != nil {
		t.Fatalf("remove village.xml: %v", err)
	}
	testsupport.WriteArchive(t, villagePath, "blocker", "x")

	changed := strings.Replace(testsupport.SampleArchive, "Tonight.", "Changed.", 1)
	_, err := pack.Convert(context.Background(), strings.NewReader(changed), dir, pack.WithOverwrite(true))
	if err == nil {
		t.Fatal("expected install failure")
	}

	if got := readFile(t, filepath.Join(dir, archive.PeriodFile(1))); got != before {
		t.Fatalf("period file not restored:\n%s", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") || strings.HasSuffix(e.Name(), ".bak") {
			t.Fatalf("staging file %s left behind", e.Name())
		}
	}
}

func TestConvertFailureLeavesDirectoryUntouched(t *testing.T) {
	cases := map[string]struct {
		doc  string
		want error
	}{
		"unclosed":      {doc: `<village xmlns="http://jindolf.osdn.jp/xml/ns/501"><period type="prologue" day="0"><talk>`, want: archive.ErrMalformed},
		"mismatched":    {doc: `<village xmlns="http://jindolf.osdn.jp/xml/ns/501"><period day="0"></village>`, want: archive.ErrMalformed},
		"duplicate day": {doc: `<village xmlns="http://jindolf.osdn.jp/xml/ns/501"><period day="1"/><period day="1"/></village>`, want: archive.ErrMalformed},
		"not archive":   {doc: `<html/>`, want: archive.ErrNotArchive},
		"empty":         {doc: ``, want: archive.ErrNotArchive},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			_, err := pack.Convert(context.Background(), strings.NewReader(tc.doc), dir)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Convert = %v, want %v", err, tc.want)
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatalf("ReadDir: %v", err)
			}
			for _, e := range entries {
				if e.Name() != pack.LockFile {
					t.Fatalf("unexpected file %s left behind", e.Name())
				}
			}
		})
	}
}

func TestConvertRejectsPackagedVillage(t *testing.T) {
	src := t.TempDir()
	convertString(t, testsupport.SampleArchive, src)

	_, err := pack.Convert(context.Background(), strings.NewReader(readFile(t, filepath.Join(src, archive.VillageFile))), t.TempDir())
	if !errors.Is(err, archive.ErrMalformed) {
		t.Fatalf("Convert of a village.xml = %v, want ErrMalformed", err)
	}
}

func TestConvertHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	_, err := pack.Convert(ctx, strings.NewReader(testsupport.SampleArchive), dir)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Convert = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(filepath.Join(dir, archive.VillageFile)); !os.IsNotExist(err) {
		t.Fatal("cancelled conversion must not install village.xml")
	}
}

func TestPackagePeriodsHaveNoRoleUntilLoaded(t *testing.T) {
	dir := t.TempDir()
	convertString(t, testsupport.SampleArchive, dir)

	st, err := archive.OpenPackage(dir)
	if err != nil {
		t.Fatalf("OpenPackage: %v", err)
	}
	if st.Cast.Role("otto") != story.RoleUnknown {
		t.Fatal("role known before the epilogue loaded")
	}
	if err := st.Periods[2].Ready(); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if st.Cast.Role("otto") != story.RoleWolf {
		t.Fatalf("role after epilogue = %v", st.Cast.Role("otto"))
	}
}
