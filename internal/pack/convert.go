package pack

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"villager/internal/archive"
	"villager/internal/logging"
	"villager/internal/schema"
)

var (
	// ErrPackageBusy means another conversion holds the directory lock.
	ErrPackageBusy = errors.New("package directory is busy")
	// ErrPackageExists means the directory already holds a package and
	// overwriting was not requested.
	ErrPackageExists = errors.New("package already exists")
)

const (
	// LockFile is created in every package directory to serialize conversions.
	LockFile = ".villager.lock"
	// FileMode is the permission of every installed package file.
	FileMode os.FileMode = 0o644
)

// PeriodFile describes one written period document.
type PeriodFile struct {
	Day      int    `json:"day"`
	Kind     string `json:"kind"`
	File     string `json:"file"`
	Elements int    `json:"elements"`
}

// Result summarizes a finished conversion.
type Result struct {
	RunID       string       `json:"run_id"`
	Dir         string       `json:"dir"`
	VillageName string       `json:"village_name"`
	VillageID   string       `json:"village_id,omitempty"`
	State       string       `json:"state"`
	Periods     []PeriodFile `json:"periods"`
	Elements    int          `json:"elements"`
}

// Option configures Convert.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	overwrite bool
}

// WithLogger routes conversion logs to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logging.NewComponentLogger(logger, "pack")
		}
	}
}

// WithOverwrite allows replacing an existing package in the target directory.
func WithOverwrite(overwrite bool) Option {
	return func(o *options) {
		o.overwrite = overwrite
	}
}

// Convert reads an archive from r and writes it as a package into dir. Files
// are staged under temporary names and renamed into place only after the
// whole archive has been read. A failed conversion leaves dir as it was;
// when installing the staged files itself fails, files already moved are
// rolled back on a best-effort basis.
func Convert(ctx context.Context, r io.Reader, dir string, opts ...Option) (*Result, error) {
	o := options{logger: logging.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create package directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, LockFile))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire package lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrPackageBusy, dir)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	if _, err := os.Stat(filepath.Join(dir, archive.VillageFile)); err == nil && !o.overwrite {
		return nil, fmt.Errorf("%w: %s", ErrPackageExists, dir)
	}

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	c := &conversion{
		ctx:    ctx,
		dir:    dir,
		logger: logging.WithContext(ctx, o.logger),
		days:   make(map[int]bool),
		result: &Result{RunID: runID, Dir: dir},
	}
	defer c.cleanup()

	if err := c.stream(r); err != nil {
		return nil, err
	}
	if err := c.commit(o.overwrite); err != nil {
		return nil, err
	}

	c.logger.Info("package written",
		logging.String("village", c.result.VillageName),
		logging.Int("periods", len(c.result.Periods)),
		logging.Int("elements", c.result.Elements),
		logging.String("dir", dir),
	)
	return c.result, nil
}

type staged struct {
	tmp   string
	final string
}

// conversion is the state of one streaming pass.
type conversion struct {
	ctx    context.Context
	dir    string
	logger *slog.Logger
	scope  scope

	village     *docWriter
	villageFile *os.File
	period      *docWriter
	periodFile  *os.File
	periodDepth int
	current     *PeriodFile

	days      map[int]bool
	staged    []staged
	committed bool
	result    *Result
}

func (c *conversion) stream(r io.Reader) error {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = archive.CharsetReader

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			if c.village == nil {
				return fmt.Errorf("%w: empty document", archive.ErrNotArchive)
			}
			return fmt.Errorf("%w: unexpected end of document", archive.ErrMalformed)
		}
		if err != nil {
			return decodeErr(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if err := c.startElement(t); err != nil {
				return err
			}
		case xml.EndElement:
			done, err := c.endElement(t)
			if err != nil || done {
				return err
			}
		case xml.CharData:
			if c.scope.depth() > 0 {
				c.out().text(t)
			}
		case xml.Comment:
			if c.scope.depth() > 0 {
				c.out().comment(t)
			}
		case xml.ProcInst:
			if c.scope.depth() > 0 {
				c.out().procInst(t)
			}
		}
	}
}

func (c *conversion) out() *docWriter {
	if c.period != nil {
		return c.period
	}
	return c.village
}

func (c *conversion) startElement(t xml.StartElement) error {
	c.scope.push(t)
	depth := c.scope.depth()
	cat := schema.Classify(c.scope.resolve(t.Name))

	switch {
	case depth == 1:
		if cat != schema.Village {
			return fmt.Errorf("%w: root element is %s", archive.ErrNotArchive, rawName(t.Name))
		}
		f, err := c.createTemp(archive.VillageFile)
		if err != nil {
			return err
		}
		c.villageFile = f
		c.village = newDocWriter(f)
		c.village.start(t.Name, t.Attr)
		c.result.VillageName = rawAttr(t, "fullName")
		c.result.VillageID = rawAttr(t, "vid")
		c.result.State = rawAttr(t, "state")
		return nil
	case depth == 2 && cat == schema.Period:
		return c.openPeriod(t)
	default:
		if c.period != nil && depth == c.periodDepth+1 && (cat == schema.Talk || cat == schema.Assault || schema.IsEvent(cat)) {
			c.current.Elements++
		}
		c.out().start(t.Name, t.Attr)
		return nil
	}
}

func (c *conversion) endElement(t xml.EndElement) (bool, error) {
	open, ok := c.scope.pop()
	if !ok {
		return false, fmt.Errorf("%w: unexpected </%s>", archive.ErrMalformed, rawName(t.Name))
	}
	if open.name != t.Name {
		return false, fmt.Errorf("%w: element <%s> closed by </%s>", archive.ErrMalformed, rawName(open.name), rawName(t.Name))
	}

	switch depth := c.scope.depth(); {
	case depth == 0:
		c.village.end(t.Name)
		return true, nil
	case c.period != nil && depth+1 == c.periodDepth:
		c.period.end(t.Name)
		c.village.end(t.Name)
		return false, c.closePeriod()
	default:
		c.out().end(t.Name)
		return false, nil
	}
}

// openPeriod leaves a linked stub in the village document and redirects the
// period subtree into its own file.
func (c *conversion) openPeriod(t xml.StartElement) error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	for _, a := range t.Attr {
		if a.Name.Space == "" || a.Name.Local != "href" {
			continue
		}
		if uri, _ := c.scope.lookup(a.Name.Space); uri == schema.NSXLink {
			return fmt.Errorf("%w: period is already a package stub", archive.ErrMalformed)
		}
	}

	day := len(c.result.Periods)
	if raw := rawAttr(t, "day"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("%w: invalid period day %q", archive.ErrMalformed, raw)
		}
		day = n
	}
	if c.days[day] {
		return fmt.Errorf("%w: duplicate period day %d", archive.ErrMalformed, day)
	}
	c.days[day] = true
	name := archive.PeriodFile(day)

	prefix, declare := c.scope.prefixFor(schema.NSXLink, "xlink")
	link := make([]xml.Attr, 0, 3)
	if declare {
		link = append(link, xml.Attr{Name: xml.Name{Space: "xmlns", Local: prefix}, Value: schema.NSXLink})
	}
	link = append(link,
		xml.Attr{Name: xml.Name{Space: prefix, Local: "type"}, Value: "simple"},
		xml.Attr{Name: xml.Name{Space: prefix, Local: "href"}, Value: name},
	)
	c.village.start(t.Name, t.Attr, link)

	f, err := c.createTemp(name)
	if err != nil {
		return err
	}
	c.periodFile = f
	c.period = newDocWriter(f)
	c.period.start(t.Name, c.replicatedBindings(t), t.Attr)
	c.periodDepth = c.scope.depth()
	c.current = &PeriodFile{Day: day, Kind: rawAttr(t, "type"), File: name}
	return nil
}

// replicatedBindings declares on a period root every binding it inherits,
// skipping prefixes the element declares itself.
func (c *conversion) replicatedBindings(t xml.StartElement) []xml.Attr {
	inherited := c.scope.inherited()
	for prefix := range declaredBindings(t.Attr) {
		delete(inherited, prefix)
	}
	attrs := make([]xml.Attr, 0, len(inherited))
	for _, prefix := range slices.Sorted(maps.Keys(inherited)) {
		name := xml.Name{Space: "xmlns", Local: prefix}
		if prefix == "" {
			name = xml.Name{Local: "xmlns"}
		}
		attrs = append(attrs, xml.Attr{Name: name, Value: inherited[prefix]})
	}
	return attrs
}

func (c *conversion) closePeriod() error {
	err := c.period.finish()
	if closeErr := c.periodFile.Close(); err == nil {
		err = closeErr
	}
	c.period, c.periodFile = nil, nil
	if err != nil {
		return fmt.Errorf("write %s: %w", c.current.File, err)
	}

	c.result.Periods = append(c.result.Periods, *c.current)
	c.result.Elements += c.current.Elements
	c.logger.Debug("period written",
		logging.Int(logging.FieldPeriodDay, c.current.Day),
		logging.String("file", c.current.File),
		logging.Int("elements", c.current.Elements),
	)
	c.current = nil
	return nil
}

func (c *conversion) createTemp(final string) (*os.File, error) {
	f, err := os.CreateTemp(c.dir, "."+final+"-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", final, err)
	}
	if err := f.Chmod(FileMode); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("chmod %s: %w", final, err)
	}
	c.staged = append(c.staged, staged{tmp: f.Name(), final: filepath.Join(c.dir, final)})
	return f, nil
}

// commit renames staged files into place, period files first so village.xml
// never points at a missing period. Period files being replaced are moved
// aside first; if any rename fails every installed file is taken back out and
// the moved files are restored. Stale period files from an earlier conversion
// are removed when overwriting.
func (c *conversion) commit(overwrite bool) error {
	err := c.village.finish()
	if closeErr := c.villageFile.Close(); err == nil {
		err = closeErr
	}
	c.villageFile = nil
	if err != nil {
		return fmt.Errorf("write %s: %w", archive.VillageFile, err)
	}

	var villageStage staged
	var installed []installedFile
	written := make(map[string]bool, len(c.staged))
	for _, s := range c.staged {
		written[s.final] = true
		if filepath.Base(s.final) == archive.VillageFile {
			villageStage = s
			continue
		}
		in, err := c.install(s)
		if err != nil {
			rollback(installed)
			return err
		}
		installed = append(installed, in)
	}
	if err := os.Rename(villageStage.tmp, villageStage.final); err != nil {
		rollback(installed)
		return fmt.Errorf("install %s: %w", archive.VillageFile, err)
	}
	for _, in := range installed {
		if in.backup != "" {
			_ = os.Remove(in.backup)
		}
	}
	c.committed = true

	if overwrite {
		stale, _ := filepath.Glob(filepath.Join(c.dir, "period-*.xml"))
		for _, path := range stale {
			if written[path] {
				continue
			}
			if err := os.Remove(path); err != nil {
				logging.WarnWithContext(c.logger, "failed to remove stale period file", "stale_period_remove_failed",
					logging.String("file", path),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "remove the file by hand"),
					logging.String(logging.FieldImpact, "unreferenced file left in package"),
				)
			}
		}
	}
	return nil
}

type installedFile struct {
	final  string
	backup string
}

// install moves s into place. An existing file at the destination is renamed
// to a backup named after the run so rollback can put it back.
func (c *conversion) install(s staged) (installedFile, error) {
	in := installedFile{final: s.final}
	if _, err := os.Lstat(s.final); err == nil {
		in.backup = filepath.Join(c.dir, "."+filepath.Base(s.final)+"-"+c.result.RunID+".bak")
		if err := os.Rename(s.final, in.backup); err != nil {
			return installedFile{}, fmt.Errorf("back up %s: %w", filepath.Base(s.final), err)
		}
	}
	if err := os.Rename(s.tmp, s.final); err != nil {
		if in.backup != "" {
			_ = os.Rename(in.backup, s.final)
		}
		return installedFile{}, fmt.Errorf("install %s: %w", filepath.Base(s.final), err)
	}
	return in, nil
}

// rollback undoes installs in reverse order.
func rollback(installed []installedFile) {
	for i := len(installed) - 1; i >= 0; i-- {
		in := installed[i]
		if in.backup != "" {
			_ = os.Rename(in.backup, in.final)
		} else {
			_ = os.Remove(in.final)
		}
	}
}

func (c *conversion) cleanup() {
	if c.committed {
		return
	}
	for _, f := range []*os.File{c.villageFile, c.periodFile} {
		if f != nil {
			_ = f.Close()
		}
	}
	for _, s := range c.staged {
		_ = os.Remove(s.tmp)
	}
}

func rawAttr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Space == "" && a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func decodeErr(err error) error {
	var syntax *xml.SyntaxError
	if errors.As(err, &syntax) {
		return fmt.Errorf("%w: line %d: %s", archive.ErrMalformed, syntax.Line, syntax.Msg)
	}
	return fmt.Errorf("read archive: %w", err)
}
