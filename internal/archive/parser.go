package archive

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"villager/internal/logging"
	"villager/internal/schema"
	"villager/internal/story"
)

const (
	// VillageFile is the name of the shell document inside a package.
	VillageFile = "village.xml"
)

// PeriodFile returns the package file name holding the period of day.
func PeriodFile(day int) string {
	return "period-" + strconv.Itoa(day) + ".xml"
}

type parser struct {
	logger     *slog.Logger
	hook       ElementHook
	packageDir string
}

func newParser(opts []Option) *parser {
	p := &parser{logger: logging.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Parse reads one archive document from r.
func Parse(r io.Reader, opts ...Option) (*story.Story, error) {
	p := newParser(opts)
	dec := newDecoder(r)

	root, err := rootElement(dec)
	if err != nil {
		return nil, err
	}
	if schema.Classify(root.Name) != schema.Village {
		return nil, fmt.Errorf("%w: root element is %s", ErrNotArchive, describe(root.Name))
	}

	st := story.New()
	if err := p.village(dec, st, root); err != nil {
		return nil, err
	}
	p.logger.Debug("archive parsed",
		logging.String("village", st.Name),
		logging.Int("periods", len(st.Periods)),
		logging.Int("avatars", st.Cast.Len()),
	)
	return st, nil
}

// OpenPackage reads village.xml from dir. Periods load lazily from their own
// files in dir.
func OpenPackage(dir string, opts ...Option) (*story.Story, error) {
	f, err := os.Open(filepath.Join(dir, VillageFile))
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}
	defer f.Close()
	return Parse(f, append(opts[:len(opts):len(opts)], WithPackageDir(dir))...)
}

// Open reads path as a package when it is a directory and as an archive file
// otherwise.
func Open(path string, opts ...Option) (*story.Story, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return OpenPackage(path, opts...)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()
	return Parse(f, opts...)
}

func (p *parser) village(dec *xml.Decoder, st *story.Story, start xml.StartElement) error {
	if base, ok := attr(start, schema.NSXML, "base"); ok && base != "" {
		u, err := url.Parse(base)
		if err != nil {
			logging.WarnWithContext(p.logger, "invalid base uri", "base_uri_invalid",
				logging.String("value", base),
				logging.Error(err),
				logging.String(logging.FieldImpact, "relative icon links stay unresolved"),
			)
		} else {
			st.Base = u
		}
	}
	st.VillageID = attrValue(start, "vid")
	st.Name = attrValue(start, "fullName")
	if raw, ok := attr(start, "", "state"); ok {
		state, known := story.ParseVillageState(raw)
		if !known {
			p.unknownValue("state", raw)
		}
		st.State = state
	}
	st.GraveIcon = p.resolveURI(st.Base, attrValue(start, "graveIconURI"))

	return children(dec, func(child xml.StartElement) error {
		switch schema.Classify(child.Name) {
		case schema.AvatarList:
			return p.avatarList(dec, st)
		case schema.Period:
			return p.period(dec, st, child)
		default:
			p.skipped(child)
			return skip(dec)
		}
	})
}

func (p *parser) avatarList(dec *xml.Decoder, st *story.Story) error {
	return children(dec, func(child xml.StartElement) error {
		if schema.Classify(child.Name) != schema.Avatar {
			p.skipped(child)
			return skip(dec)
		}
		avatar := story.Avatar{
			ID:        story.AvatarID(attrValue(child, "avatarId")),
			FullName:  attrValue(child, "fullName"),
			ShortName: attrValue(child, "shortName"),
			Icon:      p.resolveURI(st.Base, attrValue(child, "faceIconURI")),
		}
		if err := st.Cast.Add(avatar); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return skip(dec)
	})
}

func (p *parser) period(dec *xml.Decoder, st *story.Story, start xml.StartElement) error {
	index := len(st.Periods)
	kind, day := p.periodHeader(start, index)

	if href, linked := attr(start, schema.NSXLink, "href"); linked {
		if err := skip(dec); err != nil {
			return err
		}
		if p.packageDir == "" {
			return fmt.Errorf("%w: day %d links %q", ErrDetachedStub, day, href)
		}
		rel := filepath.FromSlash(href)
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("%w: period link %q leaves the package", ErrMalformed, href)
		}
		st.AddPeriod(story.NewLazyPeriod(kind, day, index, p.fileLoader(st, filepath.Join(p.packageDir, rel))))
		return nil
	}

	elements, err := p.periodBody(dec, st, index)
	if err != nil {
		return fmt.Errorf("period day %d: %w", day, err)
	}
	st.AddPeriod(story.NewPeriod(kind, day, index, elements))
	return nil
}

func (p *parser) periodHeader(start xml.StartElement, index int) (story.PeriodKind, int) {
	kind := story.PeriodUnknown
	if raw, ok := attr(start, "", "type"); ok {
		var known bool
		if kind, known = story.ParsePeriodKind(raw); !known {
			p.unknownValue("period_type", raw)
		}
	}
	day := index
	if raw, ok := attr(start, "", "day"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			logging.WarnWithContext(p.logger, "invalid period day", "period_day_invalid",
				logging.String("value", raw),
				logging.String(logging.FieldImpact, "period position used as day"),
			)
		} else {
			day = n
		}
	}
	return kind, day
}

// fileLoader parses a period document from path on demand. The loader reuses
// the cast of st, which is complete once the village document is read.
func (p *parser) fileLoader(st *story.Story, path string) story.Loader {
	return story.LoaderFunc(func(period *story.Period) ([]story.Element, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open period file: %w", err)
		}
		defer f.Close()

		elements, err := p.periodDocument(f, st, period)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		return elements, nil
	})
}

func (p *parser) periodDocument(r io.Reader, st *story.Story, period *story.Period) ([]story.Element, error) {
	dec := newDecoder(r)
	root, err := rootElement(dec)
	if err != nil {
		return nil, err
	}
	if schema.Classify(root.Name) != schema.Period {
		return nil, fmt.Errorf("%w: period file root is %s", ErrNotArchive, describe(root.Name))
	}
	if _, day := p.periodHeader(root, period.Index); day != period.Day {
		logging.WarnWithContext(p.logger, "period file day differs from stub", "period_day_mismatch",
			logging.Int(logging.FieldPeriodDay, period.Day),
			logging.Int("file_day", day),
			logging.String(logging.FieldImpact, "stub day kept"),
		)
	}
	return p.periodBody(dec, st, period.Index)
}

func (p *parser) resolveURI(base *url.URL, ref string) *url.URL {
	if ref == "" {
		return nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		p.logger.Debug("unparsable icon uri", logging.String("value", ref), logging.Error(err))
		return nil
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	return u
}

func (p *parser) unknownValue(attribute, value string) {
	logging.WarnWithContext(p.logger, "unrecognized attribute value", "unknown_"+attribute,
		logging.String("attribute", attribute),
		logging.String("value", value),
	)
}

func (p *parser) skipped(start xml.StartElement) {
	p.logger.Debug("skipping element", logging.String("element", describe(start.Name)))
}
