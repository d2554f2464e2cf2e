package archive

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"villager/internal/schema"
)

func newDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = CharsetReader
	return dec
}

// CharsetReader decodes the legacy encodings archives were published in
// (Shift_JIS, EUC-JP, ...) using the WHATWG label table. It fits
// xml.Decoder.CharsetReader.
func CharsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// rootElement returns the first start tag of the document.
func rootElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return xml.StartElement{}, fmt.Errorf("%w: empty document", ErrNotArchive)
		}
		if err != nil {
			return xml.StartElement{}, readErr(err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

// children feeds each child start tag of the current element to visit until
// the element ends. visit must consume the child it is given.
func children(dec *xml.Decoder, visit func(xml.StartElement) error) error {
	for {
		tok, err := dec.Token()
		if err != nil {
			return readErr(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := visit(t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

// skip discards the rest of the current element, nested elements included.
func skip(dec *xml.Decoder) error {
	if err := dec.Skip(); err != nil {
		return readErr(err)
	}
	return nil
}

// readLine returns the text of an li element. Text inside rawdata is kept
// with its markup dropped; other nested elements are discarded.
func readLine(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", readErr(err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			if schema.Classify(t.Name) == schema.RawData {
				err = collectText(dec, &sb)
			} else {
				err = skip(dec)
			}
			if err != nil {
				return "", err
			}
		case xml.EndElement:
			return sb.String(), nil
		}
	}
}

func collectText(dec *xml.Decoder, sb *strings.Builder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return readErr(err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}

// attr returns the value of the attribute space:local on start. Archive
// attributes are unqualified, so space is usually "".
func attr(start xml.StartElement, space, local string) (string, bool) {
	for _, a := range start.Attr {
		if a.Name.Local == local && a.Name.Space == space {
			return a.Value, true
		}
	}
	return "", false
}

func attrValue(start xml.StartElement, local string) string {
	v, _ := attr(start, "", local)
	return v
}

func describe(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return "{" + name.Space + "}" + name.Local
}
