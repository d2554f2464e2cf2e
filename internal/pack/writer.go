package pack

import (
	"bufio"
	"encoding/xml"
	"io"
	"strings"
)

const prolog = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// docWriter serializes raw tokens with their prefixes untouched. An element
// with no content is written as an empty-element tag.
type docWriter struct {
	w    *bufio.Writer
	open bool
}

func newDocWriter(w io.Writer) *docWriter {
	dw := &docWriter{w: bufio.NewWriter(w)}
	dw.w.WriteString(prolog)
	return dw
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#xD;")

func rawName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func (d *docWriter) closeStart() {
	if d.open {
		d.w.WriteByte('>')
		d.open = false
	}
}

func (d *docWriter) start(name xml.Name, attrs ...[]xml.Attr) {
	d.closeStart()
	d.w.WriteByte('<')
	d.w.WriteString(rawName(name))
	for _, group := range attrs {
		for _, a := range group {
			d.w.WriteByte(' ')
			d.w.WriteString(rawName(a.Name))
			d.w.WriteString(`="`)
			_ = xml.EscapeText(d.w, []byte(a.Value))
			d.w.WriteByte('"')
		}
	}
	d.open = true
}

func (d *docWriter) end(name xml.Name) {
	if d.open {
		d.w.WriteString("/>")
		d.open = false
		return
	}
	d.w.WriteString("</")
	d.w.WriteString(rawName(name))
	d.w.WriteByte('>')
}

func (d *docWriter) text(data []byte) {
	d.closeStart()
	textEscaper.WriteString(d.w, string(data))
}

func (d *docWriter) comment(data []byte) {
	d.closeStart()
	d.w.WriteString("<!--")
	d.w.Write(data)
	d.w.WriteString("-->")
}

func (d *docWriter) procInst(pi xml.ProcInst) {
	d.closeStart()
	d.w.WriteString("<?")
	d.w.WriteString(pi.Target)
	if len(pi.Inst) > 0 {
		d.w.WriteByte(' ')
		d.w.Write(pi.Inst)
	}
	d.w.WriteString("?>")
}

// finish terminates the document and flushes it. Buffered write errors
// surface here.
func (d *docWriter) finish() error {
	d.closeStart()
	d.w.WriteByte('\n')
	return d.w.Flush()
}
