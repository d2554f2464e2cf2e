package pack

import (
	"encoding/xml"
	"maps"
	"slices"
	"strconv"

	"villager/internal/schema"
)

// frame is one open element and the prefix bindings it declares itself.
type frame struct {
	name     xml.Name
	bindings map[string]string
}

// scope tracks open elements from the root down.
type scope struct {
	frames []frame
}

func declaredBindings(attrs []xml.Attr) map[string]string {
	var bindings map[string]string
	for _, a := range attrs {
		prefix, ok := bindingPrefix(a.Name)
		if !ok {
			continue
		}
		if bindings == nil {
			bindings = make(map[string]string)
		}
		bindings[prefix] = a.Value
	}
	return bindings
}

// bindingPrefix reports whether name is a namespace declaration and for which
// prefix; the default namespace has prefix "".
func bindingPrefix(name xml.Name) (string, bool) {
	switch {
	case name.Space == "xmlns":
		return name.Local, true
	case name.Space == "" && name.Local == "xmlns":
		return "", true
	default:
		return "", false
	}
}

func (s *scope) push(start xml.StartElement) {
	s.frames = append(s.frames, frame{name: start.Name, bindings: declaredBindings(start.Attr)})
}

func (s *scope) pop() (frame, bool) {
	if len(s.frames) == 0 {
		return frame{}, false
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	return top, true
}

func (s *scope) depth() int { return len(s.frames) }

// lookup returns the URI bound to prefix, innermost binding first.
func (s *scope) lookup(prefix string) (string, bool) {
	if prefix == "xml" {
		return schema.NSXML, true
	}
	for i := len(s.frames) - 1; i >= 0; i-- {
		if uri, ok := s.frames[i].bindings[prefix]; ok {
			return uri, true
		}
	}
	return "", false
}

// resolve maps a raw element name to its namespace URI form.
func (s *scope) resolve(name xml.Name) xml.Name {
	uri, _ := s.lookup(name.Space)
	return xml.Name{Space: uri, Local: name.Local}
}

// inherited merges the bindings of every open element except the innermost,
// with inner declarations shadowing outer ones.
func (s *scope) inherited() map[string]string {
	merged := make(map[string]string)
	for _, f := range s.frames[:max(len(s.frames)-1, 0)] {
		maps.Copy(merged, f.bindings)
	}
	return merged
}

// prefixFor returns a prefix bound to uri in the current scope, or a fresh
// prefix based on hint when none is. declare reports whether the caller must
// emit the binding.
func (s *scope) prefixFor(uri, hint string) (prefix string, declare bool) {
	visible := s.inherited()
	if len(s.frames) > 0 {
		maps.Copy(visible, s.frames[len(s.frames)-1].bindings)
	}
	for _, p := range slices.Sorted(maps.Keys(visible)) {
		if p != "" && visible[p] == uri {
			return p, false
		}
	}
	prefix = hint
	for n := 2; ; n++ {
		if _, taken := visible[prefix]; !taken {
			return prefix, true
		}
		prefix = hint + strconv.Itoa(n)
	}
}
