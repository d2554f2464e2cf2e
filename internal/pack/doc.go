// Package pack splits one archive into a package directory.
//
// A package holds village.xml, the archive with every period reduced to an
// empty stub, and one period-<day>.xml per period. Stubs link to their file
// through xlink:type="simple" and xlink:href. Each period file is a complete
// document: every namespace binding visible at the period in the archive is
// declared again on its root, so the file parses on its own.
//
// Conversion is a single streaming pass over raw tokens; nothing but the
// namespace scope is held in memory.
package pack
