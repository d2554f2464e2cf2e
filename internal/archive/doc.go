// Package archive turns bbsArchive XML into story values.
//
// Parse reads a whole archive in one forward pass. Participants are resolved
// by id as they are met, so an avatar list must precede the periods that
// mention its avatars; references that cannot be resolved become empty ids.
// Unknown elements are skipped as balanced subtrees and unknown attribute
// values are logged and recorded as Unknown.
//
// OpenPackage reads the village document of a package directory written by
// internal/pack. Its periods are lazy: each one parses its own period file on
// the first call to Ready.
package archive
