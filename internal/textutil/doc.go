// Package textutil turns archive file names into directory names that are
// safe to create under the package library.
package textutil
