// Package main hosts the villager CLI entrypoint and command graph.
//
// The Cobra command tree converts village archives into linked packages,
// prints archives and packages as tables or JSON, and maintains the SQLite
// catalog of converted packages. Configuration resolution and logger setup
// live in commandContext so subcommands only deal with presentation.
//
// Parsing and conversion belong in internal/archive and internal/pack; this
// package should stay a thin layer over them.
package main
