// Package story is the in-memory model of one archived village.
//
// A Story owns its Cast of avatars; periods and elements refer to avatars by
// AvatarID and to their period by index, so the graph has no ownership
// cycles. Avatar roles are written only through Cast.AssignRole, which makes
// the moment a role becomes known an explicit part of the contract.
//
// Periods have a two-state lifecycle. A period built from a full archive is
// ready at construction; a period backed by a package file starts unready and
// parses its elements on the first successful Ready call. Period carries no
// lock: callers serialize Ready per instance (Prefetch does this for them).
package story
