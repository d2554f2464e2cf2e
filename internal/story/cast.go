package story

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
)

var (
	// ErrDuplicateAvatar is returned when an avatar id is added twice.
	ErrDuplicateAvatar = errors.New("duplicate avatar id")
	// ErrUnknownAvatar is returned when a role targets an id not in the cast.
	ErrUnknownAvatar = errors.New("unknown avatar id")
	// ErrRoleAssigned is returned when a different role is assigned a second time.
	ErrRoleAssigned = errors.New("role already assigned")
)

// AvatarID is the stable key of an avatar. The empty id means "no avatar".
type AvatarID string

// Avatar is one participant of the village.
type Avatar struct {
	ID        AvatarID `json:"id"`
	FullName  string   `json:"full_name"`
	ShortName string   `json:"short_name"`
	Icon      *url.URL `json:"-"`
}

// IconURI returns the resolved icon reference, or "" when none is known.
func (a Avatar) IconURI() string {
	if a.Icon == nil {
		return ""
	}
	return a.Icon.String()
}

// Cast owns the avatars of a story in archive order.
//
// Lookups and role assignment are safe for concurrent use so lazily loaded
// periods may resolve speakers in parallel.
type Cast struct {
	mu      sync.RWMutex
	avatars []Avatar
	roles   []Role
	index   map[AvatarID]int
}

// NewCast returns an empty cast.
func NewCast() *Cast {
	return &Cast{index: make(map[AvatarID]int)}
}

// Add appends an avatar. Ids must be non-empty and unique.
func (c *Cast) Add(avatar Avatar) error {
	if avatar.ID == "" {
		return fmt.Errorf("%w: empty id", ErrUnknownAvatar)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.index[avatar.ID]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateAvatar, avatar.ID)
	}
	c.index[avatar.ID] = len(c.avatars)
	c.avatars = append(c.avatars, avatar)
	c.roles = append(c.roles, RoleUnknown)
	return nil
}

// Resolve returns id when it names a known avatar and "" otherwise.
func (c *Cast) Resolve(id string) AvatarID {
	if c == nil || id == "" {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.index[AvatarID(id)]; !ok {
		return ""
	}
	return AvatarID(id)
}

// Lookup returns the avatar for id.
func (c *Cast) Lookup(id AvatarID) (Avatar, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return Avatar{}, false
	}
	return c.avatars[i], true
}

// Role returns the role assigned so far, RoleUnknown if none.
func (c *Cast) Role(id AvatarID) Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return RoleUnknown
	}
	return c.roles[i]
}

// AssignRole records the role of id. The first known role wins: repeating the
// same role is a no-op and a different one returns ErrRoleAssigned.
func (c *Cast) AssignRole(id AvatarID, role Role) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.index[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAvatar, id)
	}
	if role == RoleUnknown {
		return nil
	}
	switch current := c.roles[i]; current {
	case RoleUnknown:
		c.roles[i] = role
		return nil
	case role:
		return nil
	default:
		return fmt.Errorf("%w: %q is %s, not %s", ErrRoleAssigned, id, current, role)
	}
}

// Avatars returns a copy of the avatars in archive order.
func (c *Cast) Avatars() []Avatar {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Avatar, len(c.avatars))
	copy(out, c.avatars)
	return out
}

// Len returns the number of avatars.
func (c *Cast) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.avatars)
}
