package story

// VillageState is the lifecycle state recorded on the village element.
type VillageState int

const (
	StateUnknown VillageState = iota
	StatePrologue
	StateProgress
	StateEpilogue
	StateGameOver
)

var villageStates = map[string]VillageState{
	"prologue": StatePrologue,
	"progress": StateProgress,
	"epilogue": StateEpilogue,
	"gameover": StateGameOver,
}

// ParseVillageState maps the archive attribute value; ok is false for unknown values.
func ParseVillageState(value string) (VillageState, bool) {
	state, ok := villageStates[value]
	return state, ok
}

func (s VillageState) String() string {
	return nameOf(villageStates, s)
}

func (s VillageState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// PeriodKind distinguishes the prologue, playing days and epilogue.
type PeriodKind int

const (
	PeriodUnknown PeriodKind = iota
	PeriodPrologue
	PeriodProgress
	PeriodEpilogue
)

var periodKinds = map[string]PeriodKind{
	"prologue": PeriodPrologue,
	"progress": PeriodProgress,
	"epilogue": PeriodEpilogue,
}

// ParsePeriodKind maps the period type attribute; ok is false for unknown values.
func ParsePeriodKind(value string) (PeriodKind, bool) {
	kind, ok := periodKinds[value]
	return kind, ok
}

func (k PeriodKind) String() string {
	return nameOf(periodKinds, k)
}

func (k PeriodKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// TalkCategory is the visibility channel of a chat message.
type TalkCategory int

const (
	TalkUnknown TalkCategory = iota
	TalkPublic
	TalkWolf
	TalkPrivate
	TalkGrave
)

var talkCategories = map[string]TalkCategory{
	"public":  TalkPublic,
	"wolf":    TalkWolf,
	"private": TalkPrivate,
	"grave":   TalkGrave,
}

// ParseTalkCategory maps the talk type attribute; ok is false for unknown values.
func ParseTalkCategory(value string) (TalkCategory, bool) {
	cat, ok := talkCategories[value]
	return cat, ok
}

func (c TalkCategory) String() string {
	return nameOf(talkCategories, c)
}

func (c TalkCategory) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Role is an avatar's disclosed role. RoleUnknown until a player list names it.
type Role int

const (
	RoleUnknown Role = iota
	RoleInnocent
	RoleWolf
	RoleSeer
	RoleShaman
	RoleMadman
	RoleHunter
	RoleFrater
	RoleHamster
)

var roles = map[string]Role{
	"innocent": RoleInnocent,
	"wolf":     RoleWolf,
	"seer":     RoleSeer,
	"shaman":   RoleShaman,
	"madman":   RoleMadman,
	"hunter":   RoleHunter,
	"frater":   RoleFrater,
	"hamster":  RoleHamster,
}

// ParseRole maps the playerInfo role attribute; ok is false for unknown values.
func ParseRole(value string) (Role, bool) {
	role, ok := roles[value]
	return role, ok
}

func (r Role) String() string {
	return nameOf(roles, r)
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func nameOf[T comparable](table map[string]T, value T) string {
	for name, v := range table {
		if v == value {
			return name
		}
	}
	return "unknown"
}
