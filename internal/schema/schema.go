// Package schema classifies bbsArchive element names.
//
// Two schema revisions share one vocabulary under different namespace URIs,
// so every lookup accepts either URI. Event elements are grouped into three
// hand-maintained families; the grouping does not follow from the names.
package schema

import "encoding/xml"

const (
	// NS401 is the original bbsArchive namespace.
	NS401 = "http://jindolf.sourceforge.jp/xml/ns/401"
	// NS501 is the later revision that reused every local name.
	NS501 = "http://jindolf.osdn.jp/xml/ns/501"

	// NSXLink binds the link attributes placed on package stubs.
	NSXLink = "http://www.w3.org/1999/xlink"
	// NSXML is the implicit namespace of the xml: prefix.
	NSXML = "http://www.w3.org/XML/1998/namespace"
)

// Category is the semantic role of an element.
type Category int

const (
	Unrecognized Category = iota

	Village
	AvatarList
	Avatar
	Period
	Talk
	ListItem
	RawData
	PlayerInfo
	Assault
	AvatarRef

	// Announce family.
	StartEntry
	OnStage
	StartMirror
	OpenRole
	Murdered
	StartAssault
	Survivor
	Counting
	SuddenDeath
	NoMurder
	WinVillage
	WinWolf
	WinHamster
	PlayerList
	Panic

	// Order family.
	AskEntry
	AskCommit
	NoComment
	StayEpilogue
	GameOver

	// Extra family.
	Judge
	Guard
)

// Family groups event categories.
type Family int

const (
	NoFamily Family = iota
	Announce
	Order
	Extra
)

func (f Family) String() string {
	switch f {
	case Announce:
		return "announce"
	case Order:
		return "order"
	case Extra:
		return "extra"
	default:
		return "none"
	}
}

var localNames = map[string]Category{
	"village":      Village,
	"avatarList":   AvatarList,
	"avatar":       Avatar,
	"period":       Period,
	"talk":         Talk,
	"li":           ListItem,
	"rawdata":      RawData,
	"playerInfo":   PlayerInfo,
	"assault":      Assault,
	"avatarRef":    AvatarRef,
	"startEntry":   StartEntry,
	"onStage":      OnStage,
	"startMirror":  StartMirror,
	"openRole":     OpenRole,
	"murdered":     Murdered,
	"startAssault": StartAssault,
	"survivor":     Survivor,
	"counting":     Counting,
	"suddenDeath":  SuddenDeath,
	"noMurder":     NoMurder,
	"winVillage":   WinVillage,
	"winWolf":      WinWolf,
	"winHamster":   WinHamster,
	"playerList":   PlayerList,
	"panic":        Panic,
	"askEntry":     AskEntry,
	"askCommit":    AskCommit,
	"noComment":    NoComment,
	"stayEpilogue": StayEpilogue,
	"gameOver":     GameOver,
	"judge":        Judge,
	"guard":        Guard,
}

var categoryNames = func() map[Category]string {
	out := make(map[Category]string, len(localNames))
	for name, cat := range localNames {
		out[cat] = name
	}
	return out
}()

var families = map[Category]Family{
	StartEntry:   Announce,
	OnStage:      Announce,
	StartMirror:  Announce,
	OpenRole:     Announce,
	Murdered:     Announce,
	StartAssault: Announce,
	Survivor:     Announce,
	Counting:     Announce,
	SuddenDeath:  Announce,
	NoMurder:     Announce,
	WinVillage:   Announce,
	WinWolf:      Announce,
	WinHamster:   Announce,
	PlayerList:   Announce,
	Panic:        Announce,

	AskEntry:     Order,
	AskCommit:    Order,
	NoComment:    Order,
	StayEpilogue: Order,
	GameOver:     Order,

	Judge: Extra,
	Guard: Extra,
}

// IsArchiveNamespace reports whether uri is one of the bbsArchive namespaces.
func IsArchiveNamespace(uri string) bool {
	switch uri {
	case NS401, NS501:
		return true
	default:
		return false
	}
}

// Classify maps a namespace-resolved element name to its category.
func Classify(name xml.Name) Category {
	if !IsArchiveNamespace(name.Space) {
		return Unrecognized
	}
	cat, ok := localNames[name.Local]
	if !ok {
		return Unrecognized
	}
	return cat
}

// FamilyOf returns the event family of cat, or NoFamily for structural elements.
func FamilyOf(cat Category) Family {
	return families[cat]
}

// IsEvent reports whether cat belongs to one of the event families.
func IsEvent(cat Category) bool {
	return FamilyOf(cat) != NoFamily
}

// LocalName returns the element local name for cat.
func (c Category) LocalName() string {
	return categoryNames[c]
}

func (c Category) String() string {
	if name := c.LocalName(); name != "" {
		return name
	}
	return "unrecognized"
}

// MarshalText renders the element local name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
