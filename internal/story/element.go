package story

import (
	"strings"

	"villager/internal/schema"
	"villager/internal/timecode"
)

// Element is one entry of a period: a *Talk, *WolfAttack or *Event.
// The set is closed; switch on the concrete type.
type Element interface {
	message() *Message
}

// Message is the part shared by every element.
type Message struct {
	PeriodIndex int      `json:"period_index"`
	Lines       []string `json:"lines"`
}

func (m *Message) message() *Message { return m }

// Lines returns the message lines of e.
func Lines(e Element) []string {
	return e.message().Lines
}

// Text joins the message lines of e with newlines.
func Text(e Element) string {
	return strings.Join(e.message().Lines, "\n")
}

// PeriodIndexOf returns the index of the period that owns e.
func PeriodIndexOf(e Element) int {
	return e.message().PeriodIndex
}

// Talk is a chat message.
type Talk struct {
	Message
	Category TalkCategory      `json:"category"`
	Speaker  AvatarID          `json:"speaker,omitempty"`
	Time     timecode.TimePart `json:"time"`
	// Serial counts talks of the same speaker and category within the period, from 1.
	Serial int `json:"serial"`
}

// HasSpeaker reports whether the speaker reference resolved.
func (t *Talk) HasSpeaker() bool { return t.Speaker != "" }

// WolfAttack is the scripted attack line spoken on the wolf channel.
type WolfAttack struct {
	Message
	Speaker AvatarID          `json:"speaker,omitempty"`
	Target  AvatarID          `json:"target,omitempty"`
	Time    timecode.TimePart `json:"time"`
	Serial  int               `json:"serial"`
}

// Category is always TalkWolf.
func (w *WolfAttack) Category() TalkCategory { return TalkWolf }

// PlayerInfo is one row of a player list disclosure.
type PlayerInfo struct {
	Avatar   AvatarID `json:"avatar,omitempty"`
	Role     Role     `json:"role"`
	PlayerID string   `json:"player_id,omitempty"`
	URI      string   `json:"uri,omitempty"`
	Survived bool     `json:"survived"`
}

// Event is a scripted announcement, order or special-ability result.
type Event struct {
	Message
	Family  schema.Family   `json:"-"`
	Kind    schema.Category `json:"kind"`
	Avatars []AvatarID      `json:"avatars,omitempty"`
	Players []PlayerInfo    `json:"players,omitempty"`
}
