package archive

import (
	"encoding/xml"
	"strconv"

	"villager/internal/logging"
	"villager/internal/schema"
	"villager/internal/story"
	"villager/internal/timecode"
)

type serialKey struct {
	category story.TalkCategory
	speaker  story.AvatarID
}

// periodBuilder collects the elements of one period.
type periodBuilder struct {
	p        *parser
	st       *story.Story
	index    int
	serials  map[serialKey]int
	elements []story.Element
}

func (p *parser) periodBody(dec *xml.Decoder, st *story.Story, index int) ([]story.Element, error) {
	b := &periodBuilder{p: p, st: st, index: index, serials: make(map[serialKey]int)}
	err := children(dec, func(child xml.StartElement) error {
		cat := schema.Classify(child.Name)
		switch {
		case cat == schema.Talk:
			return b.talk(dec, child)
		case cat == schema.Assault:
			return b.assault(dec, child)
		case schema.IsEvent(cat):
			return b.event(dec, child, cat)
		default:
			p.skipped(child)
			return skip(dec)
		}
	})
	if err != nil {
		return nil, err
	}
	return b.elements, nil
}

func (b *periodBuilder) add(e story.Element) {
	b.elements = append(b.elements, e)
	if b.p.hook != nil {
		b.p.hook(b.st, e)
	}
}

func (b *periodBuilder) nextSerial(category story.TalkCategory, speaker story.AvatarID) int {
	key := serialKey{category: category, speaker: speaker}
	b.serials[key]++
	return b.serials[key]
}

func (b *periodBuilder) talk(dec *xml.Decoder, start xml.StartElement) error {
	category := story.TalkUnknown
	if raw, ok := attr(start, "", "type"); ok {
		var known bool
		if category, known = story.ParseTalkCategory(raw); !known {
			b.p.unknownValue("talk_type", raw)
		}
	}
	t := &story.Talk{
		Message:  story.Message{PeriodIndex: b.index},
		Category: category,
		Speaker:  b.resolve(start, "avatarId"),
		Time:     b.time(start),
	}
	lines, err := b.lines(dec)
	if err != nil {
		return err
	}
	t.Lines = lines
	t.Serial = b.nextSerial(t.Category, t.Speaker)
	b.add(t)
	return nil
}

func (b *periodBuilder) assault(dec *xml.Decoder, start xml.StartElement) error {
	w := &story.WolfAttack{
		Message: story.Message{PeriodIndex: b.index},
		Speaker: b.resolve(start, "byWhom"),
		Target:  b.resolve(start, "avatarId"),
		Time:    b.time(start),
	}
	lines, err := b.lines(dec)
	if err != nil {
		return err
	}
	w.Lines = lines
	w.Serial = b.nextSerial(story.TalkWolf, w.Speaker)
	b.add(w)
	return nil
}

// eventAvatarAttrs are the attributes through which event elements name avatars.
var eventAvatarAttrs = []string{"avatarId", "byWhom", "target", "victim"}

func (b *periodBuilder) event(dec *xml.Decoder, start xml.StartElement, cat schema.Category) error {
	ev := &story.Event{
		Message: story.Message{PeriodIndex: b.index},
		Family:  schema.FamilyOf(cat),
		Kind:    cat,
	}
	for _, name := range eventAvatarAttrs {
		if id := b.resolve(start, name); id != "" {
			ev.Avatars = append(ev.Avatars, id)
		}
	}
	err := children(dec, func(child xml.StartElement) error {
		switch schema.Classify(child.Name) {
		case schema.ListItem:
			line, err := readLine(dec)
			if err != nil {
				return err
			}
			ev.Lines = append(ev.Lines, line)
			return nil
		case schema.AvatarRef:
			if id := b.resolve(child, "avatarId"); id != "" {
				ev.Avatars = append(ev.Avatars, id)
			}
		case schema.PlayerInfo:
			if cat == schema.PlayerList {
				ev.Players = append(ev.Players, b.playerInfo(child))
			}
		default:
			b.p.skipped(child)
		}
		return skip(dec)
	})
	if err != nil {
		return err
	}
	b.add(ev)
	return nil
}

// playerInfo reads one player row and records the disclosed role on the cast.
func (b *periodBuilder) playerInfo(start xml.StartElement) story.PlayerInfo {
	info := story.PlayerInfo{
		Avatar:   b.resolve(start, "avatarId"),
		PlayerID: attrValue(start, "playerId"),
		URI:      attrValue(start, "uri"),
	}
	if raw, ok := attr(start, "", "role"); ok {
		var known bool
		if info.Role, known = story.ParseRole(raw); !known {
			b.p.unknownValue("role", raw)
		}
	}
	if raw, ok := attr(start, "", "survive"); ok {
		info.Survived, _ = strconv.ParseBool(raw)
	}
	if info.Avatar == "" {
		return info
	}
	if err := b.st.Cast.AssignRole(info.Avatar, info.Role); err != nil {
		logging.WarnWithContext(b.p.logger, "conflicting role disclosure", "role_conflict",
			logging.String("avatar", string(info.Avatar)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "first disclosed role kept"),
		)
	}
	return info
}

// lines reads the li children of a talk or assault.
func (b *periodBuilder) lines(dec *xml.Decoder) ([]string, error) {
	var lines []string
	err := children(dec, func(child xml.StartElement) error {
		if schema.Classify(child.Name) != schema.ListItem {
			b.p.skipped(child)
			return skip(dec)
		}
		line, err := readLine(dec)
		if err != nil {
			return err
		}
		lines = append(lines, line)
		return nil
	})
	return lines, err
}

// resolve looks up the avatar named by attribute name. Ids the cast does not
// know resolve to "".
func (b *periodBuilder) resolve(start xml.StartElement, name string) story.AvatarID {
	raw := attrValue(start, name)
	id := b.st.Cast.Resolve(raw)
	if id == "" && raw != "" {
		b.p.logger.Debug("unresolved avatar reference",
			logging.String("attribute", name),
			logging.String("value", raw),
			logging.Int("period_index", b.index),
		)
	}
	return id
}

func (b *periodBuilder) time(start xml.StartElement) timecode.TimePart {
	raw, ok := attr(start, "", "time")
	if !ok {
		return timecode.TimePart{}
	}
	tp, err := timecode.Parse(raw)
	if err != nil {
		logging.WarnWithContext(b.p.logger, "invalid time token", "time_invalid",
			logging.String("value", raw),
			logging.Error(err),
			logging.String(logging.FieldImpact, "time recorded as midnight"),
		)
	}
	return tp
}
