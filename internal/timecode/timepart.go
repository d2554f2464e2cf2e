package timecode

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	millisPerSecond = 1000
	millisPerMinute = 60 * millisPerSecond
	millisPerHour   = 60 * millisPerMinute

	// MillisPerDay is the exclusive upper bound of a TimePart.
	MillisPerDay = 24 * millisPerHour
)

// ErrInvalid reports a time token that does not match HH:MM:SS[.fff].
var ErrInvalid = errors.New("invalid time token")

// TimePart is a time of day with millisecond precision. The zero value is midnight.
type TimePart struct {
	millis int32
}

// FromMillis builds a TimePart from a raw millisecond count. Values outside a
// single day wrap with floor-modulo semantics, so -1 becomes 23:59:59.999.
func FromMillis(ms int64) TimePart {
	v := ms % MillisPerDay
	if v < 0 {
		v += MillisPerDay
	}
	return TimePart{millis: int32(v)}
}

// New builds a TimePart from clock components. Components are summed before
// wrapping, so out-of-range parts carry into the next unit.
func New(hour, minute, second, milli int) TimePart {
	total := int64(hour)*millisPerHour +
		int64(minute)*millisPerMinute +
		int64(second)*millisPerSecond +
		int64(milli)
	return FromMillis(total)
}

// Parse decodes "HH:MM:SS" or "HH:MM:SS.f" with one to three fraction digits.
func Parse(token string) (TimePart, error) {
	if len(token) < 8 || token[2] != ':' || token[5] != ':' {
		return TimePart{}, fmt.Errorf("%w: %q", ErrInvalid, token)
	}
	hour, ok := twoDigits(token[0:2], 23)
	if !ok {
		return TimePart{}, fmt.Errorf("%w: hour in %q", ErrInvalid, token)
	}
	minute, ok := twoDigits(token[3:5], 59)
	if !ok {
		return TimePart{}, fmt.Errorf("%w: minute in %q", ErrInvalid, token)
	}
	second, ok := twoDigits(token[6:8], 59)
	if !ok {
		return TimePart{}, fmt.Errorf("%w: second in %q", ErrInvalid, token)
	}

	milli := 0
	if rest := token[8:]; rest != "" {
		frac := rest[1:]
		if rest[0] != '.' || len(frac) == 0 || len(frac) > 3 {
			return TimePart{}, fmt.Errorf("%w: fraction in %q", ErrInvalid, token)
		}
		for _, r := range frac {
			if r < '0' || r > '9' {
				return TimePart{}, fmt.Errorf("%w: fraction in %q", ErrInvalid, token)
			}
		}
		milli, _ = strconv.Atoi(frac)
		for i := len(frac); i < 3; i++ {
			milli *= 10
		}
	}

	return New(hour, minute, second, milli), nil
}

func twoDigits(s string, max int) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	v := int(s[0]-'0')*10 + int(s[1]-'0')
	return v, v <= max
}

// Millis returns milliseconds since midnight.
func (t TimePart) Millis() int { return int(t.millis) }

func (t TimePart) Hour() int { return int(t.millis) / millisPerHour }

func (t TimePart) Minute() int { return int(t.millis) % millisPerHour / millisPerMinute }

func (t TimePart) Second() int { return int(t.millis) % millisPerMinute / millisPerSecond }

func (t TimePart) Millisecond() int { return int(t.millis) % millisPerSecond }

// String renders the canonical HH:MM:SS.fff form.
func (t TimePart) String() string {
	return fmt.Sprintf("%02d:%02d:%02d.%03d", t.Hour(), t.Minute(), t.Second(), t.Millisecond())
}

// MarshalText implements encoding.TextMarshaler.
func (t TimePart) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimePart) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
