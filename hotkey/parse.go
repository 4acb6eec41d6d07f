// Package hotkey parses the user's shortcut string and registers it as a
// system-wide hotkey that brings the chat window to the front.
package hotkey

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Binding is a parsed shortcut such as "ctrl+shift+k".
type Binding struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Super bool
	Key   string // lower-case key name, e.g. "k", "f5", "space"
}

var modifierNames = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"shift":   "shift",
	"alt":     "alt",
	"option":  "alt",
	"super":   "super",
	"win":     "super",
	"cmd":     "super",
	"command": "super",
	"meta":    "super",
}

// Parse reads a '+'-separated shortcut. Exactly one non-modifier key is
// required, and at least one modifier so the shortcut cannot swallow
// ordinary typing.
func Parse(s string) (Binding, error) {
	var b Binding
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return b, fmt.Errorf("empty hotkey")
	}

	for _, part := range strings.Split(s, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			return b, fmt.Errorf("invalid hotkey %q", s)
		}
		switch modifierNames[part] {
		case "ctrl":
			b.Ctrl = true
		case "shift":
			b.Shift = true
		case "alt":
			b.Alt = true
		case "super":
			b.Super = true
		default:
			if b.Key != "" {
				return b, fmt.Errorf("hotkey %q has more than one key", s)
			}
			if !knownKey(part) {
				return b, fmt.Errorf("unsupported key %q in hotkey %q", part, s)
			}
			b.Key = part
		}
	}

	if b.Key == "" {
		return b, fmt.Errorf("hotkey %q has no key", s)
	}
	if !b.Ctrl && !b.Shift && !b.Alt && !b.Super {
		return b, fmt.Errorf("hotkey %q needs a modifier", s)
	}
	return b, nil
}

// String returns the canonical form, modifiers first.
func (b Binding) String() string {
	var parts []string
	if b.Ctrl {
		parts = append(parts, "ctrl")
	}
	if b.Shift {
		parts = append(parts, "shift")
	}
	if b.Alt {
		parts = append(parts, "alt")
	}
	if b.Super {
		parts = append(parts, "super")
	}
	return strings.Join(append(parts, b.Key), "+")
}

func knownKey(k string) bool {
	_, ok := keyCodes[k]
	return ok
}

// DefaultDebounce drops repeats from a held-down key.
const DefaultDebounce = 500 * time.Millisecond

type debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval, now: time.Now}
}

func (d *debouncer) allow() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.now()
	if !d.last.IsZero() && t.Sub(d.last) < d.interval {
		return false
	}
	d.last = t
	return true
}
