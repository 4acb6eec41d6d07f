package hotkey

import (
	"fmt"
	"sync"

	"askforge-client/utils"

	gohotkey "golang.design/x/hotkey"
)

var keyCodes = map[string]gohotkey.Key{
	"a": gohotkey.KeyA, "b": gohotkey.KeyB, "c": gohotkey.KeyC, "d": gohotkey.KeyD,
	"e": gohotkey.KeyE, "f": gohotkey.KeyF, "g": gohotkey.KeyG, "h": gohotkey.KeyH,
	"i": gohotkey.KeyI, "j": gohotkey.KeyJ, "k": gohotkey.KeyK, "l": gohotkey.KeyL,
	"m": gohotkey.KeyM, "n": gohotkey.KeyN, "o": gohotkey.KeyO, "p": gohotkey.KeyP,
	"q": gohotkey.KeyQ, "r": gohotkey.KeyR, "s": gohotkey.KeyS, "t": gohotkey.KeyT,
	"u": gohotkey.KeyU, "v": gohotkey.KeyV, "w": gohotkey.KeyW, "x": gohotkey.KeyX,
	"y": gohotkey.KeyY, "z": gohotkey.KeyZ,

	"0": gohotkey.Key0, "1": gohotkey.Key1, "2": gohotkey.Key2, "3": gohotkey.Key3,
	"4": gohotkey.Key4, "5": gohotkey.Key5, "6": gohotkey.Key6, "7": gohotkey.Key7,
	"8": gohotkey.Key8, "9": gohotkey.Key9,

	"f1": gohotkey.KeyF1, "f2": gohotkey.KeyF2, "f3": gohotkey.KeyF3, "f4": gohotkey.KeyF4,
	"f5": gohotkey.KeyF5, "f6": gohotkey.KeyF6, "f7": gohotkey.KeyF7, "f8": gohotkey.KeyF8,
	"f9": gohotkey.KeyF9, "f10": gohotkey.KeyF10, "f11": gohotkey.KeyF11, "f12": gohotkey.KeyF12,

	"space": gohotkey.KeySpace,
}

func modifiers(b Binding) []gohotkey.Modifier {
	var mods []gohotkey.Modifier
	if b.Ctrl {
		mods = append(mods, gohotkey.ModCtrl)
	}
	if b.Shift {
		mods = append(mods, gohotkey.ModShift)
	}
	if b.Alt {
		mods = append(mods, modAlt)
	}
	if b.Super {
		mods = append(mods, modSuper)
	}
	return mods
}

// Listener owns one registered global hotkey.
type Listener struct {
	logger  *utils.Logger
	onPress func()

	mu   sync.Mutex
	hk   *gohotkey.Hotkey
	done chan struct{}
}

// NewListener creates a listener that calls onPress, at most once per
// DefaultDebounce, from a background goroutine.
func NewListener(logger *utils.Logger, onPress func()) *Listener {
	return &Listener{logger: logger, onPress: onPress}
}

// Register parses combo and replaces any previous registration. On error
// the previous hotkey is already gone and the feature stays off.
func (l *Listener) Register(combo string) error {
	l.Unregister()

	b, err := Parse(combo)
	if err != nil {
		return err
	}

	hk := gohotkey.New(modifiers(b), keyCodes[b.Key])
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey %s: %w", b, err)
	}

	done := make(chan struct{})
	l.mu.Lock()
	l.hk = hk
	l.done = done
	l.mu.Unlock()

	deb := newDebouncer(DefaultDebounce)
	utils.SafeGo(l.logger, "hotkey listener", func() {
		for {
			select {
			case <-done:
				return
			case _, ok := <-hk.Keydown():
				if !ok {
					return
				}
				if deb.allow() {
					l.onPress()
				}
			}
		}
	})

	l.logger.Info("Global hotkey registered: %s", b)
	return nil
}

// Unregister releases the current hotkey, if any.
func (l *Listener) Unregister() {
	l.mu.Lock()
	hk, done := l.hk, l.done
	l.hk, l.done = nil, nil
	l.mu.Unlock()

	if hk == nil {
		return
	}
	close(done)
	if err := hk.Unregister(); err != nil {
		l.logger.Warn("Failed to unregister hotkey: %v", err)
	}
}
