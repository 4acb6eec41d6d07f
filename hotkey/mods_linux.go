package hotkey

import gohotkey "golang.design/x/hotkey"

// X11 maps Alt to Mod1 and Super to Mod4 on common layouts.
const (
	modAlt   = gohotkey.Mod1
	modSuper = gohotkey.Mod4
)
