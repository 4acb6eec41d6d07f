package hotkey

import gohotkey "golang.design/x/hotkey"

const (
	modAlt   = gohotkey.ModAlt
	modSuper = gohotkey.ModWin
)
