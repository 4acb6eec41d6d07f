package hotkey

import gohotkey "golang.design/x/hotkey"

const (
	modAlt   = gohotkey.ModOption
	modSuper = gohotkey.ModCmd
)
