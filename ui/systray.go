package ui

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
)

// setupTray installs the system tray menu. Once it is installed, closing
// the window hides it instead of quitting.
func (a *App) setupTray() {
	if a.config.DisableTray {
		a.logger.Info("System tray disabled by config")
		return
	}
	desk, ok := a.fyneApp.(desktop.App)
	if !ok {
		a.logger.Debug("System tray not supported by this driver")
		return
	}

	menu := fyne.NewMenu(AppTitle,
		fyne.NewMenuItem("Abrir", a.Show),
		fyne.NewMenuItem("Nova Conversa", func() {
			a.Show()
			if a.chat != nil {
				a.chat.newConversation()
			}
		}),
		fyne.NewMenuItem("Configurações", func() {
			a.Show()
			a.showSettings()
		}),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Sair", a.quit),
	)
	// the tray adds its own Quit item unless one is marked as such
	menu.Items[len(menu.Items)-1].IsQuit = true

	desk.SetSystemTrayMenu(menu)
	a.trayEnabled = true
	a.logger.Info("System tray initialized")
}
