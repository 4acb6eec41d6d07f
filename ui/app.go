package ui

import (
	"context"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"askforge-client/api"
	"askforge-client/chat"
	"askforge-client/db"
	"askforge-client/hotkey"
	"askforge-client/utils"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"
)

const (
	AppTitle = "AskForge-AI"

	defaultWidth  = 1100
	defaultHeight = 700

	notificationLimit = 250
)

// App represents the main application
type App struct {
	fyneApp    fyne.App
	window     fyne.Window
	config     *utils.Config
	configPath string
	mirror     *db.DB
	logger     *utils.Logger

	client  *api.Client
	creds   *utils.CredentialStore
	hotkeys *hotkey.Listener

	trayEnabled bool
	hidden      atomic.Bool
	background  atomic.Bool

	chat *ChatScreen

	// conversation named by the last notification, opened by "Abrir"
	pendingConversation atomic.Int64
}

// NewApp creates the application window. config is nil on first run, in
// which case the setup screen asks for the server address.
func NewApp(config *utils.Config, configPath string, mirror *db.DB, logger *utils.Logger) *App {
	fyneApp := app.NewWithID("com.askforge.client")
	fyneApp.Settings().SetTheme(newAskforgeTheme())
	window := fyneApp.NewWindow(AppTitle)

	a := &App{
		fyneApp:    fyneApp,
		window:     window,
		config:     config,
		configPath: configPath,
		mirror:     mirror,
		logger:     logger,
		creds:      utils.NewCredentialStore(utils.GetCredentialsPath()),
	}

	width, height := float32(defaultWidth), float32(defaultHeight)
	if config != nil && config.WindowWidth > 0 && config.WindowHeight > 0 {
		width, height = float32(config.WindowWidth), float32(config.WindowHeight)
	}
	window.Resize(fyne.NewSize(width, height))
	window.CenterOnScreen()

	window.SetCloseIntercept(a.onClose)
	fyneApp.Lifecycle().SetOnEnteredForeground(func() { a.background.Store(false) })
	fyneApp.Lifecycle().SetOnExitedForeground(func() { a.background.Store(true) })

	a.hotkeys = hotkey.NewListener(logger, a.Show)

	if config == nil {
		a.showSetup()
	} else {
		a.initWithConfig()
	}
	return a
}

// Run shows the window and blocks until the application quits.
func (a *App) Run() {
	a.window.ShowAndRun()
}

// Show brings the window to the front. Safe to call from any goroutine,
// it is used by the global hotkey and by a second instance.
func (a *App) Show() {
	fyne.Do(func() {
		a.hidden.Store(false)
		a.window.Show()
		a.window.RequestFocus()

		if id := a.pendingConversation.Swap(0); id != 0 && a.chat != nil {
			a.chat.openConversationByID(id)
		}
	})
}

// ApplyConfig takes a config edited outside the application. Safe to call
// from any goroutine.
func (a *App) ApplyConfig(cfg *utils.Config) {
	fyne.Do(func() {
		if a.config == nil {
			return
		}
		a.applySettings(cfg)
	})
}

// Cleanup releases the global hotkey.
func (a *App) Cleanup() {
	a.hotkeys.Unregister()
}

func (a *App) onClose() {
	a.saveWindowSize()
	if a.trayEnabled {
		a.logger.Debug("Window close intercepted, hiding to tray")
		a.hidden.Store(true)
		a.window.Hide()
		return
	}
	a.quit()
}

func (a *App) quit() {
	a.logger.Info("Quitting")
	a.Cleanup()
	a.fyneApp.Quit()
}

func (a *App) saveWindowSize() {
	if a.config == nil {
		return
	}
	size := a.window.Canvas().Size()
	a.config.WindowWidth = int(size.Width)
	a.config.WindowHeight = int(size.Height)
	if err := utils.SaveConfig(a.configPath, a.config); err != nil {
		a.logger.Error("Failed to save window size: %v", err)
	}
}

// initWithConfig creates the API client, checks the server in the
// background and shows the login screen.
func (a *App) initWithConfig() {
	a.client = api.NewClient(a.config.APIURL, a.logger)
	a.logger.Info("API server: %s", a.config.APIURL)

	utils.SafeGo(a.logger, "startup connection test", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.client.TestConnection(ctx); err != nil {
			a.logger.Warn("Server unreachable at startup: %v", err)
			fyne.Do(func() {
				dialog.ShowInformation("Aviso de Conexão",
					"Não foi possível conectar ao servidor.\nVerifique a URL nas configurações.", a.window)
			})
		}
	})

	a.showLogin()
	a.setupTray()
	a.setupHotkey()
}

func (a *App) setupHotkey() {
	if err := a.hotkeys.Register(a.config.Hotkey); err != nil {
		a.logger.Warn("Global hotkey disabled: %v", err)
	}
}

func (a *App) setContent(content fyne.CanvasObject) {
	a.window.SetContent(content)
}

func (a *App) showLogin() {
	a.chat = nil
	a.setContent(newLoginScreen(a).Build())
}

func (a *App) showChat(user *api.User) {
	a.logger.Info("Logged in as %s", user.Email)
	if changed, err := a.mirror.ClaimOwner(user.Email); err != nil {
		a.logger.Error("Failed to scope local history to %s: %v", user.Email, err)
	} else if changed {
		a.logger.Info("Local history reset for %s", user.Email)
	}
	a.chat = NewChatScreen(a, user)
	a.setContent(a.chat.Build())
	a.setupShortcuts()
	a.chat.loadInitialData()
}

func (a *App) logout() {
	a.logger.Info("Logout")
	a.endSession()
	a.showLogin()
}

// endSession drops the server session and the local copy of the user's
// conversations.
func (a *App) endSession() {
	a.client.Logout()
	a.pendingConversation.Store(0)
	if err := a.mirror.Clear(); err != nil {
		a.logger.Error("Failed to clear local history: %v", err)
	}
}

// conversationDetail loads a conversation from the server. The mirror is
// used only when the server cannot be reached; any answer from the server,
// 404 included, is final.
func (a *App) conversationDetail(ctx context.Context, id int64) (detail *api.ConversationDetail, fromMirror bool, err error) {
	detail, err = a.client.Conversation(ctx, id)
	if err == nil {
		a.mirrorDetail(detail)
		return detail, false, nil
	}
	if !chat.IsConnectionError(err) {
		return nil, false, err
	}
	local, lerr := a.mirror.Detail(id)
	if lerr != nil {
		a.logger.Debug("Conversation %d not in local history: %v", id, lerr)
		return nil, false, err
	}
	return local, true, nil
}

func (a *App) mirrorDetail(detail *api.ConversationDetail) {
	if detail.Conversation.ID == 0 {
		return
	}
	if err := a.mirror.SaveConversation(detail.Conversation); err != nil {
		a.logger.Warn("Failed to mirror conversation: %v", err)
		return
	}
	if err := a.mirror.ReplaceMessages(detail.Conversation.ID, detail.Messages); err != nil {
		a.logger.Warn("Failed to mirror messages: %v", err)
	}
	if err := a.mirror.SaveAttachments(detail.Conversation.ID, detail.KnownAttachments()); err != nil {
		a.logger.Warn("Failed to mirror attachments: %v", err)
	}
}

func (a *App) setupShortcuts() {
	canvas := a.window.Canvas()
	canvas.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyN, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) {
			if a.chat != nil {
				a.chat.newConversation()
			}
		})
	canvas.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyF, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { a.showSearch() })
	canvas.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyComma, Modifier: fyne.KeyModifierShortcutDefault},
		func(fyne.Shortcut) { a.showSettings() })
}

// saveURL persists a server address chosen on the login or error screens.
func (a *App) saveURL(apiURL string) {
	a.config.APIURL = apiURL
	a.config.Normalize()
	if err := utils.SaveConfig(a.configPath, a.config); err != nil {
		a.logger.Error("Failed to save config: %v", err)
	}
}

// applySettings updates the running client and hotkey from cfg.
func (a *App) applySettings(cfg *utils.Config) {
	oldHotkey := a.config.Hotkey
	a.config.APIURL = cfg.APIURL
	a.config.Hotkey = cfg.Hotkey
	a.config.DisableTray = cfg.DisableTray
	a.config.Normalize()

	if a.client != nil && a.client.BaseURL() != a.config.APIURL {
		a.client.SetBaseURL(a.config.APIURL)
		a.logger.Info("API server changed to %s", a.config.APIURL)
	}
	if a.config.Hotkey != oldHotkey {
		a.setupHotkey()
	}
}

// notify shows a desktop notification for an answer that arrived while
// the window was hidden or in the background.
func (a *App) notify(title, message string, conversationID int64) {
	if !a.hidden.Load() && !a.background.Load() {
		return
	}
	a.pendingConversation.Store(conversationID)
	a.fyneApp.SendNotification(fyne.NewNotification(title, truncateNotification(message)))
}

func truncateNotification(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= notificationLimit {
		return string(r)
	}
	return string(r[:notificationLimit-3]) + "..."
}

// openURL opens u, relative to the server when needed, in the browser.
func (a *App) openURL(raw string) {
	u, err := url.Parse(a.client.ResolveURL(raw))
	if err != nil {
		a.showError("Endereço inválido: " + raw)
		return
	}
	if err := a.fyneApp.OpenURL(u); err != nil {
		a.logger.Error("Failed to open %s: %v", u, err)
		a.showError("Não foi possível abrir o link")
	}
}

func (a *App) showError(message string) {
	dialog.ShowCustom("Erro", "OK", widget.NewLabel(message), a.window)
}

func (a *App) showInfo(title, message string) {
	dialog.ShowInformation(title, message, a.window)
}

// centered wraps content in a fixed-width column in the middle of the
// window, used by the setup and login screens.
func centered(width float32, content fyne.CanvasObject) fyne.CanvasObject {
	sized := container.NewGridWrap(fyne.NewSize(width, content.MinSize().Height), content)
	return container.NewCenter(sized)
}
