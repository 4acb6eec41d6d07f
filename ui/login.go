package ui

import (
	"context"
	"strings"
	"time"

	"askforge-client/api"
	"askforge-client/chat"
	"askforge-client/utils"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/widget"
)

const urlExample = "Exemplo: http://192.168.1.100:3000"

// showSetup is the first-run screen asking for the server address.
func (a *App) showSetup() {
	urlEntry := widget.NewEntry()
	urlEntry.SetPlaceHolder("http://servidor:3000")

	status := widget.NewLabel("")
	status.Wrapping = fyne.TextWrapWord

	testButton := widget.NewButton("Testar Conexão", func() {
		testServer(a.logger, urlEntry.Text, status)
	})

	okButton := widget.NewButton("OK", func() {
		apiURL := strings.TrimSpace(urlEntry.Text)
		if apiURL == "" {
			setStatus(status, "Digite uma URL", widget.DangerImportance)
			return
		}
		a.config = utils.NewConfig(apiURL)
		if err := utils.SaveConfig(a.configPath, a.config); err != nil {
			a.logger.Error("Failed to save config: %v", err)
			a.showError("Erro ao salvar configuração: " + err.Error())
			return
		}
		a.logger.Info("Config created at %s", a.configPath)
		a.initWithConfig()
	})
	okButton.Importance = widget.HighImportance
	urlEntry.OnSubmitted = func(string) { okButton.OnTapped() }

	title := widget.NewLabelWithStyle("Configuração Inicial", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	subtitle := widget.NewLabelWithStyle("Configure a URL da API para conectar ao servidor",
		fyne.TextAlignCenter, fyne.TextStyle{})
	example := widget.NewLabelWithStyle(urlExample, fyne.TextAlignLeading, fyne.TextStyle{Italic: true})

	form := container.NewVBox(
		title,
		subtitle,
		widget.NewSeparator(),
		widget.NewLabel("URL da API:"),
		urlEntry,
		example,
		status,
		container.NewGridWithColumns(2, testButton, okButton),
	)
	a.setContent(centered(420, form))
}

// testServer checks apiURL in the background and reports on status.
func testServer(logger *utils.Logger, apiURL string, status *widget.Label) {
	apiURL = strings.TrimSpace(apiURL)
	if apiURL == "" {
		setStatus(status, "Digite uma URL", widget.DangerImportance)
		return
	}
	setStatus(status, "Testando conexão...", widget.LowImportance)

	utils.SafeGo(logger, "connection test", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := api.NewClient(apiURL, logger).TestConnection(ctx)
		fyne.Do(func() {
			if err != nil {
				logger.Debug("Connection test to %s failed: %v", apiURL, err)
				setStatus(status, "✗ Falha na conexão", widget.DangerImportance)
				return
			}
			setStatus(status, "✓ Conexão estabelecida!", widget.SuccessImportance)
		})
	})
}

func setStatus(label *widget.Label, text string, importance widget.Importance) {
	label.Importance = importance
	label.SetText(text)
}

// loginScreen collects credentials and runs the retrying login flow.
type loginScreen struct {
	app  *App
	flow *chat.LoginFlow

	email    *widget.Entry
	password *widget.Entry
	remember *widget.Check
	status   *widget.Label
	progress *widget.ProgressBarInfinite
	submit   *widget.Button
}

func newLoginScreen(a *App) *loginScreen {
	return &loginScreen{
		app:  a,
		flow: chat.NewLoginFlow(a.client, a.creds, a.logger),
	}
}

// Build builds the login form.
func (ls *loginScreen) Build() fyne.CanvasObject {
	ls.email = widget.NewEntry()
	ls.email.SetPlaceHolder("seu@email.com")
	ls.password = widget.NewPasswordEntry()
	ls.remember = widget.NewCheck("Salvar credenciais", nil)

	ls.status = widget.NewLabel("")
	ls.status.Wrapping = fyne.TextWrapWord
	ls.status.Alignment = fyne.TextAlignCenter

	ls.progress = widget.NewProgressBarInfinite()
	ls.progress.Stop()
	ls.progress.Hide()

	ls.submit = widget.NewButton("Entrar", ls.doLogin)
	ls.submit.Importance = widget.HighImportance
	ls.password.OnSubmitted = func(string) { ls.doLogin() }
	ls.email.OnSubmitted = func(string) { ls.app.window.Canvas().Focus(ls.password) }

	ls.flow.OnStatus = func(state chat.LoginState, message string) {
		fyne.Do(func() { ls.showState(state, message) })
	}
	ls.loadSavedCredentials()

	configButton := widget.NewButton("⚙️", ls.app.showAPIConfig)
	configButton.Importance = widget.LowImportance

	title := widget.NewLabelWithStyle("🧠 AskForge-AI", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	subtitle := widget.NewLabelWithStyle("Base de Conhecimento", fyne.TextAlignCenter, fyne.TextStyle{Italic: true})

	form := container.NewVBox(
		title,
		subtitle,
		widget.NewSeparator(),
		widget.NewLabel("Email:"),
		ls.email,
		widget.NewLabel("Senha:"),
		ls.password,
		ls.remember,
		ls.progress,
		ls.status,
		ls.submit,
	)

	top := container.NewHBox(layout.NewSpacer(), configButton)
	return container.NewBorder(top, nil, nil, nil, centered(360, form))
}

func (ls *loginScreen) loadSavedCredentials() {
	creds, err := ls.app.creds.Load()
	if err != nil {
		ls.app.logger.Warn("Failed to load saved credentials: %v", err)
		return
	}
	if creds == nil {
		return
	}
	ls.email.SetText(creds.Email)
	ls.password.SetText(creds.Password)
	ls.remember.SetChecked(true)
}

func (ls *loginScreen) showState(state chat.LoginState, message string) {
	importance := widget.MediumImportance
	switch state {
	case chat.LoginSuccess:
		importance = widget.SuccessImportance
	case chat.LoginCredentialFailure, chat.LoginExhaustedRetries:
		importance = widget.DangerImportance
	case chat.LoginConnectionFailure:
		importance = widget.WarningImportance
	case chat.LoginAttempting:
		importance = widget.LowImportance
	}
	setStatus(ls.status, message, importance)
}

func (ls *loginScreen) setBusy(busy bool) {
	if busy {
		ls.submit.Disable()
		ls.progress.Show()
		ls.progress.Start()
		return
	}
	ls.submit.Enable()
	ls.progress.Stop()
	ls.progress.Hide()
}

func (ls *loginScreen) doLogin() {
	email, password, remember := ls.email.Text, ls.password.Text, ls.remember.Checked
	if strings.TrimSpace(email) == "" || password == "" {
		setStatus(ls.status, chat.ErrMissingCredentials.Error(), widget.DangerImportance)
		return
	}

	ls.setBusy(true)
	utils.SafeGo(ls.app.logger, "login", func() {
		result := ls.flow.Login(context.Background(), email, password, remember)
		fyne.Do(func() {
			ls.setBusy(false)
			switch result.State {
			case chat.LoginSuccess:
				ls.app.showChat(result.User)
			case chat.LoginExhaustedRetries:
				ls.showConnectionError()
			}
		})
	})
}

// showConnectionError lets the user fix the server address after retries
// ran out.
func (ls *loginScreen) showConnectionError() {
	urlEntry := widget.NewEntry()
	urlEntry.SetText(ls.app.client.BaseURL())

	content := container.NewVBox(
		widget.NewLabelWithStyle("⚠️ Não foi possível conectar ao servidor", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		widget.NewLabel("Verifique se o endereço do servidor está correto:"),
		widget.NewLabel("URL do Servidor:"),
		urlEntry,
		widget.NewLabelWithStyle("Exemplo: http://192.168.1.100:3001", fyne.TextAlignLeading, fyne.TextStyle{Italic: true}),
	)

	d := dialog.NewCustomConfirm("Erro de Conexão", "Salvar e Tentar Novamente", "Cancelar", content,
		func(ok bool) {
			if !ok {
				return
			}
			newURL := strings.TrimRight(strings.TrimSpace(urlEntry.Text), "/")
			if newURL == "" {
				ls.app.showError("Digite uma URL válida")
				return
			}
			ls.app.saveURL(newURL)
			ls.flow.Reconfigure(newURL)
		}, ls.app.window)
	d.Resize(fyne.NewSize(450, 0))
	d.Show()
}

// showAPIConfig edits the server address from the login screen.
func (a *App) showAPIConfig() {
	urlEntry := widget.NewEntry()
	urlEntry.SetText(a.config.APIURL)
	status := widget.NewLabel("")

	content := container.NewVBox(
		widget.NewLabel("URL da API:"),
		urlEntry,
		widget.NewLabelWithStyle(urlExample, fyne.TextAlignLeading, fyne.TextStyle{Italic: true}),
		status,
		widget.NewButton("Testar Conexão", func() { testServer(a.logger, urlEntry.Text, status) }),
	)

	d := dialog.NewCustomConfirm("Configurar API", "Salvar", "Cancelar", content, func(ok bool) {
		if !ok {
			return
		}
		newURL := strings.TrimSpace(urlEntry.Text)
		if newURL == "" {
			a.showError("Digite uma URL válida")
			return
		}
		a.saveURL(newURL)
		a.client.SetBaseURL(a.config.APIURL)
		a.logger.Info("API server changed to %s", a.config.APIURL)
	}, a.window)
	d.Resize(fyne.NewSize(450, 0))
	d.Show()
}
