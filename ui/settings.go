package ui

import (
	"fmt"
	"strings"

	"askforge-client/hotkey"
	"askforge-client/utils"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// SettingsView edits the connection, hotkey and local history.
type SettingsView struct {
	app *App

	urlEntry    *widget.Entry
	hotkeyEntry *widget.Entry
	trayCheck   *widget.Check
	status      *widget.Label
	statsLabel  *widget.Label
}

// NewSettingsView creates a new settings view
func NewSettingsView(app *App) *SettingsView {
	return &SettingsView{app: app}
}

// Build builds the settings UI
func (sv *SettingsView) Build() fyne.CanvasObject {
	tabs := container.NewAppTabs(
		container.NewTabItem("Geral", sv.buildGeneralTab()),
		container.NewTabItem("Histórico Local", sv.buildHistoryTab()),
	)
	return tabs
}

func (sv *SettingsView) buildGeneralTab() fyne.CanvasObject {
	cfg := sv.app.config

	sv.urlEntry = widget.NewEntry()
	sv.urlEntry.SetText(cfg.APIURL)

	sv.hotkeyEntry = widget.NewEntry()
	sv.hotkeyEntry.SetText(cfg.Hotkey)
	sv.hotkeyEntry.Validator = func(s string) error {
		_, err := hotkey.Parse(s)
		return err
	}

	sv.trayCheck = widget.NewCheck("Manter na bandeja do sistema ao fechar", nil)
	sv.trayCheck.SetChecked(!cfg.DisableTray)

	sv.status = widget.NewLabel("")
	sv.status.Wrapping = fyne.TextWrapWord

	testButton := widget.NewButton("Testar Conexão", func() {
		testServer(sv.app.logger, sv.urlEntry.Text, sv.status)
	})

	hotkeyNote := widget.NewLabelWithStyle("Exemplo: ctrl+k, ctrl+shift+space, alt+q",
		fyne.TextAlignLeading, fyne.TextStyle{Italic: true})
	trayNote := widget.NewLabelWithStyle("Alterações na bandeja valem após reiniciar",
		fyne.TextAlignLeading, fyne.TextStyle{Italic: true})

	form := widget.NewForm(
		widget.NewFormItem("URL da API", container.NewVBox(sv.urlEntry, testButton, sv.status)),
		widget.NewFormItem("Atalho global", container.NewVBox(sv.hotkeyEntry, hotkeyNote)),
		widget.NewFormItem("Bandeja", container.NewVBox(sv.trayCheck, trayNote)),
	)
	return container.NewVScroll(form)
}

func (sv *SettingsView) buildHistoryTab() fyne.CanvasObject {
	sv.statsLabel = widget.NewLabel("Carregando estatísticas...")
	sv.statsLabel.Wrapping = fyne.TextWrapWord
	sv.updateStats()

	path := widget.NewLabel(sv.app.config.HistoryDBPath())
	path.Wrapping = fyne.TextWrapBreak
	path.Selectable = true

	search := "Busca: texto completo (FTS5)"
	if !sv.app.mirror.FullTextSearch() {
		search = "Busca: simples (FTS5 indisponível)"
	}

	vacuumButton := widget.NewButton("Otimizar banco", func() {
		utils.SafeGoWithError(sv.app.logger, "vacuum history", func() error {
			if err := sv.app.mirror.Vacuum(); err != nil {
				return err
			}
			fyne.Do(sv.updateStats)
			return nil
		}, func(err error) {
			fyne.Do(func() { sv.app.showError("Falha ao otimizar: " + err.Error()) })
		})
	})

	clearButton := widget.NewButton("Limpar histórico", sv.confirmClear)
	clearButton.Importance = widget.DangerImportance

	return container.NewVBox(
		widget.NewLabelWithStyle("Arquivo", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		path,
		widget.NewLabel(search),
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Estatísticas", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		sv.statsLabel,
		container.NewGridWithColumns(3,
			widget.NewButton("Atualizar", sv.updateStats),
			vacuumButton,
			clearButton,
		),
	)
}

func (sv *SettingsView) updateStats() {
	stats, err := sv.app.mirror.GetStats()
	if err != nil {
		sv.app.logger.Error("Failed to get history stats: %v", err)
		sv.statsLabel.SetText("Não foi possível obter as estatísticas")
		return
	}
	sv.statsLabel.SetText(fmt.Sprintf("Conversas: %d\nMensagens: %d\nAnexos: %d\nTamanho: %s",
		stats.ConversationCount, stats.MessageCount, stats.AttachmentCount, formatSize(stats.DBSizeBytes)))
}

func formatSize(n int64) string {
	kb := float64(n) / 1024
	if mb := kb / 1024; mb >= 1 {
		return fmt.Sprintf("%.2f MB", mb)
	}
	return fmt.Sprintf("%.2f KB", kb)
}

func (sv *SettingsView) confirmClear() {
	dialog.ShowConfirm("Limpar histórico",
		"Apagar a cópia local das conversas?\nAs conversas no servidor não são afetadas.",
		func(ok bool) {
			if !ok {
				return
			}
			if err := sv.app.mirror.Clear(); err != nil {
				sv.app.logger.Error("Failed to clear history: %v", err)
				sv.app.showError("Falha ao limpar histórico: " + err.Error())
				return
			}
			sv.app.logger.Info("Local history cleared")
			sv.updateStats()
			if sv.app.chat != nil {
				sv.app.chat.refreshConversations()
			}
		}, sv.app.window)
}

// save validates the form and applies it. It reports false when the form
// has errors and the dialog should stay open.
func (sv *SettingsView) save() bool {
	apiURL := strings.TrimSpace(sv.urlEntry.Text)
	if apiURL == "" {
		setStatus(sv.status, "Digite uma URL", widget.DangerImportance)
		return false
	}
	if err := sv.hotkeyEntry.Validate(); err != nil {
		sv.app.showError("Atalho inválido: " + err.Error())
		return false
	}

	cfg := *sv.app.config
	cfg.APIURL = apiURL
	cfg.Hotkey = sv.hotkeyEntry.Text
	cfg.DisableTray = !sv.trayCheck.Checked
	cfg.Normalize()

	if err := utils.SaveConfig(sv.app.configPath, &cfg); err != nil {
		sv.app.logger.Error("Failed to save config: %v", err)
		sv.app.showError("Erro ao salvar configuração: " + err.Error())
		return false
	}
	sv.app.applySettings(&cfg)
	sv.app.logger.Info("Settings saved")
	return true
}

// showSettings opens the settings dialog.
func (a *App) showSettings() {
	if a.config == nil {
		return
	}
	sv := NewSettingsView(a)
	var d *dialog.CustomDialog
	saveButton := widget.NewButton("Salvar", func() {
		if sv.save() {
			d.Hide()
		}
	})
	saveButton.Importance = widget.HighImportance
	cancelButton := widget.NewButton("Cancelar", func() { d.Hide() })

	d = dialog.NewCustomWithoutButtons("Configurações", sv.Build(), a.window)
	d.SetButtons([]fyne.CanvasObject{cancelButton, saveButton})
	d.Resize(fyne.NewSize(560, 460))
	d.Show()
}
