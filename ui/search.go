package ui

import (
	"fmt"
	"strings"

	"askforge-client/api"
	"askforge-client/db"
	"askforge-client/utils"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

const searchLimit = 50

// SearchView searches the local history mirror.
type SearchView struct {
	app           *App
	searchEntry   *widget.Entry
	resultsList   *widget.List
	searchResults []*db.SearchResult
	statusLabel   *widget.Label
	onOpen        func(conversationID int64)
}

// NewSearchView creates a new search view
func NewSearchView(app *App, onOpen func(conversationID int64)) *SearchView {
	return &SearchView{
		app:    app,
		onOpen: onOpen,
	}
}

// Build builds the search view UI
func (sv *SearchView) Build() fyne.CanvasObject {
	sv.searchEntry = widget.NewEntry()
	sv.searchEntry.SetPlaceHolder("Buscar no histórico...")
	sv.searchEntry.OnSubmitted = func(string) { sv.performSearch() }

	searchButton := widget.NewButton("Buscar", sv.performSearch)
	searchButton.Importance = widget.HighImportance

	sv.statusLabel = widget.NewLabel("Digite palavras-chave para buscar")
	sv.statusLabel.Alignment = fyne.TextAlignCenter

	sv.resultsList = widget.NewList(
		func() int { return len(sv.searchResults) },
		func() fyne.CanvasObject {
			title := widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
			title.Truncation = fyne.TextTruncateEllipsis
			snippet := widget.NewRichText()
			snippet.Truncation = fyne.TextTruncateEllipsis
			return container.NewVBox(title, snippet)
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id >= len(sv.searchResults) {
				return
			}
			result := sv.searchResults[id]
			box := obj.(*fyne.Container)
			box.Objects[0].(*widget.Label).SetText(resultHeading(result))
			box.Objects[1].(*widget.RichText).ParseMarkdown(strings.Join(strings.Fields(result.Snippet), " "))
		},
	)
	sv.resultsList.OnSelected = func(id widget.ListItemID) {
		if id >= len(sv.searchResults) {
			return
		}
		sv.resultsList.UnselectAll()
		sv.onOpen(sv.searchResults[id].ConversationID)
	}

	searchBar := container.NewBorder(nil, nil, nil, searchButton, sv.searchEntry)
	return container.NewBorder(container.NewVBox(searchBar, sv.statusLabel), nil, nil, nil, sv.resultsList)
}

func resultHeading(r *db.SearchResult) string {
	title := r.ConversationTitle
	if title == "" {
		title = "Sem título"
	}
	who := "Assistente"
	if r.Role == api.RoleUser {
		who = "Você"
	}
	return fmt.Sprintf("%s · %s", title, who)
}

func (sv *SearchView) performSearch() {
	query := strings.TrimSpace(sv.searchEntry.Text)
	if query == "" {
		sv.showResults(nil, "Digite palavras-chave para buscar")
		return
	}
	sv.statusLabel.SetText("Buscando...")
	sv.app.logger.Debug("Searching history for %q", query)

	utils.SafeGo(sv.app.logger, "history search", func() {
		results, err := sv.app.mirror.SearchMessages(query, searchLimit)
		fyne.Do(func() {
			if err != nil {
				sv.app.logger.Error("Search failed: %v", err)
				sv.showResults(nil, "Falha na busca: "+err.Error())
				return
			}
			status := fmt.Sprintf("%d resultado(s)", len(results))
			if len(results) == 0 {
				status = "Nenhum resultado encontrado"
			}
			sv.showResults(results, status)
		})
	})
}

func (sv *SearchView) showResults(results []*db.SearchResult, status string) {
	sv.searchResults = results
	sv.statusLabel.SetText(status)
	sv.resultsList.Refresh()
}

// showSearch opens the history search over the chat screen.
func (a *App) showSearch() {
	if a.chat == nil {
		return
	}
	var d dialog.Dialog
	sv := NewSearchView(a, func(id int64) {
		d.Hide()
		a.chat.openConversationByID(id)
	})
	content := sv.Build()

	d = dialog.NewCustom("Buscar no Histórico", "Fechar", content, a.window)
	d.Resize(fyne.NewSize(640, 480))
	d.Show()
	a.window.Canvas().Focus(sv.searchEntry)
}
