package ui

import (
	"strings"

	"askforge-client/api"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// ConversationItem represents a clickable conversation item with context menu
type ConversationItem struct {
	widget.BaseWidget
	screen       *ChatScreen
	conversation api.Conversation
	title        *widget.Label
	subtitle     *widget.Label
	highlighted  bool
}

// NewConversationItem creates a new conversation item
func NewConversationItem(screen *ChatScreen, conv api.Conversation) *ConversationItem {
	item := &ConversationItem{
		screen:       screen,
		conversation: conv,
	}
	title := conv.Title
	if title == "" {
		title = "Sem título"
	}
	item.title = widget.NewLabel(title)
	item.title.Truncation = fyne.TextTruncateEllipsis
	item.subtitle = widget.NewLabel(conv.Label())
	item.subtitle.Importance = widget.LowImportance
	item.subtitle.Truncation = fyne.TextTruncateEllipsis
	item.ExtendBaseWidget(item)
	return item
}

// CreateRenderer creates the renderer for the conversation item
func (ci *ConversationItem) CreateRenderer() fyne.WidgetRenderer {
	deleteButton := widget.NewButton("🗑️", func() {
		ci.screen.deleteConversation(ci.conversation)
	})
	deleteButton.Importance = widget.LowImportance

	text := container.NewVBox(ci.title)
	if ci.subtitle.Text != "" {
		text.Add(ci.subtitle)
	}
	return widget.NewSimpleRenderer(container.NewBorder(nil, nil, nil, deleteButton, text))
}

// Tapped handles left-click
func (ci *ConversationItem) Tapped(_ *fyne.PointEvent) {
	ci.screen.selectConversation(ci.conversation)
}

// TappedSecondary handles right-click
func (ci *ConversationItem) TappedSecondary(pe *fyne.PointEvent) {
	menu := fyne.NewMenu("",
		fyne.NewMenuItem("Renomear", func() { ci.screen.renameConversation(ci.conversation) }),
		fyne.NewMenuItem("Excluir", func() { ci.screen.deleteConversation(ci.conversation) }),
	)
	widget.ShowPopUpMenuAtPosition(menu, ci.screen.app.window.Canvas(), pe.AbsolutePosition)
}

// SetHighlighted sets the highlighted state
func (ci *ConversationItem) SetHighlighted(highlighted bool) {
	if ci.highlighted == highlighted {
		return
	}
	ci.highlighted = highlighted
	ci.title.TextStyle = fyne.TextStyle{Bold: highlighted}
	ci.title.Refresh()
}

// ConversationSidebar lists the user's conversations with a title filter.
type ConversationSidebar struct {
	widget.BaseWidget
	screen        *ChatScreen
	conversations []api.Conversation
	items         []*ConversationItem
	list          *fyne.Container
	filter        *widget.Entry
	filterText    string
	activeID      int64
}

// NewConversationSidebar creates a new conversation sidebar
func NewConversationSidebar(screen *ChatScreen) *ConversationSidebar {
	cs := &ConversationSidebar{
		screen: screen,
		list:   container.NewVBox(),
	}

	cs.filter = widget.NewEntry()
	cs.filter.SetPlaceHolder("Filtrar conversas...")
	cs.filter.OnChanged = func(text string) {
		cs.filterText = strings.ToLower(strings.TrimSpace(text))
		cs.updateList()
	}

	cs.ExtendBaseWidget(cs)
	cs.updateList()
	return cs
}

// CreateRenderer creates the renderer for the sidebar
func (cs *ConversationSidebar) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(container.NewBorder(cs.filter, nil, nil, nil, container.NewVScroll(cs.list)))
}

// SetConversations replaces the list, highlighting activeID.
func (cs *ConversationSidebar) SetConversations(convs []api.Conversation, activeID int64) {
	cs.conversations = convs
	cs.activeID = activeID
	cs.updateList()
}

// SetActive highlights the conversation with id, or none for 0.
func (cs *ConversationSidebar) SetActive(id int64) {
	cs.activeID = id
	for _, item := range cs.items {
		item.SetHighlighted(item.conversation.ID == id)
	}
}

func (cs *ConversationSidebar) updateList() {
	cs.items = cs.items[:0]
	cs.list.Objects = nil

	for _, conv := range cs.conversations {
		if cs.filterText != "" && !strings.Contains(strings.ToLower(conv.Title), cs.filterText) {
			continue
		}
		item := NewConversationItem(cs.screen, conv)
		item.SetHighlighted(conv.ID == cs.activeID)
		cs.items = append(cs.items, item)
		cs.list.Add(item)
		cs.list.Add(widget.NewSeparator())
	}

	if len(cs.items) == 0 {
		empty := widget.NewLabelWithStyle("Nenhuma conversa", fyne.TextAlignCenter, fyne.TextStyle{Italic: true})
		cs.list.Add(empty)
	}
	cs.list.Refresh()
}
