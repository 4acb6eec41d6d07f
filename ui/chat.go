package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"askforge-client/api"
	"askforge-client/chat"
	"askforge-client/utils"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

const requestTimeout = 15 * time.Second

// chatEntry is a multi-line entry that sends on Ctrl+Enter and offers
// clipboard images on paste.
type chatEntry struct {
	widget.Entry
	onSend  func()
	onPaste func() bool
}

func newChatEntry() *chatEntry {
	e := &chatEntry{}
	e.MultiLine = true
	e.Wrapping = fyne.TextWrapWord
	e.SetMinRowsVisible(3)
	e.ExtendBaseWidget(e)
	return e
}

// TypedShortcut handles keyboard shortcuts
func (e *chatEntry) TypedShortcut(shortcut fyne.Shortcut) {
	if _, ok := shortcut.(*fyne.ShortcutPaste); ok {
		if e.onPaste != nil && e.onPaste() {
			return
		}
		e.Entry.TypedShortcut(shortcut)
		return
	}
	if ks, ok := shortcut.(*desktop.CustomShortcut); ok {
		if (ks.KeyName == fyne.KeyReturn || ks.KeyName == fyne.KeyEnter) && ks.Modifier == fyne.KeyModifierControl {
			if e.onSend != nil {
				e.onSend()
			}
			return
		}
	}
	e.Entry.TypedShortcut(shortcut)
}

// ChatScreen is the logged-in view: conversation list on the left and the
// active conversation, or the module picker, on the right.
type ChatScreen struct {
	app     *App
	user    *api.User
	session *chat.Session

	conversations []api.Conversation
	offline       bool

	sidebar *ConversationSidebar
	main    *fyne.Container

	chatArea     fyne.CanvasObject
	titleLabel   *widget.Label
	moduleLabel  *widget.Label
	statusLabel  *widget.Label
	messages     *fyne.Container
	scroll       *container.Scroll
	input        *chatEntry
	sendButton   *widget.Button
	imageButtons *fyne.Container
	preview      *fyne.Container

	// bumped on every conversation switch so late loads are dropped
	loadSeq int
}

// NewChatScreen creates the chat screen for user.
func NewChatScreen(a *App, user *api.User) *ChatScreen {
	return &ChatScreen{
		app:     a,
		user:    user,
		session: chat.NewSession(),
	}
}

// Build builds the chat screen UI
func (cs *ChatScreen) Build() fyne.CanvasObject {
	cs.sidebar = NewConversationSidebar(cs)

	newButton := widget.NewButton("+ Nova Conversa", cs.newConversation)
	newButton.Importance = widget.HighImportance

	userLabel := widget.NewLabelWithStyle("👤 "+cs.user.Name, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	userLabel.Truncation = fyne.TextTruncateEllipsis

	searchButton := widget.NewButton("🔍 Buscar", cs.app.showSearch)
	settingsButton := widget.NewButton("Configurações", cs.app.showSettings)
	logoutButton := widget.NewButton("Sair", cs.app.logout)
	logoutButton.Importance = widget.LowImportance

	left := container.NewBorder(
		container.NewVBox(
			widget.NewLabelWithStyle("🧠 AskForge-AI", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
			newButton,
			widget.NewSeparator(),
		),
		container.NewVBox(
			widget.NewSeparator(),
			userLabel,
			searchButton,
			container.NewGridWithColumns(2, settingsButton, logoutButton),
		),
		nil, nil,
		cs.sidebar,
	)

	cs.chatArea = cs.buildChatArea()
	cs.main = container.NewStack()
	cs.showWelcome()

	split := container.NewHSplit(left, cs.main)
	split.SetOffset(0.25)
	return split
}

func (cs *ChatScreen) buildChatArea() fyne.CanvasObject {
	cs.titleLabel = widget.NewLabelWithStyle(chat.NewConversationTitle, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})
	cs.moduleLabel = widget.NewLabel("")
	cs.moduleLabel.Importance = widget.LowImportance

	cs.messages = container.NewVBox()
	cs.scroll = container.NewVScroll(cs.messages)

	cs.statusLabel = widget.NewLabel("")
	cs.statusLabel.Importance = widget.LowImportance

	cs.input = newChatEntry()
	cs.input.SetPlaceHolder("Digite sua mensagem... (Ctrl+Enter para enviar)")
	cs.input.onSend = cs.sendMessage
	cs.input.onPaste = cs.pasteImage

	cs.sendButton = widget.NewButton("Enviar", cs.sendMessage)
	cs.sendButton.Importance = widget.HighImportance

	attachButton := widget.NewButton("📎 Anexar Imagem", cs.attachImage)
	attachButton.Importance = widget.LowImportance
	hint := widget.NewLabel("💡 Ctrl+V para colar imagem")
	hint.Importance = widget.LowImportance
	cs.imageButtons = container.NewHBox(attachButton, hint)
	cs.imageButtons.Hide()

	cs.preview = container.NewHBox()
	cs.preview.Hide()

	header := container.NewVBox(cs.titleLabel, cs.moduleLabel, widget.NewSeparator())
	footer := container.NewVBox(
		cs.statusLabel,
		cs.preview,
		cs.imageButtons,
		container.NewBorder(nil, nil, nil, cs.sendButton, cs.input),
	)
	return container.NewBorder(header, footer, nil, nil, cs.scroll)
}

func (cs *ChatScreen) setMain(content fyne.CanvasObject) {
	cs.main.Objects = []fyne.CanvasObject{content}
	cs.main.Refresh()
}

func (cs *ChatScreen) setStatus(text string) {
	cs.statusLabel.SetText(text)
}

// loadInitialData fetches the conversation list and checks whether the
// active model accepts images.
func (cs *ChatScreen) loadInitialData() {
	cs.refreshConversations()

	utils.SafeGo(cs.app.logger, "active model check", func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		model, err := cs.app.client.ActiveModel(ctx)
		supports := err == nil && model.SupportsImages
		if err != nil {
			cs.app.logger.Warn("Active model check failed: %v", err)
		} else {
			cs.app.logger.Info("Active model: %s (%s), images: %v", model.Name, model.Model, model.SupportsImages)
		}
		fyne.Do(func() {
			cs.session.SupportsImages = supports
			if supports {
				cs.imageButtons.Show()
			} else {
				cs.imageButtons.Hide()
				cs.removeAttachedImage()
			}
		})
	})
}

// refreshConversations reloads the list from the server, falling back to
// the local mirror when the server cannot be reached.
func (cs *ChatScreen) refreshConversations() {
	utils.SafeGo(cs.app.logger, "refresh conversations", func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		convs, err := cs.app.client.Conversations(ctx)
		offline := false
		if err == nil {
			if err := cs.app.mirror.SyncConversations(convs); err != nil {
				cs.app.logger.Warn("Failed to mirror conversations: %v", err)
			}
		} else {
			cs.app.logger.Error("Failed to load conversations: %v", err)
			if !chat.IsConnectionError(err) {
				fyne.Do(func() { cs.setStatus("Erro ao carregar conversas") })
				return
			}
			local, lerr := cs.app.mirror.ListConversations()
			if lerr != nil {
				cs.app.logger.Error("Failed to read local history: %v", lerr)
				return
			}
			convs, offline = local, true
		}

		fyne.Do(func() {
			cs.conversations = convs
			cs.offline = offline
			cs.sidebar.SetConversations(convs, cs.activeID())
			if offline {
				cs.setStatus("Modo offline: exibindo histórico local")
			}
		})
	})
}

func (cs *ChatScreen) activeID() int64 {
	if id := cs.session.ConversationID(); id != nil {
		return *id
	}
	return 0
}

func (cs *ChatScreen) showWelcome() {
	content := container.NewVBox(
		widget.NewLabelWithStyle("🧠", fyne.TextAlignCenter, fyne.TextStyle{}),
		widget.NewLabelWithStyle("Bem-vindo ao AskForge-AI", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		widget.NewLabelWithStyle("Selecione uma conversa existente ou inicie uma nova", fyne.TextAlignCenter, fyne.TextStyle{}),
	)
	cs.setMain(container.NewCenter(content))
}

// newConversation clears the session and asks for a knowledge base.
func (cs *ChatScreen) newConversation() {
	cs.loadSeq++
	cs.session.NewConversation()
	cs.removeAttachedImage()
	cs.sidebar.SetActive(0)
	cs.titleLabel.SetText(chat.NewConversationTitle)
	cs.moduleLabel.SetText("")
	cs.showModuleSelection()
}

func (cs *ChatScreen) showModuleSelection() {
	list := container.NewVBox(widget.NewLabel("Carregando módulos..."))
	title := widget.NewLabelWithStyle("📁 Selecione uma Base de Conhecimento", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	cs.setMain(container.NewBorder(title, nil, nil, nil, container.NewVScroll(list)))

	seq := cs.loadSeq
	utils.SafeGo(cs.app.logger, "load modules", func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		modules, err := cs.app.client.Modules(ctx)
		fyne.Do(func() {
			if seq != cs.loadSeq {
				return
			}
			if err != nil {
				cs.app.logger.Error("Failed to load modules: %v", err)
				list.Objects = []fyne.CanvasObject{widget.NewLabel("Erro ao carregar módulos: " + err.Error())}
				list.Refresh()
				return
			}
			if len(modules) == 0 {
				list.Objects = []fyne.CanvasObject{widget.NewLabel("Nenhum módulo disponível")}
				list.Refresh()
				return
			}
			list.Objects = nil
			for _, m := range modules {
				m := m
				button := widget.NewButton(m.Name, func() { cs.selectModule(m) })
				card := container.NewVBox(button)
				if m.Description != "" {
					desc := widget.NewLabel(m.Description)
					desc.Wrapping = fyne.TextWrapWord
					desc.Importance = widget.LowImportance
					card.Add(desc)
				}
				list.Add(card)
			}
			list.Refresh()
		})
	})
}

// selectModule picks a module, then its system if the module has any.
func (cs *ChatScreen) selectModule(m api.Module) {
	cs.session.SelectModule(m)
	seq := cs.loadSeq
	cs.setStatus("Carregando sistemas...")

	utils.SafeGo(cs.app.logger, "load systems", func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		systems, err := cs.app.client.Systems(ctx, m.ID)
		if err != nil {
			cs.app.logger.Warn("Failed to load systems for module %d: %v", m.ID, err)
		}
		fyne.Do(func() {
			if seq != cs.loadSeq {
				return
			}
			cs.setStatus("")
			if len(systems) > 0 {
				cs.showSystemSelection(m, systems)
				return
			}
			cs.selectSystem(nil)
		})
	})
}

func (cs *ChatScreen) showSystemSelection(m api.Module, systems []api.System) {
	list := container.NewVBox()
	for _, s := range systems {
		s := s
		list.Add(widget.NewButton(s.Name, func() { cs.selectSystem(&s) }))
	}
	back := widget.NewButton("← Voltar", cs.showModuleSelection)
	back.Importance = widget.LowImportance

	header := container.NewVBox(
		widget.NewLabelWithStyle("Selecione o Sistema", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		widget.NewLabelWithStyle(m.Name, fyne.TextAlignCenter, fyne.TextStyle{Italic: true}),
	)
	cs.setMain(container.NewBorder(header, back, nil, nil, container.NewVScroll(list)))
}

func (cs *ChatScreen) selectSystem(sys *api.System) {
	cs.session.SelectSystem(sys)
	cs.titleLabel.SetText(chat.NewConversationTitle)
	cs.moduleLabel.SetText(cs.session.ModuleLabel())
	cs.renderMessages()
	cs.showChatArea()
}

func (cs *ChatScreen) showChatArea() {
	cs.setMain(cs.chatArea)
	cs.app.window.Canvas().Focus(cs.input)
}

// openConversationByID selects a conversation from the current list.
func (cs *ChatScreen) openConversationByID(id int64) {
	for _, c := range cs.conversations {
		if c.ID == id {
			cs.selectConversation(c)
			return
		}
	}
	conv, err := cs.app.mirror.GetConversation(id)
	if err != nil {
		cs.app.logger.Warn("Conversation %d not found: %v", id, err)
		return
	}
	cs.selectConversation(*conv)
}

// selectConversation loads a conversation from the server, or from the
// mirror when offline.
func (cs *ChatScreen) selectConversation(conv api.Conversation) {
	cs.loadSeq++
	seq := cs.loadSeq

	cs.session.LoadConversation(conv)
	cs.removeAttachedImage()
	cs.sidebar.SetActive(conv.ID)
	cs.titleLabel.SetText(cs.session.Title())
	cs.moduleLabel.SetText(cs.session.ModuleLabel())
	cs.messages.Objects = nil
	cs.messages.Refresh()
	cs.showChatArea()
	cs.setStatus("Carregando mensagens...")

	utils.SafeGo(cs.app.logger, "load messages", func() {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		detail, fromMirror, err := cs.app.conversationDetail(ctx, conv.ID)
		if err != nil {
			cs.app.logger.Error("Failed to load conversation %d: %v", conv.ID, err)
		}

		fyne.Do(func() {
			if seq != cs.loadSeq {
				return
			}
			if err != nil {
				cs.setStatus("Erro ao carregar mensagens")
				return
			}
			if detail.Conversation.ID == 0 {
				detail.Conversation.ID = conv.ID
			}
			cs.session.ApplyDetail(detail)
			cs.renderMessages()
			cs.setStatus("")
			if fromMirror {
				cs.setStatus("Modo offline: mensagens do histórico local")
			}
		})
	})
}

func (cs *ChatScreen) renderMessages() {
	objects := make([]fyne.CanvasObject, 0, len(cs.session.Messages))
	for i, msg := range cs.session.Messages {
		question := ""
		if msg.Role == api.RoleAssistant {
			question = cs.session.QuestionFor(i)
		}
		objects = append(objects, cs.buildMessage(i, question))
	}
	cs.messages.Objects = objects
	cs.messages.Refresh()
	cs.scroll.ScrollToBottom()
}

// appendBubble renders the newest session message.
func (cs *ChatScreen) appendBubble(question string) {
	cs.messages.Add(cs.buildMessage(len(cs.session.Messages)-1, question))
	cs.scroll.ScrollToBottom()
}

// sendMessage delivers the typed text and attached image. The user's
// message is shown at once and removed again if the send fails.
func (cs *ChatScreen) sendMessage() {
	text := cs.input.Text
	pending, err := cs.session.BeginSend(text)
	switch {
	case errors.Is(err, chat.ErrNothingToSend), errors.Is(err, chat.ErrSendInProgress):
		return
	case errors.Is(err, chat.ErrNoModule):
		dialog.ShowInformation("Aviso", err.Error(), cs.app.window)
		return
	case err != nil:
		cs.app.showError(err.Error())
		return
	}

	cs.input.SetText("")
	cs.removeAttachedImage()
	cs.sendButton.Disable()
	cs.appendBubble("")

	status := "Aguardando resposta..."
	if pending.HasImage {
		status += " (com imagem)"
	}
	cs.setStatus(status)

	seq := cs.loadSeq
	utils.SafeGo(cs.app.logger, "send message", func() {
		resp, err := cs.app.client.Send(context.Background(), pending.Request)
		fyne.Do(func() { cs.handleSendResult(seq, pending, resp, err) })
	})
}

func (cs *ChatScreen) handleSendResult(seq int, pending *chat.PendingSend, resp *api.SendResponse, err error) {
	cs.sendButton.Enable()
	cs.setStatus("")

	if seq != cs.loadSeq {
		// the user moved to another conversation while waiting
		cs.session.Sending = false
		if err == nil {
			cs.refreshConversations()
		}
		return
	}

	if err != nil {
		cs.app.logger.Error("Send failed: %v", err)
		cs.session.FailSend()
		cs.renderMessages()
		cs.app.showError("Erro ao enviar: " + err.Error())
		return
	}

	userMsg := cs.session.Messages[len(cs.session.Messages)-1]
	answer, created := cs.session.CompleteSend(pending, resp)
	cs.appendBubble(pending.UserMessage)
	cs.mirrorExchange(userMsg, answer, resp, created)

	if created {
		cs.sidebar.SetActive(resp.ConversationID)
		cs.refreshConversations()
	}
	cs.app.notify(AppTitle, answer.Content, resp.ConversationID)
}

func (cs *ChatScreen) mirrorExchange(userMsg, answer api.Message, resp *api.SendResponse, created bool) {
	conv := *cs.session.Conversation
	utils.SafeGo(cs.app.logger, "mirror exchange", func() {
		m := cs.app.mirror
		if created {
			if err := m.SaveConversation(conv); err != nil {
				cs.app.logger.Warn("Failed to mirror new conversation: %v", err)
				return
			}
		}
		for _, msg := range []api.Message{userMsg, answer} {
			msg.ImageData = ""
			if err := m.AppendMessage(conv.ID, msg); err != nil {
				cs.app.logger.Warn("Failed to mirror message: %v", err)
				return
			}
		}
		if err := m.SaveAttachments(conv.ID, resp.KnownAttachments()); err != nil {
			cs.app.logger.Warn("Failed to mirror attachments: %v", err)
		}
	})
}

// attachImage opens a file picker for an image.
func (cs *ChatScreen) attachImage() {
	if !cs.session.SupportsImages {
		return
	}
	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			cs.app.showError("Erro ao abrir arquivo: " + err.Error())
			return
		}
		if reader == nil {
			return
		}
		path := reader.URI().Path()
		reader.Close()
		cs.loadImage(func() (*utils.ImageAttachment, error) { return utils.PrepareImageFile(path) })
	}, cs.app.window)
	fd.SetFilter(storage.NewExtensionFileFilter(utils.ImageExtensions()))
	fd.Show()
}

// pasteImage attaches an image or image file from the clipboard. It
// reports whether it took the paste.
func (cs *ChatScreen) pasteImage() bool {
	if !cs.session.SupportsImages {
		return false
	}
	img, err := getClipboardImage()
	if err != nil {
		cs.app.logger.Warn("Failed to read clipboard image: %v", err)
	}
	if img != nil {
		cs.loadImage(func() (*utils.ImageAttachment, error) { return utils.PrepareImage(img, "png") })
		return true
	}

	files, err := getClipboardFiles()
	if err != nil {
		cs.app.logger.Warn("Failed to read clipboard files: %v", err)
	}
	for _, f := range files {
		if utils.IsImageFile(f) {
			path := f
			cs.loadImage(func() (*utils.ImageAttachment, error) { return utils.PrepareImageFile(path) })
			return true
		}
	}
	return false
}

// loadImage runs prepare off the UI goroutine and attaches the result.
func (cs *ChatScreen) loadImage(prepare func() (*utils.ImageAttachment, error)) {
	cs.setStatus("Processando imagem...")
	utils.SafeGo(cs.app.logger, "prepare image", func() {
		att, err := prepare()
		var thumb *canvas.Image
		if err == nil {
			thumb = canvas.NewImageFromImage(utils.ScaleToWidth(att.Image, 120))
			thumb.FillMode = canvas.ImageFillContain
			thumb.SetMinSize(fyne.NewSize(120, 80))
		}
		fyne.Do(func() {
			cs.setStatus("")
			if err != nil {
				cs.app.logger.Error("Failed to load image: %v", err)
				cs.app.showError(fmt.Sprintf("Erro ao carregar imagem: %v", err))
				return
			}
			cs.session.AttachImage(att)
			remove := widget.NewButton("❌ Remover", cs.removeAttachedImage)
			remove.Importance = widget.LowImportance
			cs.preview.Objects = []fyne.CanvasObject{thumb, widget.NewLabel("📎 Imagem anexada"), remove}
			cs.preview.Show()
			cs.preview.Refresh()
		})
	})
}

func (cs *ChatScreen) removeAttachedImage() {
	cs.session.ClearImage()
	if cs.preview != nil {
		cs.preview.Objects = nil
		cs.preview.Hide()
	}
}

// renameConversation asks for a new title and saves it on the server.
func (cs *ChatScreen) renameConversation(conv api.Conversation) {
	entry := widget.NewEntry()
	entry.SetText(conv.Title)
	items := []*widget.FormItem{widget.NewFormItem("Novo título:", entry)}

	dialog.ShowForm("Renomear Conversa", "OK", "Cancelar", items, func(ok bool) {
		title := entry.Text
		if !ok || title == "" {
			return
		}
		utils.SafeGo(cs.app.logger, "rename conversation", func() {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			if err := cs.app.client.RenameConversation(ctx, conv.ID, title); err != nil {
				cs.app.logger.Error("Failed to rename conversation %d: %v", conv.ID, err)
				fyne.Do(func() { cs.app.showError("Erro ao renomear: " + err.Error()) })
				return
			}
			if err := cs.app.mirror.RenameConversation(conv.ID, title); err != nil {
				cs.app.logger.Warn("Failed to rename mirrored conversation: %v", err)
			}
			fyne.Do(func() {
				if cs.session.Conversation != nil && cs.session.Conversation.ID == conv.ID {
					cs.session.Conversation.Title = title
					cs.titleLabel.SetText(title)
				}
			})
			cs.refreshConversations()
		})
	}, cs.app.window)
}

// deleteConversation confirms and deletes a conversation.
func (cs *ChatScreen) deleteConversation(conv api.Conversation) {
	dialog.ShowConfirm("Confirmar", "Excluir esta conversa?", func(ok bool) {
		if !ok {
			return
		}
		utils.SafeGo(cs.app.logger, "delete conversation", func() {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			if err := cs.app.client.DeleteConversation(ctx, conv.ID); err != nil {
				cs.app.logger.Error("Failed to delete conversation %d: %v", conv.ID, err)
				fyne.Do(func() { cs.app.showError("Erro ao excluir: " + err.Error()) })
				return
			}
			if err := cs.app.mirror.DeleteConversation(conv.ID); err != nil {
				cs.app.logger.Warn("Failed to delete mirrored conversation: %v", err)
			}
			fyne.Do(func() {
				if cs.activeID() == conv.ID {
					cs.loadSeq++
					cs.session.NewConversation()
					cs.showWelcome()
				}
			})
			cs.refreshConversations()
		})
	}, cs.app.window)
}
