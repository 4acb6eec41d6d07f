package chat

import (
	"errors"
	"strings"

	"askforge-client/api"
	"askforge-client/utils"
)

const (
	NewConversationTitle = "Nova Conversa"

	imageOnlyPlaceholder = "[Imagem enviada]"
	imageOnlyPrompt      = "Analise esta imagem"
)

var (
	ErrNothingToSend  = errors.New("nothing to send")
	ErrNoModule       = errors.New("Selecione um módulo primeiro")
	ErrSendInProgress = errors.New("Aguarde a resposta anterior")
)

// Session is the state behind the chat screen: which conversation, module
// and system are active, the visible messages, the attachments answers may
// reference and the image waiting to be sent.
//
// It is owned by the UI goroutine. Workers receive copies (PendingSend) and
// report back through the UI hand-off; they never touch a Session directly.
type Session struct {
	Conversation *api.Conversation
	Module       *api.Module
	System       *api.System
	Messages     []api.Message

	AttachedImage  *utils.ImageAttachment
	SupportsImages bool
	Sending        bool

	attachments map[string]api.KnowledgeAttachment
	feedback    map[int]*FeedbackTracker
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{
		attachments: map[string]api.KnowledgeAttachment{},
		feedback:    map[int]*FeedbackTracker{},
	}
}

// PendingSend is a message handed to a worker for delivery.
type PendingSend struct {
	Request     api.SendRequest
	UserMessage string
	HasImage    bool
}

// NewConversation clears everything except image support.
func (s *Session) NewConversation() {
	s.Conversation = nil
	s.Module = nil
	s.System = nil
	s.Messages = nil
	s.AttachedImage = nil
	s.attachments = map[string]api.KnowledgeAttachment{}
	s.resetFeedback()
}

// SelectModule starts a new conversation in module. The system is chosen
// separately, if the module has any.
func (s *Session) SelectModule(m api.Module) {
	s.Conversation = nil
	s.Messages = nil
	s.Module = &m
	s.System = nil
	s.resetFeedback()
}

// SelectSystem sets the optional system; nil means the module has none.
func (s *Session) SelectSystem(sys *api.System) {
	s.System = sys
}

// LoadConversation switches to an existing conversation. Messages arrive
// later through ApplyDetail.
func (s *Session) LoadConversation(conv api.Conversation) {
	s.Conversation = &conv
	s.Module = &api.Module{ID: conv.ModuleID, Name: conv.ModuleName}
	s.System = nil
	if conv.SystemID != nil {
		s.System = &api.System{ID: *conv.SystemID, Name: conv.SystemName, ModuleID: conv.ModuleID}
	}
	s.Messages = nil
	s.resetFeedback()
}

// ApplyDetail installs the messages and attachments of the active
// conversation. Details for another conversation are ignored, which happens
// when the user switches before a load finishes.
func (s *Session) ApplyDetail(detail *api.ConversationDetail) bool {
	if s.Conversation == nil || detail == nil || detail.Conversation.ID != s.Conversation.ID {
		return false
	}
	s.Messages = append([]api.Message(nil), detail.Messages...)
	s.mergeAttachments(detail.KnownAttachments())
	return true
}

func (s *Session) mergeAttachments(list []api.KnowledgeAttachment) {
	if len(list) == 0 {
		return
	}
	for k, v := range api.AttachmentIndex(list) {
		s.attachments[k] = v
	}
}

// KnownAttachments returns the marker lookup for ParseContent.
func (s *Session) KnownAttachments() map[string]api.KnowledgeAttachment {
	return s.attachments
}

// ConversationID returns the active conversation id, nil for a new one.
func (s *Session) ConversationID() *int64 {
	if s.Conversation == nil {
		return nil
	}
	id := s.Conversation.ID
	return &id
}

// Title is the heading shown above the messages.
func (s *Session) Title() string {
	if s.Conversation == nil || s.Conversation.Title == "" {
		return NewConversationTitle
	}
	return s.Conversation.Title
}

// ModuleLabel is "Module → System", "Module", or "".
func (s *Session) ModuleLabel() string {
	if s.Module == nil {
		return ""
	}
	if s.System != nil && s.System.Name != "" {
		return s.Module.Name + " → " + s.System.Name
	}
	return s.Module.Name
}

// ReadyToChat reports whether a module has been chosen.
func (s *Session) ReadyToChat() bool {
	return s.Module != nil
}

// AttachImage sets the image for the next message.
func (s *Session) AttachImage(img *utils.ImageAttachment) {
	s.AttachedImage = img
}

// ClearImage drops the pending image.
func (s *Session) ClearImage() {
	s.AttachedImage = nil
}

// BeginSend validates the input, appends the user's message optimistically
// and returns the request for a worker. A message with only an image shows
// a placeholder locally and asks the server to analyse the image.
func (s *Session) BeginSend(text string) (*PendingSend, error) {
	if s.Sending {
		return nil, ErrSendInProgress
	}
	text = strings.TrimSpace(text)
	if text == "" && s.AttachedImage == nil {
		return nil, ErrNothingToSend
	}
	if s.Module == nil {
		return nil, ErrNoModule
	}

	p := &PendingSend{
		Request: api.SendRequest{
			ConversationID: s.ConversationID(),
			ModuleID:       s.Module.ID,
			Message:        text,
		},
		UserMessage: text,
	}
	if s.System != nil {
		id := s.System.ID
		p.Request.SystemID = &id
	}

	local := api.Message{Role: api.RoleUser, Content: text}
	if s.AttachedImage != nil {
		p.Request.ImageBase64 = s.AttachedImage.DataURI
		p.HasImage = true
		local.ImageData = s.AttachedImage.DataURI
		if text == "" {
			local.Content = imageOnlyPlaceholder
			p.Request.Message = imageOnlyPrompt
			p.UserMessage = imageOnlyPrompt
		}
		s.AttachedImage = nil
	}

	s.Messages = append(s.Messages, local)
	s.Sending = true
	return p, nil
}

// CompleteSend records the server's answer and returns the assistant
// message. created is true when this send started a new conversation.
func (s *Session) CompleteSend(p *PendingSend, resp *api.SendResponse) (answer api.Message, created bool) {
	s.Sending = false

	if s.Conversation == nil {
		created = true
		s.Conversation = &api.Conversation{
			ID:         resp.ConversationID,
			Title:      NewConversationTitle,
			ModuleID:   p.Request.ModuleID,
			SystemID:   p.Request.SystemID,
			ModuleName: s.moduleName(),
			SystemName: s.systemName(),
		}
	}
	s.mergeAttachments(resp.KnownAttachments())

	answer = api.Message{
		Role:             api.RoleAssistant,
		Content:          resp.Response,
		UsedKnowledgeIDs: resp.UsedKnowledgeIDs,
	}
	s.Messages = append(s.Messages, answer)
	return answer, created
}

// FailSend removes the optimistic user message after a failed send.
func (s *Session) FailSend() {
	s.Sending = false
	if n := len(s.Messages); n > 0 && s.Messages[n-1].Role == api.RoleUser {
		s.Messages = s.Messages[:n-1]
	}
}

// QuestionFor returns the user message that precedes the message at index,
// used to attribute feedback on answers loaded from history.
func (s *Session) QuestionFor(index int) string {
	for i := index - 1; i >= 0 && i < len(s.Messages); i-- {
		if s.Messages[i].Role == api.RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Feedback returns the tracker for the assistant answer at index, creating
// it on first use. Trackers outlive re-renders of the message list, so a
// rating already sent is not sent again. question is only used when the
// tracker is created.
func (s *Session) Feedback(index int, sender FeedbackSender, question string) *FeedbackTracker {
	if index < 0 || index >= len(s.Messages) {
		return nil
	}
	answer := s.Messages[index]
	if t, ok := s.feedback[index]; ok && t.response == answer.Content {
		return t
	}
	if s.feedback == nil {
		s.feedback = map[int]*FeedbackTracker{}
	}
	t := NewFeedbackTracker(sender, s.ConversationID(), question, answer)
	s.feedback[index] = t
	return t
}

func (s *Session) resetFeedback() {
	s.feedback = map[int]*FeedbackTracker{}
}

func (s *Session) moduleName() string {
	if s.Module == nil {
		return ""
	}
	return s.Module.Name
}

func (s *Session) systemName() string {
	if s.System == nil {
		return ""
	}
	return s.System.Name
}
