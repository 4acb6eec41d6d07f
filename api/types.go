package api

import "strings"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Feedback polarities
const (
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
)

// User is the authenticated account returned by the session endpoint.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Conversation is a chat thread as listed by the server.
type Conversation struct {
	ID         int64  `json:"id"`
	Title      string `json:"titulo"`
	ModuleID   int64  `json:"module_id"`
	SystemID   *int64 `json:"system_id"`
	ModuleName string `json:"module_nome"`
	SystemName string `json:"system_nome"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// Label returns "Module → System", or just the module name.
func (c *Conversation) Label() string {
	if c.SystemName != "" {
		return c.ModuleName + " → " + c.SystemName
	}
	return c.ModuleName
}

// Message is one entry of a conversation. ImageData holds a data URI for
// images attached locally and never round-trips to the server.
// UsedKnowledgeIDs is opaque to the client and echoed back with feedback.
type Message struct {
	ID               int64  `json:"id,omitempty"`
	Role             string `json:"role"`
	Content          string `json:"content"`
	ImageURL         string `json:"image_url,omitempty"`
	ImageData        string `json:"-"`
	UsedKnowledgeIDs []any  `json:"used_knowledge_ids,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
}

// HasImage reports whether the message carries an image.
func (m *Message) HasImage() bool {
	return m.ImageURL != "" || m.ImageData != ""
}

// KnowledgeAttachment is a knowledge-base file that assistant messages refer
// to with [ANEXO_n] markers.
type KnowledgeAttachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// AttachmentKey normalizes "[ANEXO_7]" and "ANEXO_7" to "ANEXO_7".
func AttachmentKey(id string) string {
	return strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(id), "["), "]")
}

// AttachmentIndex builds the lookup used by the content parser.
func AttachmentIndex(list []KnowledgeAttachment) map[string]KnowledgeAttachment {
	idx := make(map[string]KnowledgeAttachment, len(list))
	for _, att := range list {
		key := AttachmentKey(att.ID)
		if key == "" {
			continue
		}
		att.ID = key
		idx[key] = att
	}
	return idx
}

// ConversationDetail is the payload of GET /api/chat/conversations/{id}.
type ConversationDetail struct {
	Conversation Conversation          `json:"conversation"`
	Messages     []Message             `json:"messages"`
	Attachments  []KnowledgeAttachment `json:"all_knowledge_attachments,omitempty"`
	Images       []KnowledgeAttachment `json:"all_knowledge_images,omitempty"`
}

// KnownAttachments merges both attachment lists the server may send.
func (d *ConversationDetail) KnownAttachments() []KnowledgeAttachment {
	return mergeAttachments(d.Attachments, d.Images)
}

// Module is a top-level knowledge-base category.
type Module struct {
	ID          int64  `json:"id"`
	Name        string `json:"nome"`
	Description string `json:"descricao"`
}

// System is an optional sub-category of a module.
type System struct {
	ID       int64  `json:"id"`
	Name     string `json:"nome"`
	ModuleID int64  `json:"module_id"`
}

// ActiveModel describes the LLM currently configured on the server.
type ActiveModel struct {
	ID             int64  `json:"id"`
	Provider       string `json:"provider"`
	Name           string `json:"nome"`
	Model          string `json:"modelo"`
	SupportsImages bool   `json:"visualiza_imagem"`
}

// SendRequest is the body of POST /api/chat/send. A nil ConversationID
// asks the server to create a conversation.
type SendRequest struct {
	ConversationID *int64 `json:"conversation_id"`
	ModuleID       int64  `json:"module_id"`
	SystemID       *int64 `json:"system_id"`
	Message        string `json:"message"`
	ImageBase64    string `json:"image_base64,omitempty"`
}

// SendResponse is the server's reply to a chat message.
type SendResponse struct {
	ConversationID   int64                 `json:"conversation_id"`
	Response         string                `json:"response"`
	ImageURL         string                `json:"image_url,omitempty"`
	Attachments      []KnowledgeAttachment `json:"all_knowledge_attachments,omitempty"`
	Images           []KnowledgeAttachment `json:"all_knowledge_images,omitempty"`
	UsedKnowledgeIDs []any                 `json:"used_knowledge_ids,omitempty"`
}

// KnownAttachments merges both attachment lists the server may send.
func (r *SendResponse) KnownAttachments() []KnowledgeAttachment {
	return mergeAttachments(r.Attachments, r.Images)
}

// Feedback rates one assistant answer.
type Feedback struct {
	ConversationID    *int64 `json:"conversation_id"`
	UserMessage       string `json:"user_message"`
	AssistantResponse string `json:"assistant_response"`
	Feedback          string `json:"feedback"`
	UsedKnowledgeIDs  []any  `json:"used_knowledge_ids,omitempty"`
}

func mergeAttachments(lists ...[]KnowledgeAttachment) []KnowledgeAttachment {
	var out []KnowledgeAttachment
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}
