package db

import (
	"path/filepath"
	"strings"
	"testing"

	"askforge-client/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleConversations() []api.Conversation {
	sys := int64(3)
	return []api.Conversation{
		{ID: 10, Title: "Boletos", ModuleID: 2, ModuleName: "Financeiro", SystemID: &sys, SystemName: "ERP", UpdatedAt: "2025-01-02"},
		{ID: 7, Title: "Férias", ModuleID: 4, ModuleName: "RH", UpdatedAt: "2025-01-01"},
	}
}

func TestSyncConversations(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.SyncConversations(sampleConversations()))

	convs, err := db.ListConversations()
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, int64(10), convs[0].ID)
	require.NotNil(t, convs[0].SystemID)
	assert.Equal(t, int64(3), *convs[0].SystemID)
	assert.Equal(t, "Financeiro → ERP", convs[0].Label())
	assert.Nil(t, convs[1].SystemID)

	require.NoError(t, db.ReplaceMessages(7, []api.Message{{Role: api.RoleUser, Content: "Quando tiro férias?"}}))

	// The server no longer lists 7: it and its messages go away.
	renamed := sampleConversations()[:1]
	renamed[0].Title = "Boletos vencidos"
	require.NoError(t, db.SyncConversations(renamed))

	convs, err = db.ListConversations()
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "Boletos vencidos", convs[0].Title)

	msgs, err := db.ListMessages(7)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	_, err = db.GetConversation(7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveConversationGoesFirst(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SyncConversations(sampleConversations()))

	require.NoError(t, db.SaveConversation(api.Conversation{ID: 99, Title: "Nova Conversa", ModuleID: 1, ModuleName: "TI"}))

	convs, err := db.ListConversations()
	require.NoError(t, err)
	require.Len(t, convs, 3)
	assert.Equal(t, int64(99), convs[0].ID)
}

func TestMessagesAndAttachments(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SyncConversations(sampleConversations()))

	require.NoError(t, db.ReplaceMessages(10, []api.Message{
		{ID: 1, Role: api.RoleUser, Content: "Como emitir boleto?"},
		{ID: 2, Role: api.RoleAssistant, Content: "Veja [ANEXO_1]", UsedKnowledgeIDs: []any{float64(4)}},
	}))
	require.NoError(t, db.AppendMessage(10, api.Message{Role: api.RoleUser, Content: "Obrigado", ImageData: "data:image/png;base64,AA"}))
	require.NoError(t, db.SaveAttachments(10, []api.KnowledgeAttachment{
		{ID: "[ANEXO_1]", Name: "manual.pdf", URL: "/uploads/manual.pdf"},
	}))
	require.NoError(t, db.SaveAttachments(10, []api.KnowledgeAttachment{
		{ID: "ANEXO_1", Name: "manual-v2.pdf", URL: "/uploads/manual.pdf"},
	}))

	detail, err := db.Detail(10)
	require.NoError(t, err)
	assert.Equal(t, "Boletos", detail.Conversation.Title)
	require.Len(t, detail.Messages, 3)
	assert.Equal(t, "Como emitir boleto?", detail.Messages[0].Content)
	assert.Equal(t, []any{float64(4)}, detail.Messages[1].UsedKnowledgeIDs)
	assert.Equal(t, "Obrigado", detail.Messages[2].Content)
	assert.Empty(t, detail.Messages[2].ImageData)

	require.Len(t, detail.Attachments, 1)
	assert.Equal(t, api.KnowledgeAttachment{ID: "ANEXO_1", Name: "manual-v2.pdf", URL: "/uploads/manual.pdf"}, detail.Attachments[0])

	require.NoError(t, db.ReplaceMessages(10, []api.Message{{Role: api.RoleUser, Content: "só esta"}}))
	msgs, err := db.ListMessages(10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestRenameAndDelete(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SyncConversations(sampleConversations()))
	require.NoError(t, db.AppendMessage(10, api.Message{Role: api.RoleUser, Content: "x"}))
	require.NoError(t, db.SaveAttachments(10, []api.KnowledgeAttachment{{ID: "ANEXO_2", URL: "/a"}}))

	require.NoError(t, db.RenameConversation(10, "Cobrança"))
	conv, err := db.GetConversation(10)
	require.NoError(t, err)
	assert.Equal(t, "Cobrança", conv.Title)

	require.NoError(t, db.DeleteConversation(10))
	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ConversationCount)
	assert.Equal(t, int64(0), stats.MessageCount)
	assert.Equal(t, int64(0), stats.AttachmentCount)
	assert.Greater(t, stats.DBSizeBytes, int64(0))
}

func TestSearchMessages(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SyncConversations(sampleConversations()))
	require.NoError(t, db.ReplaceMessages(10, []api.Message{
		{Role: api.RoleUser, Content: "Como emitir boleto bancário?"},
		{Role: api.RoleAssistant, Content: "Acesse Financeiro e clique em Emitir boleto."},
	}))
	require.NoError(t, db.ReplaceMessages(7, []api.Message{
		{Role: api.RoleUser, Content: "Quantos dias de férias tenho?"},
	}))

	results, err := db.SearchMessages("boleto", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, int64(10), r.ConversationID)
		assert.Equal(t, "Boletos", r.ConversationTitle)
		assert.Contains(t, strings.ToLower(r.Snippet), "**boleto")
	}

	results, err = db.SearchMessages("férias dias", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(7), results[0].ConversationID)

	results, err = db.SearchMessages(`"unbalanced`, 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = db.SearchMessages("   ", 10)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestClear(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SyncConversations(sampleConversations()))
	require.NoError(t, db.AppendMessage(7, api.Message{Role: api.RoleUser, Content: "férias"}))

	require.NoError(t, db.Clear())
	require.NoError(t, db.Vacuum())

	convs, err := db.ListConversations()
	require.NoError(t, err)
	assert.Empty(t, convs)

	results, err := db.SearchMessages("férias", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClaimOwner(t *testing.T) {
	db := newTestDB(t)

	// rows synced before any owner was recorded are not trusted
	require.NoError(t, db.SyncConversations(sampleConversations()))
	changed, err := db.ClaimOwner(" Ana@Example.com ")
	require.NoError(t, err)
	assert.True(t, changed)
	convs, err := db.ListConversations()
	require.NoError(t, err)
	assert.Empty(t, convs)

	owner, err := db.Owner()
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", owner)

	require.NoError(t, db.SyncConversations(sampleConversations()))
	require.NoError(t, db.AppendMessage(7, api.Message{Role: api.RoleUser, Content: "férias"}))

	changed, err = db.ClaimOwner("ana@example.com")
	require.NoError(t, err)
	assert.False(t, changed)
	convs, err = db.ListConversations()
	require.NoError(t, err)
	assert.Len(t, convs, 2)

	changed, err = db.ClaimOwner("bruno@example.com")
	require.NoError(t, err)
	assert.True(t, changed)
	convs, err = db.ListConversations()
	require.NoError(t, err)
	assert.Empty(t, convs)
	results, err := db.SearchMessages("férias", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
	_, err = db.Detail(7)
	assert.Error(t, err)
}

func TestClearForgetsOwner(t *testing.T) {
	db := newTestDB(t)
	_, err := db.ClaimOwner("ana@example.com")
	require.NoError(t, err)

	require.NoError(t, db.Clear())
	owner, err := db.Owner()
	require.NoError(t, err)
	assert.Empty(t, owner)
}

func TestAppendRequiresConversation(t *testing.T) {
	db := newTestDB(t)
	err := db.AppendMessage(404, api.Message{Role: api.RoleUser, Content: "x"})
	assert.Error(t, err)
}

func TestExcerpt(t *testing.T) {
	content := strings.Repeat("a", 100) + " Boleto " + strings.Repeat("b", 100)
	got := excerpt(content, "boleto", 10)
	assert.Equal(t, "..."+strings.Repeat("a", 9)+" **Boleto** "+strings.Repeat("b", 9)+"...", got)

	assert.Equal(t, "curto **x**", excerpt("curto x", "x", 60))
}

func TestMemoryDatabase(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SyncConversations(sampleConversations()))
	convs, err := db.ListConversations()
	require.NoError(t, err)
	assert.Len(t, convs, 2)
}
