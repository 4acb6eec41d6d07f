package admin

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SQLite stand-in for the tables the store touches.
var testSchema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nome TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		senha TEXT NOT NULL,
		grupo TEXT NOT NULL DEFAULT 'user'
	)`,
	`CREATE TABLE permissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		cadastrar BOOLEAN DEFAULT 0,
		batepapo BOOLEAN DEFAULT 0
	)`,
	`CREATE TABLE modules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		nome TEXT NOT NULL UNIQUE,
		descricao TEXT
	)`,
	`CREATE TABLE module_access (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		module_id INTEGER NOT NULL
	)`,
	`CREATE TABLE llm_models (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		nome TEXT NOT NULL,
		modelo TEXT NOT NULL,
		api_key TEXT,
		api_url TEXT,
		visualiza_imagem BOOLEAN DEFAULT 0,
		ativo BOOLEAN DEFAULT 0
	)`,
}

func newTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range testSchema {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return NewStore(db), db
}

func createUser(t *testing.T, s *Store, name, email, group string, perms Permissions) int64 {
	t.Helper()
	id, err := s.CreateUser(context.Background(), NewUser{
		Name: name, Email: email, Password: "segredo", Confirm: "segredo",
		Group: group, Permissions: perms,
	})
	require.NoError(t, err)
	return id
}

func TestCreateUserValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	createUser(t, s, "Ana", "ana@example.com", GroupUser, Permissions{})

	tests := []struct {
		name string
		in   NewUser
		err  error
	}{
		{"missing name", NewUser{Email: "x@example.com", Password: "123456", Confirm: "123456"}, ErrNameRequired},
		{"missing email", NewUser{Name: "X", Email: "  ", Password: "123456", Confirm: "123456"}, ErrEmailRequired},
		{"duplicate email", NewUser{Name: "X", Email: "ana@example.com", Password: "123456", Confirm: "123456"}, ErrEmailTaken},
		{"short password", NewUser{Name: "X", Email: "x@example.com", Password: "12345", Confirm: "12345"}, ErrPasswordTooShort},
		{"mismatch", NewUser{Name: "X", Email: "x@example.com", Password: "123456", Confirm: "654321"}, ErrPasswordMismatch},
		{"bad group", NewUser{Name: "X", Email: "x@example.com", Password: "123456", Confirm: "123456", Group: "root"}, ErrInvalidGroup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateUser(ctx, tt.in)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCreateUserPermissions(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	userID := createUser(t, s, "Bia", "bia@example.com", GroupUser, Permissions{Register: true, Chat: true})
	adminID := createUser(t, s, "Root", "root@example.com", GroupAdmin, Permissions{Register: true, Chat: true})

	u, err := s.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, Permissions{Register: true, Chat: true}, u.Permissions)
	assert.False(t, u.IsAdmin())

	a, err := s.GetUser(ctx, adminID)
	require.NoError(t, err)
	assert.True(t, a.IsAdmin())
	assert.Equal(t, Permissions{}, a.Permissions)

	hash, err := s.PasswordHash(ctx, "bia@example.com")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "segredo"))
	assert.NotEqual(t, "segredo", hash)
}

func TestUpdateUserKeepsBlankFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id := createUser(t, s, "Caio", "caio@example.com", GroupUser, Permissions{Chat: true})
	createUser(t, s, "Dani", "dani@example.com", GroupUser, Permissions{})

	require.NoError(t, s.UpdateUser(ctx, id, UserUpdate{}))
	u, err := s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Caio", u.Name)
	assert.Equal(t, "caio@example.com", u.Email)
	assert.Equal(t, GroupUser, u.Group)
	assert.Equal(t, Permissions{Chat: true}, u.Permissions)

	err = s.UpdateUser(ctx, id, UserUpdate{Email: "dani@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	err = s.UpdateUser(ctx, id, UserUpdate{Password: "abc", Confirm: "abc"})
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	require.NoError(t, s.UpdateUser(ctx, id, UserUpdate{
		Name:        "Caio Souza",
		Password:    "novasenha",
		Confirm:     "novasenha",
		Permissions: &Permissions{Register: true},
	}))
	u, err = s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Caio Souza", u.Name)
	assert.Equal(t, Permissions{Register: true}, u.Permissions)
	hash, err := s.PasswordHash(ctx, "caio@example.com")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "novasenha"))

	// Promoting to admin ignores requested permission changes.
	require.NoError(t, s.UpdateUser(ctx, id, UserUpdate{Group: GroupAdmin, Permissions: &Permissions{Chat: true}}))
	u, err = s.GetUser(ctx, id)
	require.NoError(t, err)
	assert.True(t, u.IsAdmin())
	assert.Equal(t, Permissions{Register: true}, u.Permissions)

	assert.ErrorIs(t, s.UpdateUser(ctx, 999, UserUpdate{}), ErrUserNotFound)
}

func TestUpdateUserCreatesMissingPermissions(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	res, err := db.Exec("INSERT INTO users (nome, email, senha, grupo) VALUES ('Eva', 'eva@example.com', 'x', 'user')")
	require.NoError(t, err)
	id, _ := res.LastInsertId()

	require.NoError(t, s.UpdateUser(ctx, id, UserUpdate{Permissions: &Permissions{Chat: true}}))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM permissions WHERE user_id = ?", id).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestDeleteUser(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()
	id := createUser(t, s, "Fabi", "fabi@example.com", GroupUser, Permissions{Chat: true})
	keep := createUser(t, s, "Gil", "gil@example.com", GroupUser, Permissions{})
	_, err := db.Exec("INSERT INTO module_access (user_id, module_id) VALUES (?, 1), (?, 1)", id, keep)
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, id))

	_, err = s.GetUser(ctx, id)
	assert.ErrorIs(t, err, ErrUserNotFound)

	var perms, access int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM permissions").Scan(&perms))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM module_access").Scan(&access))
	assert.Equal(t, 1, perms)
	assert.Equal(t, 1, access)

	assert.ErrorIs(t, s.DeleteUser(ctx, id), ErrUserNotFound)
}

func TestResetPassword(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id := createUser(t, s, "Hugo", "hugo@example.com", GroupUser, Permissions{})

	assert.ErrorIs(t, s.ResetPassword(ctx, id, "curta", "curta"), ErrPasswordTooShort)
	assert.ErrorIs(t, s.ResetPassword(ctx, id, "abcdef", "abcdeg"), ErrPasswordMismatch)
	assert.ErrorIs(t, s.ResetPassword(ctx, 42, "abcdef", "abcdef"), ErrUserNotFound)

	require.NoError(t, s.ResetPassword(ctx, id, "trocada", "trocada"))
	hash, err := s.PasswordHash(ctx, "hugo@example.com")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "trocada"))
	assert.False(t, CheckPassword(hash, "segredo"))
}

func TestSeedIsIdempotent(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()
	_, err := db.Exec("INSERT INTO modules (nome, descricao) VALUES ('RH', 'já existia')")
	require.NoError(t, err)

	report, err := s.Seed(ctx)
	require.NoError(t, err)
	assert.True(t, report.AdminCreated)
	assert.Equal(t, len(SampleModules)-1, report.ModulesCreated)

	report, err = s.Seed(ctx)
	require.NoError(t, err)
	assert.False(t, report.AdminCreated)
	assert.Equal(t, 0, report.ModulesCreated)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, DefaultAdminEmail, users[0].Email)
	assert.Equal(t, GroupAdmin, users[0].Group)
	assert.Equal(t, Permissions{Register: true, Chat: true}, users[0].Permissions)

	hash, err := s.PasswordHash(ctx, DefaultAdminEmail)
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, DefaultAdminPassword))

	var desc string
	require.NoError(t, db.QueryRow("SELECT descricao FROM modules WHERE nome = 'RH'").Scan(&desc))
	assert.Equal(t, "já existia", desc)
}

func TestActivateModel(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()
	_, err := db.Exec(`INSERT INTO llm_models (provider, nome, modelo, api_key, ativo, visualiza_imagem) VALUES
		('openai', 'GPT', 'gpt-4o-mini', 'sk-x', 1, 1),
		('ollama', 'Local', 'llama3', NULL, 0, 0),
		('deepseek', 'DS', 'deepseek-chat', 'k', 1, 0)`)
	require.NoError(t, err)

	require.NoError(t, s.ActivateModel(ctx, 2))

	models, err := s.ListModels(ctx)
	require.NoError(t, err)
	require.Len(t, models, 3)
	var active []int64
	for _, m := range models {
		if m.Active {
			active = append(active, m.ID)
		}
	}
	assert.Equal(t, []int64{2}, active)
	assert.True(t, models[0].SupportsImages)
	assert.Equal(t, "", models[1].APIKey)

	assert.ErrorIs(t, s.ActivateModel(ctx, 77), ErrModelNotFound)
}

func TestProbeBaseURL(t *testing.T) {
	tests := []struct {
		model Model
		want  string
	}{
		{Model{Provider: "openai"}, "https://api.openai.com/v1"},
		{Model{Provider: "deepseek"}, "https://api.deepseek.com/v1"},
		{Model{Provider: "openrouter"}, "https://openrouter.ai/api/v1"},
		{Model{Provider: "lmstudio"}, "http://localhost:1234/v1"},
		{Model{Provider: "ollama"}, "http://localhost:11434/v1"},
		{Model{Provider: "ollama", APIURL: "http://gpu-box:11434/v1/"}, "http://gpu-box:11434/v1"},
	}
	for _, tt := range tests {
		got, err := ProbeBaseURL(tt.model)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ProbeBaseURL(Model{Provider: "anthropic"})
	assert.ErrorIs(t, err, ErrProbeUnsupported)
}

func TestProbe(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"llama3",
			"choices":[{"index":0,"message":{"role":"assistant","content":" OK "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	res, err := Probe(context.Background(), Model{Provider: "ollama", Name: "Local", Model: "llama3", APIKey: "k", APIURL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, "OK", res.Reply)
	assert.Equal(t, srv.URL, res.BaseURL)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer k", gotAuth)
}

func TestLoadConfigFromEnvFile(t *testing.T) {
	keys := []string{"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME"}
	for _, k := range keys {
		if _, ok := os.LookupEnv(k); ok {
			t.Skipf("%s is set in the environment", k)
		}
	}
	t.Cleanup(func() {
		for _, k := range keys {
			os.Unsetenv(k)
		}
	})

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_HOST=db.internal\nDB_PORT=3307\nDB_NAME=kb_test\n"), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 3307, cfg.Port)
	assert.Equal(t, "acore", cfg.User)
	assert.Equal(t, "acore", cfg.Password)
	assert.Equal(t, "kb_test", cfg.Name)
	assert.Equal(t, "acore@db.internal:3307/kb_test", cfg.String())

	dsn := cfg.DSN(true)
	assert.True(t, strings.HasPrefix(dsn, "acore:acore@tcp(db.internal:3307)/kb_test?"), dsn)
	assert.Contains(t, dsn, "multiStatements=true")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, cfg.DSN(false), "@tcp(db.internal:3307)/?")
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	for _, k := range []string{"DB_HOST", "DB_PORT", "DB_NAME"} {
		if _, ok := os.LookupEnv(k); ok {
			t.Skipf("%s is set in the environment", k)
		}
	}
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 3306, cfg.Port)
	assert.Equal(t, "knowledge_base", cfg.Name)
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Host: "h", Port: 3306, Name: "kb; DROP DATABASE x"}
	assert.Error(t, cfg.Validate())

	cfg = &Config{Host: "h", Port: 0, Name: "kb"}
	assert.Error(t, cfg.Validate())
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{
		"000001_init.down.sql", "000001_init.up.sql",
		"000002_systems.down.sql", "000002_systems.up.sql",
	}, names)

	up, err := migrationFiles.ReadFile("migrations/000002_systems.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "fk_conv_system")
	assert.Contains(t, string(up), "fk_kb_system")
}

func TestSystemsColumns(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	defer db.Close()

	for _, stmt := range []string{
		`ATTACH DATABASE ':memory:' AS information_schema`,
		`CREATE TABLE information_schema.COLUMNS (TABLE_SCHEMA TEXT, TABLE_NAME TEXT, COLUMN_NAME TEXT)`,
		`INSERT INTO information_schema.COLUMNS VALUES
			('kb', 'chat_conversations', 'id'),
			('kb', 'knowledge_base', 'system_id'),
			('other', 'chat_conversations', 'system_id')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	ctx := context.Background()
	n, err := SystemsColumns(ctx, db, "kb")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = db.Exec(`INSERT INTO information_schema.COLUMNS VALUES ('kb', 'chat_conversations', 'system_id')`)
	require.NoError(t, err)
	n, err = SystemsColumns(ctx, db, "kb")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = SystemsColumns(ctx, db, "empty")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLegacyForce(t *testing.T) {
	tests := []struct {
		name    string
		version uint
		dirty   bool
		columns int
		want    int
		wantErr bool
	}{
		{"fresh database", 0, false, 0, 0, false},
		{"legacy database", 0, false, 2, 2, false},
		{"init applied on legacy database", 1, false, 2, 2, false},
		{"systems failed on legacy database", 2, true, 2, 2, false},
		{"already migrated", 2, false, 2, 0, false},
		{"init failed", 1, true, 2, 0, false},
		{"partial legacy schema", 0, false, 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LegacyForce(tt.version, tt.dirty, tt.columns)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "migrate force 2")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
