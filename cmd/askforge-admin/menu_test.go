package main

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"

	"askforge-client/admin"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMenuStore(t *testing.T) *admin.Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, nome TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE, senha TEXT NOT NULL, grupo TEXT NOT NULL DEFAULT 'user')`,
		`CREATE TABLE permissions (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER NOT NULL,
			cadastrar BOOLEAN DEFAULT 0, batepapo BOOLEAN DEFAULT 0)`,
		`CREATE TABLE module_access (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER NOT NULL,
			module_id INTEGER NOT NULL)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return admin.NewStore(db)
}

func script(lines ...string) *console {
	return newConsole(strings.NewReader(strings.Join(lines, "\n")+"\n"), &bytes.Buffer{})
}

func output(c *console) string {
	return c.out.(*bytes.Buffer).String()
}

func TestMenuCreateUser(t *testing.T) {
	store := newMenuStore(t)
	ctx := context.Background()

	c := script(
		"2",                          // create
		"Ana Lima", "ana@example.com", // name, email
		"segredo1", "segredo1",       // password, confirm
		"2", "s", "n",                // user group, cadastrar yes, batepapo no
		"",                           // pause
		"0",                          // exit
	)
	require.NoError(t, userMenu(ctx, store, c))

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Ana Lima", users[0].Name)
	assert.Equal(t, admin.GroupUser, users[0].Group)
	assert.Equal(t, admin.Permissions{Register: true}, users[0].Permissions)
	assert.Contains(t, output(c), "criado com sucesso")
	assert.Contains(t, output(c), "Até logo!")
}

func TestMenuCreateUserRejectsShortPassword(t *testing.T) {
	store := newMenuStore(t)
	c := script("2", "Ana", "ana@example.com", "123", "", "0")

	require.NoError(t, userMenu(context.Background(), store, c))

	users, err := store.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Contains(t, output(c), admin.ErrPasswordTooShort.Error())
}

func TestMenuEditKeepsBlankValues(t *testing.T) {
	store := newMenuStore(t)
	ctx := context.Background()
	id, err := store.CreateUser(ctx, admin.NewUser{Name: "Bia", Email: "bia@example.com",
		Password: "segredo", Confirm: "segredo", Group: admin.GroupUser, Permissions: admin.Permissions{Chat: true}})
	require.NoError(t, err)

	c := script(
		"3", "1", // edit user 1
		"",       // name kept
		"",       // email kept
		"",       // password kept
		"3",      // group kept
		"n",      // keep permissions
		"", "0",
	)
	require.NoError(t, userMenu(ctx, store, c))

	u, err := store.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Bia", u.Name)
	assert.Equal(t, "bia@example.com", u.Email)
	assert.Equal(t, admin.Permissions{Chat: true}, u.Permissions)
	assert.Contains(t, output(c), "Usuário atualizado com sucesso!")
}

func TestMenuDeleteRequiresConfirmation(t *testing.T) {
	store := newMenuStore(t)
	ctx := context.Background()
	_, err := store.CreateUser(ctx, admin.NewUser{Name: "Caio", Email: "caio@example.com",
		Password: "segredo", Confirm: "segredo"})
	require.NoError(t, err)

	c := script("4", "1", "excluir", "", "0")
	require.NoError(t, userMenu(ctx, store, c))
	users, _ := store.ListUsers(ctx)
	assert.Len(t, users, 1)
	assert.Contains(t, output(c), "Operação cancelada.")

	c = script("4", "1", "EXCLUIR", "", "0")
	require.NoError(t, userMenu(ctx, store, c))
	users, _ = store.ListUsers(ctx)
	assert.Empty(t, users)
}

func TestMenuResetPassword(t *testing.T) {
	store := newMenuStore(t)
	ctx := context.Background()
	_, err := store.CreateUser(ctx, admin.NewUser{Name: "Dani", Email: "dani@example.com",
		Password: "segredo", Confirm: "segredo"})
	require.NoError(t, err)

	c := script("5", "1", "novasenha", "novasenha", "", "0")
	require.NoError(t, userMenu(ctx, store, c))

	hash, err := store.PasswordHash(ctx, "dani@example.com")
	require.NoError(t, err)
	assert.True(t, admin.CheckPassword(hash, "novasenha"))
}

func TestMenuInvalidIDAndOption(t *testing.T) {
	store := newMenuStore(t)
	c := script("9", "", "3", "abc", "", "0")

	require.NoError(t, userMenu(context.Background(), store, c))
	out := output(c)
	assert.Contains(t, out, "Opção inválida!")
	assert.Contains(t, out, "Nenhum usuário cadastrado.")
	assert.Contains(t, out, "ID inválido")
}

func TestMenuStopsAtEndOfInput(t *testing.T) {
	store := newMenuStore(t)
	c := script("2", "Eva")
	assert.NoError(t, userMenu(context.Background(), store, c))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "curto", truncate("curto", 10))
	assert.Equal(t, "Administ…", truncate("Administrador", 9))
}
