package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// User groups
const (
	GroupAdmin = "adm"
	GroupUser  = "user"
)

// Validation errors, worded for the operator.
var (
	ErrUserNotFound     = errors.New("Usuário não encontrado")
	ErrNameRequired     = errors.New("Nome é obrigatório")
	ErrEmailRequired    = errors.New("Email é obrigatório")
	ErrEmailTaken       = errors.New("Este email já está cadastrado")
	ErrPasswordTooShort = fmt.Errorf("A senha deve ter pelo menos %d caracteres", MinPasswordLength)
	ErrPasswordMismatch = errors.New("As senhas não coincidem")
	ErrInvalidGroup     = errors.New("Grupo inválido")
)

// Permissions are the per-user feature flags. Administrators have every
// feature regardless.
type Permissions struct {
	Register bool // cadastrar: may add knowledge-base documents
	Chat     bool // batepapo: may use the chat
}

// User is an account as listed by the admin tool.
type User struct {
	ID    int64
	Name  string
	Email string
	Group string
	Permissions
}

// IsAdmin reports whether the user is in the adm group.
func (u *User) IsAdmin() bool {
	return u.Group == GroupAdmin
}

// NewUser is the input for CreateUser.
type NewUser struct {
	Name        string
	Email       string
	Password    string
	Confirm     string
	Group       string
	Permissions Permissions
}

// UserUpdate is the input for UpdateUser. Empty strings and a nil
// Permissions keep the current values.
type UserUpdate struct {
	Name        string
	Email       string
	Password    string
	Confirm     string
	Group       string
	Permissions *Permissions
}

// Store runs the admin operations against the knowledge-base database.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const selectUser = `
	SELECT u.id, u.nome, u.email, u.grupo,
	       COALESCE(p.cadastrar, 0), COALESCE(p.batepapo, 0)
	FROM users u
	LEFT JOIN permissions p ON u.id = p.user_id`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Group, &u.Register, &u.Chat)
	return u, err
}

// ListUsers returns every account ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, selectUser+" ORDER BY u.id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser returns one account.
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, selectUser+" WHERE u.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// EmailTaken reports whether another account (not exceptID) uses email.
func (s *Store) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM users WHERE email = ? AND id != ?", email, exceptID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return true, nil
}

// CreateUser validates and inserts an account with its permissions row.
// Administrators get no explicit permissions.
func (s *Store) CreateUser(ctx context.Context, nu NewUser) (int64, error) {
	nu.Name = strings.TrimSpace(nu.Name)
	nu.Email = strings.TrimSpace(nu.Email)
	if nu.Name == "" {
		return 0, ErrNameRequired
	}
	if nu.Email == "" {
		return 0, ErrEmailRequired
	}
	if nu.Group == "" {
		nu.Group = GroupUser
	}
	if nu.Group != GroupAdmin && nu.Group != GroupUser {
		return 0, ErrInvalidGroup
	}
	taken, err := s.EmailTaken(ctx, nu.Email, 0)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, ErrEmailTaken
	}
	if err := validatePassword(nu.Password, nu.Confirm); err != nil {
		return 0, err
	}
	hash, err := HashPassword(nu.Password)
	if err != nil {
		return 0, err
	}

	perms := nu.Permissions
	if nu.Group == GroupAdmin {
		perms = Permissions{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (nome, email, senha, grupo) VALUES (?, ?, ?, ?)",
		nu.Name, nu.Email, hash, nu.Group)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get user ID: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO permissions (user_id, cadastrar, batepapo) VALUES (?, ?, ?)",
		id, perms.Register, perms.Chat); err != nil {
		return 0, fmt.Errorf("failed to create permissions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return id, nil
}

// UpdateUser applies upd to the account. Permissions only change when the
// resulting group is "user".
func (s *Store) UpdateUser(ctx context.Context, id int64, upd UserUpdate) error {
	cur, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}

	name := strings.TrimSpace(upd.Name)
	if name == "" {
		name = cur.Name
	}
	email := strings.TrimSpace(upd.Email)
	if email == "" {
		email = cur.Email
	} else if email != cur.Email {
		taken, err := s.EmailTaken(ctx, email, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
	}

	var hash string
	if upd.Password != "" {
		if err := validatePassword(upd.Password, upd.Confirm); err != nil {
			return err
		}
		if hash, err = HashPassword(upd.Password); err != nil {
			return err
		}
	}

	group := upd.Group
	if group == "" {
		group = cur.Group
	}
	if group != GroupAdmin && group != GroupUser {
		return ErrInvalidGroup
	}

	perms := cur.Permissions
	if group == GroupUser && upd.Permissions != nil {
		perms = *upd.Permissions
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if hash != "" {
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET nome = ?, email = ?, senha = ?, grupo = ? WHERE id = ?",
			name, email, hash, group, id)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET nome = ?, email = ?, grupo = ? WHERE id = ?",
			name, email, group, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	if err := upsertPermissions(ctx, tx, id, perms); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertPermissions(ctx context.Context, tx *sql.Tx, userID int64, perms Permissions) error {
	var permID int64
	err := tx.QueryRowContext(ctx, "SELECT id FROM permissions WHERE user_id = ?", userID).Scan(&permID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx,
			"INSERT INTO permissions (user_id, cadastrar, batepapo) VALUES (?, ?, ?)",
			userID, perms.Register, perms.Chat)
	case err == nil:
		_, err = tx.ExecContext(ctx,
			"UPDATE permissions SET cadastrar = ?, batepapo = ? WHERE user_id = ?",
			perms.Register, perms.Chat, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to save permissions: %w", err)
	}
	return nil
}

// DeleteUser removes the account with its permissions and module access.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM permissions WHERE user_id = ?",
		"DELETE FROM module_access WHERE user_id = ?",
		"DELETE FROM users WHERE id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
	}
	return tx.Commit()
}

// ResetPassword sets a new password after validating it.
func (s *Store) ResetPassword(ctx context.Context, id int64, password, confirm string) error {
	if _, err := s.GetUser(ctx, id); err != nil {
		return err
	}
	if err := validatePassword(password, confirm); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE users SET senha = ? WHERE id = ?", hash, id); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	return nil
}

// PasswordHash returns the stored hash, for verifying credentials.
func (s *Store) PasswordHash(ctx context.Context, email string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT senha FROM users WHERE email = ?", email).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get password: %w", err)
	}
	return hash, nil
}
