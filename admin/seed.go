package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Default administrator created on first initialization.
const (
	DefaultAdminName     = "Administrador"
	DefaultAdminEmail    = "admin@admin.com"
	DefaultAdminPassword = "admin123"
)

// SampleModule is a module created on first initialization.
type SampleModule struct {
	Name        string
	Description string
}

// SampleModules are inserted when missing.
var SampleModules = []SampleModule{
	{"Faturamento", "Módulo de faturamento e notas fiscais"},
	{"Recebimento", "Módulo de contas a receber"},
	{"Financeiro", "Módulo financeiro geral"},
	{"RH", "Recursos Humanos"},
	{"TI", "Tecnologia da Informação"},
}

// SeedReport says what Seed created.
type SeedReport struct {
	AdminCreated   bool
	ModulesCreated int
}

// Seed creates the default administrator with every permission and the
// sample modules. Existing rows are left alone, so it is safe to rerun.
func (s *Store) Seed(ctx context.Context) (*SeedReport, error) {
	report := &SeedReport{}

	created, err := s.seedAdmin(ctx)
	if err != nil {
		return nil, err
	}
	report.AdminCreated = created

	for _, m := range SampleModules {
		var id int64
		err := s.db.QueryRowContext(ctx, "SELECT id FROM modules WHERE nome = ?", m.Name).Scan(&id)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check module %s: %w", m.Name, err)
		}
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO modules (nome, descricao) VALUES (?, ?)", m.Name, m.Description); err != nil {
			return nil, fmt.Errorf("failed to create module %s: %w", m.Name, err)
		}
		report.ModulesCreated++
	}
	return report, nil
}

func (s *Store) seedAdmin(ctx context.Context) (bool, error) {
	taken, err := s.EmailTaken(ctx, DefaultAdminEmail, 0)
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}

	hash, err := HashPassword(DefaultAdminPassword)
	if err != nil {
		return false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (nome, email, senha, grupo) VALUES (?, ?, ?, ?)",
		DefaultAdminName, DefaultAdminEmail, hash, GroupAdmin)
	if err != nil {
		return false, fmt.Errorf("failed to create admin user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get admin ID: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO permissions (user_id, cadastrar, batepapo) VALUES (?, ?, ?)",
		id, true, true); err != nil {
		return false, fmt.Errorf("failed to create admin permissions: %w", err)
	}
	return true, tx.Commit()
}
