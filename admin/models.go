package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrModelNotFound is returned for an unknown llm_models id.
var ErrModelNotFound = errors.New("Modelo não encontrado")

// Model is a row of llm_models. At most one row is active; the server
// answers chats with it.
type Model struct {
	ID             int64
	Provider       string
	Name           string
	Model          string
	APIKey         string
	APIURL         string
	SupportsImages bool
	Active         bool
}

const selectModel = `SELECT id, provider, nome, modelo, COALESCE(api_key, ''), COALESCE(api_url, ''),
	COALESCE(visualiza_imagem, 0), COALESCE(ativo, 0) FROM llm_models`

func scanModel(row interface{ Scan(...any) error }) (Model, error) {
	var m Model
	err := row.Scan(&m.ID, &m.Provider, &m.Name, &m.Model, &m.APIKey, &m.APIURL, &m.SupportsImages, &m.Active)
	return m, err
}

// ListModels returns every configured model.
func (s *Store) ListModels(ctx context.Context) ([]Model, error) {
	rows, err := s.db.QueryContext(ctx, selectModel+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		models = append(models, m)
	}
	return models, rows.Err()
}

// GetModel returns one model.
func (s *Store) GetModel(ctx context.Context, id int64) (*Model, error) {
	m, err := scanModel(s.db.QueryRowContext(ctx, selectModel+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return &m, nil
}

// ActivateModel makes id the only active model.
func (s *Store) ActivateModel(ctx context.Context, id int64) error {
	if _, err := s.GetModel(ctx, id); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "UPDATE llm_models SET ativo = ?", false); err != nil {
		return fmt.Errorf("failed to deactivate models: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE llm_models SET ativo = ? WHERE id = ?", true, id); err != nil {
		return fmt.Errorf("failed to activate model: %w", err)
	}
	return tx.Commit()
}
