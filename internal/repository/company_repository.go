package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/fintra-io/be-expenses/internal/apperrors"
	"github.com/fintra-io/be-expenses/internal/database"
)

// CompanyRepository reads company records (the reporting currency lives here).
type CompanyRepository struct {
	db database.Querier
}

// NewCompanyRepository creates a new CompanyRepository.
func NewCompanyRepository(db database.Querier) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// GetByID retrieves a company by primary key.
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*Company, error) {
	query := `SELECT id, name, country, currency FROM companies WHERE id = $1`

	c := &Company{}
	err := r.db.QueryRow(ctx, query, id).Scan(&c.ID, &c.Name, &c.Country, &c.Currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("company", id)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}
