package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/upload"
)

// keys are matched against the URL path suffix, so absolute URLs & query strings still count as references
const referencedKeysQuery = `SELECT k FROM unnest($1::text[]) AS k
	WHERE EXISTS (SELECT 1 FROM submission s
			WHERE right(split_part(split_part(s.file_url, '#', 1), '?', 1), length(k)) = k)
		OR EXISTS (SELECT 1 FROM material_content mc
			WHERE right(split_part(split_part(mc.url, '#', 1), '?', 1), length(k)) = k)`

type uploadRepository struct {
	db *sqlx.DB
}

var _ upload.Repository = (*uploadRepository)(nil) // interface compliance check

func NewUploadRepository(db *sqlx.DB) *uploadRepository {
	return &uploadRepository{db: db}
}

func (repo *uploadRepository) ReferencedKeys(ctx context.Context, keys []string) ([]string, error) {
	referenced := make([]string, 0)
	if len(keys) == 0 {
		return referenced, nil
	}
	// a single array parameter keeps large sweeps under the bind parameter limit
	if err := repo.db.SelectContext(ctx, &referenced, referencedKeysQuery, pq.Array(keys)); err != nil {
		return nil, errors.Wrap(err, "querying referenced uploads")
	}
	return referenced, nil
}
