package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-community-bot/internal/model"
)

// CatalogRepository stores the song-of-the-day library.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository creates a new CatalogRepository instance.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

const catalogColumns = `id, contributor_id, title, artist, art_url, source_url, used, date_added`

func scanCatalogEntry(row pgx.Row) (*model.CatalogEntry, error) {
	var e model.CatalogEntry
	err := row.Scan(
		&e.ID,
		&e.ContributorID,
		&e.Title,
		&e.Artist,
		&e.ArtURL,
		&e.SourceURL,
		&e.Used,
		&e.DateAdded,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Add inserts a new catalog entry.
func (r *CatalogRepository) Add(ctx context.Context, contributorID int64, title, artist, artURL, sourceURL string) (*model.CatalogEntry, error) {
	const query = `
		INSERT INTO catalog_entries (contributor_id, title, artist, art_url, source_url, used, date_added)
		VALUES ($1, $2, $3, $4, $5, FALSE, NOW())
		RETURNING ` + catalogColumns

	entry, err := scanCatalogEntry(r.pool.QueryRow(ctx, query, contributorID, title, artist, artURL, sourceURL))
	if err != nil {
		return nil, fmt.Errorf("failed to add catalog entry: %w", err)
	}
	return entry, nil
}

// HasUnusedByTitleArtist reports whether an unfeatured entry with the
// same title and artist already sits in the library. Featured entries do
// not block re-adding.
func (r *CatalogRepository) HasUnusedByTitleArtist(ctx context.Context, title, artist string) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM catalog_entries
			WHERE used = FALSE AND LOWER(title) = LOWER($1) AND LOWER(artist) = LOWER($2)
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, title, artist).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check catalog entry: %w", err)
	}
	return exists, nil
}

// PickRandomUnused does the two-stage random pick: first a random
// contributor who still has unfeatured entries, then a random unfeatured
// entry of theirs. Contributors are weighted equally regardless of how
// many songs they submitted. A nil entry with nil error means the
// library has no unfeatured songs.
func (r *CatalogRepository) PickRandomUnused(ctx context.Context) (*model.CatalogEntry, error) {
	const contributorQuery = `
		SELECT contributor_id
		FROM catalog_entries
		WHERE used = FALSE
		GROUP BY contributor_id
		ORDER BY random()
		LIMIT 1
	`

	var contributorID int64
	err := r.pool.QueryRow(ctx, contributorQuery).Scan(&contributorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pick contributor: %w", err)
	}

	const entryQuery = `
		SELECT ` + catalogColumns + `
		FROM catalog_entries
		WHERE used = FALSE AND contributor_id = $1
		ORDER BY random()
		LIMIT 1
	`

	entry, err := scanCatalogEntry(r.pool.QueryRow(ctx, entryQuery, contributorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pick catalog entry: %w", err)
	}

	return entry, nil
}

// MarkUsed flags an entry as featured.
func (r *CatalogRepository) MarkUsed(ctx context.Context, id int64) error {
	const query = `UPDATE catalog_entries SET used = TRUE WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark catalog entry used: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("catalog entry %d not found", id)
	}
	return nil
}
