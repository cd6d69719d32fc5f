package address

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logging.OrNop(logger)}
}

const addressColumns = `id::text, user_id, COALESCE(address_type, ''), street_address, apartment_address, country, zipcode, default_address, created_at`

func (r *postgresRepo) Create(ctx context.Context, a domain.Address) (*domain.Address, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if a.Default {
		if err := clearDefault(ctx, tx, a.UserID, ""); err != nil {
			return nil, err
		}
	}
	out, err := scanAddress(tx.QueryRow(ctx, `
INSERT INTO addresses (user_id, address_type, street_address, apartment_address, country, zipcode, default_address)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
RETURNING `+addressColumns,
		a.UserID, a.AddressType, a.StreetAddress, a.ApartmentAddress, a.Country, a.Zipcode, a.Default))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) List(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 ORDER BY default_address DESC, created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Address{}
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *postgresRepo) Get(ctx context.Context, userID, id string) (*domain.Address, error) {
	return scanAddress(r.pool.QueryRow(ctx, `SELECT `+addressColumns+` FROM addresses WHERE user_id = $1 AND id = $2`, userID, id))
}

func (r *postgresRepo) Update(ctx context.Context, a domain.Address) (*domain.Address, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if a.Default {
		if err := clearDefault(ctx, tx, a.UserID, a.ID); err != nil {
			return nil, err
		}
	}
	out, err := scanAddress(tx.QueryRow(ctx, `
UPDATE addresses
SET address_type = NULLIF($3, ''),
    street_address = $4,
    apartment_address = $5,
    country = $6,
    zipcode = $7,
    default_address = $8
WHERE user_id = $1 AND id = $2
RETURNING `+addressColumns,
		a.UserID, a.ID, a.AddressType, a.StreetAddress, a.ApartmentAddress, a.Country, a.Zipcode, a.Default))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the address. Orders that referenced it keep a NULL billing address.
func (r *postgresRepo) Delete(ctx context.Context, userID, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM addresses WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	r.logger.Info("address deleted", zap.String("user_id", userID), zap.String("address_id", id))
	return nil
}

func clearDefault(ctx context.Context, tx pgx.Tx, userID, exceptID string) error {
	_, err := tx.Exec(ctx, `
UPDATE addresses SET default_address = false
WHERE user_id = $1 AND default_address AND id::text <> $2
`, userID, exceptID)
	return err
}

func scanAddress(row pgx.Row) (*domain.Address, error) {
	var a domain.Address
	err := row.Scan(&a.ID, &a.UserID, &a.AddressType, &a.StreetAddress, &a.ApartmentAddress, &a.Country, &a.Zipcode, &a.Default, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
