package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatehouse/internal/constants"
	"gatehouse/internal/models"
)

const productColumns = `id, owner_id, name, description, price_cents, created_at, updated_at`

type ProductRepository struct {
	db *DB
}

func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Get(ctx context.Context, id string) (*models.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, r.db.rebind(
		`SELECT `+productColumns+` FROM products WHERE id = ?`), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrapErr("querying product", err)
	}
	return p, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]*models.Product, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY created_at, id`)
	if err != nil {
		return nil, wrapErr("querying products", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, wrapErr("scanning product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("iterating products", err)
	}
	return products, nil
}

func (r *ProductRepository) Insert(ctx context.Context, p *models.Product) error {
	if p.ID == "" {
		id, err := GenerateID(constants.IDPrefixProduct)
		if err != nil {
			return fmt.Errorf("generating product ID: %w", err)
		}
		p.ID = id
	}
	p.CreatedAt = p.CreatedAt.UTC().Truncate(time.Second)
	p.UpdatedAt = p.UpdatedAt.UTC().Truncate(time.Second)

	_, err := r.db.ExecContext(ctx, r.db.rebind(
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.OwnerID, p.Name, p.Description, p.PriceCents, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return wrapErr("creating product", err)
	}
	return nil
}

// Update writes every mutable column, guarded by the version the caller read.
func (r *ProductRepository) Update(ctx context.Context, p *models.Product, prevUpdatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, r.db.rebind(
		`UPDATE products
            SET name = ?, description = ?, price_cents = ?, updated_at = ?
          WHERE id = ? AND updated_at = ?`),
		p.Name, p.Description, p.PriceCents, p.UpdatedAt.UTC(), p.ID, prevUpdatedAt.UTC(),
	)
	if err != nil {
		return wrapErr("updating product", err)
	}
	return requireRow("updating product", result)
}

func (r *ProductRepository) Delete(ctx context.Context, id string, prevUpdatedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, r.db.rebind(
		`DELETE FROM products WHERE id = ? AND updated_at = ?`), id, prevUpdatedAt.UTC())
	if err != nil {
		return wrapErr("deleting product", err)
	}
	return requireRow("deleting product", result)
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}
