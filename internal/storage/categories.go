package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mymoney/internal/core"
)

func (q *Queries) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	return core.Category{ID: id, Name: name}, nil
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, name, archived FROM categories WHERE id = ?`, id)
	return scanCategory(row)
}

func (q *Queries) GetCategoryByName(ctx context.Context, name string) (core.Category, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, name, archived FROM categories WHERE name = ?`, name)
	return scanCategory(row)
}

func (q *Queries) ListCategories(ctx context.Context, includeArchived bool) ([]core.Category, error) {
	query := `SELECT id, name, archived FROM categories ORDER BY name`
	if !includeArchived {
		query = `SELECT id, name, archived FROM categories WHERE archived = 0 ORDER BY name`
	}
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (q *Queries) SetCategoryArchived(ctx context.Context, id int64, archived bool) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE categories SET archived = ? WHERE id = ?`, archived, id)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

func scanCategory(row rowScanner) (core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.Name, &c.Archived)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Category{}, ErrNoRows
		}
		return core.Category{}, fmt.Errorf("scan category: %w", err)
	}
	return c, nil
}
