package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

// MirrorGroupIDs returns the additional product groups of each product.
// Products without mirror groups are absent from the result.
func (r *ProductRepo) MirrorGroupIDs(ctx context.Context, productIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64)
	if len(productIDs) == 0 {
		return out, nil
	}
	query := `SELECT product_id, product_group_id FROM product_group_mirrors WHERE product_id = ANY($1) ORDER BY product_id, product_group_id`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(productIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var productID, groupID int64
		if err := rows.Scan(&productID, &groupID); err != nil {
			return nil, err
		}
		out[productID] = append(out[productID], groupID)
	}
	return out, rows.Err()
}
