package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Cheertaboi/customer-rebates/internal/models"
)

type CustomerRepo struct {
	db *sql.DB
}

func NewCustomerRepo(db *sql.DB) *CustomerRepo {
	return &CustomerRepo{db: db}
}

// GetCustomer loads the rebate relevant attributes of a customer, or nil
// when the customer does not exist.
func (r *CustomerRepo) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	c := models.Customer{ID: id}

	query := `
		SELECT c.newsletter_subscriber,
		       (SELECT COUNT(*) FROM orders o WHERE o.customer_id = c.id)
		FROM customers c
		WHERE c.id = $1
	`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.NewsletterSubscriber, &c.PriorOrderCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	groups, err := r.getGroupIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	c.GroupIDs = groups
	return &c, nil
}

func (r *CustomerRepo) getGroupIDs(ctx context.Context, customerID int64) ([]int64, error) {
	query := `SELECT group_id FROM customer_group_members WHERE customer_id = $1 ORDER BY group_id`
	rows, err := r.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
