package models

// Customer carries the attributes rebate rules are gated on.
type Customer struct {
	ID                   int64   `json:"id"`
	GroupIDs             []int64 `json:"group_ids"`
	NewsletterSubscriber bool    `json:"newsletter_subscriber"`
	PriorOrderCount      int     `json:"prior_order_count"`
}

// HasPriorOrders reports whether the customer has ordered before.
func (c Customer) HasPriorOrders() bool {
	return c.PriorOrderCount > 0
}

// InGroup reports whether the customer is a member of groupID.
func (c Customer) InGroup(groupID int64) bool {
	for _, id := range c.GroupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}
