package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Cheertaboi/customer-rebates/internal/models"
)

const groupKeyPrefix = "rebates:group:"

// RuleCache stores the rule list of each customer group in Redis. A nil
// RuleCache or a nil client turns every call into a miss.
type RuleCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRuleCache(client *redis.Client, ttl time.Duration) *RuleCache {
	return &RuleCache{client: client, ttl: ttl}
}

func groupKey(groupID int64) string {
	return groupKeyPrefix + strconv.FormatInt(groupID, 10)
}

// GroupRules returns the cached rules of groupID and whether the key existed.
func (c *RuleCache) GroupRules(ctx context.Context, groupID int64) ([]models.RebateRule, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, groupKey(groupID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var rules []models.RebateRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, false, err
	}
	return rules, true, nil
}

// SetGroupRules stores rules for groupID with the configured TTL.
func (c *RuleCache) SetGroupRules(ctx context.Context, groupID int64, rules []models.RebateRule) error {
	if c == nil || c.client == nil {
		return nil
	}
	if rules == nil {
		rules = []models.RebateRule{}
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, groupKey(groupID), data, c.ttl).Err()
}

// InvalidateGroup drops the cached rules of groupID.
func (c *RuleCache) InvalidateGroup(ctx context.Context, groupID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, groupKey(groupID)).Err()
}
