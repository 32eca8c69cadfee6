package cache

import (
	"sync"

	"github.com/Cheertaboi/customer-rebates/internal/models"
)

// MemoKey identifies one rebate computation.
type MemoKey struct {
	CustomerID   int64
	CartVersion  string
	RulesVersion string
}

// Memo keeps computed discount lines for the lifetime of a request. A cart
// or rule change produces a new key, so stale entries are never returned.
// Lines are deep-copied on the way in and out.
type Memo struct {
	mu    sync.RWMutex
	store map[MemoKey][]models.DiscountLineItem
}

func NewMemo() *Memo {
	return &Memo{
		store: make(map[MemoKey][]models.DiscountLineItem),
	}
}

func (m *Memo) Get(key MemoKey) ([]models.DiscountLineItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	val, ok := m.store[key]
	if !ok {
		return nil, false
	}
	return cloneLines(val), true
}

func (m *Memo) Set(key MemoKey, lines []models.DiscountLineItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = cloneLines(lines)
}

func cloneLines(lines []models.DiscountLineItem) []models.DiscountLineItem {
	if lines == nil {
		return nil
	}
	out := make([]models.DiscountLineItem, len(lines))
	for i, l := range lines {
		if l.PositionNums != nil {
			l.PositionNums = append([]int(nil), l.PositionNums...)
		}
		out[i] = l
	}
	return out
}

// Invalidate drops every entry of customerID.
func (m *Memo) Invalidate(customerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.store {
		if key.CustomerID == customerID {
			delete(m.store, key)
		}
	}
}

// Len reports the number of cached computations.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}
