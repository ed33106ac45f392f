package promo

import (
	"context"
	"strings"
	"sync"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// MemoryCatalog is an in-process Catalog used in development and tests.
type MemoryCatalog struct {
	mu    sync.Mutex
	codes map[string]model.PromoCode
}

func NewMemoryCatalog(codes ...model.PromoCode) *MemoryCatalog {
	c := &MemoryCatalog{codes: make(map[string]model.PromoCode, len(codes))}
	for _, p := range codes {
		c.Put(p)
	}
	return c
}

// Put adds or replaces a code.
func (c *MemoryCatalog) Put(p model.PromoCode) {
	p.Code = strings.ToUpper(p.Code)
	c.mu.Lock()
	c.codes[p.Code] = p
	c.mu.Unlock()
}

func (c *MemoryCatalog) FindByCode(_ context.Context, code string) (*model.PromoCode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.codes[strings.ToUpper(code)]
	if !ok {
		return nil, errs.Mark(errs.Newf("promo code %s", code), errs.ErrNotFound)
	}
	return &p, nil
}

func (c *MemoryCatalog) IncrementUsage(_ context.Context, code string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.codes[strings.ToUpper(code)]
	if !ok {
		return false, nil
	}
	if p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit {
		return false, nil
	}
	p.UsedCount++
	c.codes[p.Code] = p
	return true, nil
}

func (c *MemoryCatalog) DecrementUsage(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.codes[strings.ToUpper(code)]; ok && p.UsedCount > 0 {
		p.UsedCount--
		c.codes[p.Code] = p
	}
	return nil
}
