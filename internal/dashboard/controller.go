package dashboard

import (
	"strconv"
	"sync"

	"faturas/internal/cache"
	"faturas/internal/core"
	"faturas/internal/log"
	"faturas/internal/metrics"
	"faturas/internal/records"
)

// Controller holds the active selector and recomputes the view only when
// the selector or the snapshot generation changed. Views for other
// selectors are kept in a small LRU so switching back is cheap.
type Controller struct {
	snapshots records.Provider
	views     *cache.LRUCache[View]
	logger    *log.Logger

	mu     sync.Mutex
	active core.Selector
}

// NewController starts with every account selected.
func NewController(snapshots records.Provider, views *cache.LRUCache[View], logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default(log.ComponentDashboard)
	}
	return &Controller{
		snapshots: snapshots,
		views:     views,
		logger:    logger.WithComponent(log.ComponentDashboard),
		active:    core.AllAccounts(),
	}
}

// Select makes sel the active selector and returns its view. On error the
// active selector is unchanged.
func (c *Controller) Select(sel core.Selector) (View, error) {
	v, err := c.view(sel)
	if err != nil {
		return View{}, err
	}
	c.mu.Lock()
	c.active = sel
	c.mu.Unlock()
	return v, nil
}

// Refresh returns the view of the active selector against the current
// snapshot. A selector whose account disappeared falls back to all.
func (c *Controller) Refresh() (View, error) {
	c.mu.Lock()
	sel := c.active
	c.mu.Unlock()

	v, err := c.view(sel)
	if err == nil {
		return v, nil
	}
	c.logger.Info("Active account no longer present, showing all accounts",
		log.FieldSelector, sel.String())
	return c.Select(core.AllAccounts())
}

// Active returns the current selector.
func (c *Controller) Active() core.Selector {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// View returns the view for sel without changing the active selector.
func (c *Controller) View(sel core.Selector) (View, error) {
	return c.view(sel)
}

func (c *Controller) view(sel core.Selector) (View, error) {
	snap := c.snapshots.Snapshot()
	key := cacheKey(sel, snap.Generation())
	if c.views != nil {
		if v, ok := c.views.Get(key); ok {
			return v, nil
		}
	}

	v, err := Build(snap, sel)
	if err != nil {
		return View{}, err
	}
	metrics.AddMalformed("energy", len(v.EnergyExcluded))
	metrics.AddMalformed("monetary", len(v.MonetaryExcluded))
	c.logger.Debug("Dashboard view computed",
		log.FieldOperation, log.OpAggregate,
		log.FieldSelector, v.Selector,
		log.FieldRecords, v.Records,
		log.FieldMalformed, v.Excluded())

	if c.views != nil {
		c.views.Set(key, v)
	}
	return v, nil
}

// The "=" separator keeps the all sentinel apart from an account id.
func cacheKey(sel core.Selector, generation uint64) string {
	prefix := "account="
	if sel.IsAll() {
		prefix = "all="
	}
	return strconv.FormatUint(generation, 10) + "/" + prefix + sel.Account()
}
