package fleet

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageSize  = 100
	DefaultMaxOrders = 5000
	DefaultFanOut    = 8
)

// Loader assembles the full order selection from the fleet API's paged
// listing endpoint. The API reports no totals, so completeness can only be
// inferred from a page coming back shorter than the requested limit.
type Loader struct {
	client    *Client
	pageSize  int
	maxOrders int
	fanOut    int
}

// NewLoader wraps client with paging parameters; non-positive values fall
// back to the defaults. maxOrders caps how many orders one load will ever
// request across all pages.
func NewLoader(client *Client, pageSize, maxOrders, fanOut int) *Loader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if maxOrders <= 0 {
		maxOrders = DefaultMaxOrders
	}
	if fanOut <= 0 {
		fanOut = DefaultFanOut
	}
	return &Loader{client: client, pageSize: pageSize, maxOrders: maxOrders, fanOut: fanOut}
}

// LoadAll fetches every order matching q, up to the loader's cap.
//
// Page 0 is a synchronous probe: when it comes back short the selection
// fits in one page and no other request is made. Otherwise the remaining
// pages up to the cap are fetched concurrently, at most fanOut in flight,
// and reassembled in ascending page order so callers see the listing's
// own ordering. Any page failing fails the whole load.
func (l *Loader) LoadAll(ctx context.Context, q OrderQuery) ([]Order, error) {
	first, err := l.client.ListOrdersPage(ctx, q, l.pageSize, 0)
	if err != nil {
		return nil, fmt.Errorf("load orders page 0: %w", err)
	}
	if len(first) < l.pageSize {
		return first, nil
	}

	totalPages := (l.maxOrders + l.pageSize - 1) / l.pageSize
	pages := make([][]Order, totalPages)
	pages[0] = first

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.fanOut)
	for page := 1; page < totalPages; page++ {
		page := page // per-iteration copy; required while go.mod targets go < 1.22
		g.Go(func() error {
			data, err := l.client.ListOrdersPage(gctx, q, l.pageSize, page*l.pageSize)
			if err != nil {
				return fmt.Errorf("load orders page %d: %w", page, err)
			}
			pages[page] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	orders := make([]Order, 0, totalPages*l.pageSize)
	for _, p := range pages {
		orders = append(orders, p...)
	}
	return orders, nil
}
