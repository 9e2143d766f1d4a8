// Package market combines exchange data into point-in-time snapshots and
// drives the periodic polling loops behind real-time consumers.
package market

import (
	"context"
	"log"
	"sync"
	"time"

	"dex-assistant/internal/exchange"
	"dex-assistant/internal/model"
)

const (
	defaultPollInterval = 2 * time.Second
	orderbookDepth      = 10
)

// Aggregator builds market snapshots from the exchange client.
type Aggregator struct {
	client *exchange.Client
	poll   time.Duration

	mu      sync.Mutex
	gen     uint64
	pollers map[string]pollerHandle
}

type pollerHandle struct {
	gen    uint64
	cancel context.CancelFunc
}

// New creates an aggregator. A non-positive pollInterval selects the
// 2 second default.
func New(client *exchange.Client, pollInterval time.Duration) *Aggregator {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Aggregator{
		client:  client,
		poll:    pollInterval,
		pollers: make(map[string]pollerHandle),
	}
}

// Client exposes the underlying exchange client for indicator consumers.
func (a *Aggregator) Client() *exchange.Client {
	return a.client
}

// Snapshot fetches ticker and orderbook for symbol and merges them.
// The snapshot is marked real only when both legs carried exchange data;
// either leg degrading to synthetic values degrades the whole snapshot.
func (a *Aggregator) Snapshot(ctx context.Context, symbol string) model.MarketSnapshot {
	ticker, tickerReal := a.client.FetchTicker(ctx, symbol)
	book, bookReal := a.client.FetchOrderbook(ctx, symbol)

	return model.MarketSnapshot{
		Symbol:     symbol,
		Price:      ticker.Price,
		Volume24h:  ticker.Volume24h,
		Change24h:  ticker.ChangePct,
		High:       ticker.High24h,
		Low:        ticker.Low24h,
		Orderbook:  book.Top(orderbookDepth),
		TS:         time.Now().UTC(),
		IsRealData: tickerReal && bookReal,
	}
}

// StartPolling emits a snapshot for symbol immediately and then on every
// poll tick until the returned stop function is called. Starting a second
// poller for the same symbol replaces the first.
func (a *Aggregator) StartPolling(symbol string, fn func(model.MarketSnapshot)) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())

	a.mu.Lock()
	a.gen++
	gen := a.gen
	if prev, ok := a.pollers[symbol]; ok {
		log.Printf("[market] %s: replacing existing poller", symbol)
		prev.cancel()
	}
	a.pollers[symbol] = pollerHandle{gen: gen, cancel: cancel}
	a.mu.Unlock()

	go func() {
		ticker := time.NewTicker(a.poll)
		defer ticker.Stop()

		fn(a.Snapshot(ctx, symbol))
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(a.Snapshot(ctx, symbol))
			}
		}
	}()

	return func() {
		a.mu.Lock()
		// A replaced poller must not remove its successor's entry.
		if h, ok := a.pollers[symbol]; ok && h.gen == gen {
			delete(a.pollers, symbol)
		}
		a.mu.Unlock()
		cancel()
	}
}

// ActivePollers reports how many symbols are being polled.
func (a *Aggregator) ActivePollers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pollers)
}
