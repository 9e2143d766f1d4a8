// Package positions serves demo portfolio state for a wallet. Positions
// are derived deterministically from the wallet address and marked to the
// current ticker price, so repeated reads for the same wallet stay stable
// while PnL tracks the market.
package positions

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"dex-assistant/internal/exchange"
	"dex-assistant/internal/model"
)

var demoSymbols = []string{
	"PERP_BTC_USDC",
	"PERP_ETH_USDC",
	"PERP_SOL_USDC",
	"PERP_ARB_USDC",
}

// Portfolio is the /api/positions response payload.
type Portfolio struct {
	Wallet    string           `json:"wallet"`
	Positions []model.Position `json:"positions"`
	TotalPnL  float64          `json:"totalPnl"`
	TS        time.Time        `json:"timestamp"`
}

// Service builds portfolios.
type Service struct {
	client *exchange.Client
}

// New creates a positions service.
func New(client *exchange.Client) *Service {
	return &Service{client: client}
}

// Portfolio returns the wallet's positions marked to current prices.
func (s *Service) Portfolio(ctx context.Context, wallet string) Portfolio {
	seed := hashWallet(wallet)
	count := int(seed%3) + 1

	out := Portfolio{
		Wallet: wallet,
		TS:     time.Now().UTC(),
	}

	for i := 0; i < count; i++ {
		h := splitmix(seed + uint64(i)*0x9e3779b97f4a7c15)
		symbol := demoSymbols[int(h%uint64(len(demoSymbols)))]

		mark := s.markPrice(ctx, symbol)

		// Entry within ±4% of the mark, fixed per wallet+slot.
		entryOffset := (float64(h>>8%2000)/1000 - 1) * 0.04
		entry := mark * (1 + entryOffset)
		if entry <= 0 {
			entry = mark
		}

		side := "LONG"
		if h>>32%2 == 1 {
			side = "SHORT"
		}
		size := roundTo(0.1+float64(h>>16%500)/100, 2)

		pnl := (mark - entry) * size
		if side == "SHORT" {
			pnl = -pnl
		}
		pnlPct := 0.0
		if entry > 0 && size > 0 {
			pnlPct = pnl / (entry * size) * 100
		}

		out.Positions = append(out.Positions, model.Position{
			Symbol:     symbol,
			Side:       side,
			Size:       size,
			EntryPrice: roundTo(entry, 6),
			MarkPrice:  mark,
			PnL:        roundTo(pnl, 6),
			PnLPct:     roundTo(pnlPct, 2),
			OpenedAt:   out.TS.Add(-time.Duration(h%72) * time.Hour),
		})
		out.TotalPnL += pnl
	}
	out.TotalPnL = roundTo(out.TotalPnL, 6)
	return out
}

func (s *Service) markPrice(ctx context.Context, symbol string) float64 {
	if s.client != nil {
		if t, _ := s.client.FetchTicker(ctx, symbol); t.Price > 0 {
			return t.Price
		}
	}
	return exchange.BasePrice(symbol)
}

func hashWallet(wallet string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(wallet))
	return h.Sum64()
}

// splitmix scrambles the seed so per-slot values look independent.
func splitmix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
