package positions

import (
	"context"
	"math"
	"testing"
)

func TestPortfolioDeterministicPerWallet(t *testing.T) {
	svc := New(nil) // no exchange client: marks at base prices

	a := svc.Portfolio(context.Background(), "0xabc")
	b := svc.Portfolio(context.Background(), "0xabc")

	if len(a.Positions) != len(b.Positions) {
		t.Fatalf("position count changed: %d vs %d", len(a.Positions), len(b.Positions))
	}
	for i := range a.Positions {
		p, q := a.Positions[i], b.Positions[i]
		if p.Symbol != q.Symbol || p.Side != q.Side || p.Size != q.Size || p.EntryPrice != q.EntryPrice {
			t.Errorf("position %d not deterministic: %+v vs %+v", i, p, q)
		}
	}
}

func TestPortfolioShape(t *testing.T) {
	svc := New(nil)

	p := svc.Portfolio(context.Background(), "0xdeadbeef")
	if p.Wallet != "0xdeadbeef" {
		t.Errorf("wallet: got %q", p.Wallet)
	}
	if len(p.Positions) < 1 || len(p.Positions) > 3 {
		t.Fatalf("expected 1-3 positions, got %d", len(p.Positions))
	}
	if p.TS.IsZero() {
		t.Error("timestamp must be set")
	}

	var total float64
	for _, pos := range p.Positions {
		if pos.Side != "LONG" && pos.Side != "SHORT" {
			t.Errorf("bad side %q", pos.Side)
		}
		if pos.Size <= 0 {
			t.Errorf("size must be positive, got %g", pos.Size)
		}
		if pos.EntryPrice <= 0 || pos.MarkPrice <= 0 {
			t.Errorf("prices must be positive: entry=%g mark=%g", pos.EntryPrice, pos.MarkPrice)
		}
		total += pos.PnL
	}
	if math.Abs(total-p.TotalPnL) > 1e-3 {
		t.Errorf("totalPnl %g does not match sum %g", p.TotalPnL, total)
	}
}

func TestPortfolioPnLSign(t *testing.T) {
	svc := New(nil)

	p := svc.Portfolio(context.Background(), "0x42")
	for _, pos := range p.Positions {
		diff := pos.MarkPrice - pos.EntryPrice
		expectPositive := (pos.Side == "LONG") == (diff > 0)
		if diff == 0 {
			continue
		}
		if (pos.PnL > 0) != expectPositive {
			t.Errorf("%s %s entry=%g mark=%g pnl=%g has wrong sign",
				pos.Symbol, pos.Side, pos.EntryPrice, pos.MarkPrice, pos.PnL)
		}
	}
}
