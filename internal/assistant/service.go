// Package assistant answers user chat questions with market context and
// drives the text-completion provider.
package assistant

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"dex-assistant/internal/indicator"
	"dex-assistant/internal/market"
	"dex-assistant/internal/metrics"
	"dex-assistant/internal/model"
)

// ChatResult is the reply payload for one chat request.
type ChatResult struct {
	Reply      string             `json:"reply"`
	Indicators model.IndicatorSet `json:"indicators"`
	Price      float64            `json:"price"`
}

// Service handles chat requests. Chat never returns an error; every
// failure degrades to an apology reply with neutral indicators.
type Service struct {
	agg       *market.Aggregator
	completer Completer
	prom      *metrics.Metrics // optional
}

// NewService creates the chat service.
func NewService(agg *market.Aggregator, completer Completer, prom *metrics.Metrics) *Service {
	return &Service{agg: agg, completer: completer, prom: prom}
}

// Chat fetches market and indicator state for symbol in parallel, builds
// the completion context and returns the provider's reply. Any failure
// yields the deterministic apology result instead of an error.
func (s *Service) Chat(ctx context.Context, message, wallet, symbol string) ChatResult {
	start := time.Now()
	if s.prom != nil {
		s.prom.CompletionCalls.Inc()
	}

	var (
		wg      sync.WaitGroup
		snap    model.MarketSnapshot
		ind     model.IndicatorSet
		indReal bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		snap = s.agg.Snapshot(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		ind, indReal = indicator.Snapshot(ctx, s.agg.Client(), symbol)
	}()
	wg.Wait()

	system := ContextBlock(symbol, snap, ind, indReal)
	reply, err := s.completer.Complete(ctx, system, message)
	if err != nil {
		log.Printf("[assistant] chat for %s (wallet %s) degraded to apology: %v", symbol, wallet, err)
		if s.prom != nil {
			s.prom.CompletionFailures.Inc()
		}
		return Apology(symbol)
	}

	if s.prom != nil {
		s.prom.CompletionDur.Observe(time.Since(start).Seconds())
	}
	return ChatResult{
		Reply:      reply,
		Indicators: ind,
		Price:      snap.Price,
	}
}

// Apology is the deterministic degraded reply: neutral indicators and a
// zero price so the front end can tell nothing real was available.
func Apology(symbol string) ChatResult {
	return ChatResult{
		Reply: fmt.Sprintf(
			"I'm sorry, I couldn't analyze %s right now. Market data or the analysis service is temporarily unavailable. Please try again in a moment.",
			symbol),
		Indicators: indicator.Neutral(),
		Price:      0,
	}
}
