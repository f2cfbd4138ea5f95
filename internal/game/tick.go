package game

import (
	"context"
	"log/slog"
	"time"
)

// slipTolerance is how many ticks of wall-clock slippage the loop absorbs
// before dropping the backlog.
const slipTolerance = 2

// Ticker runs the fixed-tick world loop. Every tick it advances world time;
// every SyncEveryTicks ticks it drains the delta queue and uploads
// statistics over the link.
type Ticker struct {
	world *World
	link  *Link

	tickPeriod time.Duration
	syncEvery  int

	tick int64
}

func NewTicker(world *World, link *Link, tickMillis, syncEvery int) *Ticker {
	if tickMillis <= 0 {
		tickMillis = 100
	}
	if syncEvery <= 0 {
		syncEvery = 100
	}
	return &Ticker{
		world:      world,
		link:       link,
		tickPeriod: time.Duration(tickMillis) * time.Millisecond,
		syncEvery:  syncEvery,
	}
}

// Run drives the loop until the context is cancelled. When the loop falls
// more than slipTolerance ticks behind, it logs and catches up by a single
// tick, dropping the rest of the backlog.
func (t *Ticker) Run(ctx context.Context) error {
	next := time.Now().Add(t.tickPeriod)
	timer := time.NewTimer(t.tickPeriod)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			t.flush()
			return nil
		case now := <-timer.C:
			behind := now.Sub(next)
			if behind > time.Duration(slipTolerance)*t.tickPeriod {
				slog.Warn("tick loop behind, dropping backlog",
					"behind", behind, "tick", t.tick)
				next = now
			}
			t.step()
			next = next.Add(t.tickPeriod)
			wait := time.Until(next)
			if wait < 0 {
				wait = 0
			}
			timer.Reset(wait)
		}
	}
}

func (t *Ticker) step() {
	t.tick++
	if t.tick%int64(t.syncEvery) != 0 {
		return
	}
	t.flush()
}

// flush drains the delta queue and uploads statistics.
func (t *Ticker) flush() {
	entries := t.world.DrainSync()
	if len(entries) > 0 {
		if err := t.link.SendSyncBatch(entries); err != nil {
			slog.Error("sync batch upload failed", "entries", len(entries), "err", err)
		}
	}
	if err := t.link.SendStatistics(t.world.MapStats()); err != nil {
		slog.Error("statistics upload failed", "err", err)
	}
}
