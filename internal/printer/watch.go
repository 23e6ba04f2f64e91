package printer

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultWatchInterval = 2 * time.Second

// poller turns periodic accessory listings into connect/disconnect events
type poller struct {
	list     func() ([]Accessory, error)
	interval time.Duration
	logger   *zap.Logger
}

func (p *poller) watch(ctx context.Context) <-chan Event {
	events := make(chan Event, 8)
	go p.run(ctx, events)
	return events
}

func (p *poller) run(ctx context.Context, events chan<- Event) {
	defer close(events)

	interval := p.interval
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	known := make(map[string]Accessory)
	first := true
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		current, err := p.list()
		if err != nil {
			p.logger.Debug("accessory scan failed", zap.Error(err))
		} else {
			seen := make(map[string]Accessory, len(current))
			for _, acc := range current {
				seen[acc.Address] = acc
			}
			// The first scan only records the baseline.
			if !first {
				for addr, acc := range seen {
					if _, ok := known[addr]; !ok {
						if !send(ctx, events, Event{Type: EventConnected, Accessory: acc}) {
							return
						}
					}
				}
				for addr, acc := range known {
					if _, ok := seen[addr]; !ok {
						if !send(ctx, events, Event{Type: EventDisconnected, Accessory: acc}) {
							return
						}
					}
				}
			}
			known = seen
			first = false
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
