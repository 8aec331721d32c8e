package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/errandplan/core/events"
	coremetrics "github.com/kilianp07/errandplan/core/metrics"
	"github.com/kilianp07/errandplan/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records replan triggers
// reaching the app. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				e, isReplan := ev.(events.ReplanRequested)
				if !isReplan {
					continue
				}
				if r, ok := sink.(coremetrics.TriggerRecorder); ok {
					at := e.At
					if at.IsZero() {
						at = time.Now()
					}
					_ = r.RecordTrigger(coremetrics.TriggerEvent{Source: e.Source, Time: at})
				}
			}
		}
	}()
}
