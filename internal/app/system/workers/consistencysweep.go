// internal/app/system/workers/consistencysweep.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/leadhub/internal/app/engine/assign"
	"go.uber.org/zap"
)

// ConsistencySweep is a background worker that periodically audits the
// lead/broker assignment sets against each other. It only reports; repair
// stays a deliberate operator action through the consistency endpoint.
type ConsistencySweep struct {
	engine   *assign.Engine
	log      *zap.Logger
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewConsistencySweep creates a sweep worker that runs every interval.
func NewConsistencySweep(eng *assign.Engine, logger *zap.Logger, interval time.Duration) *ConsistencySweep {
	return &ConsistencySweep{
		engine:   eng,
		log:      logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *ConsistencySweep) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("consistency sweep worker started", zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *ConsistencySweep) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("consistency sweep worker stopped")
}

func (w *ConsistencySweep) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *ConsistencySweep) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	found, err := w.engine.FindInconsistencies(ctx)
	if err != nil {
		w.log.Error("consistency sweep failed", zap.Error(err))
		return
	}
	if len(found) == 0 {
		return
	}

	w.log.Warn("consistency sweep found divergent pairs", zap.Int("count", len(found)))
	for _, inc := range found {
		w.log.Warn("divergent assignment pair",
			zap.String("lead_id", inc.LeadID.Hex()),
			zap.String("broker_id", inc.BrokerID.Hex()),
			zap.Bool("lead_has_broker", inc.LeadHasBroker),
			zap.Bool("broker_has_lead", inc.BrokerHasLead))
	}
}
