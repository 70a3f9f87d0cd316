package router

import (
	"context"
	"sync"

	"github.com/kbukum/flowtest/block"
	"github.com/kbukum/flowtest/logger"
	"github.com/kbukum/flowtest/signal"
)

// worker serializes deliveries to one block in asynchronous mode. Each
// block processes its signals on its own goroutine, in arrival order.
type worker struct {
	b     block.Block
	log   *logger.Logger
	queue chan workItem

	closeOnce sync.Once
}

type workItem struct {
	signals []*signal.Signal
	input   string
}

func newWorker(b block.Block, log *logger.Logger) *worker {
	return &worker{
		b:     b,
		log:   log,
		queue: make(chan workItem, 64),
	}
}

func (w *worker) enqueue(signals []*signal.Signal, input string) {
	defer func() {
		// Late deliveries racing a closed queue are dropped, same as
		// deliveries after Stop in synchronous mode.
		if recover() != nil {
			w.log.Warn("delivery after shutdown dropped", logger.Fields(
				logger.FieldBlock, w.b.Name(),
			))
		}
	}()
	w.queue <- workItem{signals: signals, input: input}
}

func (w *worker) run(ctx context.Context) {
	for item := range w.queue {
		if err := w.b.ProcessSignals(ctx, item.signals, item.input); err != nil {
			w.log.Error("block processing failed", logger.Fields(
				logger.FieldBlock, w.b.Name(),
				logger.FieldError, err.Error(),
			))
		}
	}
}

func (w *worker) close() {
	w.closeOnce.Do(func() { close(w.queue) })
}
