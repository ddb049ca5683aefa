package bulk

import (
	"context"

	"github.com/dmitrijs2005/cutout/internal/logging"
	"github.com/dmitrijs2005/cutout/internal/server/rembg"
)

const (
	failedMessage    = "Failed to process image"
	cancelledMessage = "cancelled"
)

// Processor works through a batch one item at a time.
type Processor struct {
	remover rembg.Remover
	log     logging.Logger
}

func NewProcessor(remover rembg.Remover, log logging.Logger) *Processor {
	return &Processor{remover: remover, log: log}
}

// Run processes b in order. A failed item is marked error and the next one
// starts. Cancelling ctx stops before the next item; the rest stay queued.
func (p *Processor) Run(ctx context.Context, b *Batch) {
	defer b.finish()

	for i := 0; i < b.Len(); i++ {
		if ctx.Err() != nil {
			return
		}

		b.transition(i, StatusProcessing, nil, "")
		data, mimeType := b.item(i)

		out, err := p.remover.RemoveBackground(ctx, data, mimeType)
		switch {
		case ctx.Err() != nil:
			b.transition(i, StatusError, nil, cancelledMessage)
			return
		case err != nil:
			p.log.Warn(ctx, "batch item failed", "batch", b.ID, "index", i, "error", err)
			b.transition(i, StatusError, nil, failedMessage)
			itemsProcessed.WithLabelValues(string(StatusError)).Inc()
		default:
			b.transition(i, StatusDone, out, "")
			itemsProcessed.WithLabelValues(string(StatusDone)).Inc()
		}
	}

	p.log.Info(ctx, "batch finished", "batch", b.ID, "items", b.Len())
}
