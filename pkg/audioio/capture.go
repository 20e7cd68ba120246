package audioio

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/teslashibe/go-pidog/internal/log"
)

const outboundPutTimeout = 10 * time.Millisecond

// CapturePipeline turns raw mic chunks into gated, resampled, base64
// frames ready for ModelSession, with a bounded outbound queue.
type CapturePipeline struct {
	source    Source
	gate      *Gate
	modelRate int
	out       chan string

	dropCount uint64
}

// NewCapturePipeline creates a CapturePipeline with the given outbound
// queue depth.
func NewCapturePipeline(source Source, gate *Gate, modelRate int, queueDepth int) *CapturePipeline {
	return &CapturePipeline{
		source:    source,
		gate:      gate,
		modelRate: modelRate,
		out:       make(chan string, queueDepth),
	}
}

// Frames returns the outbound channel of base64-encoded PCM16 frames at
// model rate.
func (p *CapturePipeline) Frames() <-chan string { return p.out }

// Run reads from the source until ctx is cancelled or the source errors
// (e.g. on Stop/Close).
func (p *CapturePipeline) Run(ctx context.Context) {
	for {
		chunk, err := p.source.Read(ctx)
		if err != nil {
			return
		}

		_, forward := p.gate.Evaluate(chunk.Samples)
		if !forward {
			continue
		}

		resampled := Resample(chunk.Samples, chunk.SampleRate, p.modelRate)
		encoded := base64.StdEncoding.EncodeToString(SamplesToBytes(resampled))

		select {
		case p.out <- encoded:
		case <-ctx.Done():
			return
		case <-time.After(outboundPutTimeout):
			p.dropCount++
			if p.dropCount%100 == 0 {
				log.Warn("audioio: outbound queue saturated, dropping frames", "total_drops", p.dropCount)
			}
		}
	}
}
