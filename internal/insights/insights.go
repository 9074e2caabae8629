// Package insights requests spending advice from an external text generator
// and turns whatever comes back into a list of core.Insight values.
package insights

import (
	"context"
	"fmt"
	"time"

	"financeai/internal/core"
	"financeai/internal/log"
)

// Generator sends a payload to a language model and returns its raw text.
// A non-success upstream status must be reported as *StatusError so the
// pipeline can classify it.
type Generator interface {
	Generate(ctx context.Context, p Payload) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, p Payload) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, p Payload) (string, error) {
	return f(ctx, p)
}

// Pipeline is stateless between requests and safe for concurrent use.
type Pipeline struct {
	gen    Generator
	logger *log.Logger
}

func NewPipeline(gen Generator, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Pipeline{gen: gen, logger: logger.WithComponent(log.ComponentInsights)}
}

// Request bounds txs, asks the generator for insights and normalizes the
// reply. The returned error is nil or a *Failure; on failure no insights are
// returned. Requests are never retried.
func (p *Pipeline) Request(ctx context.Context, txs []core.Transaction) (out []core.Insight, err error) {
	payload := BuildPayload(txs)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			p.logger.ErrorContext(ctx, "Insight generator panicked", log.FieldError, fmt.Sprint(r))
			out, err = nil, &Failure{Kind: GenerationFailed, Err: fmt.Errorf("generator panic: %v", r)}
		}
	}()

	raw, genErr := p.gen.Generate(ctx, payload)
	if genErr != nil {
		f := classify(genErr)
		fields := log.NewFields().
			WithOperation(log.OpGenerate).
			WithError(genErr)
		fields[log.FieldOutcome] = f.Kind.String()
		fields[log.FieldCount] = payload.Count
		fields[log.FieldDuration] = time.Since(start).Milliseconds()
		if f.Kind == GenerationFailed {
			p.logger.ErrorContext(ctx, "Insight generation failed", fields.ToSlice()...)
		} else {
			p.logger.WarnContext(ctx, "Insight generation refused", fields.ToSlice()...)
		}
		return nil, f
	}

	out = Normalize(raw)
	p.logger.InfoContext(ctx, "Insights generated",
		log.FieldOperation, log.OpNormalize,
		log.FieldCount, payload.Count,
		"insights", len(out),
		log.FieldDuration, time.Since(start).Milliseconds(),
	)
	return out, nil
}
