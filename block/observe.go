package block

import (
	"context"

	"github.com/kbukum/flowtest/logger"
	"github.com/kbukum/flowtest/observability"
	"github.com/kbukum/flowtest/signal"
)

// WithTracing wraps a block with OpenTelemetry span creation. Each
// ProcessSignals call creates a span named "block.process.{name}".
func WithTracing(inner Block) Block {
	return &tracingBlock{inner: inner}
}

type tracingBlock struct {
	inner Block
}

func (b *tracingBlock) ID() string                      { return b.inner.ID() }
func (b *tracingBlock) Name() string                    { return b.inner.Name() }
func (b *tracingBlock) Configure(bctx Context) error    { return b.inner.Configure(bctx) }
func (b *tracingBlock) Start(ctx context.Context) error { return b.inner.Start(ctx) }
func (b *tracingBlock) Stop(ctx context.Context) error  { return b.inner.Stop(ctx) }
func (b *tracingBlock) Unwrap() Block                   { return b.inner }

func (b *tracingBlock) SetIdentity(id, name string) {
	if setter, ok := b.inner.(interface{ SetIdentity(id, name string) }); ok {
		setter.SetIdentity(id, name)
	}
}

func (b *tracingBlock) ProcessSignals(ctx context.Context, signals []*signal.Signal, inputID string) error {
	ctx, span := observability.StartSpan(ctx, "block.process."+b.inner.Name())
	defer span.End()

	observability.SetSpanAttribute(ctx, observability.AttrBlock, b.inner.Name())
	observability.SetSpanAttribute(ctx, observability.AttrBlockID, b.inner.ID())
	observability.SetSpanAttribute(ctx, observability.AttrInput, inputID)
	observability.SetSpanInt(ctx, observability.AttrSignals, len(signals))

	err := b.inner.ProcessSignals(ctx, signals, inputID)
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return err
}

// WithLogging wraps a block with per-call debug logging.
func WithLogging(inner Block, log *logger.Logger) Block {
	return &loggingBlock{inner: inner, log: log.WithComponent("block")}
}

type loggingBlock struct {
	inner Block
	log   *logger.Logger
}

func (b *loggingBlock) ID() string                      { return b.inner.ID() }
func (b *loggingBlock) Name() string                    { return b.inner.Name() }
func (b *loggingBlock) Configure(bctx Context) error    { return b.inner.Configure(bctx) }
func (b *loggingBlock) Start(ctx context.Context) error { return b.inner.Start(ctx) }
func (b *loggingBlock) Stop(ctx context.Context) error  { return b.inner.Stop(ctx) }
func (b *loggingBlock) Unwrap() Block                   { return b.inner }

func (b *loggingBlock) SetIdentity(id, name string) {
	if setter, ok := b.inner.(interface{ SetIdentity(id, name string) }); ok {
		setter.SetIdentity(id, name)
	}
}

func (b *loggingBlock) ProcessSignals(ctx context.Context, signals []*signal.Signal, inputID string) error {
	err := b.inner.ProcessSignals(ctx, signals, inputID)
	fields := logger.Fields(
		logger.FieldBlock, b.inner.Name(),
		logger.FieldInput, inputID,
		logger.FieldCount, len(signals),
	)
	if err != nil {
		fields[logger.FieldError] = err.Error()
		b.log.Error("block processing failed", fields)
	} else {
		b.log.Debug("block processed signals", fields)
	}
	return err
}
