package tracer_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"attestor/internal/tracer"
)

func TestNoopTracer(t *testing.T) {
	tr := tracer.NewNoop()
	ctx := context.Background()

	newCtx, span := tr.Start(ctx, tracer.SpanAttest, tracer.String(tracer.AttrWallet, "0xabc"))
	assert.Equal(t, ctx, newCtx)
	require.NotNil(t, span)

	span.SetAttributes(tracer.Bool("cache.hit", true))
	span.AddEvent("proof.backfilled", tracer.Int64("block", 42))
	span.End(errors.New("boom"))
}

func TestOTelTracerWithInjectedProvider(t *testing.T) {
	tr := tracer.NewOTel(tracer.WithOTelTracer(noop.NewTracerProvider().Tracer("test")))

	ctx, span := tr.Start(context.Background(), tracer.SpanSync,
		tracer.Int64(tracer.AttrFromBlock, 100),
		tracer.Uint64(tracer.AttrToBlock, 200),
		tracer.Uint64(tracer.AttrFID, math.MaxUint64),
		tracer.Attribute{Key: tracer.AttrWallet, Value: common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")},
		tracer.Attribute{Key: "opaque", Value: struct{ N int }{N: 1}},
	)
	require.NotNil(t, ctx)
	span.SetAttributes(tracer.Duration("chunk.elapsed", 1500*time.Millisecond))
	span.AddEvent("chunk.done")
	span.End(errors.New("rpc timeout"))
}
