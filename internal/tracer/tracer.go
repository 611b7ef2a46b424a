// Package tracer is a small tracing abstraction over OpenTelemetry so the
// attestation pipeline can emit spans without importing otel everywhere.
//
// Implementations:
//   - NoopTracer: for tests
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks it failed. Call exactly once.
	End(err error)
	SetAttributes(attrs ...Attribute)
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Uint64 suits block numbers and fids.
func Uint64(key string, value uint64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names.
const (
	SpanAttest    = "attest.claim"
	SpanResolve   = "attest.identity.resolve"
	SpanProof     = "attest.proof.check"
	SpanProofLive = "attest.proof.live_query"
	SpanSync      = "indexer.sync"
	SpanSign      = "attest.sign"
)

// Attribute keys.
const (
	AttrWallet     = "wallet"
	AttrToken      = "token"
	AttrSpender    = "spender"
	AttrFID        = "fid"
	AttrProofTier  = "proof.tier"
	AttrFromBlock  = "sync.from_block"
	AttrToBlock    = "sync.to_block"
	AttrSyncReason = "sync.reason"
	AttrOutcome    = "outcome"
	AttrStage      = "attest.stage"
)
