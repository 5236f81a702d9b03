package analyzers

import (
	"context"
	"fmt"
	"log/slog"

	"idverify/internal/analyzers/tracer"
	"idverify/internal/sentinel"
	"idverify/internal/verification/models"
	"idverify/pkg/platform/circuit"
)

// Instrument wraps every client in the set with a per-analyzer circuit
// breaker and a trace span. When a breaker is open, calls fail fast with
// sentinel.ErrUnavailable instead of hitting a struggling engine.
func Instrument(set Set, opts ...InstrumentOption) Set {
	cfg := instrumentConfig{
		tracer: tracer.NewNoop(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	guard := func(name string) *guarded {
		return &guarded{
			breaker: circuit.New(name, cfg.breakerOpts...),
			tracer:  cfg.tracer,
			logger:  cfg.logger,
		}
	}

	return Set{
		OCR:       &instrumentedOCR{next: set.OCR, guarded: guard("ocr")},
		Quality:   &instrumentedQuality{next: set.Quality, guarded: guard("quality")},
		FaceMatch: &instrumentedFaceMatch{next: set.FaceMatch, guarded: guard("face_match")},
		Liveness:  &instrumentedLiveness{next: set.Liveness, guarded: guard("liveness")},
		Barcode:   &instrumentedBarcode{next: set.Barcode, guarded: guard("barcode")},
	}
}

type instrumentConfig struct {
	tracer      tracer.Tracer
	logger      *slog.Logger
	breakerOpts []circuit.Option
}

// InstrumentOption configures analyzer instrumentation.
type InstrumentOption func(*instrumentConfig)

// WithTracer sets the tracer used for analyzer spans.
func WithTracer(t tracer.Tracer) InstrumentOption {
	return func(c *instrumentConfig) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithLogger sets the logger used for circuit state transitions.
func WithLogger(l *slog.Logger) InstrumentOption {
	return func(c *instrumentConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBreakerOptions configures the per-analyzer circuit breakers.
func WithBreakerOptions(opts ...circuit.Option) InstrumentOption {
	return func(c *instrumentConfig) {
		c.breakerOpts = opts
	}
}

// guarded holds the shared breaker plumbing for one analyzer.
type guarded struct {
	breaker *circuit.Breaker
	tracer  tracer.Tracer
	logger  *slog.Logger
}

// begin starts a span and fails fast when the circuit is open.
func (g *guarded) begin(ctx context.Context, span string, attrs ...tracer.Attribute) (context.Context, tracer.Span, error) {
	ctx, sp := g.tracer.Start(ctx, span, attrs...)
	if g.breaker.IsOpen() {
		sp.SetAttributes(tracer.Bool(tracer.AttrCircuitOpen, true))
		return ctx, sp, fmt.Errorf("%s analyzer: %w", g.breaker.Name(), sentinel.ErrUnavailable)
	}
	return ctx, sp, nil
}

// observe records the call outcome on the breaker and logs transitions.
func (g *guarded) observe(err error) {
	if err != nil {
		if change := g.breaker.RecordFailure(); change.Opened {
			g.logger.Warn("analyzer circuit opened",
				slog.String("analyzer", g.breaker.Name()),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	if change := g.breaker.RecordSuccess(); change.Closed {
		g.logger.Info("analyzer circuit closed",
			slog.String("analyzer", g.breaker.Name()),
		)
	}
}

type instrumentedOCR struct {
	next OCRClient
	*guarded
}

func (c *instrumentedOCR) Extract(ctx context.Context, artifactRef string, docType models.DocumentType) (*models.OCRData, error) {
	ctx, span, err := c.begin(ctx, tracer.SpanOCRExtract,
		tracer.String(tracer.AttrDocumentType, string(docType)))
	if err != nil {
		span.End(err)
		return nil, err
	}
	data, err := c.next.Extract(ctx, artifactRef, docType)
	c.observe(err)
	span.End(err)
	return data, err
}

type instrumentedQuality struct {
	next QualityClient
	*guarded
}

func (c *instrumentedQuality) Analyze(ctx context.Context, artifactRef string) (*models.QualityAnalysis, error) {
	ctx, span, err := c.begin(ctx, tracer.SpanQualityAnalyze)
	if err != nil {
		span.End(err)
		return nil, err
	}
	qa, err := c.next.Analyze(ctx, artifactRef)
	c.observe(err)
	span.End(err)
	return qa, err
}

type instrumentedFaceMatch struct {
	next FaceMatchClient
	*guarded
}

func (c *instrumentedFaceMatch) Match(ctx context.Context, documentRef, captureRef string) (float64, error) {
	ctx, span, err := c.begin(ctx, tracer.SpanFaceMatch)
	if err != nil {
		span.End(err)
		return 0, err
	}
	score, err := c.next.Match(ctx, documentRef, captureRef)
	if err == nil {
		span.SetAttributes(tracer.Float64(tracer.AttrScore, score))
	}
	c.observe(err)
	span.End(err)
	return score, err
}

type instrumentedLiveness struct {
	next LivenessClient
	*guarded
}

func (c *instrumentedLiveness) Detect(ctx context.Context, captureRef string, challenge models.ChallengeType) (float64, error) {
	ctx, span, err := c.begin(ctx, tracer.SpanLivenessDetect,
		tracer.String(tracer.AttrChallenge, string(challenge)))
	if err != nil {
		span.End(err)
		return 0, err
	}
	score, err := c.next.Detect(ctx, captureRef, challenge)
	if err == nil {
		span.SetAttributes(tracer.Float64(tracer.AttrScore, score))
	}
	c.observe(err)
	span.End(err)
	return score, err
}

type instrumentedBarcode struct {
	next BarcodeClient
	*guarded
}

func (c *instrumentedBarcode) Decode(ctx context.Context, artifactRef string) (*models.BarcodeData, error) {
	ctx, span, err := c.begin(ctx, tracer.SpanBarcodeDecode)
	if err != nil {
		span.End(err)
		return nil, err
	}
	data, err := c.next.Decode(ctx, artifactRef)
	c.observe(err)
	span.End(err)
	return data, err
}
