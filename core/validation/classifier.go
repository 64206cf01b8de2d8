package validation

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/eth2030/admission/core/types"
	"github.com/eth2030/admission/log"
	"github.com/eth2030/admission/metrics"
)

// Classify runs the stage pipeline against tx and returns the first failure,
// or Valid. It is pure: the same transaction and context always give the
// same outcome.
func Classify(tx *types.Transaction, ctx *Context) Outcome {
	if tx == nil || ctx == nil {
		return Invalid(InternalError)
	}
	c := &checker{tx: tx, ctx: ctx}
	for _, st := range pipeline {
		if out := st.run(c); !out.IsValid() {
			return out.at(st.stage)
		}
	}
	return Valid()
}

// ClassifyRaw decodes an EIP-2718 envelope and classifies it. Any decoding
// failure is INVALID_TRANSACTION_FORMAT.
func ClassifyRaw(raw []byte, ctx *Context) (*types.Transaction, Outcome) {
	tx, err := types.DecodeTxRLP(raw)
	if err != nil {
		return nil, Invalid(InvalidTransactionFormat).at(StageFormat)
	}
	return tx, Classify(tx, ctx)
}

// Classifier wraps Classify with logging and metrics.
type Classifier struct {
	log     *log.Logger
	metrics *metrics.Registry

	// Parallelism bounds ClassifyBatch; zero means GOMAXPROCS.
	Parallelism int
}

// NewClassifier creates a classifier. Nil arguments fall back to the default
// logger and registry.
func NewClassifier(logger *log.Logger, reg *metrics.Registry) *Classifier {
	if logger == nil {
		logger = log.Default()
	}
	if reg == nil {
		reg = metrics.DefaultRegistry
	}
	return &Classifier{
		log:     logger.Module("validation"),
		metrics: reg,
	}
}

// Classify classifies tx and records the outcome.
func (c *Classifier) Classify(tx *types.Transaction, vctx *Context) Outcome {
	timer := metrics.NewTimer(c.metrics.Histogram("validation.classify.us"))
	out := Classify(tx, vctx)
	timer.Stop()
	c.record(tx, vctx, out)
	return out
}

// ClassifyRaw decodes and classifies raw, recording the outcome.
func (c *Classifier) ClassifyRaw(raw []byte, vctx *Context) (*types.Transaction, Outcome) {
	tx, out := ClassifyRaw(raw, vctx)
	if tx == nil {
		c.record(nil, vctx, out)
		return nil, out
	}
	return tx, c.Classify(tx, vctx)
}

// ClassifyBatch classifies txs concurrently. Outcomes are returned in input
// order. The only error is ctx's, when it is cancelled before every
// transaction was classified.
func (c *Classifier) ClassifyBatch(ctx context.Context, txs []*types.Transaction, vctx *Context) ([]Outcome, error) {
	out := make([]Outcome, len(txs))
	g, gctx := errgroup.WithContext(ctx)
	limit := c.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	launched := 0
	for i, tx := range txs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = c.Classify(tx, vctx)
			return nil
		})
		launched++
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if launched < len(txs) {
		return nil, ctx.Err()
	}
	return out, nil
}

func (c *Classifier) record(tx *types.Transaction, vctx *Context, out Outcome) {
	if out.IsValid() {
		c.metrics.Counter("validation.valid").Inc()
		return
	}
	r := out.Reason()
	c.metrics.Counter("validation.invalid." + r.String()).Inc()

	args := []any{"reason", r.String(), "stage", out.Stage().String()}
	if vctx != nil {
		args = append(args, "mode", vctx.Mode.String())
	}
	if tx != nil {
		args = append(args, "hash", tx.Hash().Hex())
	}
	if cause := out.Cause(); cause != "" {
		args = append(args, "cause", cause)
	}
	switch r.Fault() {
	case EnvironmentFault:
		c.metrics.Counter("validation.environment").Inc()
		c.log.Warn("chain data unavailable for classification", args...)
	case InternalFault:
		c.metrics.Counter("validation.internal").Inc()
		c.log.Error("transaction classification failed", args...)
	default:
		c.log.Debug("transaction rejected", args...)
	}
}
