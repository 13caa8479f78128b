package ensemble

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/interfaces"
	"github.com/ternarybob/advisor/internal/models"
)

// AdapterOptions bounds every model invocation made through an Adapter
type AdapterOptions struct {
	Timeout   time.Duration // per invocation, 0 disables the deadline
	RateLimit float64       // invocations per second, 0 disables limiting
	Burst     int
}

// Adapter normalizes raw predictions from any ModelPredictor into ModelOutput records.
// Every failure mode (error, success=false, timeout, panic) becomes Succeeded=false.
type Adapter struct {
	predictor interfaces.ModelPredictor
	limiter   *rate.Limiter
	timeout   time.Duration
	logger    arbor.ILogger
}

// NewAdapter wraps a predictor with timeout, rate limiting and panic recovery
func NewAdapter(predictor interfaces.ModelPredictor, opts AdapterOptions, logger arbor.ILogger) *Adapter {
	a := &Adapter{
		predictor: predictor,
		timeout:   opts.Timeout,
		logger:    logger,
	}
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return a
}

type predictResult struct {
	prediction *interfaces.Prediction
	err        error
}

// Fetch invokes one model and returns its normalized output. It never returns an error:
// failures are reported through Succeeded and Error.
func (a *Adapter) Fetch(ctx context.Context, modelID string, input map[string]interface{}) models.ModelOutput {
	if a.predictor == nil {
		return failedOutput(modelID, "no model predictor configured")
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return failedOutput(modelID, fmt.Sprintf("rate limiter: %v", err))
		}
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	// Buffered so a predictor that ignores its context can still finish after we stop waiting
	done := make(chan predictResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				perr := common.NewPanicError(r)
				a.logger.Error().
					Str("model_id", modelID).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", perr.Stack).
					Msg("Model predictor panicked")
				done <- predictResult{err: perr}
			}
		}()
		prediction, err := a.predictor.Predict(callCtx, modelID, input)
		done <- predictResult{prediction: prediction, err: err}
	}()

	select {
	case <-callCtx.Done():
		a.logger.Warn().
			Str("model_id", modelID).
			Err(callCtx.Err()).
			Msg("Model invocation abandoned")
		return failedOutput(modelID, fmt.Sprintf("model invocation abandoned: %v", callCtx.Err()))
	case res := <-done:
		return normalize(modelID, res.prediction, res.err)
	}
}

func normalize(modelID string, prediction *interfaces.Prediction, err error) models.ModelOutput {
	if err != nil {
		return failedOutput(modelID, err.Error())
	}
	if prediction == nil {
		return failedOutput(modelID, "model returned no prediction")
	}
	if !prediction.Success {
		msg := prediction.Error
		if msg == "" {
			msg = "model reported failure"
		}
		out := failedOutput(modelID, msg)
		if prediction.Prediction != nil {
			out.Payload = prediction.Prediction
		}
		return out
	}

	payload := prediction.Prediction
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return models.ModelOutput{
		ModelID:   modelID,
		Payload:   payload,
		Succeeded: true,
	}
}

func failedOutput(modelID, msg string) models.ModelOutput {
	return models.ModelOutput{
		ModelID:   modelID,
		Payload:   map[string]interface{}{},
		Succeeded: false,
		Error:     msg,
	}
}
