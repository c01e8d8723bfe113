package bookmarkdp

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/mailru/easyjson"
)

// EvaluateOption is the type for Javascript evaluation options.
type EvaluateOption = func(*runtime.EvaluateParams) *runtime.EvaluateParams

// EvalAwaitPromise is an evaluate option that sets whether the evaluation
// waits for a returned promise to settle. It defaults to true.
func EvalAwaitPromise(await bool) EvaluateOption {
	return func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(await)
	}
}

// EvalReturnByValue is an evaluate option that sets whether the result is
// returned JSON-encoded. It defaults to true.
func EvalReturnByValue(byValue bool) EvaluateOption {
	return func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithReturnByValue(byValue)
	}
}

// Evaluate evaluates the Javascript expression in the page and returns the
// JSON-encoded value of the result. The value is nil when the expression
// produced nothing (eg, undefined).
//
// Note: any exception encountered will be returned as an
// *EvaluationFailedError.
func (b *Browser) Evaluate(ctx context.Context, expression string, timeout time.Duration, opts ...EvaluateOption) (easyjson.RawMessage, error) {
	// set up parameters
	p := runtime.Evaluate(expression).
		WithAwaitPromise(true).
		WithReturnByValue(true)

	// apply opts
	for _, o := range opts {
		p = o(p)
	}

	buf, err := b.SendCommand(ctx, runtime.CommandEvaluate, p, timeout)
	if err != nil {
		return nil, err
	}
	return parseEvaluateReturns(buf)
}

func parseEvaluateReturns(buf easyjson.RawMessage) (easyjson.RawMessage, error) {
	var res runtime.EvaluateReturns
	if len(buf) != 0 {
		if err := easyjson.Unmarshal(buf, &res); err != nil {
			return nil, &InvalidResponseError{Reason: "evaluate: " + err.Error()}
		}
	}

	if exp := res.ExceptionDetails; exp != nil {
		details := exp.Text
		if exp.Exception != nil && exp.Exception.Description != "" {
			details += " " + exp.Exception.Description
		}
		return nil, &EvaluationFailedError{Details: details}
	}

	v := res.Result
	if v == nil || v.Type == runtime.TypeUndefined || len(v.Value) == 0 {
		return nil, nil
	}
	return v.Value, nil
}
