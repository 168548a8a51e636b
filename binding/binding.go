// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package binding loads the element types and the OneHot operation into an
// embedded zygomys interpreter.
//
// Example:
//
//	m, err := binding.NewModule(ctx)
//	if err != nil {
//	    return err
//	}
//	defer m.Close()
//
//	v, err := m.Eval(ctx, `
//	    (def p (Parameter (Type "i32") [3]))
//	    (get_one_hot_axis (OneHot p [3 4] 1))`)
//
// Failures are returned as *binding.RuntimeError; errors.Is reaches the
// underlying graph error.
package binding

import (
	"context"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/born-ml/ngraph/internal/binding"
	"github.com/born-ml/ngraph/internal/parallel"
)

// Module is a loaded binding instance.
type Module = binding.Module

// Option configures a Module.
type Option = binding.Option

// RuntimeError is the error kind surfaced to callers.
type RuntimeError = binding.RuntimeError

// Sexp is a script value.
type Sexp = zygo.Sexp

// DefaultTimeout bounds Eval unless overridden.
const DefaultTimeout = binding.DefaultTimeout

// ErrClosed is returned by calls on a closed module.
var ErrClosed = binding.ErrClosed

// NewModule creates a module. The logger is taken from ctx.
func NewModule(ctx context.Context, opts ...Option) (*Module, error) {
	return binding.NewModule(ctx, opts...)
}

// WithTimeout bounds each Eval.
func WithTimeout(d time.Duration) Option {
	return binding.WithTimeout(d)
}

// WithRegisterer registers metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return binding.WithRegisterer(reg)
}

// WithWorkers sets the number of goroutines used to execute graphs.
// One disables parallel execution.
func WithWorkers(n int) Option {
	cfg := parallel.DefaultConfig()
	cfg.NumWorkers = n
	cfg.Enabled = n > 1
	return binding.WithParallel(cfg)
}

// Describe renders a script value.
func Describe(s Sexp) string {
	return binding.Describe(s)
}
