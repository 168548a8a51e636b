// Package binding exposes the element-type registry and the OneHot operation
// to scripts running in an embedded zygomys interpreter.
//
// Registered script surface:
//
//	(Type "f32")                 element type handle, one object per name
//	(element_types)              list of the registered type names
//	(Parameter t [3])            graph input node
//	(OneHot node [3 4] 1)        one-hot node over node
//	(get_one_hot_axis h)         the one-hot axis of h
//	(get_shape h) (get_element_type h) (get_name h) (use_count h)
//	(execute node [0 2 1] ...)   evaluate node, binding parameters in creation order
//
// Every failure crossing the boundary, whether raised by the graph framework or
// by the interpreter, is reported as a *RuntimeError.
package binding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/prometheus/client_golang/prometheus"
	"k8s.io/klog/v2"

	"github.com/born-ml/ngraph/internal/element"
	"github.com/born-ml/ngraph/internal/graph"
	"github.com/born-ml/ngraph/internal/interpreter"
	"github.com/born-ml/ngraph/internal/parallel"
	"github.com/born-ml/ngraph/internal/tensor"
)

// DefaultTimeout is the limit for a single Eval unless overridden.
const DefaultTimeout = 5 * time.Second

// ErrClosed is returned by calls on a closed module.
var ErrClosed = errors.New("module is closed")

type options struct {
	timeout  time.Duration
	reg      prometheus.Registerer
	parallel parallel.Config
}

// Option configures a Module.
type Option func(*options)

// WithTimeout bounds each Eval. Zero or negative disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRegisterer registers the module's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.reg = reg }
}

// WithParallel sets the interpreter's parallel execution config.
func WithParallel(cfg parallel.Config) Option {
	return func(o *options) { o.parallel = cfg }
}

// Module is one loaded instance of the binding: a zygomys environment with the
// graph types registered, plus the node handles created through it.
//
// Module is safe for concurrent use. Evaluations run one at a time; m.mu is
// held only around state changes and individual binding calls, never across a
// whole script, so Close and the Go API stay responsive during an Eval.
//
// An Eval abandoned on timeout or cancellation leaves its script running in
// the environment. The module is then unusable: every later call returns
// ErrClosed, and binding calls made by the stray script fail, which ends it.
// Close still releases the handles.
type Module struct {
	mu      sync.Mutex
	evalMu  sync.Mutex // serializes use of env
	env     *zygo.Zlisp
	log     klog.Logger
	opts    options
	metrics *metrics
	interp  *interpreter.Interpreter

	types     map[element.Type]*sexpType
	handles   []graph.Node
	ctx       context.Context // context of the running Eval
	lastErr   error
	running   bool // a script is executing in env
	abandoned bool // an Eval gave up on its script
	stopped   bool // env.Stop has been called
	closed    bool
}

// NewModule creates a sandboxed environment and registers the binding surface.
// The logger is taken from ctx.
func NewModule(ctx context.Context, opts ...Option) (*Module, error) {
	o := options{timeout: DefaultTimeout, parallel: parallel.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.reg == nil {
		o.reg = prometheus.NewRegistry()
	}

	met, err := newMetrics(o.reg)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	m := &Module{
		env:     zygo.NewZlispSandbox(),
		log:     klog.FromContext(ctx).WithName("binding"),
		opts:    o,
		metrics: met,
		interp:  interpreter.New(o.parallel),
		types:   make(map[element.Type]*sexpType),
	}
	m.registerType()
	m.registerOneHot()
	m.registerGraphHelpers()

	m.log.V(2).Info("Registered binding module", "types", len(m.types))
	return m, nil
}

// Type returns the element type registered under name.
func (m *Module) Type(name string) (element.Type, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, err := m.lookupType(name)
	m.metrics.observe("Type", err)
	if err != nil {
		return element.Undefined, toRuntimeError("Type", err)
	}
	return h.et, nil
}

// Parameter creates a graph input held by the module.
func (m *Module) Parameter(et element.Type, shape []int) (*graph.Parameter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.newParameter(et, shape)
	m.metrics.observe("Parameter", err)
	if err != nil {
		return nil, toRuntimeError("Parameter", err)
	}
	return p, nil
}

// OneHot constructs a one-hot node over input. The input stays shared: the
// caller's reference is untouched and the new node takes its own.
func (m *Module) OneHot(input graph.Node, shape []int, axis uint) (*graph.OneHot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oh, err := m.newOneHot(input, shape, axis)
	m.metrics.observe("OneHot", err)
	if err != nil {
		return nil, toRuntimeError("OneHot", err)
	}
	return oh, nil
}

// OneHotAxis returns the one-hot axis of h.
func (m *Module) OneHotAxis(h *graph.OneHot) uint {
	m.metrics.observe("get_one_hot_axis", nil)
	return uint(h.OneHotAxis())
}

// Execute evaluates node with the reference interpreter. args are bound to
// the parameters node depends on, in creation order.
func (m *Module) Execute(ctx context.Context, node graph.Node, args ...*tensor.Value) ([]*tensor.Value, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out, err := m.execute(ctx, node, args)
	m.metrics.observe("execute", err)
	if err != nil {
		return nil, toRuntimeError("execute", err)
	}
	return out, nil
}

// Eval runs source in the module's environment and returns the value of the
// last expression. Definitions persist across calls.
func (m *Module) Eval(ctx context.Context, source string) (zygo.Sexp, error) {
	log := klog.FromContext(ctx).WithName("binding")

	if m.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return nil, toRuntimeError("", err)
	}

	type evalResult struct {
		value zygo.Sexp
		err   error
	}
	ch := make(chan evalResult, 1)

	go func() {
		m.evalMu.Lock()
		defer m.evalMu.Unlock()

		m.mu.Lock()
		if err := m.usable(); err != nil {
			m.mu.Unlock()
			ch <- evalResult{err: toRuntimeError("", err)}
			return
		}
		if err := ctx.Err(); err != nil {
			m.mu.Unlock()
			ch <- evalResult{err: toRuntimeError("", err)}
			return
		}
		m.ctx, m.lastErr, m.running = ctx, nil, true
		m.mu.Unlock()

		var res evalResult
		defer func() {
			if r := recover(); r != nil {
				res = evalResult{err: &RuntimeError{Message: fmt.Sprintf("panic during evaluation: %v", r)}}
			}
			m.mu.Lock()
			m.ctx, m.running = nil, false
			if m.closed {
				m.stopEnv()
			}
			m.mu.Unlock()
			ch <- res
		}()

		v, err := m.env.EvalString(source)
		if err != nil {
			m.mu.Lock()
			cause := m.lastErr
			m.mu.Unlock()
			res.err = scriptError(err, cause)
			return
		}
		res.value = v
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			log.V(2).Info("Evaluation failed", "err", res.err)
		}
		return res.value, res.err
	case <-ctx.Done():
		m.mu.Lock()
		m.abandoned = true
		m.mu.Unlock()
		log.Error(ctx.Err(), "Evaluation abandoned")
		return nil, &RuntimeError{Message: fmt.Sprintf("evaluation abandoned: %v", ctx.Err()), Err: ctx.Err()}
	}
}

// Close releases every handle the module created and stops the environment.
// It does not wait for an abandoned script; the environment is stopped when
// that script returns.
func (m *Module) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for _, h := range m.handles {
		if err := h.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	m.metrics.live.Sub(float64(len(m.handles)))
	m.handles = nil
	if !m.running {
		m.stopEnv()
	}

	m.log.V(2).Info("Closed binding module")
	return errors.Join(errs...)
}

// Handles returns the number of node handles the module holds.
func (m *Module) Handles() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}

// The helpers below expect m.mu to be held.

// usable returns ErrClosed once the module is closed or an Eval was abandoned.
func (m *Module) usable() error {
	if m.closed || m.abandoned {
		return ErrClosed
	}
	return nil
}

func (m *Module) stopEnv() {
	if !m.stopped {
		m.stopped = true
		m.env.Stop()
	}
}

func (m *Module) lookupType(name string) (*sexpType, error) {
	et, ok := element.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown element type %q", name)
	}
	return m.types[et], nil
}

func (m *Module) track(n graph.Node) {
	m.handles = append(m.handles, n)
	m.metrics.live.Inc()
}

func (m *Module) newParameter(et element.Type, shape []int) (*graph.Parameter, error) {
	if err := m.usable(); err != nil {
		return nil, err
	}
	p, err := graph.NewParameter(et, tensor.Shape(shape))
	if err != nil {
		return nil, err
	}
	m.track(p)
	return p, nil
}

func (m *Module) newOneHot(input graph.Node, shape []int, axis uint) (*graph.OneHot, error) {
	if err := m.usable(); err != nil {
		return nil, err
	}
	oh, err := graph.NewOneHot(input, tensor.Shape(shape), int(min(axis, uint(math.MaxInt))))
	if err != nil {
		return nil, err
	}
	m.track(oh)
	return oh, nil
}

func (m *Module) execute(ctx context.Context, node graph.Node, args []*tensor.Value) ([]*tensor.Value, error) {
	if err := m.usable(); err != nil {
		return nil, err
	}
	if node == nil {
		return nil, graph.ErrNilNode
	}
	fn, err := graph.NewFunction(node, graph.ReachableParameters(node)...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = fn.Release()
	}()
	return m.interp.Call(ctx, fn, args...)
}
