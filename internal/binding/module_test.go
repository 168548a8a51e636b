package binding

import (
	"context"
	"errors"
	"testing"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ngraph/internal/element"
	"github.com/born-ml/ngraph/internal/graph"
	"github.com/born-ml/ngraph/internal/parallel"
	"github.com/born-ml/ngraph/internal/tensor"
)

func newTestModule(t *testing.T, opts ...Option) *Module {
	t.Helper()
	opts = append([]Option{WithParallel(parallel.Sequential())}, opts...)
	m, err := NewModule(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func eval(t *testing.T, m *Module, src string) zygo.Sexp {
	t.Helper()
	v, err := m.Eval(context.Background(), src)
	require.NoError(t, err, src)
	return v
}

func listInts(t *testing.T, s zygo.Sexp) []int64 {
	t.Helper()
	items, err := sexpListToSlice(s)
	require.NoError(t, err)
	out := make([]int64, len(items))
	for i, item := range items {
		n, ok := item.(*zygo.SexpInt)
		require.True(t, ok, "element %d is %T", i, item)
		out[i] = n.Val
	}
	return out
}

func TestScriptTypesDistinctAndIdentical(t *testing.T) {
	m := newTestModule(t)

	seen := make(map[zygo.Sexp]string)
	for _, et := range element.All() {
		src := `(Type "` + et.Name() + `")`
		first := eval(t, m, src)
		second := eval(t, m, src)

		require.IsType(t, &sexpType{}, first)
		assert.Same(t, first, second, "repeated lookup of %s must yield the same object", et.Name())
		assert.Equal(t, et, first.(*sexpType).et)

		prev, dup := seen[first]
		assert.False(t, dup, "%s shares a handle with %s", et.Name(), prev)
		seen[first] = et.Name()
	}
	assert.Len(t, seen, 11)
}

func TestScriptElementTypes(t *testing.T) {
	m := newTestModule(t)

	items, err := sexpListToSlice(eval(t, m, `(element_types)`))
	require.NoError(t, err)
	require.Len(t, items, 11)
	assert.Equal(t, "boolean", items[0].(*zygo.SexpStr).S)
	assert.Equal(t, "u64", items[10].(*zygo.SexpStr).S)
}

func TestScriptUnknownType(t *testing.T) {
	m := newTestModule(t)

	_, err := m.Eval(context.Background(), `(Type "f16")`)
	require.Error(t, err)

	var rerr *RuntimeError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "Type", rerr.Function)
}

func TestScriptOneHot(t *testing.T) {
	m := newTestModule(t)

	v := eval(t, m, `
(def p (Parameter (Type "i32") [3]))
(def h (OneHot p [3 4] 1))
(get_one_hot_axis h)
`)
	require.IsType(t, &zygo.SexpInt{}, v)
	assert.Equal(t, int64(1), v.(*zygo.SexpInt).Val)

	assert.Equal(t, []int64{3, 4}, listInts(t, eval(t, m, `(get_shape h)`)))
	assert.Same(t, eval(t, m, `(Type "i32")`), eval(t, m, `(get_element_type h)`))
	assert.Contains(t, eval(t, m, `(get_name h)`).(*zygo.SexpStr).S, "OneHot_")

	// p: module handle + OneHot input.
	assert.Equal(t, int64(2), eval(t, m, `(use_count p)`).(*zygo.SexpInt).Val)
	assert.Equal(t, 2, m.Handles())
}

func TestScriptOneHotInvalidAxis(t *testing.T) {
	m := newTestModule(t)

	_, err := m.Eval(context.Background(), `
(def p (Parameter (Type "i32") [3]))
(OneHot p [3 4] 5)
`)
	require.Error(t, err)

	var rerr *RuntimeError
	require.True(t, errors.As(err, &rerr), "got %T", err)
	assert.Equal(t, "OneHot", rerr.Function)
	assert.ErrorIs(t, err, graph.ErrAxisOutOfBounds)
	assert.Contains(t, err.Error(), "One-hot axis is out of bounds")

	// Only the parameter was created.
	assert.Equal(t, 1, m.Handles())
}

func TestScriptArgumentErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing axis", `(OneHot (Parameter (Type "f32") [3]) [3 4])`},
		{"negative axis", `(OneHot (Parameter (Type "f32") [3]) [3 4] -1)`},
		{"shape not a list", `(OneHot (Parameter (Type "f32") [3]) 3 1)`},
		{"input not a node", `(OneHot 7 [3 4] 1)`},
		{"axis on parameter", `(get_one_hot_axis (Parameter (Type "f32") [3]))`},
		{"parameter type not a Type", `(Parameter "f32" [3])`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestModule(t)
			_, err := m.Eval(context.Background(), tt.src)
			require.Error(t, err)
			var rerr *RuntimeError
			assert.True(t, errors.As(err, &rerr), "got %T: %v", err, err)
		})
	}
}

func TestScriptExecute(t *testing.T) {
	m := newTestModule(t)

	v := eval(t, m, `
(def p (Parameter (Type "i32") [3]))
(def h (OneHot p [3 4] 1))
(execute h [0 2 3])
`)
	assert.Equal(t, []int64{
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}, listInts(t, v))
}

func TestScriptExecuteOutOfRange(t *testing.T) {
	m := newTestModule(t)

	_, err := m.Eval(context.Background(), `
(def p (Parameter (Type "f32") [2]))
(execute (OneHot p [2 3] 1) [0 3])
`)
	require.Error(t, err)
	var rerr *RuntimeError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "execute", rerr.Function)
}

func TestGoOneHot(t *testing.T) {
	m := newTestModule(t)

	i32, err := m.Type("i32")
	require.NoError(t, err)
	p, err := m.Parameter(i32, []int{3})
	require.NoError(t, err)

	oh, err := m.OneHot(p, []int{3, 4}, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), m.OneHotAxis(oh))

	_, err = m.OneHot(p, []int{3, 4}, 5)
	require.Error(t, err)
	var rerr *RuntimeError
	require.True(t, errors.As(err, &rerr))
	assert.ErrorIs(t, err, graph.ErrAxisOutOfBounds)

	_, err = m.Type("q8")
	assert.True(t, errors.As(err, &rerr))
}

func TestSharedInputAcrossOneHots(t *testing.T) {
	m := newTestModule(t)

	p, err := m.Parameter(element.F32, []int{3})
	require.NoError(t, err)
	first, err := m.OneHot(p, []int{3, 4}, 1)
	require.NoError(t, err)
	second, err := m.OneHot(p, []int{5, 3}, 0)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, p.UseCount(), 2)
	assert.Equal(t, 3, p.UseCount())

	require.NoError(t, m.Close())
	assert.Equal(t, 0, first.UseCount())
	assert.Equal(t, 0, second.UseCount())
	assert.Equal(t, 0, p.UseCount())
}

func TestHandlesOutliveModuleWhenRetained(t *testing.T) {
	m := newTestModule(t)

	p, err := m.Parameter(element.I64, []int{2})
	require.NoError(t, err)
	oh, err := m.OneHot(p, []int{2, 2}, 1)
	require.NoError(t, err)
	require.NoError(t, oh.Retain())

	require.NoError(t, m.Close())
	assert.Equal(t, 1, oh.UseCount())
	assert.Equal(t, 1, p.UseCount())

	require.NoError(t, oh.Release())
	assert.Equal(t, 0, p.UseCount())
}

func TestGoExecute(t *testing.T) {
	m := newTestModule(t)

	p, err := m.Parameter(element.F64, []int{2})
	require.NoError(t, err)
	oh, err := m.OneHot(p, []int{2, 3}, 1)
	require.NoError(t, err)

	arg, err := tensor.FromFloat64s(element.F64, tensor.Shape{2}, []float64{2, 0})
	require.NoError(t, err)
	out, err := m.Execute(context.Background(), oh, arg)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []float64{0, 0, 1, 1, 0, 0}, out[0].Float64s())

	// The temporary function must not leak references.
	assert.Equal(t, 1, oh.UseCount())
	assert.Equal(t, 2, p.UseCount())
}

func TestClosedModule(t *testing.T) {
	m := newTestModule(t)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := m.Parameter(element.F32, []int{1})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = m.Eval(context.Background(), `(+ 1 2)`)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEvalCanceledContext(t *testing.T) {
	m := newTestModule(t, WithTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Eval(ctx, `(+ 1 2)`)
	require.Error(t, err)
	var rerr *RuntimeError
	assert.True(t, errors.As(err, &rerr))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvalTimeoutRunningScript(t *testing.T) {
	m := newTestModule(t, WithTimeout(200*time.Millisecond))

	p, err := m.Parameter(element.I32, []int{3})
	require.NoError(t, err)

	_, err = m.Eval(context.Background(), `
(def q (Parameter (Type "i32") [2]))
(for [(def i 0) true (set i (+ i 1))] (use_count q))
`)
	require.Error(t, err)
	var rerr *RuntimeError
	require.True(t, errors.As(err, &rerr), "got %T", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	handles := make(chan int, 1)
	go func() { handles <- m.Handles() }()
	select {
	case n := <-handles:
		assert.Equal(t, 2, n)
	case <-time.After(2 * time.Second):
		t.Fatal("Handles blocked after a timed-out Eval")
	}

	_, err = m.Parameter(element.I32, []int{1})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.Eval(context.Background(), `(+ 1 2)`)
	assert.ErrorIs(t, err, ErrClosed)

	closed := make(chan error, 1)
	go func() { closed <- m.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked after a timed-out Eval")
	}
	assert.Equal(t, 0, p.UseCount())

	// The script's next binding call fails, which ends it and stops the env.
	assert.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return !m.running && m.stopped
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newTestModule(t, WithRegisterer(reg))

	p, err := m.Parameter(element.U8, []int{2})
	require.NoError(t, err)
	_, err = m.OneHot(p, []int{2, 2}, 1)
	require.NoError(t, err)
	_, err = m.OneHot(p, []int{2, 2}, 9)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.calls.WithLabelValues("OneHot", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.calls.WithLabelValues("OneHot", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.metrics.live))

	// A second module on the same registry shares the collectors.
	other := newTestModule(t, WithRegisterer(reg))
	_, err = other.Parameter(element.U8, []int{1})
	require.NoError(t, err)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.metrics.live))

	require.NoError(t, m.Close())
	assert.Equal(t, 1.0, testutil.ToFloat64(other.metrics.live))
}

func TestRuntimeErrorFormat(t *testing.T) {
	cause := errors.New("boom")
	err := toRuntimeError("OneHot", cause)
	assert.Equal(t, "RuntimeError in OneHot: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Same(t, err, toRuntimeError("other", err))
	assert.NoError(t, toRuntimeError("x", nil))

	rerr := scriptError(errors.New("Error on line 3: bad thing"), nil)
	assert.Equal(t, 3, rerr.Line)
	assert.Equal(t, "bad thing", rerr.Message)
	assert.Equal(t, "RuntimeError (line 3): bad thing", rerr.Error())
}

func TestDescribe(t *testing.T) {
	m := newTestModule(t)
	assert.Equal(t, "Type.f32", Describe(eval(t, m, `(Type "f32")`)))
	assert.Equal(t, "", Describe(nil))
}
