package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ngraph/internal/binding"
	"github.com/born-ml/ngraph/internal/graph"
	"github.com/born-ml/ngraph/internal/serialization"
)

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, dispatch(context.Background(), &buf, "version", nil))
	assert.Equal(t, "ngraph "+version+"\n", buf.String())
}

func TestUnknownCommand(t *testing.T) {
	err := dispatch(context.Background(), &bytes.Buffer{}, "train", nil)
	assert.ErrorContains(t, err, `unknown command "train"`)
}

func TestTypes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, dispatch(context.Background(), &buf, "types", nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 12)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	assert.Equal(t, []string{"boolean", "8", "1", "false", "false", "char"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"u64", "64", "8", "false", "false", "uint64_t"}, strings.Fields(lines[11]))
}

func TestEncodePrint(t *testing.T) {
	var buf bytes.Buffer
	err := dispatch(context.Background(), &buf, "encode", []string{"-indices", "0,2,1", "-depth", "3"})
	require.NoError(t, err)
	assert.Equal(t, "1 0 0\n0 0 1\n0 1 0\n", buf.String())
}

func TestEncodeAxisZero(t *testing.T) {
	var buf bytes.Buffer
	err := dispatch(context.Background(), &buf, "encode",
		[]string{"-indices", "1,0", "-depth", "3", "-axis", "0", "-type", "i32"})
	require.NoError(t, err)
	assert.Equal(t, "0 1\n1 0\n0 0\n", buf.String())
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no indices", []string{"-depth", "3"}},
		{"bad index", []string{"-indices", "0,x", "-depth", "3"}},
		{"unknown type", []string{"-indices", "0", "-depth", "3", "-type", "f16"}},
		{"axis out of bounds", []string{"-indices", "0", "-depth", "3", "-axis", "2"}},
		{"index out of range", []string{"-indices", "0,3", "-depth", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dispatch(context.Background(), &bytes.Buffer{}, "encode", tt.args)
			assert.Error(t, err)
		})
	}

	err := dispatch(context.Background(), &bytes.Buffer{}, "encode",
		[]string{"-indices", "0", "-depth", "3", "-axis", "2"})
	assert.ErrorIs(t, err, graph.ErrAxisOutOfBounds)
}

func TestEncodeSaveAndInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.safetensors")

	var buf bytes.Buffer
	err := dispatch(context.Background(), &buf, "encode",
		[]string{"-indices", "2,0", "-depth", "4", "-type", "u8", "-out", path})
	require.NoError(t, err)
	assert.Equal(t, "wrote "+path+"\n", buf.String())

	values, _, err := serialization.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, values, "onehot")
	assert.Equal(t, []float64{0, 0, 1, 0, 1, 0, 0, 0}, values["onehot"].Float64s())

	buf.Reset()
	require.NoError(t, dispatch(context.Background(), &buf, "inspect", []string{path}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "onehot", strings.Fields(lines[1])[0])
	assert.Equal(t, "U8", strings.Fields(lines[1])[1])
}

func TestInspectUsage(t *testing.T) {
	assert.Error(t, dispatch(context.Background(), &bytes.Buffer{}, "inspect", nil))
	assert.Error(t, dispatch(context.Background(), &bytes.Buffer{}, "inspect",
		[]string{filepath.Join(t.TempDir(), "missing.safetensors")}))
}

func TestRunScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "axis.zy")
	require.NoError(t, os.WriteFile(script, []byte(`
(def p (Parameter (Type "i32") [3]))
(get_one_hot_axis (OneHot p [3 4] 1))
`), 0o600))
	config := filepath.Join(dir, "ngraph.yaml")
	require.NoError(t, os.WriteFile(config, []byte("timeout: 2s\nparallel:\n  workers: 1\n"), 0o600))

	var buf bytes.Buffer
	require.NoError(t, dispatch(context.Background(), &buf, "run", []string{"-config", config, script}))
	assert.Equal(t, "1\n", buf.String())
}

func TestRunScriptError(t *testing.T) {
	script := filepath.Join(t.TempDir(), "bad.zy")
	require.NoError(t, os.WriteFile(script, []byte(`(OneHot (Parameter (Type "f32") [3]) [3 4] 5)`), 0o600))

	err := dispatch(context.Background(), &bytes.Buffer{}, "run", []string{script})
	require.Error(t, err)
	var rerr *binding.RuntimeError
	assert.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, graph.ErrAxisOutOfBounds)

	assert.Error(t, dispatch(context.Background(), &bytes.Buffer{}, "run", nil))
}
