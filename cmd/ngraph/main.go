// Package main provides the ngraph CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"github.com/born-ml/ngraph/internal/binding"
	"github.com/born-ml/ngraph/internal/element"
	"github.com/born-ml/ngraph/internal/serialization"
	"github.com/born-ml/ngraph/internal/tensor"
)

const version = "v0.1.0-dev"

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	klog.InitFlags(nil)
	flag.Usage = func() { usage(flag.CommandLine.Output()) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("missing command")
	}
	return dispatch(ctx, os.Stdout, flag.Arg(0), flag.Args()[1:])
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "ngraph %s\n\n", version)
	fmt.Fprintln(w, "Usage: ngraph [klog flags] <command> [flags] [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  run      Evaluate a script file")
	fmt.Fprintln(w, "  types    List element types")
	fmt.Fprintln(w, "  encode   One-hot encode a list of indices")
	fmt.Fprintln(w, "  inspect  List the tensors in a .safetensors file")
	fmt.Fprintln(w, "  version  Show version")
}

func dispatch(ctx context.Context, w io.Writer, cmd string, args []string) error {
	switch cmd {
	case "run":
		return runScript(ctx, w, args)
	case "types":
		return listTypes(w)
	case "encode":
		return encode(ctx, w, args)
	case "inspect":
		return inspect(w, args)
	case "version":
		fmt.Fprintf(w, "ngraph %s\n", version)
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func runScript(ctx context.Context, w io.Writer, args []string) error {
	log := klog.FromContext(ctx)

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to YAML config")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: ngraph run [-config file] script.zy")
	}

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	source, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}

	reg := prometheus.NewRegistry()
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(ctx, cfg.MetricsAddr, reg)
		defer stop()
	}

	m, err := binding.NewModule(ctx, append(cfg.Options(), binding.WithRegisterer(reg))...)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Error(err, "Closing module")
		}
	}()

	log.V(2).Info("Evaluating script", "path", fs.Arg(0), "timeout", cfg.Timeout)
	v, err := m.Eval(ctx, string(source))
	if err != nil {
		return err
	}
	fmt.Fprintln(w, binding.Describe(v))
	return nil
}

// serveMetrics exposes reg on addr until the returned function is called.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) func() {
	log := klog.FromContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Metrics server failed", "addr", addr)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func listTypes(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBITS\tSIZE\tREAL\tSIGNED\tC TYPE")
	for _, et := range element.All() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%t\t%t\t%s\n",
			et.Name(), et.Bitwidth(), et.Size(), et.IsReal(), et.IsSigned(), et.CTypeString())
	}
	return tw.Flush()
}

func encode(ctx context.Context, w io.Writer, args []string) error {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	indicesFlag := fs.String("indices", "", "comma separated category indices")
	depth := fs.Int("depth", 0, "number of categories")
	typeName := fs.String("type", "f32", "element type")
	axis := fs.Uint("axis", 1, "one-hot axis of the output")
	out := fs.String("out", "", "write the result to this .safetensors file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	indices, err := parseIndices(*indicesFlag)
	if err != nil {
		return err
	}

	m, err := binding.NewModule(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	et, err := m.Type(*typeName)
	if err != nil {
		return err
	}
	n := len(indices)
	p, err := m.Parameter(et, []int{n})
	if err != nil {
		return err
	}
	shape := []int{n, *depth}
	if *axis == 0 {
		shape = []int{*depth, n}
	}
	oh, err := m.OneHot(p, shape, *axis)
	if err != nil {
		return err
	}

	arg, err := tensor.FromFloat64s(et, tensor.Shape{n}, indices)
	if err != nil {
		return err
	}
	results, err := m.Execute(ctx, oh, arg)
	if err != nil {
		return err
	}
	result := results[0]

	if *out == "" {
		printMatrix(w, result)
		return nil
	}
	saver := serialization.NewSaver(strings.TrimSuffix(*out, serialization.Extension))
	if err := saver.WriteValues(map[string]*tensor.Value{"onehot": result}); err != nil {
		return err
	}
	klog.FromContext(ctx).V(2).Info("Saved one-hot encoding", "path", saver.Path(), "shape", result.Shape())
	fmt.Fprintf(w, "wrote %s\n", saver.Path())
	return nil
}

func parseIndices(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("-indices is required")
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func printMatrix(w io.Writer, v *tensor.Value) {
	shape := v.Shape()
	cols := shape[len(shape)-1]
	data := v.Float64s()
	for start := 0; start < len(data); start += cols {
		row := make([]string, cols)
		for j := range row {
			row[j] = strconv.FormatFloat(data[start+j], 'g', -1, 64)
		}
		fmt.Fprintln(w, strings.Join(row, " "))
	}
}

func inspect(w io.Writer, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: ngraph inspect file.safetensors")
	}
	values, metadata, err := serialization.ReadFile(args[0])
	if err != nil {
		return err
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDTYPE\tSHAPE\tBYTES")
	for _, name := range names {
		v := values[name]
		dtype, err := serialization.DTypeName(v.ElementType())
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", name, dtype, v.Shape(), v.ByteSize())
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s: %s\n", k, metadata[k])
	}
	return nil
}
