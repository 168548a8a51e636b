package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/born-ml/ngraph/internal/element"
	"github.com/born-ml/ngraph/internal/tensor"
)

// MaxHeaderSize bounds the JSON header accepted by Read.
const MaxHeaderSize = 100 << 20

const metadataKey = "__metadata__"

// TensorHeader describes one tensor in the file header.
type TensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

var dtypeNames = map[element.Type]string{
	element.Boolean: "BOOL",
	element.F32:     "F32",
	element.F64:     "F64",
	element.I8:      "I8",
	element.I16:     "I16",
	element.I32:     "I32",
	element.I64:     "I64",
	element.U8:      "U8",
	element.U16:     "U16",
	element.U32:     "U32",
	element.U64:     "U64",
}

// DTypeName returns the SafeTensors dtype string for et.
func DTypeName(et element.Type) (string, error) {
	name, ok := dtypeNames[et]
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedDType, et)
	}
	return name, nil
}

// ParseDType returns the element type for a SafeTensors dtype string.
func ParseDType(name string) (element.Type, error) {
	for et, n := range dtypeNames {
		if n == name {
			return et, nil
		}
	}
	return element.Undefined, fmt.Errorf("%w: %q", ErrUnsupportedDType, name)
}

// Write encodes values to w. Tensors are written in alphabetical order by name.
func Write(w io.Writer, values map[string]*tensor.Value, metadata map[string]string) error {
	names := make([]string, 0, len(values))
	for name := range values {
		if name == "" || name == metadataKey {
			return &ValidationError{Tensor: name, Details: "reserved or empty name", Err: ErrInvalidTensorName}
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]any, len(names)+1)
	if len(metadata) > 0 {
		header[metadataKey] = metadata
	}

	var offset int64
	for _, name := range names {
		v := values[name]
		dtype, err := DTypeName(v.ElementType())
		if err != nil {
			return fmt.Errorf("tensor %q: %w", name, err)
		}
		shape := make([]int64, v.Shape().Rank())
		for i, dim := range v.Shape() {
			shape[i] = int64(dim)
		}
		size := int64(v.ByteSize())
		header[name] = TensorHeader{
			DType:       dtype,
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := bw.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, name := range names {
		if _, err := bw.Write(values[name].Bytes()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}
	return bw.Flush()
}

// Read decodes a stream produced by Write.
func Read(r io.Reader) (map[string]*tensor.Value, map[string]string, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, nil, &ValidationError{Details: fmt.Sprintf("%d bytes", headerSize), Err: ErrHeaderTooLarge}
	}

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &raw); err != nil {
		return nil, nil, fmt.Errorf("failed to parse header: %w", err)
	}

	var metadata map[string]string
	headers := make(map[string]TensorHeader, len(raw))
	for name, msg := range raw {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &metadata); err != nil {
				return nil, nil, fmt.Errorf("failed to parse metadata: %w", err)
			}
			continue
		}
		var h TensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, nil, fmt.Errorf("failed to parse tensor %q: %w", name, err)
		}
		headers[name] = h
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	values := make(map[string]*tensor.Value, len(headers))
	for name, h := range headers {
		v, err := decodeTensor(name, h, data)
		if err != nil {
			return nil, nil, err
		}
		values[name] = v
	}
	return values, metadata, nil
}

func decodeTensor(name string, h TensorHeader, data []byte) (*tensor.Value, error) {
	et, err := ParseDType(h.DType)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", name, err)
	}

	shape := make(tensor.Shape, len(h.Shape))
	for i, dim := range h.Shape {
		shape[i] = int(dim)
	}
	if err := shape.Validate(); err != nil {
		return nil, &ValidationError{Tensor: name, Details: err.Error(), Err: ErrOffsetMismatch}
	}

	start, end := h.DataOffsets[0], h.DataOffsets[1]
	if start < 0 || end < start || end > int64(len(data)) {
		return nil, &ValidationError{
			Tensor:  name,
			Details: fmt.Sprintf("offsets [%d, %d) with %d data bytes", start, end, len(data)),
			Err:     ErrOutOfBounds,
		}
	}
	want, ok := byteSize(h.Shape, et.Size())
	if !ok {
		return nil, &ValidationError{
			Tensor:  name,
			Details: fmt.Sprintf("%s %v overflows the addressable size", h.DType, h.Shape),
			Err:     ErrOffsetMismatch,
		}
	}
	if end-start != want {
		return nil, &ValidationError{
			Tensor:  name,
			Details: fmt.Sprintf("%s %v needs %d bytes, offsets span %d", h.DType, shape, want, end-start),
			Err:     ErrOffsetMismatch,
		}
	}

	buf := make([]byte, end-start)
	copy(buf, data[start:end])
	return tensor.FromBytes(et, shape, buf)
}

// byteSize returns the data size of a tensor with the given dimensions, or
// false when it does not fit in an int. Dimensions must be non-negative.
func byteSize(dims []int64, elemSize int) (int64, bool) {
	size := int64(elemSize)
	for _, d := range dims {
		if d == 0 {
			return 0, true
		}
		if size > math.MaxInt/d {
			return 0, false
		}
		size *= d
	}
	return size, true
}

// WriteFile writes values to path, replacing any existing file.
func WriteFile(path string, values map[string]*tensor.Value, metadata map[string]string) error {
	//nolint:gosec // G304: path comes from the caller, which is expected for saving
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Write(f, values, metadata); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads values from path.
func ReadFile(path string) (map[string]*tensor.Value, map[string]string, error) {
	//nolint:gosec // G304: path comes from the caller, which is expected for loading
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return Read(bufio.NewReader(f))
}
