// Package safetensors reads model checkpoints. The header index and the
// float decoding work on any host; loading tensors onto the compute device
// requires the mlx build tag.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// SafetensorHeader represents the JSON header of a safetensors file.
type SafetensorHeader map[string]TensorInfo

// TensorInfo contains metadata about a tensor.
type TensorInfo struct {
	Dtype       string   `json:"dtype"`
	Shape       []int32  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// NumElements returns the element count implied by the shape.
func (ti TensorInfo) NumElements() int64 {
	n := int64(1)
	for _, d := range ti.Shape {
		n *= int64(d)
	}
	return n
}

// ParseHeader reads only the JSON header from a safetensors file.
func ParseHeader(path string) (SafetensorHeader, error) {
	header, _, err := parseHeader(path)
	return header, err
}

func parseHeader(path string) (SafetensorHeader, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var headerSize uint64
	if err := binary.Read(f, binary.LittleEndian, &headerSize); err != nil {
		return nil, 0, fmt.Errorf("failed to read header size: %w", err)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		return nil, 0, fmt.Errorf("failed to read header: %w", err)
	}

	var header SafetensorHeader
	if err := json.Unmarshal(headerBytes, &header); err != nil {
		return nil, 0, fmt.Errorf("failed to parse header: %w", err)
	}

	delete(header, "__metadata__")
	return header, int64(8 + headerSize), nil
}

// File provides host-side random access to tensors in a safetensors file
// without going through the compute device.
type File struct {
	path      string
	header    SafetensorHeader
	dataStart int64
}

// Open parses the header of a safetensors file for host-side reads.
func Open(path string) (*File, error) {
	header, dataStart, err := parseHeader(path)
	if err != nil {
		return nil, err
	}
	return &File{path: path, header: header, dataStart: dataStart}, nil
}

// Header returns the parsed tensor index.
func (f *File) Header() SafetensorHeader { return f.header }

// HasTensor checks if a tensor exists.
func (f *File) HasTensor(name string) bool {
	_, ok := f.header[name]
	return ok
}

// ReadRaw reads the raw bytes of a tensor.
func (f *File) ReadRaw(name string) (TensorInfo, []byte, error) {
	info, ok := f.header[name]
	if !ok {
		return TensorInfo{}, nil, fmt.Errorf("tensor %q not found in %s", name, f.path)
	}

	r, err := os.Open(f.path)
	if err != nil {
		return TensorInfo{}, nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer r.Close()

	if _, err := r.Seek(f.dataStart+info.DataOffsets[0], io.SeekStart); err != nil {
		return TensorInfo{}, nil, fmt.Errorf("failed to seek to tensor %q: %w", name, err)
	}

	raw := make([]byte, info.DataOffsets[1]-info.DataOffsets[0])
	if _, err := io.ReadFull(r, raw); err != nil {
		return TensorInfo{}, nil, fmt.Errorf("failed to read tensor %q: %w", name, err)
	}
	return info, raw, nil
}

// ReadFloat32 reads a tensor and decodes it to float32.
func (f *File) ReadFloat32(name string) ([]float32, []int32, error) {
	info, raw, err := f.ReadRaw(name)
	if err != nil {
		return nil, nil, err
	}
	data, err := DecodeFloat32(info.Dtype, raw)
	if err != nil {
		return nil, nil, fmt.Errorf("tensor %q: %w", name, err)
	}
	return data, info.Shape, nil
}
