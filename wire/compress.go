// Package wire encodes and decodes protocol.Incoming/Outgoing messages
// to bytes and optionally compresses the result, so transport adapters
// only ever move opaque frames.
package wire

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Compressor applies symmetric compression to an already-encoded frame,
// generalized from the teacher's single-codec gRPC Compressor interface
// to the set the pack's dependency surface supports.
type Compressor interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// gzipCompressor wraps the standard library gzip implementation; gzip is
// the configured default (config.DefaultCompression). A codec whose
// Compressor is nil sends frames uncompressed.
type gzipCompressor struct{}

// NewGZIPCompressor constructs a Compressor backed by gzip.
func NewGZIPCompressor() Compressor { return gzipCompressor{} }

func (gzipCompressor) Name() string { return "gzip" }

func (gzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("gzip decompress: empty payload")
	}
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer reader.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return nil, fmt.Errorf("gzip copy: %w", err)
	}
	return buf.Bytes(), nil
}

// noopCompressor passes frames through unchanged, for peers on a trusted
// low-latency link where compression overhead isn't worth paying.
type noopCompressor struct{}

// NewNoopCompressor constructs a Compressor that does not compress.
func NewNoopCompressor() Compressor { return noopCompressor{} }

func (noopCompressor) Name() string { return "none" }

func (noopCompressor) Compress(data []byte) ([]byte, error) { return data, nil }

func (noopCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }

// snappyCompressor wraps github.com/golang/snappy, the same library the
// journal uses for its on-disk stream.
type snappyCompressor struct{}

// NewSnappyCompressor constructs a Compressor backed by Snappy.
func NewSnappyCompressor() Compressor { return snappyCompressor{} }

func (snappyCompressor) Name() string { return "snappy" }

func (snappyCompressor) Compress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func (snappyCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("snappy decompress: %w", err)
	}
	return out, nil
}

// zstdCompressor wraps github.com/klauspost/compress/zstd for peers that
// favor ratio over the gzip/snappy speed/size tradeoff.
type zstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor constructs a Compressor backed by zstd. It panics if
// the library's encoder/decoder construction fails, which only happens
// on invalid options — none are passed here.
func NewZstdCompressor() Compressor {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Sprintf("wire: zstd writer: %v", err))
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("wire: zstd reader: %v", err))
	}
	return &zstdCompressor{encoder: enc, decoder: dec}
}

func (*zstdCompressor) Name() string { return "zstd" }

func (z *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, nil), nil
}

func (z *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	out, err := z.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
