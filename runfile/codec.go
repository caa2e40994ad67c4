package runfile

import (
	"io"
	"io/ioutil"

	"github.com/go-sif/dflow/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4"
)

const (
	// NoneCodec stores frames uncompressed
	NoneCodec = "none"
	// LZ4Codec compresses run files with lz4
	LZ4Codec = "lz4"
	// ZstdCodec compresses run files with zstd, at its fastest level
	ZstdCodec = "zstd"
)

// codec wraps the byte streams of run files
type codec interface {
	name() string
	wrapWriter(w io.Writer) (io.WriteCloser, error) // closing the result flushes it, but does not close w
	wrapReader(r io.Reader) (io.ReadCloser, error)  // closing the result releases it, but does not close r
}

func codecByName(name string) (codec, error) {
	switch name {
	case NoneCodec, "":
		return noneCodec{}, nil
	case LZ4Codec:
		return lz4Codec{}, nil
	case ZstdCodec:
		return zstdCodec{}, nil
	default:
		return nil, errors.UnknownCodecError{Name: name}
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (w nopWriteCloser) Close() error {
	return nil
}

type noneCodec struct{}

func (c noneCodec) name() string {
	return NoneCodec
}

func (c noneCodec) wrapWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

func (c noneCodec) wrapReader(r io.Reader) (io.ReadCloser, error) {
	return ioutil.NopCloser(r), nil
}

type lz4Codec struct{}

func (c lz4Codec) name() string {
	return LZ4Codec
}

func (c lz4Codec) wrapWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

func (c lz4Codec) wrapReader(r io.Reader) (io.ReadCloser, error) {
	return ioutil.NopCloser(lz4.NewReader(r)), nil
}

type zstdCodec struct{}

func (c zstdCodec) name() string {
	return ZstdCodec
}

func (c zstdCodec) wrapWriter(w io.Writer) (io.WriteCloser, error) {
	compressor, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, err
	}
	return compressor, nil
}

type zstdReadCloser struct {
	*zstd.Decoder
}

func (r zstdReadCloser) Close() error {
	r.Decoder.Close()
	return nil
}

func (c zstdCodec) wrapReader(r io.Reader) (io.ReadCloser, error) {
	decompressor, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return zstdReadCloser{decompressor}, nil
}
