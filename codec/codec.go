// Package codec compresses and decompresses message payloads according to
// the codec id written on the wire.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ydb-platform/ydb-topic-go/rawtopic"
)

// CodecLZ4 is a client-defined codec id; readers and writers of a topic must
// agree on it since the server does not interpret custom codecs.
const CodecLZ4 = rawtopic.CodecCustomerFirst + 1

var ErrUnsupportedCodec = errors.New("unsupported codec")

// Codec transforms payloads of one codec id
type Codec interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}

var (
	mu       sync.RWMutex
	registry = map[rawtopic.Codec]Codec{
		rawtopic.CodecRaw:  raw{},
		rawtopic.CodecGzip: gzipCodec{},
		rawtopic.CodecZstd: newZstd(),
		CodecLZ4:           lz4Codec{},
	}
)

// Register installs or replaces a codec implementation
func Register(id rawtopic.Codec, c Codec) {
	mu.Lock()
	defer mu.Unlock()
	registry[id] = c
}

func lookup(id rawtopic.Codec) (Codec, error) {
	if id == rawtopic.CodecUnspecified {
		id = rawtopic.CodecRaw
	}

	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, id)
	}
	return c, nil
}

// Supported reports whether a codec is registered for id
func Supported(id rawtopic.Codec) bool {
	_, err := lookup(id)
	return err == nil
}

func Encode(id rawtopic.Codec, data []byte) ([]byte, error) {
	c, err := lookup(id)
	if err != nil {
		return nil, err
	}
	out, err := c.Encode(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", id, err)
	}
	return out, nil
}

func Decode(id rawtopic.Codec, data []byte) ([]byte, error) {
	c, err := lookup(id)
	if err != nil {
		return nil, err
	}
	out, err := c.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", id, err)
	}
	return out, nil
}

type raw struct{}

func (raw) Encode(data []byte) ([]byte, error) { return data, nil }
func (raw) Decode(data []byte) ([]byte, error) { return data, nil }

var bufPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

func getBuf() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

func putBuf(b *bytes.Buffer) {
	// oversized buffers are left to the GC
	if b.Cap() > 1<<20 {
		return
	}
	bufPool.Put(b)
}

// detach copies the buffer contents out so the buffer can be reused
func detach(b *bytes.Buffer) []byte {
	out := make([]byte, b.Len())
	copy(out, b.Bytes())
	putBuf(b)
	return out
}

type gzipCodec struct{}

func (gzipCodec) Encode(data []byte) ([]byte, error) {
	buf := getBuf()
	gw := gzip.NewWriter(buf)
	if _, err := gw.Write(data); err != nil {
		putBuf(buf)
		return nil, err
	}
	if err := gw.Close(); err != nil {
		putBuf(buf)
		return nil, err
	}
	return detach(buf), nil
}

func (gzipCodec) Decode(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	buf := getBuf()
	if _, err := io.Copy(buf, gr); err != nil {
		putBuf(buf)
		return nil, err
	}
	return detach(buf), nil
}

type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstd() zstdCodec {
	// nil writer/reader: only the stateless EncodeAll/DecodeAll are used,
	// which are safe for concurrent use
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Errorf("zstd: new writer: %w", err))
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Errorf("zstd: new reader: %w", err))
	}
	return zstdCodec{enc: enc, dec: dec}
}

func (c zstdCodec) Encode(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

func (c zstdCodec) Decode(data []byte) ([]byte, error) {
	return c.dec.DecodeAll(data, nil)
}

type lz4Codec struct{}

func (lz4Codec) Encode(data []byte) ([]byte, error) {
	buf := getBuf()
	zw := lz4.NewWriter(buf)
	if _, err := zw.Write(data); err != nil {
		putBuf(buf)
		return nil, err
	}
	if err := zw.Close(); err != nil {
		putBuf(buf)
		return nil, err
	}
	return detach(buf), nil
}

func (lz4Codec) Decode(data []byte) ([]byte, error) {
	buf := getBuf()
	if _, err := io.Copy(buf, lz4.NewReader(bytes.NewReader(data))); err != nil {
		putBuf(buf)
		return nil, err
	}
	return detach(buf), nil
}
