package mcap

import (
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"go.viam.com/test"
)

func TestDecompressIdentity(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	out, err := decompress("", data, uint64(len(data)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, data)
}

func TestDecompressZstd(t *testing.T) {
	raw := []byte("hello chunked message bytes")
	enc, err := zstd.NewWriter(nil)
	test.That(t, err, test.ShouldBeNil)
	compressed := enc.EncodeAll(raw, nil)
	test.That(t, enc.Close(), test.ShouldBeNil)

	out, err := decompress("zstd", compressed, uint64(len(raw)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, raw)
}

func TestDecompressLZ4(t *testing.T) {
	raw := []byte("hello chunked message bytes, again and again and again")
	compressedBuf := make([]byte, len(raw)*2)
	var c lz4.Compressor
	n, err := c.CompressBlock(raw, compressedBuf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldBeGreaterThan, 0)

	out, err := decompress("lz4", compressedBuf[:n], uint64(len(raw)))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out, test.ShouldResemble, raw)
}

func TestDecompressUnsupported(t *testing.T) {
	_, err := decompress("bz2", []byte{1}, 1)
	test.That(t, err, test.ShouldNotBeNil)
}
