package mcap

import (
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// decompress inflates a chunk's record bytes according to its declared
// compression. An empty name means the bytes are already uncompressed.
func decompress(compression string, data []byte, uncompressedSize uint64) ([]byte, error) {
	switch compression {
	case "":
		return data, nil
	case "lz4":
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, errors.Wrap(err, "lz4 decompress chunk")
		}
		return out[:n], nil
	case "zstd":
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errors.Wrap(err, "build zstd decoder")
		}
		defer dec.Close()
		out, err := dec.DecodeAll(data, make([]byte, 0, uncompressedSize))
		if err != nil {
			return nil, errors.Wrap(err, "zstd decompress chunk")
		}
		return out, nil
	default:
		return nil, errors.Errorf("unsupported chunk compression %q", compression)
	}
}
