package rosbag2

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/rosbags-go/rosbags/connection"
	"github.com/rosbags-go/rosbags/logging"
	"github.com/rosbags-go/rosbags/mcap"
	"github.com/rosbags-go/rosbags/rosbag2/sqlite3"
	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

// Reader opens one rosbag2 directory: it loads metadata.yaml, builds the
// bag's Connections, and dispatches message storage to the mcap or sqlite3
// backend the manifest names.
type Reader struct {
	dir string
	log logging.Logger
	reg *registry.Registry

	md          *Metadata
	connections []*connection.Connection

	backend connection.StorageBackend
	tempDir string
}

// NewReader loads and validates dir/metadata.yaml without opening any data
// file yet.
func NewReader(dir string, reg *registry.Registry, log logging.Logger) (*Reader, error) {
	md, err := ReadMetadata(dir)
	if err != nil {
		return nil, err
	}
	r := &Reader{dir: dir, log: log, reg: reg, md: md}
	r.connections = buildConnections(md)
	return r, nil
}

func buildConnections(md *Metadata) []*connection.Connection {
	out := make([]*connection.Connection, 0, len(md.TopicsWithMessageCount))
	for i, t := range md.TopicsWithMessageCount {
		out = append(out, &connection.Connection{
			ID:       i + 1,
			Topic:    t.TopicMetadata.Name,
			MsgType:  normalizeMsgType(t.TopicMetadata.Type),
			MsgCount: t.MessageCount,
			Ext2: &connection.ExtRosbag2{
				SerializationFormat: t.TopicMetadata.SerializationFormat,
				OfferedQoSProfiles:  t.TopicMetadata.OfferedQoSProfiles,
			},
		})
	}
	return out
}

// normalizeMsgType canonicalizes the manifest's type name spelling against
// the registry's normalization rules.
func normalizeMsgType(t string) typesys.TypeName {
	return typesys.Normalize(t)
}

// Connections returns every topic-level connection the manifest describes.
func (r *Reader) Connections() []*connection.Connection { return r.connections }

func (r *Reader) Duration() int64     { return r.md.Duration.Nanoseconds }
func (r *Reader) StartTime() int64    { return r.md.StartingTime.NanosecondsSinceEpoch }
func (r *Reader) EndTime() int64      { return r.StartTime() + r.Duration() }
func (r *Reader) MessageCount() int64 { return r.md.MessageCount }
func (r *Reader) CompressionFormat() string   { return r.md.CompressionFormat }
func (r *Reader) CompressionMode() string     { return r.md.CompressionMode }
func (r *Reader) StorageIdentifier() string   { return r.md.StorageIdentifier }
func (r *Reader) Topics() []*connection.Connection { return r.connections }

// Open decompresses whole-file compressed data (compression_mode "file")
// into a temporary directory if needed, then opens the storage_identifier
// backend the manifest names.
func (r *Reader) Open() error {
	paths := make([]string, 0, len(r.md.DataFiles()))
	for _, rel := range r.md.DataFiles() {
		paths = append(paths, filepath.Join(r.dir, rel))
	}

	if strings.EqualFold(r.md.CompressionMode, "file") {
		tmp, err := os.MkdirTemp("", "rosbag2-*")
		if err != nil {
			return errors.Wrap(err, "create decompression tempdir")
		}
		r.tempDir = tmp
		decompressed := make([]string, len(paths))
		for i, p := range paths {
			out, err := decompressFileToTemp(p, tmp)
			if err != nil {
				return err
			}
			decompressed[i] = out
		}
		paths = decompressed
	}

	switch r.md.StorageIdentifier {
	case "mcap":
		backends := make([]connection.StorageBackend, len(paths))
		for i, p := range paths {
			backends[i] = mcap.NewReader(p, r.log)
		}
		r.backend = &multiBackend{backends: backends}
	case "sqlite3":
		r.backend = sqlite3.NewBackend(paths, r.reg, r.log)
	default:
		return &ReaderError{Msg: "unsupported storage identifier " + r.md.StorageIdentifier}
	}

	if err := r.backend.Open(); err != nil {
		return err
	}

	defs, err := r.backend.Definitions()
	if err != nil {
		return err
	}
	for _, conn := range r.connections {
		if def, ok := defs[conn.MsgType]; ok {
			conn.MsgDef = def.Text
		}
	}
	return nil
}

func decompressFileToTemp(path, tmpDir string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "open %s", path)
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return "", errors.Wrap(err, "build zstd decoder")
	}
	defer dec.Close()

	outPath := filepath.Join(tmpDir, filepath.Base(path))
	outPath = trimZstdSuffix(outPath)
	out, err := os.Create(outPath)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", outPath)
	}
	defer out.Close()

	if _, err := io.Copy(out, dec); err != nil {
		return "", errors.Wrapf(err, "decompress %s", path)
	}
	return outPath, nil
}

func trimZstdSuffix(path string) string {
	const suffix = ".zstd"
	if len(path) > len(suffix) && path[len(path)-len(suffix):] == suffix {
		return path[:len(path)-len(suffix)]
	}
	return path
}

func (r *Reader) Close() error {
	var err error
	if r.backend != nil {
		err = r.backend.Close()
	}
	if r.tempDir != "" {
		_ = os.RemoveAll(r.tempDir)
	}
	return err
}

// Messages streams messages for filter (every connection when empty)
// within [start, stop), applying per-message decompression when the
// manifest declares compression_mode "message".
func (r *Reader) Messages(filter []*connection.Connection, start, stop *int64) (connection.MessageIterator, error) {
	if len(filter) == 0 {
		filter = r.connections
	}
	it, err := r.backend.Messages(filter, start, stop)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(r.md.CompressionMode, "message") {
		return it, nil
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "build zstd decoder")
	}
	return connection.NewFuncIterator(func() (connection.Message, bool, error) {
		if !it.Next() {
			dec.Close()
			return connection.Message{}, false, it.Err()
		}
		msg := it.Message()
		plain, err := dec.DecodeAll(msg.Data, nil)
		if err != nil {
			return connection.Message{}, false, errors.Wrap(err, "decompress message")
		}
		msg.Data = plain
		return msg, true, nil
	}), nil
}
