package rosbag2

import (
	"database/sql"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/rosbags-go/rosbags/connection"
	"github.com/rosbags-go/rosbags/logging"
	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/hashing"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

// CompressionMode mirrors the manifest's compression_mode values: whether
// compression is applied per message or to the whole data file at close.
type CompressionMode string

const (
	CompressionNone    CompressionMode = "NONE"
	CompressionFile    CompressionMode = "FILE"
	CompressionMessage CompressionMode = "MESSAGE"
)

// CompressionFormat names the compression algorithm. zstd is the only one
// the format supports.
type CompressionFormat string

const CompressionZstd CompressionFormat = "zstd"

const writerSchemaVersion = 4

const ddl = `
CREATE TABLE schema(schema_version INTEGER PRIMARY KEY, ros_distro TEXT NOT NULL);
CREATE TABLE metadata(id INTEGER PRIMARY KEY, metadata_version INTEGER NOT NULL, metadata TEXT NOT NULL);
CREATE TABLE topics(
  id INTEGER PRIMARY KEY,
  name TEXT NOT NULL,
  type TEXT NOT NULL,
  serialization_format TEXT NOT NULL,
  offered_qos_profiles TEXT NOT NULL,
  type_description_hash TEXT NOT NULL
);
CREATE TABLE message_definitions(
  id INTEGER PRIMARY KEY,
  topic_type TEXT NOT NULL,
  encoding TEXT NOT NULL,
  encoded_message_definition TEXT NOT NULL,
  type_description_hash TEXT NOT NULL
);
CREATE TABLE messages(
  id INTEGER PRIMARY KEY,
  topic_id INTEGER NOT NULL,
  timestamp INTEGER NOT NULL,
  data BLOB NOT NULL
);
CREATE INDEX timestamp_idx ON messages(timestamp);
`

// Writer produces a rosbag2 sqlite3-storage bag directory, grounded on the
// original rosbags.rosbag2.writer module (the rosbag2 write path is
// sqlite3-based regardless of the read-side storage identifier the bag
// under conversion used).
type Writer struct {
	dir string
	reg *registry.Registry
	log logging.Logger

	compressionMode   CompressionMode
	compressionFormat CompressionFormat
	customData        map[string]string

	db     *sqlx.DB
	opened bool

	connections    map[string]*connection.Connection // keyed by topic+"\x00"+msgtype
	definitionIDs  map[typesys.TypeName]bool
	topicCounts    map[int]int64
}

// NewWriter prepares a writer for dir, which must not yet exist.
func NewWriter(dir string, reg *registry.Registry, log logging.Logger) (*Writer, error) {
	if _, err := os.Stat(dir); err == nil {
		return nil, &WriterError{Msg: "output path already exists: " + dir}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "stat output path")
	}
	return &Writer{
		dir:           dir,
		reg:           reg,
		log:           log,
		connections:   map[string]*connection.Connection{},
		definitionIDs: map[typesys.TypeName]bool{},
		topicCounts:   map[int]int64{},
	}, nil
}

// SetCompression must be called before Open.
func (w *Writer) SetCompression(mode CompressionMode, format CompressionFormat) error {
	if w.opened {
		return &WriterError{Msg: "set_compression must precede open"}
	}
	if mode != CompressionNone && format != CompressionZstd {
		return &WriterError{Msg: "unsupported compression format " + string(format)}
	}
	w.compressionMode = mode
	w.compressionFormat = format
	return nil
}

// SetCustomData validates that every value is a string before storing it in
// the manifest's custom_data map.
func (w *Writer) SetCustomData(data map[string]interface{}) error {
	out := make(map[string]string, len(data))
	for k, v := range data {
		s, ok := v.(string)
		if !ok {
			return &WriterError{Msg: "custom_data value for " + k + " must be a string"}
		}
		out[k] = s
	}
	w.customData = out
	return nil
}

// Open creates the bag directory and the sqlite3 data file.
func (w *Writer) Open() error {
	if err := os.Mkdir(w.dir, 0o755); err != nil {
		return &WriterError{Msg: "create output directory: " + err.Error()}
	}
	dbPath := filepath.Join(w.dir, "bag.db3")
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return errors.Wrap(err, "open sqlite3 data file")
	}
	if _, err := db.Exec(ddl); err != nil {
		return errors.Wrap(err, "execute schema")
	}
	if _, err := db.Exec("INSERT INTO schema(schema_version, ros_distro) VALUES (?, ?)", writerSchemaVersion, "rosbags-go"); err != nil {
		return errors.Wrap(err, "insert schema row")
	}
	w.db = db
	w.opened = true
	return nil
}

// AddConnection registers a (topic, msgtype) pair, computing its message
// definition and RIHS01 digest from the registry if msgdef/digest are
// empty, and returns the new Connection. Re-adding a (topic, msgtype) pair
// that is already present is a WriterError, whatever its ext.
func (w *Writer) AddConnection(topic string, msgtype typesys.TypeName, ext *connection.ExtRosbag2, msgdefText, digest string) (*connection.Connection, error) {
	if !w.opened {
		return nil, &WriterError{Msg: "bag is not open"}
	}
	key := topic + "\x00" + string(msgtype)
	if _, dup := w.connections[key]; dup {
		return nil, &WriterError{Msg: "duplicate connection for topic " + topic}
	}

	if msgdefText == "" || digest == "" {
		var err error
		msgdefText, _, err = hashing.GenerateMsgDef(w.reg, msgtype)
		if err != nil {
			return nil, errors.Wrapf(err, "generate message definition for %s", msgtype)
		}
		digest, err = hashing.RIHS01(w.reg, msgtype)
		if err != nil {
			return nil, errors.Wrapf(err, "compute type description hash for %s", msgtype)
		}
	}

	if !w.definitionIDs[msgtype] {
		if _, err := w.db.Exec(
			"INSERT INTO message_definitions(topic_type, encoding, encoded_message_definition, type_description_hash) VALUES (?, ?, ?, ?)",
			string(msgtype), "ros2msg", msgdefText, digest,
		); err != nil {
			return nil, errors.Wrap(err, "insert message_definitions row")
		}
		w.definitionIDs[msgtype] = true
	}

	res, err := w.db.Exec(
		"INSERT INTO topics(name, type, serialization_format, offered_qos_profiles, type_description_hash) VALUES (?, ?, ?, ?, ?)",
		topic, string(msgtype), ext.SerializationFormat, ext.OfferedQoSProfiles, digest,
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert topics row")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "read topic id")
	}

	conn := &connection.Connection{
		ID:      int(id),
		Topic:   topic,
		MsgType: msgtype,
		MsgDef:  msgdefText,
		Digest:  digest,
		Ext2:    ext,
		Owner:   nil,
	}
	w.connections[key] = conn
	return conn, nil
}

// Write inserts one message for conn, which must have come from
// AddConnection on this Writer.
func (w *Writer) Write(conn *connection.Connection, timestamp int64, data []byte) error {
	if !w.opened {
		return &WriterError{Msg: "bag is not open"}
	}
	if _, ok := w.connections[conn.Topic+"\x00"+string(conn.MsgType)]; !ok {
		return &WriterError{Msg: "unknown connection for topic " + conn.Topic}
	}

	if w.compressionMode == CompressionMessage {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return errors.Wrap(err, "build zstd encoder")
		}
		data = enc.EncodeAll(data, nil)
		enc.Close()
	}

	if _, err := w.db.Exec("INSERT INTO messages(topic_id, timestamp, data) VALUES (?, ?, ?)", conn.ID, timestamp, data); err != nil {
		return errors.Wrap(err, "insert message row")
	}
	w.topicCounts[conn.ID]++
	return nil
}

// Close finalizes the data file, optionally whole-file-compresses it, and
// writes metadata.yaml.
func (w *Writer) Close() error {
	if !w.opened {
		return nil
	}

	var count int64
	var minTS, maxTS sql.NullInt64
	if err := w.db.Get(&count, "SELECT count(*) FROM messages"); err != nil {
		return errors.Wrap(err, "count messages")
	}
	if count > 0 {
		if err := w.db.QueryRowx("SELECT min(timestamp), max(timestamp) FROM messages").Scan(&minTS, &maxTS); err != nil {
			return errors.Wrap(err, "read timestamp range")
		}
	}
	if err := w.db.Close(); err != nil {
		return errors.Wrap(err, "close sqlite3 data file")
	}

	relPath := "bag.db3"
	if w.compressionMode == CompressionFile {
		scratchPath := filepath.Join(w.dir, "."+uuid.NewString()+".zstd.tmp")
		finalPath := filepath.Join(w.dir, relPath+".zstd")
		if err := compressFile(filepath.Join(w.dir, relPath), scratchPath); err != nil {
			return err
		}
		if err := os.Rename(scratchPath, finalPath); err != nil {
			return errors.Wrap(err, "finalize compressed data file")
		}
		_ = os.Remove(filepath.Join(w.dir, relPath))
		relPath += ".zstd"
	}

	topics := make([]TopicWithMessageCount, 0, len(w.connections))
	for _, conn := range w.connections {
		topics = append(topics, TopicWithMessageCount{
			TopicMetadata: TopicMetadata{
				Name:                conn.Topic,
				Type:                string(conn.MsgType),
				SerializationFormat: conn.Ext2.SerializationFormat,
				OfferedQoSProfiles:  conn.Ext2.OfferedQoSProfiles,
				TypeDescriptionHash: conn.Digest,
			},
			MessageCount: w.topicCounts[conn.ID],
		})
	}

	start := minTS.Int64
	duration := int64(0)
	if count > 0 {
		duration = maxTS.Int64 - minTS.Int64
	}

	md := &Metadata{
		Version:                writerSchemaVersion,
		StorageIdentifier:      "sqlite3",
		RelativeFilePaths:      []string{relPath},
		StartingTime:           StartingTime{NanosecondsSinceEpoch: start},
		Duration:               Duration{Nanoseconds: duration},
		MessageCount:           count,
		CompressionFormat:      string(w.compressionFormat),
		CompressionMode:        string(w.compressionMode),
		TopicsWithMessageCount: topics,
		CustomData:             w.customData,
	}
	w.opened = false
	return md.Write(w.dir)
}

func compressFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return errors.Wrap(err, "open data file for compression")
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return errors.Wrap(err, "create compressed data file")
	}
	defer dst.Close()

	enc, err := zstd.NewWriter(dst)
	if err != nil {
		return errors.Wrap(err, "build zstd encoder")
	}
	defer enc.Close()

	buf := make([]byte, 1<<20)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := enc.Write(buf[:n]); werr != nil {
				return errors.Wrap(werr, "write compressed data")
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errors.Wrap(rerr, "read data file for compression")
		}
	}
	return nil
}
