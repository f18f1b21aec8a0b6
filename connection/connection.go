// Package connection defines the tuple binding a topic to a message type
// across every container backend — MCAP, rosbag2 sqlite3, and any future
// storage plugin — and the StorageBackend contract those plugins implement.
package connection

import "github.com/rosbags-go/rosbags/typesys"

// ExtRosbag1 carries the ROS1-specific extension fields of a Connection:
// an optional caller ID and whether the publisher latches the topic.
type ExtRosbag1 struct {
	CallerID string
	Latching bool
}

// ExtRosbag2 carries the ROS2-specific extension fields of a Connection.
type ExtRosbag2 struct {
	SerializationFormat string
	OfferedQoSProfiles  string
}

// Connection is the tuple spec.md §3 defines: an id scoped to one bag
// session, a topic name, the registered message type, the raw definition
// text and digest used to reconstruct that type, a running message count,
// and exactly one of the two transport extensions.
type Connection struct {
	ID       int
	Topic    string
	MsgType  typesys.TypeName
	MsgDef   string
	Digest   string
	MsgCount int64

	Ext1 *ExtRosbag1
	Ext2 *ExtRosbag2

	Owner StorageBackend
}

// Message is one (connection, timestamp, raw bytes) tuple yielded by a
// StorageBackend's Messages iteration.
type Message struct {
	Connection *Connection
	Timestamp  int64
	Data       []byte
}

// StorageBackend is the external collaborator contract spec.md §4.6 and §6
// describe: open/close a container's underlying files, report the message
// definitions it carries, and stream messages filtered by connection and
// half-open time range. Implementations are not required to be safe for
// concurrent use.
type StorageBackend interface {
	Open() error
	Close() error

	// Definitions returns, for every message type the container stores
	// side-band type information for, the encoding name with any leading
	// "ros2" prefix removed (so "ros2msg" becomes "msg", "ros2idl" "idl")
	// and raw definition text.
	Definitions() (map[typesys.TypeName]Definition, error)

	// Messages streams messages for exactly the given connections whose
	// timestamp satisfies start <= t < stop. Resolving an empty filter to
	// "every connection the bag has" is the caller's job (rosbag2.Reader
	// does this before delegating here), since a backend alone cannot
	// reconstruct a Connection's id and transport extension from its raw
	// channel/topic metadata. A nil start means 0; a nil stop means the
	// maximum representable timestamp.
	Messages(filter []*Connection, start, stop *int64) (MessageIterator, error)
}

// Definition is the (encoding, raw text) pair a backend reports per type.
type Definition struct {
	Encoding string
	Text     string
}

// MessageIterator is a cooperative, synchronous pull iterator: the caller
// calls Next until it returns false, then checks Err. Closing the iterator
// early (simply abandoning it) must never leak resources; any resource that
// needs releasing belongs to the backend's Close, not the iterator.
type MessageIterator interface {
	Next() bool
	Message() Message
	Err() error
}

// NoTimestamp is the stop sentinel meaning "no upper bound", matching
// spec.md §4.5's 2^63-1.
const NoTimestamp int64 = 1<<63 - 1

// Range resolves possibly-nil start/stop pointers to concrete bounds.
func Range(start, stop *int64) (int64, int64) {
	s := int64(0)
	if start != nil {
		s = *start
	}
	e := NoTimestamp
	if stop != nil {
		e = *stop
	}
	return s, e
}
