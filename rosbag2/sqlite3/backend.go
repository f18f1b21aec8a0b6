// Package sqlite3 implements the rosbag2 sqlite3 storage backend: a
// read-only connection.StorageBackend over one or more sqlite3 data files,
// grounded on the original rosbags.rosbag2.storage_sqlite3 reader.
package sqlite3

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/rosbags-go/rosbags/connection"
	"github.com/rosbags-go/rosbags/logging"
	"github.com/rosbags-go/rosbags/typesys"
	"github.com/rosbags-go/rosbags/typesys/hashing"
	"github.com/rosbags-go/rosbags/typesys/msgdef"
	"github.com/rosbags-go/rosbags/typesys/registry"
)

type definitionRow struct {
	TopicType string `db:"topic_type"`
	Encoding  string `db:"encoding"`
	Text      string `db:"encoded_message_definition"`
	Hash      string `db:"type_description_hash"`
}

type topicRow struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

// Backend is a read-only rosbag2 sqlite3 storage backend over one-or-more
// database files (multi-file bags share the same schema).
type Backend struct {
	paths []string
	reg   *registry.Registry
	log   logging.Logger

	dbs      []*sqlx.DB
	versions []int
}

// NewBackend builds an unopened Backend. reg is used to parse and validate
// the message_definitions table present from schema version 4 onward; it is
// also where parsed definitions are registered so later deserialization can
// resolve field types.
func NewBackend(paths []string, reg *registry.Registry, log logging.Logger) *Backend {
	return &Backend{paths: paths, reg: reg, log: log}
}

func (b *Backend) Open() error {
	for _, path := range b.paths {
		db, err := sqlx.Open("sqlite3", path)
		if err != nil {
			return errors.Wrapf(err, "open %s", path)
		}
		db.SetMaxOpenConns(1)

		if err := requireTable(db, "messages"); err != nil {
			_ = db.Close()
			return err
		}
		if err := requireTable(db, "topics"); err != nil {
			_ = db.Close()
			return err
		}

		version, err := detectSchemaVersion(db)
		if err != nil {
			_ = db.Close()
			return err
		}

		if version >= 4 {
			if err := b.validateDefinitions(db); err != nil {
				_ = db.Close()
				return err
			}
		}

		b.dbs = append(b.dbs, db)
		b.versions = append(b.versions, version)
	}
	return nil
}

func (b *Backend) Close() error {
	var first error
	for _, db := range b.dbs {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func requireTable(db *sqlx.DB, name string) error {
	var n int
	err := db.Get(&n, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", name)
	if err != nil {
		return errors.Wrapf(err, "query sqlite_master for %s", name)
	}
	if n == 0 {
		return errors.Errorf("missing required table %q", name)
	}
	return nil
}

func hasTable(db *sqlx.DB, name string) bool {
	var n int
	_ = db.Get(&n, "SELECT count(*) FROM sqlite_master WHERE type='table' AND name=?", name)
	return n > 0
}

func hasColumn(db *sqlx.DB, table, column string) bool {
	rows, err := db.Queryx(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()
	for rows.Next() {
		m, err := rows.SliceScan()
		if err != nil {
			return false
		}
		if len(m) > 1 {
			if name, ok := m[1].(string); ok && name == column {
				return true
			}
		}
	}
	return false
}

// detectSchemaVersion follows storage_sqlite3.py: a schema table with a
// schema_version column wins; otherwise a topics.offered_qos_profiles
// column implies schema 2; otherwise schema 1.
func detectSchemaVersion(db *sqlx.DB) (int, error) {
	if hasTable(db, "schema") {
		var v int
		if err := db.Get(&v, "SELECT schema_version FROM schema"); err != nil {
			return 0, errors.Wrap(err, "read schema_version")
		}
		return v, nil
	}
	if hasColumn(db, "topics", "offered_qos_profiles") {
		return 2, nil
	}
	return 1, nil
}

func (b *Backend) validateDefinitions(db *sqlx.DB) error {
	if !hasTable(db, "message_definitions") {
		return nil
	}
	var rows []definitionRow
	if err := db.Select(&rows, "SELECT topic_type, encoding, encoded_message_definition, type_description_hash FROM message_definitions"); err != nil {
		return errors.Wrap(err, "read message_definitions")
	}
	for _, row := range rows {
		defs, err := msgdef.Parse(row.Text, row.TopicType)
		if err != nil {
			return errors.Wrapf(err, "parse message definition for %s", row.TopicType)
		}
		if err := b.reg.Register(defs); err != nil {
			return errors.Wrapf(err, "register %s", row.TopicType)
		}
		digest, err := hashing.RIHS01(b.reg, typesys.TypeName(row.TopicType))
		if err != nil {
			return errors.Wrapf(err, "compute type description hash for %s", row.TopicType)
		}
		if row.Hash != "" && digest != row.Hash {
			return errors.Errorf("type description hash mismatch for %s: stored %s, computed %s", row.TopicType, row.Hash, digest)
		}
	}
	return nil
}

// Definitions implements connection.StorageBackend.
func (b *Backend) Definitions() (map[typesys.TypeName]connection.Definition, error) {
	out := map[typesys.TypeName]connection.Definition{}
	for _, db := range b.dbs {
		if !hasTable(db, "message_definitions") {
			continue
		}
		var rows []definitionRow
		if err := db.Select(&rows, "SELECT topic_type, encoding, encoded_message_definition, type_description_hash FROM message_definitions"); err != nil {
			return nil, errors.Wrap(err, "read message_definitions")
		}
		for _, row := range rows {
			enc := row.Encoding
			if len(enc) > 4 {
				enc = enc[4:]
			}
			out[typesys.TypeName(row.TopicType)] = connection.Definition{Encoding: enc, Text: row.Text}
		}
	}
	return out, nil
}

// Messages implements connection.StorageBackend: a dynamic SQL query
// filtered by topic name and timestamp range, joined against each
// database's own topics table.
func (b *Backend) Messages(filter []*connection.Connection, start, stop *int64) (connection.MessageIterator, error) {
	s, e := connection.Range(start, stop)

	byTopic := map[string]*connection.Connection{}
	for _, c := range filter {
		byTopic[c.Topic] = c
	}

	var out []connection.Message
	for _, db := range b.dbs {
		connMap, err := topicConnMap(db, byTopic)
		if err != nil {
			return nil, err
		}

		query := "SELECT topics.id AS tid, messages.timestamp AS ts, messages.data AS data " +
			"FROM messages JOIN topics ON messages.topic_id = topics.id " +
			"WHERE messages.timestamp >= ? AND messages.timestamp < ?"
		args := []interface{}{s, e}
		if len(filter) > 0 {
			placeholders := ""
			for i, c := range filter {
				if i > 0 {
					placeholders += ","
				}
				placeholders += "?"
				args = append(args, c.Topic)
			}
			query += " AND topics.name IN (" + placeholders + ")"
		}
		query += " ORDER BY messages.timestamp"

		rows, err := db.Queryx(query, args...)
		if err != nil {
			return nil, errors.Wrap(err, "query messages")
		}
		for rows.Next() {
			var tid int64
			var ts int64
			var data []byte
			if err := rows.Scan(&tid, &ts, &data); err != nil {
				rows.Close()
				return nil, err
			}
			conn, ok := connMap[tid]
			if !ok {
				continue
			}
			out = append(out, connection.Message{Connection: conn, Timestamp: ts, Data: data})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return connection.NewSliceIterator(out), nil
}

func topicConnMap(db *sqlx.DB, byTopic map[string]*connection.Connection) (map[int64]*connection.Connection, error) {
	var rows []topicRow
	if err := db.Select(&rows, "SELECT id, name FROM topics"); err != nil {
		return nil, errors.Wrap(err, "read topics")
	}
	out := map[int64]*connection.Connection{}
	for _, r := range rows {
		if conn, ok := byTopic[r.Name]; ok {
			out[r.ID] = conn
		}
	}
	return out, nil
}
