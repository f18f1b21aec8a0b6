package rosbag2

import (
	"sort"

	"go.uber.org/multierr"

	"github.com/rosbags-go/rosbags/connection"
	"github.com/rosbags-go/rosbags/typesys"
)

// multiBackend aggregates several same-kind StorageBackends (one per data
// file) behind a single connection.StorageBackend, for bags whose manifest
// names more than one file.
type multiBackend struct {
	backends []connection.StorageBackend
}

func (m *multiBackend) Open() error {
	for i, b := range m.backends {
		if err := b.Open(); err != nil {
			for _, opened := range m.backends[:i] {
				_ = opened.Close()
			}
			return err
		}
	}
	return nil
}

func (m *multiBackend) Close() error {
	var err error
	for _, b := range m.backends {
		err = multierr.Append(err, b.Close())
	}
	return err
}

func (m *multiBackend) Definitions() (map[typesys.TypeName]connection.Definition, error) {
	out := map[typesys.TypeName]connection.Definition{}
	for _, b := range m.backends {
		defs, err := b.Definitions()
		if err != nil {
			return nil, err
		}
		for name, def := range defs {
			out[name] = def
		}
	}
	return out, nil
}

func (m *multiBackend) Messages(filter []*connection.Connection, start, stop *int64) (connection.MessageIterator, error) {
	var all []connection.Message
	for _, b := range m.backends {
		it, err := b.Messages(filter, start, stop)
		if err != nil {
			return nil, err
		}
		for it.Next() {
			all = append(all, it.Message())
		}
		if err := it.Err(); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp < all[j].Timestamp })
	return connection.NewSliceIterator(all), nil
}
