package connection_test

import (
	"testing"

	"go.viam.com/test"

	"github.com/rosbags-go/rosbags/connection"
)

func TestSliceIteratorYieldsInOrderThenStops(t *testing.T) {
	msgs := []connection.Message{{Timestamp: 1}, {Timestamp: 2}, {Timestamp: 3}}
	it := connection.NewSliceIterator(msgs)

	var got []int64
	for it.Next() {
		got = append(got, it.Message().Timestamp)
	}
	test.That(t, it.Err(), test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, []int64{1, 2, 3})
	test.That(t, it.Next(), test.ShouldBeFalse)
}

func TestSliceIteratorEmpty(t *testing.T) {
	it := connection.NewSliceIterator(nil)
	test.That(t, it.Next(), test.ShouldBeFalse)
}

func TestFuncIteratorStopsOnOkFalse(t *testing.T) {
	calls := 0
	it := connection.NewFuncIterator(func() (connection.Message, bool, error) {
		calls++
		if calls > 2 {
			return connection.Message{}, false, nil
		}
		return connection.Message{Timestamp: int64(calls)}, true, nil
	})

	var got []int64
	for it.Next() {
		got = append(got, it.Message().Timestamp)
	}
	test.That(t, it.Err(), test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, []int64{1, 2})
}

func TestFuncIteratorStopsOnError(t *testing.T) {
	boom := errBoom{}
	it := connection.NewFuncIterator(func() (connection.Message, bool, error) {
		return connection.Message{}, false, boom
	})
	test.That(t, it.Next(), test.ShouldBeFalse)
	test.That(t, it.Err(), test.ShouldEqual, boom)
	test.That(t, it.Next(), test.ShouldBeFalse)
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }
