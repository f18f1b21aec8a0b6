package mcap

import (
	"testing"

	"go.viam.com/test"

	"github.com/rosbags-go/rosbags/connection"
)

func msgAt(ts int64) connection.Message {
	return connection.Message{Timestamp: ts}
}

func TestMergeRunsOrdersByTimestamp(t *testing.T) {
	runs := []*chunkRun{
		{messages: []connection.Message{msgAt(10), msgAt(40), msgAt(90)}},
		{messages: []connection.Message{msgAt(20), msgAt(30)}},
		{messages: []connection.Message{msgAt(5)}},
	}

	out := mergeRuns(runs)
	test.That(t, len(out), test.ShouldEqual, 6)

	want := []int64{5, 10, 20, 30, 40, 90}
	for i, w := range want {
		test.That(t, out[i].Timestamp, test.ShouldEqual, w)
	}
}

func TestMergeRunsHandlesEmptyAndSingleRuns(t *testing.T) {
	empty := mergeRuns(nil)
	test.That(t, len(empty), test.ShouldEqual, 0)

	single := mergeRuns([]*chunkRun{{messages: []connection.Message{msgAt(1)}}})
	test.That(t, len(single), test.ShouldEqual, 1)

	withEmptyRun := mergeRuns([]*chunkRun{
		{messages: nil},
		{messages: []connection.Message{msgAt(7)}},
	})
	test.That(t, len(withEmptyRun), test.ShouldEqual, 1)
	test.That(t, withEmptyRun[0].Timestamp, test.ShouldEqual, int64(7))
}

func TestMergeRunsStableOnTies(t *testing.T) {
	runs := []*chunkRun{
		{messages: []connection.Message{msgAt(5)}},
		{messages: []connection.Message{msgAt(5)}},
	}
	out := mergeRuns(runs)
	test.That(t, len(out), test.ShouldEqual, 2)
	test.That(t, out[0].Timestamp, test.ShouldEqual, int64(5))
	test.That(t, out[1].Timestamp, test.ShouldEqual, int64(5))

	tagged := mergeRuns([]*chunkRun{
		{messages: []connection.Message{{Timestamp: 5, Data: []byte("a")}}},
		{messages: []connection.Message{{Timestamp: 5, Data: []byte("b")}}},
		{messages: []connection.Message{{Timestamp: 5, Data: []byte("c")}}},
	})
	test.That(t, len(tagged), test.ShouldEqual, 3)
	test.That(t, string(tagged[0].Data), test.ShouldEqual, "a")
	test.That(t, string(tagged[1].Data), test.ShouldEqual, "b")
	test.That(t, string(tagged[2].Data), test.ShouldEqual, "c")
}
