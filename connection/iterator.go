package connection

// SliceIterator adapts a pre-materialized slice of Messages to
// MessageIterator, for backends that build their whole result set up front
// (the sqlite3 backend, and both the MCAP indexed merge and unindexed scan).
type SliceIterator struct {
	messages []Message
	pos      int
}

// NewSliceIterator wraps messages for iteration, starting before the first
// element.
func NewSliceIterator(messages []Message) *SliceIterator {
	return &SliceIterator{messages: messages, pos: -1}
}

func (it *SliceIterator) Next() bool {
	it.pos++
	return it.pos < len(it.messages)
}

func (it *SliceIterator) Message() Message {
	return it.messages[it.pos]
}

func (it *SliceIterator) Err() error {
	return nil
}

// FuncIterator adapts a pull function to MessageIterator: next returns
// (message, ok, err); ok false with a nil err means clean end of stream.
type FuncIterator struct {
	next    func() (Message, bool, error)
	current Message
	err     error
}

// NewFuncIterator builds a MessageIterator around a pull function, used by
// generators that would otherwise require a goroutine-backed channel (the
// rosbag2 reader's per-message decompression wraps its backend this way).
func NewFuncIterator(next func() (Message, bool, error)) *FuncIterator {
	return &FuncIterator{next: next}
}

func (it *FuncIterator) Next() bool {
	if it.err != nil {
		return false
	}
	m, ok, err := it.next()
	if err != nil {
		it.err = err
		return false
	}
	if !ok {
		return false
	}
	it.current = m
	return true
}

func (it *FuncIterator) Message() Message { return it.current }
func (it *FuncIterator) Err() error       { return it.err }
