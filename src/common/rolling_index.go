package common

import "strconv"

// RollingIndex is a bounded, gap-free window over the most recent items of an
// indexed sequence. It holds at most 2*size items; when full, the oldest size
// items are dropped.
type RollingIndex struct {
	name      string
	size      int
	lastIndex int
	items     []interface{}
}

// NewRollingIndex ...
func NewRollingIndex(name string, size int) *RollingIndex {
	return &RollingIndex{
		name:      name,
		size:      size,
		items:     make([]interface{}, 0, 2*size),
		lastIndex: -1,
	}
}

// LastIndex returns the index of the last item that was set, or -1.
func (r *RollingIndex) LastIndex() int {
	return r.lastIndex
}

// oldest returns the index of the oldest item still cached.
func (r *RollingIndex) oldest() int {
	return r.lastIndex - len(r.items) + 1
}

// Since returns the cached items with an index strictly greater than
// skipIndex. It fails with TooLate if some of them were already rolled out.
func (r *RollingIndex) Since(skipIndex int) ([]interface{}, error) {
	res := make([]interface{}, 0)

	if skipIndex >= r.lastIndex {
		return res, nil
	}

	oldest := r.oldest()
	if skipIndex+1 < oldest {
		return res, NewStoreErr(r.name, TooLate, strconv.Itoa(skipIndex))
	}

	return append(res, r.items[skipIndex-oldest+1:]...), nil
}

// GetItem ...
func (r *RollingIndex) GetItem(index int) (interface{}, error) {
	oldest := r.oldest()
	if index < oldest {
		return nil, NewStoreErr(r.name, TooLate, strconv.Itoa(index))
	}
	position := index - oldest
	if position >= len(r.items) {
		return nil, NewStoreErr(r.name, KeyNotFound, strconv.Itoa(index))
	}
	return r.items[position], nil
}

// Set appends the item at lastIndex+1 or replaces a cached item. Setting an
// index further ahead would leave a gap and fails with SkippedIndex.
func (r *RollingIndex) Set(item interface{}, index int) error {
	if 0 <= r.lastIndex && index > r.lastIndex+1 {
		return NewStoreErr(r.name, SkippedIndex, strconv.Itoa(index))
	}

	if r.lastIndex < 0 || index == r.lastIndex+1 {
		if len(r.items) >= 2*r.size {
			r.roll()
		}
		r.items = append(r.items, item)
		r.lastIndex = index
		return nil
	}

	oldest := r.oldest()
	if index < oldest {
		return NewStoreErr(r.name, TooLate, strconv.Itoa(index))
	}

	r.items[index-oldest] = item

	return nil
}

func (r *RollingIndex) roll() {
	newList := make([]interface{}, 0, 2*r.size)
	newList = append(newList, r.items[r.size:]...)
	r.items = newList
}
