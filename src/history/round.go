package history

import (
	"bytes"
	"time"

	"github.com/mosaicnetworks/spantree/src/vector"
	"github.com/ugorji/go/codec"
)

// Round is the outcome of one snapshot round at one process.
type Round struct {
	Index     int
	ProcessID int
	Root      bool
	Parent    int
	Children  []int

	// Vector is the local contribution merged with all the children's
	// reports. At the root it is the global state.
	Vector vector.State

	// Evaluated is only true at the root, where Terminated holds the result
	// of the global predicate.
	Evaluated  bool
	Terminated bool

	// Error is set when the round failed at this process. Vector is then the
	// local contribution, if it was recorded at all.
	Error string

	Completed time.Time
}

// Marshal ...
func (r *Round) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(r); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (r *Round) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(r)
}
