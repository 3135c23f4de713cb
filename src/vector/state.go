package vector

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mosaicnetworks/spantree/src/common"
	"github.com/ugorji/go/codec"
)

// Entry values used for activity flags. The ordering matters: merging keeps
// the greater value, so an Active report always wins over a Passive one, and
// any report wins over the absence of information.
const (
	Unknown uint32 = iota
	Passive
	Active
)

// State is a fixed-size vector with one entry per process.
type State []uint32

// New returns a State of n Unknown entries.
func New(n int) State {
	return make(State, n)
}

// Copy returns a deep copy of s. The copy of a nil State is nil.
func (s State) Copy() State {
	if s == nil {
		return nil
	}
	return append(State{}, s...)
}

// Merge sets every entry of s to the maximum of itself and the corresponding
// entry of o. s is left untouched if the lengths differ.
func (s State) Merge(o State) error {
	if len(s) != len(o) {
		return common.NewProtocolErr(common.VectorMismatch,
			"cannot merge %s into %s", o, s)
	}
	for i := range s {
		if o[i] > s[i] {
			s[i] = o[i]
		}
	}
	return nil
}

// Merge returns a new State holding the element-wise maximum of a and b.
func Merge(a, b State) (State, error) {
	res := a.Copy()
	if err := res.Merge(b); err != nil {
		return nil, err
	}
	return res, nil
}

// Equal ...
func (s State) Equal(o State) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// String returns the vector as [v0, v1, ...].
func (s State) String() string {
	if s == nil {
		return "<nil>"
	}
	entries := make([]string, len(s))
	for i, v := range s {
		entries[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(entries, ", ") + "]"
}

// Marshal encodes the State in canonical JSON.
func (s State) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(s); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (s *State) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(s)
}
