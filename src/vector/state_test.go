package vector

import (
	"math/rand"
	"testing"

	"github.com/mosaicnetworks/spantree/src/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomState(r *rand.Rand, n int) State {
	s := New(n)
	for i := range s {
		s[i] = uint32(r.Intn(3))
	}
	return s
}

func TestMergeIdempotent(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		a := randomState(r, 8)
		merged, err := Merge(a, a)
		require.NoError(t, err)
		assert.True(t, merged.Equal(a), "merge(%s, %s) = %s", a, a, merged)
	}
}

func TestMergeCommutativeAssociative(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		a, b, c := randomState(r, 6), randomState(r, 6), randomState(r, 6)

		ab, err := Merge(a, b)
		require.NoError(t, err)
		ba, err := Merge(b, a)
		require.NoError(t, err)
		assert.True(t, ab.Equal(ba), "%s != %s", ab, ba)

		abc, err := Merge(ab, c)
		require.NoError(t, err)
		bc, err := Merge(b, c)
		require.NoError(t, err)
		abc2, err := Merge(a, bc)
		require.NoError(t, err)
		assert.True(t, abc.Equal(abc2), "%s != %s", abc, abc2)
	}
}

func TestMergeKeepsStrongerEntry(t *testing.T) {
	a := State{Unknown, Passive, Active, Passive}
	b := State{Passive, Active, Passive, Unknown}

	require.NoError(t, a.Merge(b))
	assert.Equal(t, State{Passive, Active, Active, Passive}, a)
}

func TestMergeLengthMismatch(t *testing.T) {
	a := State{Passive, Passive}
	before := a.Copy()

	err := a.Merge(State{Active, Active, Active})
	require.Error(t, err)
	assert.True(t, common.IsProtocol(err, common.VectorMismatch))
	assert.Equal(t, before, a, "a failed merge must leave the target untouched")

	_, err = Merge(State{}, State{Active})
	assert.True(t, common.IsProtocol(err, common.VectorMismatch))
}

func TestCopyDoesNotAlias(t *testing.T) {
	a := State{Passive, Passive}
	b := a.Copy()
	b[0] = Active
	assert.Equal(t, Passive, a[0])

	var nilState State
	assert.Nil(t, nilState.Copy())
}

func TestString(t *testing.T) {
	var s State
	assert.Equal(t, "<nil>", s.String())
	assert.Equal(t, "[]", State{}.String())
	assert.Equal(t, "[1, 2, 0]", State{Passive, Active, Unknown}.String())
}

func TestMarshal(t *testing.T) {
	s := State{Passive, Active, 7}

	raw, err := s.Marshal()
	require.NoError(t, err)

	var out State
	require.NoError(t, out.Unmarshal(raw))
	assert.True(t, s.Equal(out), "%s != %s", s, out)
}
