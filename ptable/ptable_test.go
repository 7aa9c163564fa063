package ptable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageSize = 4096

func TestReserveNextIsContiguousPrefix(t *testing.T) {
	pt := New(4)
	assert.False(t, pt.Full())

	e0 := pt.ReserveNext(0x1000, 0)
	e1 := pt.ReserveNext(0x2000, 1)
	assert.Equal(t, 2, pt.Reserved())
	assert.True(t, e0.Reserved)
	assert.True(t, e1.Reserved)
	assert.False(t, pt.Entries[2].Reserved)
}

func TestFullAfterCapReservations(t *testing.T) {
	pt := New(2)
	pt.ReserveNext(0, 0)
	pt.ReserveNext(pageSize, 1)
	assert.True(t, pt.Full())
}

func TestLookupStopsAtFirstUnreserved(t *testing.T) {
	pt := New(4)
	pt.ReserveNext(0x600000000000, 0)
	pt.ReserveNext(0x600000001000, 1)

	e, ok := pt.Lookup(0x600000000500, pageSize)
	require.True(t, ok)
	assert.Equal(t, uintptr(0x600000000000), e.Vaddr)

	_, ok = pt.Lookup(0x600000002000, pageSize)
	assert.False(t, ok, "unreserved page must not be found")
}

func TestResidentCount(t *testing.T) {
	pt := New(3)
	pt.ReserveNext(0, 0)
	pt.ReserveNext(pageSize, 1)
	pt.Entries[0].Resident = true
	assert.Equal(t, 1, pt.ResidentCount())
}

func TestMarkDirtyIsSticky(t *testing.T) {
	var e Pte
	e.MarkDirty()
	assert.True(t, e.Dirty)
	assert.True(t, e.EverDirtied())
	e.Dirty = false
	assert.True(t, e.EverDirtied(), "everDirtied must stay true once a page has ever been written")
}
