package pager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uvmpager/mem"
	"uvmpager/mmu"
)

const (
	pageSize = 4096
	baseAddr = 0x600000000000
)

func newTestPager(nframes, nblocks int) (*Pager, *mmu.Fake) {
	f := mmu.NewFake(nframes, nblocks, pageSize)
	p := New(f, Config{BaseAddr: baseAddr, MaxAddr: baseAddr + 1<<30 - 1, PageSize: pageSize})
	p.Init(nframes, nblocks)
	return p, f
}

// scenario 1 of spec.md §8: first touch zero-fills and grants READ.
func TestFaultFirstTouchZeroFills(t *testing.T) {
	p, f := newTestPager(2, 4)
	p.Create(1)
	a := p.Extend(1)
	require.Equal(t, uintptr(baseAddr), a)

	p.Fault(1, a)
	assert.Equal(t, 1, f.CountOp("zero_fill"))
	assert.Equal(t, 1, f.CountOp("resident"))
	assert.Equal(t, "resident", f.LastOp())

	assert.Equal(t, 0, p.Syslog(1, a, 4), "a freshly zero-filled page must dump as zero bytes")
}

// scenario 2: a write fault after a read fault escalates to READ+WRITE and
// marks the PTE dirty.
func TestFaultWriteEscalatesProtection(t *testing.T) {
	p, f := newTestPager(2, 4)
	p.Create(1)
	a := p.Extend(1)
	p.Fault(1, a)
	p.Fault(1, a)

	assert.Equal(t, "chprot", f.LastOp())
	last := f.Calls[len(f.Calls)-1]
	assert.Equal(t, mem.ProtReadWrite, last.Prot)

	proc := p.procs.Lookup(1)
	e, ok := proc.PageTable.Lookup(a, pageSize)
	require.True(t, ok)
	assert.True(t, e.Dirty)
	assert.True(t, e.EverDirtied())
}

// TestFaultReGrantsReadAfterSecondChanceDemotion reproduces spec.md §4.4's
// state-machine row 2: a page that the clock sweep demoted to prot=NONE
// (but left resident, with a second chance already used up by some other
// page) must re-fault to a plain READ re-grant, not a write escalation.
// Without also demoting the core PTE's Prot to NONE in the sweep (clock.go),
// this mis-escalates the re-access to READ+WRITE and dirties a page that was
// never written.
func TestFaultReGrantsReadAfterSecondChanceDemotion(t *testing.T) {
	p, f := newTestPager(2, 4)
	p.Create(1)
	a := p.Extend(1)
	p.Fault(1, a) // resident, READ, referenced
	b := p.Extend(1)
	p.Fault(1, b) // resident, READ, referenced; frames exhausted

	c := p.Extend(1)
	p.Fault(1, c) // forces eviction: sweep demotes a and b to NONE, evicts one, loads c

	proc := p.procs.Lookup(1)
	ea, ok := proc.PageTable.Lookup(a, pageSize)
	require.True(t, ok)
	eb, ok := proc.PageTable.Lookup(b, pageSize)
	require.True(t, ok)

	// Exactly one of a/b was evicted (non-resident); the other survived the
	// sweep demoted to resident, prot=NONE.
	var survivorAddr uintptr
	if ea.Resident {
		require.False(t, eb.Resident)
		require.Equal(t, mem.ProtNone, ea.Prot, "the demoted survivor must carry core Prot=NONE, not stay READ")
		survivorAddr = a
	} else {
		require.True(t, eb.Resident)
		require.Equal(t, mem.ProtNone, eb.Prot, "the demoted survivor must carry core Prot=NONE, not stay READ")
		survivorAddr = b
	}

	before := f.CountOp("chprot")
	p.Fault(1, survivorAddr) // a read access to the demoted survivor

	e, _ := proc.PageTable.Lookup(survivorAddr, pageSize)
	assert.Equal(t, mem.ProtRead, e.Prot, "a read after second-chance demotion must re-grant READ, not escalate to READ+WRITE")
	assert.False(t, e.Dirty, "a read re-grant must never mark the page dirty")
	assert.Equal(t, before+1, f.CountOp("chprot"))
	last := f.Calls[len(f.Calls)-1]
	assert.Equal(t, mem.ProtRead, last.Prot, "the mmu chprot call must re-grant READ")
}

// scenario 3: a third page forces eviction of the dirty first page, writing
// it back before reusing its frame.
func TestFaultEvictsDirtyVictimOnExhaustion(t *testing.T) {
	p, f := newTestPager(2, 4)
	p.Create(1)
	a := p.Extend(1)
	p.Fault(1, a)
	p.Fault(1, a) // dirty, frame 0

	b := p.Extend(1)
	p.Fault(1, b) // frame 1, undirtied

	c := p.Extend(1)
	p.Fault(1, c) // forces eviction

	assert.Equal(t, 1, f.CountOp("disk_write"), "the dirty victim must be written back exactly once")
	assert.GreaterOrEqual(t, f.CountOp("nonresident"), 1)

	proc := p.procs.Lookup(1)
	ea, _ := proc.PageTable.Lookup(a, pageSize)
	assert.False(t, ea.Resident, "page a must have been evicted to make room for c")

	ec, ok := proc.PageTable.Lookup(c, pageSize)
	require.True(t, ok)
	assert.True(t, ec.Resident)
	assert.Equal(t, mem.ProtRead, ec.Prot)
}

// scenario 4: re-faulting an evicted page reloads it from disk, since it was
// dirtied at least once in its lifetime.
func TestFaultReloadsEvictedDirtiedPageFromDisk(t *testing.T) {
	p, f := newTestPager(2, 4)
	p.Create(1)
	a := p.Extend(1)
	p.Fault(1, a)
	p.Fault(1, a)
	b := p.Extend(1)
	p.Fault(1, b)
	c := p.Extend(1)
	p.Fault(1, c) // evicts a

	before := f.CountOp("disk_read")
	p.Fault(1, a)
	assert.Equal(t, before+1, f.CountOp("disk_read"), "reloading a page that was once dirtied must read its block back")

	proc := p.procs.Lookup(1)
	ea, ok := proc.PageTable.Lookup(a, pageSize)
	require.True(t, ok)
	assert.True(t, ea.Resident)
	assert.Equal(t, mem.ProtRead, ea.Prot)
}

// scenario 5: destroy in the eviction state of scenario 4 frees every frame
// and block back to their initial counts.
func TestDestroyReturnsTablesToInitialFreeCounts(t *testing.T) {
	p, _ := newTestPager(2, 4)
	p.Create(1)
	a := p.Extend(1)
	p.Fault(1, a)
	p.Fault(1, a)
	b := p.Extend(1)
	p.Fault(1, b)
	c := p.Extend(1)
	p.Fault(1, c)
	p.Fault(1, a)

	p.Destroy(1)
	assert.Equal(t, 2, p.frames.Free())
	assert.Equal(t, 4, p.blocks.Free())
}

// scenario 6: interleaved faults across two saturated processes must evict
// in clock order, never starving either process of its last resident page.
func TestEvictionAlternatesAcrossTwoProcesses(t *testing.T) {
	p, f := newTestPager(2, 8)
	p.Create(1)
	p.Create(2)

	a1 := p.Extend(1)
	p.Fault(1, a1)
	a2 := p.Extend(2)
	p.Fault(2, a2) // both frames now occupied, one per process

	b1 := p.Extend(1)
	p.Fault(1, b1) // forces an eviction; victim must be one of a1/a2, not a repeat pick of the same owner forever

	b2 := p.Extend(2)
	p.Fault(2, b2) // forces a second eviction

	proc1 := p.procs.Lookup(1)
	proc2 := p.procs.Lookup(2)
	residentCount := proc1.PageTable.ResidentCount() + proc2.PageTable.ResidentCount()
	assert.Equal(t, 2, residentCount, "exactly nframes pages may be resident system-wide")
	assert.Equal(t, 1, proc1.PageTable.ResidentCount(), "process 1 must keep one resident page")
	assert.Equal(t, 1, proc2.PageTable.ResidentCount(), "process 2 must keep one resident page")
	assert.GreaterOrEqual(t, f.CountOp("nonresident"), 2)
}

func TestExtendPastNblocksReturnsZero(t *testing.T) {
	p, _ := newTestPager(1, 1)
	p.Create(1)
	a := p.Extend(1)
	require.NotEqual(t, uintptr(0), a)
	assert.Equal(t, uintptr(0), p.Extend(1), "extending past nblocks must return null")
}

func TestExtendPastNumPagesReturnsZero(t *testing.T) {
	p, _ := newTestPager(4, 4)
	p.cfg.MaxAddr = p.cfg.BaseAddr + pageSize - 1 // NP == 1
	p.Create(1)
	a := p.Extend(1)
	require.NotEqual(t, uintptr(0), a)
	assert.Equal(t, uintptr(0), p.Extend(1), "extending past NP pages must return null even with free blocks")
}

func TestFaultOnUnreservedAddressIsNoop(t *testing.T) {
	p, f := newTestPager(2, 4)
	p.Create(1)
	p.Fault(1, baseAddr+99*pageSize)
	assert.Empty(t, f.Calls, "a fault outside any reserved range must not touch the mmu")
}

func TestSyslogOnUnreservedRangeReturnsNegativeOne(t *testing.T) {
	p, _ := newTestPager(2, 4)
	p.Create(1)
	a := p.Extend(1)
	p.Fault(1, a)
	assert.Equal(t, -1, p.Syslog(1, a, pageSize+1), "a range spanning past the one resident page must fail, not partially print")
}

func TestSyslogNullAddressReturnsZero(t *testing.T) {
	p, _ := newTestPager(2, 4)
	p.Create(1)
	assert.Equal(t, 0, p.Syslog(1, 0, 4))
}

func TestCreateTwiceIsIgnoredNotCorrupting(t *testing.T) {
	p, _ := newTestPager(2, 4)
	p.Create(1)
	a := p.Extend(1)
	p.Create(1) // precondition violation: must not reset the existing record
	assert.Equal(t, a, func() uintptr {
		proc := p.procs.Lookup(1)
		e := proc.PageTable.Entries[0]
		return e.Vaddr
	}())
}

func TestDestroyUnknownPidIsNoop(t *testing.T) {
	p, _ := newTestPager(2, 4)
	p.Destroy(99)
	assert.Equal(t, 2, p.frames.Free())
}
