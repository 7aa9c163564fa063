// Package mem holds the physical-resource side of the pager: the frame
// table and the backing-store block table. Both are flat, fixed-size
// ownership arrays allocated first-fit lowest-index, per spec.md §4.2.
// Neither table tracks anything beyond ownership — the page-table entries
// in package ptable are the derived view of "who is resident where."
package mem

import "fmt"

// FreePid is the sentinel owner value for an unowned frame or block.
const FreePid = -1

// Pid identifies an owning process. It is an opaque integer supplied by
// the embedding, per spec.md §3.
type Pid = int

// Prot is the tagged protection variant spec.md's Design Notes call for in
// place of the MMU ABI's raw OR-able bits (NONE/READ/READ+WRITE). The
// arithmetic-OR behaviour described in spec.md §6 belongs to the MMU
// boundary, not the core.
type Prot int

const (
	// ProtNone traps on any access.
	ProtNone Prot = iota
	// ProtRead traps on write.
	ProtRead
	// ProtReadWrite traps on nothing.
	ProtReadWrite
)

// String renders a Prot for logging.
func (p Prot) String() string {
	switch p {
	case ProtNone:
		return "NONE"
	case ProtRead:
		return "READ"
	case ProtReadWrite:
		return "READ+WRITE"
	default:
		return fmt.Sprintf("Prot(%d)", int(p))
	}
}

// FrameTable maps physical frame index to owning pid, or FreePid.
type FrameTable struct {
	owner []Pid
	free  int
}

// NewFrameTable allocates a frame table of the given size, all free.
func NewFrameTable(nframes int) *FrameTable {
	ft := &FrameTable{owner: make([]Pid, nframes), free: nframes}
	for i := range ft.owner {
		ft.owner[i] = FreePid
	}
	return ft
}

// Len returns the total number of frames.
func (ft *FrameTable) Len() int { return len(ft.owner) }

// Free returns the count of currently unowned frames.
func (ft *FrameTable) Free() int { return ft.free }

// Owner returns the pid owning frame, or FreePid.
func (ft *FrameTable) Owner(frame int) Pid { return ft.owner[frame] }

// Alloc picks the lowest-index free frame, assigns it to pid, and returns
// its index. The second return is false if no frame is free.
func (ft *FrameTable) Alloc(pid Pid) (int, bool) {
	for i, o := range ft.owner {
		if o == FreePid {
			ft.owner[i] = pid
			ft.free--
			return i, true
		}
	}
	return -1, false
}

// Release returns frame to the free pool. It is a no-op if the frame is
// already free.
func (ft *FrameTable) Release(frame int) {
	if ft.owner[frame] == FreePid {
		return
	}
	ft.owner[frame] = FreePid
	ft.free++
}

// Reassign transfers frame's ownership directly to pid without touching
// the free count, used when evicting a victim and immediately handing its
// freed frame to the faulting process in one step (spec.md §4.4's evict(),
// which never leaves the frame observably free in between).
func (ft *FrameTable) Reassign(frame int, pid Pid) {
	ft.owner[frame] = pid
}

// ReleaseAll releases every frame owned by pid and returns how many were
// released, used by Destroy (spec.md §4.1).
func (ft *FrameTable) ReleaseAll(pid Pid) int {
	n := 0
	for i, o := range ft.owner {
		if o == pid {
			ft.owner[i] = FreePid
			ft.free++
			n++
		}
	}
	return n
}

// BlockTable maps backing-store block index to owning pid, or FreePid.
// Blocks are allocated when virtual address space is reserved (Extend);
// frames are allocated on first touch (Fault). Structurally identical to
// FrameTable, but kept as a distinct type: conflating the two would let a
// frame index leak into a block-indexed slot, which spec.md's invariants
// treat as two disjoint id spaces.
type BlockTable struct {
	owner []Pid
	free  int
}

// NewBlockTable allocates a block table of the given size, all free.
func NewBlockTable(nblocks int) *BlockTable {
	bt := &BlockTable{owner: make([]Pid, nblocks), free: nblocks}
	for i := range bt.owner {
		bt.owner[i] = FreePid
	}
	return bt
}

// Len returns the total number of blocks.
func (bt *BlockTable) Len() int { return len(bt.owner) }

// Free returns the count of currently unowned blocks.
func (bt *BlockTable) Free() int { return bt.free }

// Owner returns the pid owning block, or FreePid.
func (bt *BlockTable) Owner(block int) Pid { return bt.owner[block] }

// Alloc picks the lowest-index free block, assigns it to pid, and returns
// its index. The second return is false if no block is free.
func (bt *BlockTable) Alloc(pid Pid) (int, bool) {
	for i, o := range bt.owner {
		if o == FreePid {
			bt.owner[i] = pid
			bt.free--
			return i, true
		}
	}
	return -1, false
}

// ReleaseAll releases every block owned by pid and returns how many were
// released.
func (bt *BlockTable) ReleaseAll(pid Pid) int {
	n := 0
	for i, o := range bt.owner {
		if o == pid {
			bt.owner[i] = FreePid
			bt.free++
			n++
		}
	}
	return n
}
