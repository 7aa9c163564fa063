// Package ptable is the per-process page table: a fixed-length array of
// page-table entries indexed by page number within the process's virtual
// range (spec.md §3, §4.6). Reservations fill in increasing index order
// and always form a contiguous prefix, so lookup-by-address is a linear
// scan that stops at the first unreserved slot.
package ptable

import "uvmpager/mem"

// Pte is a single page-table entry. Fields mirror spec.md §3 exactly.
type Pte struct {
	Reserved   bool
	Resident   bool
	Prot       mem.Prot
	Referenced bool
	Dirty      bool
	Vaddr      uintptr
	Frame      int
	Block      int

	// everDirtied records whether this page has ever been written, i.e.
	// whether its block holds real data. A page that was reserved and
	// faulted but never written is still logically zero, so a later
	// reload must zero-fill rather than read stale/absent block data.
	// This resolves spec.md §9's open question: "the safe rule is: if a
	// PTE has never been dirty, load via zero_fill instead of disk_read."
	everDirtied bool
}

// EverDirtied reports whether this page has ever transitioned to dirty.
func (p *Pte) EverDirtied() bool { return p.everDirtied }

// MarkDirty sets Dirty and records that this page has now been dirtied at
// least once in its lifetime (sticky, unlike Dirty itself which clears on
// writeback).
func (p *Pte) MarkDirty() {
	p.Dirty = true
	p.everDirtied = true
}

// PageTable is one process's array of PTEs, one per page of the fixed
// virtual range shared by every process.
type PageTable struct {
	Entries []Pte
	// next is the index of the first unreserved slot, i.e. the number of
	// slots reserved so far. Reservations are a contiguous prefix
	// [0, next), per spec.md §4.6.
	next int
}

// New allocates a page table of np entries, all zeroed per spec.md §3
// (vaddr=-1, frame=-1, block=-1 is the zero-value convention here since
// valid vaddr/frame/block are never negative; callers must check Reserved
// before trusting Vaddr/Frame/Block).
func New(np int) *PageTable {
	pt := &PageTable{Entries: make([]Pte, np)}
	for i := range pt.Entries {
		pt.Entries[i].Frame = -1
		pt.Entries[i].Block = -1
		pt.Entries[i].Vaddr = ^uintptr(0)
	}
	return pt
}

// Cap returns the total number of page slots (NP in spec.md §3).
func (pt *PageTable) Cap() int { return len(pt.Entries) }

// Reserved returns the count of slots handed out by Extend so far.
func (pt *PageTable) Reserved() int { return pt.next }

// Full reports whether every page slot has been reserved.
func (pt *PageTable) Full() bool { return pt.next >= len(pt.Entries) }

// ReserveNext reserves the lowest-index unreserved slot, binding it to
// vaddr and block, and returns a pointer to the new entry. It must only be
// called when Full() is false.
func (pt *PageTable) ReserveNext(vaddr uintptr, block int) *Pte {
	i := pt.next
	pt.next++
	e := &pt.Entries[i]
	e.Reserved = true
	e.Vaddr = vaddr
	e.Block = block
	return e
}

// Lookup finds the PTE whose [vaddr, vaddr+pageSize) range contains addr.
// Because reservations are a contiguous prefix in increasing vaddr order,
// this terminates at the first unreserved slot (spec.md §4.6).
func (pt *PageTable) Lookup(addr uintptr, pageSize uintptr) (*Pte, bool) {
	for i := 0; i < pt.next; i++ {
		e := &pt.Entries[i]
		if addr >= e.Vaddr && addr < e.Vaddr+pageSize {
			return e, true
		}
	}
	return nil, false
}

// ResidentCount returns how many entries are currently resident.
func (pt *PageTable) ResidentCount() int {
	n := 0
	for i := range pt.Entries {
		if pt.Entries[i].Resident {
			n++
		}
	}
	return n
}
