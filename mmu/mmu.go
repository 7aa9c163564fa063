// Package mmu defines the external MMU ABI the pager core consumes
// (spec.md §6). The real MMU — residency tracking, protection traps, and
// the backing disk — is explicitly out of scope for the core (spec.md
// §1); this package is only the boundary interface plus a deterministic
// in-memory Fake for tests and the demo harness.
package mmu

import "uvmpager/mem"

// Mmu is the callback surface the pager drives. Implementations must not
// call back into the pager (spec.md §5): every method here is expected to
// be synchronous and non-reentrant with respect to the pager's own lock.
type Mmu interface {
	// Resident installs the mapping (pid, vaddr) -> frame with the given
	// protection.
	Resident(pid mem.Pid, vaddr uintptr, frame int, prot mem.Prot)
	// Nonresident removes the mapping for (pid, vaddr).
	Nonresident(pid mem.Pid, vaddr uintptr)
	// Chprot changes the protection of an already-resident mapping.
	Chprot(pid mem.Pid, vaddr uintptr, prot mem.Prot)
	// ZeroFill zeroes the physical frame.
	ZeroFill(frame int)
	// DiskRead copies block into frame.
	DiskRead(block, frame int)
	// DiskWrite copies frame into block.
	DiskWrite(block, frame int)
	// Pmem returns the host-provided physical memory buffer, sized
	// nframes*PageSize, that Syslog (spec.md §4.1) reads through.
	Pmem() []byte
}
