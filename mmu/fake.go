package mmu

import "uvmpager/mem"

// Call records a single callback the Fake received, in order, for tests
// and the demo harness to assert against (e.g. "exactly one DiskWrite for
// the dirty page before eviction").
type Call struct {
	Op     string // "resident", "nonresident", "chprot", "zero_fill", "disk_read", "disk_write"
	Pid    mem.Pid
	Vaddr  uintptr
	Frame  int
	Block  int
	Prot   mem.Prot
}

// Fake is a deterministic in-memory Mmu used by tests and cmd/simpager. It
// owns the physical memory buffer and a simulated disk, and records every
// callback it receives.
type Fake struct {
	pageSize int
	pmem     []byte
	disk     [][]byte
	Calls    []Call
}

// NewFake allocates a Fake with nframes*pageSize bytes of physical memory
// and nblocks blocks of backing store, each pageSize bytes.
func NewFake(nframes, nblocks, pageSize int) *Fake {
	disk := make([][]byte, nblocks)
	for i := range disk {
		disk[i] = make([]byte, pageSize)
	}
	return &Fake{
		pageSize: pageSize,
		pmem:     make([]byte, nframes*pageSize),
		disk:     disk,
	}
}

func (f *Fake) record(c Call) { f.Calls = append(f.Calls, c) }

// Resident implements Mmu.
func (f *Fake) Resident(pid mem.Pid, vaddr uintptr, frame int, prot mem.Prot) {
	f.record(Call{Op: "resident", Pid: pid, Vaddr: vaddr, Frame: frame, Prot: prot})
}

// Nonresident implements Mmu.
func (f *Fake) Nonresident(pid mem.Pid, vaddr uintptr) {
	f.record(Call{Op: "nonresident", Pid: pid, Vaddr: vaddr})
}

// Chprot implements Mmu.
func (f *Fake) Chprot(pid mem.Pid, vaddr uintptr, prot mem.Prot) {
	f.record(Call{Op: "chprot", Pid: pid, Vaddr: vaddr, Prot: prot})
}

// ZeroFill implements Mmu.
func (f *Fake) ZeroFill(frame int) {
	f.record(Call{Op: "zero_fill", Frame: frame})
	off := frame * f.pageSize
	for i := off; i < off+f.pageSize; i++ {
		f.pmem[i] = 0
	}
}

// DiskRead implements Mmu.
func (f *Fake) DiskRead(block, frame int) {
	f.record(Call{Op: "disk_read", Block: block, Frame: frame})
	copy(f.pmem[frame*f.pageSize:(frame+1)*f.pageSize], f.disk[block])
}

// DiskWrite implements Mmu.
func (f *Fake) DiskWrite(block, frame int) {
	f.record(Call{Op: "disk_write", Block: block, Frame: frame})
	copy(f.disk[block], f.pmem[frame*f.pageSize:(frame+1)*f.pageSize])
}

// Pmem implements Mmu.
func (f *Fake) Pmem() []byte { return f.pmem }

// WriteByte writes a single byte into physical memory at the given frame
// and in-page offset, simulating the process actually touching its page.
// The write is not recorded in Calls.
func (f *Fake) WriteByte(frame, off int, v byte) {
	f.pmem[frame*f.pageSize+off] = v
}

// LastOp returns the operation name of the most recent call, or "" if none.
func (f *Fake) LastOp() string {
	if len(f.Calls) == 0 {
		return ""
	}
	return f.Calls[len(f.Calls)-1].Op
}

// CountOp returns how many times op was recorded.
func (f *Fake) CountOp(op string) int {
	n := 0
	for _, c := range f.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}
