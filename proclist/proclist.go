// Package proclist is the process registry: an insertion-ordered,
// ring-iterable collection of process records (spec.md §4.3). It is the
// "thin linked-list helper" spec.md §1 calls design-internal rather than
// interesting — a direct, idiomatic-Go re-expression of
// original_source/src/linked_list.c's createNode/insert/removeProcess/
// searchByPid, extended with the successor-with-wrap operation the clock
// (spec.md §4.5) needs and the original never implemented.
package proclist

import (
	"fmt"
	"strings"

	"uvmpager/mem"
	"uvmpager/ptable"
)

// Process is one registered process: its pid, its page table, and the
// resident-frame counter spec.md §3 calls "frames_allocated."
type Process struct {
	Pid             mem.Pid
	PageTable       *ptable.PageTable
	FramesAllocated int

	next *Process
	prev *Process
}

// Registry is a doubly linked ring of Process records, iterable in stable
// insertion order for the replacement clock (spec.md §2 "Process
// Registry").
type Registry struct {
	head  *Process
	tail  *Process
	byPid map[mem.Pid]*Process
	n     int
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byPid: make(map[mem.Pid]*Process)}
}

// Len returns the number of registered processes.
func (r *Registry) Len() int { return r.n }

// Lookup returns the process record for pid, or nil.
func (r *Registry) Lookup(pid mem.Pid) *Process {
	return r.byPid[pid]
}

// Insert appends a new process record to the tail of the ring. Precondition
// (per spec.md §4.1 create): pid is not already registered.
func (r *Registry) Insert(pid mem.Pid, np int) *Process {
	p := &Process{Pid: pid, PageTable: ptable.New(np)}
	r.byPid[pid] = p
	if r.head == nil {
		p.next = p
		p.prev = p
		r.head = p
		r.tail = p
	} else {
		p.prev = r.tail
		p.next = r.head
		r.tail.next = p
		r.head.prev = p
		r.tail = p
	}
	r.n++
	return p
}

// Head returns the first-inserted still-registered process, or nil if the
// registry is empty.
func (r *Registry) Head() *Process { return r.head }

// Successor returns the next process after p in ring order, wrapping to
// Head. It returns nil if the registry is empty.
func (r *Registry) Successor(p *Process) *Process {
	if r.head == nil {
		return nil
	}
	if p == nil {
		return r.head
	}
	return p.next
}

// Remove deletes pid from the registry. It is a no-op if pid is not
// registered (spec.md §4.1 destroy: "idempotent for unknown pid").
// onBefore, if non-nil, is invoked with the record being removed and its
// ring successor before the link is severed — the caller (the clock, per
// spec.md §4.5/§9) uses this to resync a cursor that was pointing at p
// before the record disappears.
func (r *Registry) Remove(pid mem.Pid, onBefore func(removed, successor *Process)) {
	p, ok := r.byPid[pid]
	if !ok {
		return
	}
	var successor *Process
	if r.n > 1 {
		successor = p.next
	}
	if onBefore != nil {
		onBefore(p, successor)
	}

	delete(r.byPid, pid)
	r.n--
	if r.n == 0 {
		r.head = nil
		r.tail = nil
		p.next = nil
		p.prev = nil
		return
	}
	p.prev.next = p.next
	p.next.prev = p.prev
	if r.head == p {
		r.head = p.next
	}
	if r.tail == p {
		r.tail = p.prev
	}
	p.next = nil
	p.prev = nil
}

// String renders a readable process dump, the Go re-expression of
// original_source/src/linked_list.c's printList debug helper
// (spec.md SPEC_FULL EXPANSION C.1). It takes no lock of its own, same as
// the original's bare printf walk; pager.Pager.String calls it with the
// pager's lock held.
func (r *Registry) String() string {
	if r.head == nil {
		return "(empty registry)"
	}
	var b strings.Builder
	p := r.head
	for i := 0; i < r.n; i++ {
		fmt.Fprintf(&b, "pid=%d resident=%d/%d\n", p.Pid, p.PageTable.ResidentCount(), p.PageTable.Cap())
		p = p.next
	}
	return b.String()
}
