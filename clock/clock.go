// Package clock implements the global second-chance (clock) replacement
// cursor spanning all resident pages of all processes (spec.md §4.5). It
// is the cross-process sweep spec.md explicitly specifies over the
// alternative, buggy, single-process variant also found in the original
// source (spec.md §4.5 "Open question").
//
// The sweep shape is grounded on
// other_examples/eac8e1a1_mtrqq-squirrel__pkg-page-pool.go.go's
// clockPagePool.evictPage: a bounded scan (at most twice around every
// candidate slot) clearing reference bits until an unreferenced resident
// page is found, generalized from squirrel's single flat pool to spec.md's
// ring of per-process page tables.
package clock

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"uvmpager/mem"
	"uvmpager/mmu"
	"uvmpager/proclist"
	"uvmpager/ptable"
)

// Cursor is the global (process, page-slot) clock pointer. The zero value
// is "(none, -1)" per spec.md §3, ready to use.
type Cursor struct {
	proc *proclist.Process
	idx  int // -1 means "not yet positioned within proc"
}

// Victim describes the PTE selected for eviction and the process that
// owns it.
type Victim struct {
	Owner *proclist.Process
	Pte   *ptable.Pte
}

// OnDestroy must be called before a process is unlinked from the registry
// (spec.md §4.5: "On destroy(P), if P is the cursor's process, the cursor
// moves to P's successor with i=-1 before P is removed."). successor may
// be nil if the registry will be empty afterward.
func (c *Cursor) OnDestroy(removed, successor *proclist.Process) {
	if c.proc == removed {
		c.proc = successor
		c.idx = -1
	}
}

// Evict runs the second-chance sweep and returns the selected victim. reg
// is the process registry to walk (registry order defines ring order,
// spec.md §4.5 step 1-2); m is the MMU to issue the demotion Chprot calls
// against while sweeping referenced pages. Evict panics if the registry
// holds no resident page at all — the fault handler only calls Evict when
// no frame is free, which by spec.md's invariants means every frame (and
// therefore at least one page) is resident somewhere.
func (c *Cursor) Evict(reg *proclist.Registry, m mmu.Mmu) Victim {
	if c.proc == nil {
		c.proc = reg.Head()
		c.idx = -1
	}

	// Upper bound on steps before we must have found a victim: twice the
	// total number of reserved slots across the registry, so that every
	// slot gets at most one "referenced, clear and continue" pass before
	// a second pass must find it unreferenced (or resident nowhere, which
	// is a caller contract violation).
	total := 0
	for p := reg.Head(); p != nil; {
		total += p.PageTable.Reserved()
		p = reg.Successor(p)
		if p == reg.Head() {
			break
		}
	}

	for steps := 0; total > 0 && steps <= 2*total+2; steps++ {
		c.advance(reg)
		if c.proc == nil {
			break
		}
		e := &c.proc.PageTable.Entries[c.idx]
		if !e.Resident {
			continue
		}
		if e.Referenced {
			e.Referenced = false
			e.Prot = mem.ProtNone
			m.Chprot(c.proc.Pid, e.Vaddr, mem.ProtNone)
			log.Debug().Int("pid", c.proc.Pid).Uint64("vaddr", uint64(e.Vaddr)).
				Msg("clock: second chance granted, demoted to NONE")
			continue
		}
		return Victim{Owner: c.proc, Pte: e}
	}

	log.Error().Msg("clock: swept entire registry without finding a resident, unreferenced page")
	panic("clock: no victim found; caller violated the evict() precondition")
}

// advance moves the cursor forward one page slot in ring order, per
// spec.md §4.5 step 2.
func (c *Cursor) advance(reg *proclist.Registry) {
	if c.proc == nil {
		return
	}
	for {
		c.idx++
		if c.idx < c.proc.PageTable.Reserved() {
			return
		}
		c.proc = reg.Successor(c.proc)
		c.idx = -1
		if c.proc == nil {
			return
		}
		if c.proc.PageTable.Reserved() == 0 {
			// Skip processes with no reserved (hence no resident) pages
			// entirely, per spec.md §4.5 step 2's "Skip processes with no
			// resident pages."
			continue
		}
		c.idx = 0
		return
	}
}

// SetLogger allows callers to redirect clock package logging; defaults to
// the global zerolog logger.
func SetLogger(l zerolog.Logger) {
	log.Logger = l
}
