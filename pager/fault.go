package pager

import (
	"github.com/rs/zerolog/log"

	"uvmpager/mem"
)

// Fault implements the per-access state machine of spec.md §4.4. If addr
// falls outside any reserved range for pid, the call is a no-op: the
// embedding contract guarantees fault is only invoked for previously
// extended addresses (spec.md §4.4, §7).
func (p *Pager) Fault(pid mem.Pid, addr uintptr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assertInitialized()

	proc := p.procs.Lookup(pid)
	if proc == nil {
		return
	}
	e, ok := proc.PageTable.Lookup(addr, uintptr(p.cfg.PageSize))
	if !ok || !e.Reserved {
		return
	}

	switch {
	case !e.Resident && !e.EverDirtied():
		// never loaded, or evicted before it was ever written (its block
		// holds no data): demand-allocate a frame, zero-fill, grant READ.
		frame := p.acquireFrame(pid)
		p.mmu.ZeroFill(frame)
		p.mmu.Resident(pid, e.Vaddr, frame, mem.ProtRead)
		e.Frame = frame
		e.Resident = true
		e.Prot = mem.ProtRead
		e.Referenced = true
		e.Dirty = false
		proc.FramesAllocated++
		log.Debug().Int("pid", pid).Uint64("vaddr", uint64(addr)).Int("frame", frame).
			Msg("fault: first touch, zero-filled")

	case e.Resident && e.Prot == mem.ProtNone:
		p.mmu.Chprot(pid, e.Vaddr, mem.ProtRead)
		e.Prot = mem.ProtRead
		e.Referenced = true
		log.Debug().Int("pid", pid).Uint64("vaddr", uint64(addr)).
			Msg("fault: re-granted READ after second-chance demotion")

	case e.Resident && e.Prot == mem.ProtRead:
		p.mmu.Chprot(pid, e.Vaddr, mem.ProtReadWrite)
		e.Prot = mem.ProtReadWrite
		e.Referenced = true
		e.MarkDirty()
		log.Debug().Int("pid", pid).Uint64("vaddr", uint64(addr)).
			Msg("fault: escalated to READ+WRITE")

	case !e.Resident && e.EverDirtied():
		// was evicted at some point in its life: reload from block.
		frame := p.acquireFrame(pid)
		p.mmu.DiskRead(e.Block, frame)
		p.mmu.Resident(pid, e.Vaddr, frame, mem.ProtRead)
		e.Frame = frame
		e.Resident = true
		e.Prot = mem.ProtRead
		e.Referenced = true
		proc.FramesAllocated++
		log.Debug().Int("pid", pid).Uint64("vaddr", uint64(addr)).Int("frame", frame).
			Msg("fault: reloaded from disk after eviction")

	default:
		// e.Resident && e.Prot == ProtReadWrite: already fully granted,
		// nothing to do. The embedding should not re-fault this access,
		// but treating it as a no-op is harmless and matches spec.md §4.4
		// defining no further transition out of resident/READ+WRITE.
	}
}

// acquireFrame returns a frame for pid to use, allocating a free one if
// available or evicting a victim otherwise (spec.md §4.4's evict() call).
// fault never allocates blocks (spec.md's DATA MODEL invariant) — this
// only ever touches the frame table.
func (p *Pager) acquireFrame(pid mem.Pid) int {
	if frame, ok := p.frames.Alloc(pid); ok {
		return frame
	}
	return p.evict(pid)
}

// evict runs the global second-chance sweep (spec.md §4.5), demotes the
// selected victim (spec.md §4.4's evict() steps 1-4), and reassigns the
// now-free frame to newOwner, returning its index.
func (p *Pager) evict(newOwner mem.Pid) int {
	v := p.cur.Evict(p.procs, p.mmu)
	victim := v.Pte
	owner := v.Owner

	if victim.Dirty {
		p.mmu.DiskWrite(victim.Block, victim.Frame)
		victim.Dirty = false
		log.Debug().Int("pid", owner.Pid).Uint64("vaddr", uint64(victim.Vaddr)).Int("block", victim.Block).
			Msg("evict: wrote back dirty victim")
	}
	p.mmu.Nonresident(owner.Pid, victim.Vaddr)
	frame := victim.Frame
	victim.Resident = false
	victim.Prot = mem.ProtNone
	victim.Frame = -1
	owner.FramesAllocated--

	log.Debug().Int("pid", owner.Pid).Uint64("vaddr", uint64(victim.Vaddr)).Int("frame", frame).
		Msg("evict: victim demoted, frame reclaimed")

	p.frames.Reassign(frame, newOwner)
	return frame
}
