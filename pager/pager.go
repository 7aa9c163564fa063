// Package pager implements the public Pager API (spec.md §4.1): init,
// create, extend, fault, syslog, destroy, each serialised through a single
// global lock (spec.md §5). It wires together mem's frame/block tables,
// ptable's per-process page tables, proclist's registry, clock's
// second-chance cursor, and the externally-supplied mmu.Mmu.
//
// Locking discipline follows
// biscuit/src/vm/as.go's Lock_pmap/Unlock_pmap/Lockassert_pmap pattern:
// every public entry point acquires the lock on entry and releases it on
// every exit path (a deferred Unlock), including panics.
package pager

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"uvmpager/clock"
	"uvmpager/mem"
	"uvmpager/mmu"
	"uvmpager/proclist"
)

// Config carries the embedding's virtual-range constants (spec.md §3) and
// page size. BASEADDR/MAXADDR are inclusive.
type Config struct {
	BaseAddr uintptr
	MaxAddr  uintptr
	PageSize int
}

// NumPages returns NP = (MAXADDR - BASEADDR + 1) / PS, per spec.md §3.
func (c Config) NumPages() int {
	return int((c.MaxAddr-c.BaseAddr+1) / uintptr(c.PageSize))
}

// Pager is the pager context: the single heap-allocated structure spec.md
// §9's Design Notes call for in place of the original's file-scope
// globals, with a single sync.Mutex guarding every field (spec.md §5).
type Pager struct {
	mu sync.Mutex

	cfg Config
	mmu mmu.Mmu

	frames *mem.FrameTable
	blocks *mem.BlockTable
	procs  *proclist.Registry
	cur    clock.Cursor

	initialized bool
}

// New allocates an uninitialized Pager. Call Init before any other method.
func New(m mmu.Mmu, cfg Config) *Pager {
	return &Pager{mmu: m, cfg: cfg, procs: proclist.New()}
}

// SetLogger redirects this package's structured logging.
func SetLogger(l zerolog.Logger) {
	log.Logger = l
}

// Init validates nframes/nblocks and allocates the frame and block tables
// (spec.md §4.1). Both must be positive; an invalid call is fatal, mirroring
// original_source/src/pager.c's pager_init printf+exit(EXIT_FAILURE) and
// biscuit/src/mem/mem.go's Phys_init validate-or-panic pattern, raised
// through the structured logger instead of bare stdout (SPEC_FULL A.1).
func (p *Pager) Init(nframes, nblocks int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if nframes <= 0 || nblocks <= 0 {
		log.Fatal().Int("nframes", nframes).Int("nblocks", nblocks).
			Msg("pager: init requires positive nframes and nblocks")
		os.Exit(1)
	}
	p.frames = mem.NewFrameTable(nframes)
	p.blocks = mem.NewBlockTable(nblocks)
	p.cur = clock.Cursor{}
	p.initialized = true
}

// assertInitialized panics if Init has not yet succeeded, mirroring
// biscuit/src/vm/as.go's Lockassert_pmap precondition-assertion style.
func (p *Pager) assertInitialized() {
	if !p.initialized {
		panic(invariantf("pager: method called before Init succeeded").Error())
	}
}

// Create registers pid with an empty page table of NumPages() entries
// (spec.md §4.1). A Create for a pid that is already registered is logged
// as a warning and ignored; the existing record is kept.
func (p *Pager) Create(pid mem.Pid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assertInitialized()

	if p.procs.Lookup(pid) != nil {
		// Precondition violation (spec.md §4.1: "pid not already
		// registered; on violation behaviour is unspecified"). We choose
		// to log and ignore rather than corrupt the existing record.
		log.Warn().Err(invariantf("pager: create called twice for pid %d", pid)).Send()
		return
	}
	p.procs.Insert(pid, p.cfg.NumPages())
}

// Extend reserves the next unreserved page for pid and binds it to a fresh
// backing block (spec.md §4.1). It returns the reserved page's virtual
// address, or 0 (representing null) if no free block remains or pid has
// exhausted its virtual range. No MMU call is made and no frame is
// allocated — extend never allocates frames (spec.md's DATA MODEL
// invariant).
func (p *Pager) Extend(pid mem.Pid) uintptr {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assertInitialized()

	proc := p.procs.Lookup(pid)
	if proc == nil {
		return 0
	}
	if proc.PageTable.Full() {
		return 0
	}
	block, ok := p.blocks.Alloc(pid)
	if !ok {
		return 0
	}
	vaddr := p.cfg.BaseAddr + uintptr(proc.PageTable.Reserved())*uintptr(p.cfg.PageSize)
	proc.PageTable.ReserveNext(vaddr, block)
	log.Debug().Int("pid", pid).Uint64("vaddr", uint64(vaddr)).Int("block", block).
		Msg("pager: extend reserved a page")
	return vaddr
}

// Destroy releases all frames and blocks owned by pid and removes it from
// the registry (spec.md §4.1). If the registry becomes empty, the frame
// and block tables are released. Unknown pids are a silent no-op.
func (p *Pager) Destroy(pid mem.Pid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assertInitialized()

	proc := p.procs.Lookup(pid)
	if proc == nil {
		return
	}
	p.procs.Remove(pid, func(removed, successor *proclist.Process) {
		p.cur.OnDestroy(removed, successor)
	})
	p.frames.ReleaseAll(pid)
	p.blocks.ReleaseAll(pid)
	log.Debug().Int("pid", pid).Msg("pager: destroy released process resources")

	if p.procs.Len() == 0 {
		p.frames = mem.NewFrameTable(p.frames.Len())
		p.blocks = mem.NewBlockTable(p.blocks.Len())
	}
}

// Syslog reads len bytes starting at addr from pid's address space through
// the MMU-exposed physical memory, per spec.md §4.1, printing each byte as
// two lowercase hex digits followed by a trailing newline. It returns 0 on
// success, -1 if the range touches an unreserved or non-resident page (no
// partial output is emitted in that case), and 0 immediately if addr is
// the null address (0).
func (p *Pager) Syslog(pid mem.Pid, addr uintptr, length int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assertInitialized()

	if addr == 0 {
		return 0
	}
	proc := p.procs.Lookup(pid)
	if proc == nil {
		return -1
	}

	ps := uintptr(p.cfg.PageSize)
	out := make([]byte, 0, length*2+1)
	hex := "0123456789abcdef"
	for i := 0; i < length; i++ {
		a := addr + uintptr(i)
		e, ok := proc.PageTable.Lookup(a, ps)
		if !ok || !e.Resident {
			return -1
		}
		phys := e.Frame*p.cfg.PageSize + int(a-e.Vaddr)
		b := p.mmu.Pmem()[phys]
		out = append(out, hex[b>>4], hex[b&0xf])
	}
	out = append(out, '\n')
	os.Stdout.Write(out)
	return 0
}

// String renders a debug dump of the registered processes, delegating to
// proclist.Registry.String (SPEC_FULL EXPANSION C.1). Acquires the lock like
// any other public method, unlike the registry's own String which assumes
// the caller already holds it.
func (p *Pager) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assertInitialized()
	return p.procs.String()
}

// invariantf wraps an internal invariant violation with call-site context,
// grounded on other_examples/15be24eb_containerd-nydus-snapshotter and
// other_examples/fe6a45bc_talyz-systemd_exporter's use of pkg/errors to
// annotate low-level memory failures (SPEC_FULL A.2). Unlike the
// recoverable error paths above (nil/-1/no-op), these represent a broken
// caller contract or a broken core invariant: assertInitialized panics
// with one, and Create logs one as a warning before ignoring the call.
func invariantf(format string, args ...interface{}) error {
	return errors.Errorf(format, args...)
}
