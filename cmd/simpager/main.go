// Command simpager is a demo harness for package pager. It wires a
// pager.Pager to an in-memory mmu.Fake, replays a scripted scenario of the
// shape spec.md §8 describes, and optionally drops into an interactive
// console for issuing further create/extend/fault/syslog/destroy commands
// by hand.
//
// The flag surface and console loop are grounded on
// rcornwell-S370/main.go's getopt.StringLong/BoolLong flags and
// rcornwell-S370/command/reader/reader.go's liner.NewLiner prompt loop,
// re-targeted from an S/370 config file to the pager's own nframes/nblocks
// parameters (SPEC_FULL EXPANSION C.2).
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	getopt "github.com/pborman/getopt/v2"
	"github.com/peterh/liner"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"uvmpager/mem"
	"uvmpager/mmu"
	"uvmpager/pager"
)

func main() {
	optFrames := getopt.IntLong("frames", 'f', 2, "Number of physical frames")
	optBlocks := getopt.IntLong("blocks", 'b', 4, "Number of backing-store blocks")
	optInteractive := getopt.BoolLong("interactive", 'i', "Drop into an interactive console after the demo scenario")
	optVerbose := getopt.BoolLong("verbose", 'v', "Log at debug level instead of info")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	level := zerolog.InfoLevel
	if *optVerbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	const pageSize = 4096
	const baseAddr = 0x600000000000

	fake := mmu.NewFake(*optFrames, *optBlocks, pageSize)
	p := pager.New(fake, pager.Config{
		BaseAddr: baseAddr,
		MaxAddr:  baseAddr + uintptr(*optFrames+*optBlocks+4)*pageSize - 1,
		PageSize: pageSize,
	})
	p.Init(*optFrames, *optBlocks)

	log.Info().Int("nframes", *optFrames).Int("nblocks", *optBlocks).Msg("simpager: initialized")

	runScenario(p, baseAddr, pageSize)

	if *optInteractive {
		console(p)
	}
}

// runScenario replays spec.md §8's scenario 1-2: create a process, extend
// it once, fault it for read, dump it via syslog, then fault it for write.
func runScenario(p *pager.Pager, baseAddr uintptr, pageSize int) {
	const demoPid mem.Pid = 1
	p.Create(demoPid)
	a := p.Extend(demoPid)
	if a == 0 {
		log.Error().Msg("simpager: demo scenario could not extend process 1 (out of blocks?)")
		return
	}

	p.Fault(demoPid, a) // first touch: zero_fill, resident READ
	p.Syslog(demoPid, a, 4)

	p.Fault(demoPid, a) // write: chprot to READ+WRITE, dirty

	log.Info().Uint64("vaddr", uint64(a)).Msg("simpager: demo scenario complete")
}

// console runs an interactive read-eval-print loop over the pager, one
// command per line: create <pid>, extend <pid>, fault <pid> <hex-addr>,
// syslog <pid> <hex-addr> <len>, destroy <pid>, dump, quit.
func console(p *pager.Pager) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		cmd, err := line.Prompt("simpager> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return
			}
			log.Error().Err(err).Msg("simpager: error reading command")
			return
		}
		line.AppendHistory(cmd)
		if quit := dispatch(p, cmd); quit {
			return
		}
	}
}

func dispatch(p *pager.Pager, cmd string) (quit bool) {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return false
	}

	switch fields[0] {
	case "quit", "exit":
		return true

	case "create":
		pid, ok := parsePid(fields, 1)
		if !ok {
			return false
		}
		p.Create(pid)

	case "extend":
		pid, ok := parsePid(fields, 1)
		if !ok {
			return false
		}
		vaddr := p.Extend(pid)
		fmt.Printf("extend(%d) -> 0x%x\n", pid, vaddr)

	case "fault":
		pid, ok := parsePid(fields, 1)
		if !ok || len(fields) < 3 {
			fmt.Println("usage: fault <pid> <hex-addr>")
			return false
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(fields[2], "0x"), 16, 64)
		if err != nil {
			fmt.Println("bad address:", err)
			return false
		}
		p.Fault(pid, uintptr(addr))

	case "syslog":
		pid, ok := parsePid(fields, 1)
		if !ok || len(fields) < 4 {
			fmt.Println("usage: syslog <pid> <hex-addr> <len>")
			return false
		}
		addr, err := strconv.ParseUint(strings.TrimPrefix(fields[2], "0x"), 16, 64)
		if err != nil {
			fmt.Println("bad address:", err)
			return false
		}
		length, err := strconv.Atoi(fields[3])
		if err != nil {
			fmt.Println("bad length:", err)
			return false
		}
		if rc := p.Syslog(pid, uintptr(addr), length); rc != 0 {
			fmt.Println("syslog failed:", rc)
		}

	case "destroy":
		pid, ok := parsePid(fields, 1)
		if !ok {
			return false
		}
		p.Destroy(pid)

	case "dump":
		fmt.Print(p.String())

	default:
		fmt.Println("unknown command:", fields[0])
	}
	return false
}

func parsePid(fields []string, idx int) (mem.Pid, bool) {
	if len(fields) <= idx {
		fmt.Println("usage: <cmd> <pid>")
		return 0, false
	}
	n, err := strconv.Atoi(fields[idx])
	if err != nil {
		fmt.Println("bad pid:", err)
		return 0, false
	}
	return mem.Pid(n), true
}
