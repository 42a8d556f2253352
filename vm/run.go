package vm

import (
	"github.com/strinsberg/lt64/internal/debug"
)

// Run drives the dispatch loop to completion without the debug
// channel, mirroring the teacher's ExecProgram (KTStephano-GVM
// vm/exec.go): step until Step reports done, then report the final
// fault (nil on a clean HALT).
func (c *Context) Run() error {
	for {
		if done := c.Step(); done {
			return c.err
		}
	}
}

// RunDebug drives the dispatch loop under the spec.md §4.3 debug
// channel: before each step (unless in skip-to-breakpoint mode), flush
// stdout, print a debug frame to stderr, and block on a prompt. Empty
// input steps once; non-empty input enters skip mode until BRKPNT
// clears it. Grounded on the teacher's ExecProgramDebugMode
// (KTStephano-GVM vm/exec.go, vm/run.go), stripped to spec.md's single
// step/skip gate in place of the teacher's line-breakpoint map.
func (c *Context) RunDebug() error {
	for {
		if !c.skipping {
			c.Stdout.Flush()
			mnemonic := c.nextMnemonic()
			debug.Frame(c.Stderr, c.DS, c.RS, c.PC, mnemonic)
			c.Stderr.Flush()

			nonEmpty, err := debug.Prompt(c.Stdin, c.Stderr)
			c.Stderr.Flush()
			if err != nil {
				// End-of-input on the debug prompt itself behaves like a
				// step request: let Step observe EOF on the program's own
				// reads instead of stalling forever on the REPL.
			} else if nonEmpty {
				c.skipping = true
			}
		}

		if done := c.Step(); done {
			return c.err
		}
	}
}

// nextMnemonic names the opcode about to execute.
func (c *Context) nextMnemonic() string {
	op := Opcode(byte(uint16(c.Mem[c.PC])))
	return op.String()
}
