package vm

import (
	"bufio"
	"errors"

	"github.com/strinsberg/lt64/internal/memory"
	"github.com/strinsberg/lt64/internal/word"
)

// Options are the two compile-time modes spec.md §6 recognizes as
// runtime flags on this implementation: Testing (dump the final data
// stack to stdout on clean halt) and Debugging (the §4.3 debug
// channel).
type Options struct {
	Testing   bool
	Debugging bool
}

// Sentinel errors for every structural fault the dispatch loop can
// raise, matching the teacher's errProgramFinished/errSegmentationFault
// style of comparing VM errors with ==. ExitCode maps these (and nil,
// for a clean halt) to the spec.md §6 process exit codes; anything else
// is a programming error in this package.
var (
	ErrPCOutOfBounds    = errors.New("program counter out of bounds")
	ErrStackOverflow    = errors.New("data stack overflow")
	ErrStackUnderflow   = errors.New("data stack underflow")
	ErrReturnOverflow   = errors.New("return stack overflow")
	ErrReturnUnderflow  = errors.New("return stack underflow")
	ErrUnknownOpcode    = errors.New("unknown opcode")
)

// ExitCode maps a dispatch-loop error (or nil, for success) to the
// process exit code spec.md §6 specifies.
func ExitCode(err error) int {
	switch err {
	case nil:
		return 0
	case ErrStackOverflow:
		return 4
	case ErrStackUnderflow:
		return 5
	case ErrPCOutOfBounds:
		return 6
	case ErrUnknownOpcode:
		return 7
	case ErrReturnOverflow:
		return 10
	case ErrReturnUnderflow:
		return 11
	default:
		return 7
	}
}

// Context is one LT64 execution context: the three owned memory
// regions, the registers the dispatch loop advances, the I/O streams
// opcodes read and write through, and the debug channel's skip-mode
// latch. Grounded on the teacher's VM struct (vm/vm.go), generalized
// from a flat register file to LT64's named pointers.
type Context struct {
	Mem memory.Main
	DS  *memory.Stack
	RS  *memory.Stack

	PC  word.Addr
	BFP word.Addr
	FMP word.Addr
	EOF bool

	Stdin  *bufio.Reader
	Stdout *bufio.Writer
	Stderr *bufio.Writer

	Opts Options

	// err is the sticky structural fault, set by preStepCheck or by an
	// unrecognized opcode; once set the dispatch loop stops.
	err error

	// skipping is the debug channel's skip-to-breakpoint latch
	// (spec.md §4.3): set by non-empty step input, cleared by BRKPNT.
	skipping bool
}

// NewContext builds an execution context over a main-memory array that
// already holds the loaded program image in words [0, length), per
// spec.md §6's division of labor: the host loads the program and
// allocates the three arrays; this package only runs it.
func NewContext(mem memory.Main, length int, stdin *bufio.Reader, stdout, stderr *bufio.Writer, opts Options) *Context {
	return &Context{
		Mem:    mem,
		DS:     memory.NewDataStack(),
		RS:     memory.NewReturnStack(),
		PC:     0,
		BFP:    word.Addr(length),
		FMP:    word.Addr(length + memory.BufferSize),
		Stdin:  stdin,
		Stdout: stdout,
		Stderr: stderr,
		Opts:   opts,
	}
}

// Err reports the sticky structural fault, if any.
func (c *Context) Err() error {
	return c.err
}
