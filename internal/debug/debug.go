// Package debug implements LT64's debug channel (spec.md §4.3): the
// pre-step dump of both stacks, the program counter, and the next
// instruction's mnemonic, plus the blocking step/skip-to-breakpoint
// prompt.
//
// Grounded on the teacher's printCurrentState/ExecProgramDebugMode pair
// (KTStephano-GVM vm/exec.go, vm/run.go), which prints register state
// to stdout and reads a command line from a bufio.Reader wrapping
// os.Stdin. LT64 narrows the teacher's command set (n/next, r/run,
// b/break <line>) down to spec.md's single step/skip-mode gate, and
// writes the frame to stderr rather than stdout so it never interleaves
// with the program's own output.
package debug

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/strinsberg/lt64/internal/memory"
	"github.com/strinsberg/lt64/internal/word"
)

const trailingCells = 8

// dumpStack formats up to the trailing trailingCells cells of s, oldest
// first, with a leading "…" when cells were omitted.
func dumpStack(s *memory.Stack) string {
	depth := s.Ptr
	n := depth
	if n > trailingCells {
		n = trailingCells
	}

	var sb strings.Builder
	if depth > trailingCells {
		sb.WriteString("… ")
	}
	for i := n; i > 0; i-- {
		fmt.Fprintf(&sb, "%04x ", uint16(s.Peek(i-1)))
	}
	return strings.TrimRight(sb.String(), " ")
}

// Frame writes one pre-step debug frame to w: both stacks, the program
// counter, and the mnemonic of the instruction about to run.
func Frame(w io.Writer, ds, rs *memory.Stack, pc word.Addr, mnemonic string) {
	fmt.Fprintf(w, "data:   %s\n", dumpStack(ds))
	fmt.Fprintf(w, "return: %s\n", dumpStack(rs))
	fmt.Fprintf(w, "pc: %04x  next: %s\n", uint16(pc), mnemonic)
}

// Prompt writes the step prompt to w and reads one line from r.
// nonEmpty reports whether the trimmed line was non-empty, which per
// spec.md §4.3 engages skip-to-breakpoint mode.
func Prompt(r *bufio.Reader, w io.Writer) (nonEmpty bool, err error) {
	fmt.Fprint(w, "> ")
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return false, err
	}
	return strings.TrimSpace(line) != "", nil
}
