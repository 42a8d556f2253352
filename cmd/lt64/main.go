// Command lt64 loads a compiled LT64 program image and runs it to
// completion, optionally under the spec.md §4.3 debug channel.
//
// Grounded on the teacher's root main.go: flag.Bool mode switches, a
// trailing positional file argument, a defer+recover wrapper mapping
// unexpected panics to a fault exit code (the PC-out-of-bounds code,
// 6), and os.Exit
// with the interpreter's result at the end.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"os"

	"github.com/strinsberg/lt64/internal/memory"
	"github.com/strinsberg/lt64/internal/word"
	"github.com/strinsberg/lt64/vm"
)

func main() {
	debugFlag := flag.Bool("debug", false, "run under the single-step debug channel")
	testingFlag := flag.Bool("testing", false, "print the final data stack in hex on clean halt")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: lt64 [-debug] [-testing] <program-image>")
		os.Exit(3)
	}

	program, err := loadProgram(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "lt64:", err)
		os.Exit(3)
	}
	if len(program) == 0 {
		fmt.Fprintln(os.Stderr, "lt64: program length is 0")
		os.Exit(2)
	}
	if len(program)+memory.BufferSize >= memory.EndMemory {
		fmt.Fprintln(os.Stderr, "lt64: program is too large to fit in memory")
		os.Exit(1)
	}

	mem := memory.NewMain()
	copy(mem, program)

	stdin := bufio.NewReader(os.Stdin)
	stdout := bufio.NewWriter(os.Stdout)
	stderr := bufio.NewWriter(os.Stderr)
	defer stdout.Flush()
	defer stderr.Flush()

	ctx := vm.NewContext(mem, len(program), stdin, stdout, stderr, vm.Options{
		Testing:   *testingFlag,
		Debugging: *debugFlag,
	})

	code := 0
	func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintln(os.Stderr, "lt64: segmentation fault:", r)
				code = vm.ExitCode(vm.ErrPCOutOfBounds)
			}
		}()

		var runErr error
		if *debugFlag {
			runErr = ctx.RunDebug()
		} else {
			runErr = ctx.Run()
		}

		if runErr != nil {
			fmt.Fprintln(os.Stderr, "lt64:", runErr)
		} else if *testingFlag {
			dumpStack(stdout, ctx)
		}
		code = vm.ExitCode(runErr)
	}()

	stdout.Flush()
	stderr.Flush()
	os.Exit(code)
}

// loadProgram reads a raw big-endian word-pair program image: LT64's
// instruction words are not otherwise framed on disk (spec.md §1 puts
// program loading outside the core's scope; this is the host's own
// choice of container format).
func loadProgram(path string) ([]word.Word, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("program image has an odd byte length (%d)", len(raw))
	}

	words := make([]word.Word, len(raw)/2)
	for i := range words {
		words[i] = word.Word(binary.BigEndian.Uint16(raw[i*2 : i*2+2]))
	}
	return words, nil
}

// dumpStack prints the final data stack in hex, words 1..dsp, per
// spec.md §6's TESTING mode and Host I/O stack-dump format.
func dumpStack(w *bufio.Writer, ctx *vm.Context) {
	for i := uint32(1); i <= ctx.DS.Ptr; i++ {
		fmt.Fprintf(w, "%04x ", uint16(ctx.DS.Peek(ctx.DS.Ptr-i)))
	}
	fmt.Fprintln(w)
}
