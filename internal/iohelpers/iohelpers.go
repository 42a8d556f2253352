// Package iohelpers implements LT64's host I/O surface: reading and
// writing packed character strings, formatted numeric print/read in
// word, double-word, and fixed-point scaled forms, and line-oriented
// reads with end-of-input signaling (spec.md §4.2 "Numeric printing",
// "Character and string", "Reading").
//
// Grounded on the teacher's Readc/Writec opcode bodies (vm/vm.go,
// vm/exec.go) and the console device's format choices (vm/devices.go),
// generalized from single-rune I/O to LT64's full vocabulary. Kept
// separate from the vm package's dispatch file purely to keep format
// string plumbing out of the switch, the same reason the teacher gives
// its device handlers their own file.
package iohelpers

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/strinsberg/lt64/internal/memory"
	"github.com/strinsberg/lt64/internal/word"
)

// PrintWord writes v using the signed-word format (%hd in the original
// C source).
func PrintWord(w io.Writer, v word.Word) {
	fmt.Fprintf(w, "%d", v)
}

// PrintUWord writes v using the unsigned-word format (%hu).
func PrintUWord(w io.Writer, v word.UWord) {
	fmt.Fprintf(w, "%d", v)
}

// PrintDouble writes d using the signed double-word format (%d).
func PrintDouble(w io.Writer, d int32) {
	fmt.Fprintf(w, "%d", d)
}

// PrintUDouble writes d using the unsigned double-word format (%u).
func PrintUDouble(w io.Writer, d uint32) {
	fmt.Fprintf(w, "%d", d)
}

// PrintFixed writes the double word d as a fixed-point number scaled
// by word.Scales[scale], with scale fractional digits (%.*lf with the
// scale index as precision).
func PrintFixed(w io.Writer, d int32, scale int) {
	scale = word.ResolveScale(scale)
	v := float64(d) / float64(word.Scales[scale])
	fmt.Fprintf(w, "%.*f", scale, v)
}

// WriteChar writes the low byte of w as a single character.
func WriteChar(w io.Writer, v word.Word) {
	fmt.Fprintf(w, "%c", byte(uint16(v)))
}

// WritePackedPair writes the low byte of w, then the high byte,
// matching PRNPK's stated order. A zero byte is not written.
func WritePackedPair(w io.Writer, v word.Word) {
	lo, hi := word.SplitChars(v)
	if lo != 0 {
		fmt.Fprintf(w, "%c", lo)
	}
	if hi != 0 {
		fmt.Fprintf(w, "%c", hi)
	}
}

// WritePackedString writes mem[start:] as a packed string (low byte
// then high byte per word), stopping at the first terminating word,
// without a trailing newline.
func WritePackedString(w io.Writer, mem memory.Main, start word.Addr) {
	for i := int(start); i < len(mem); i++ {
		lo, hi := word.SplitChars(mem[i])
		if lo == 0 {
			return
		}
		fmt.Fprintf(w, "%c", lo)
		if hi == 0 {
			return
		}
		fmt.Fprintf(w, "%c", hi)
	}
}

// drainNewline absorbs one extra character after a formatted read when
// running under the debug channel, so the trailing newline left behind
// by fmt.Fscan-style parsing doesn't confuse the next single-step
// prompt (spec.md §9 "Debug mode's extra getchar").
func drainNewline(r *bufio.Reader, debug bool) {
	if !debug {
		return
	}
	r.ReadByte()
}

// ReadWord reads a signed integer from r. ok is false on end-of-input.
func ReadWord(r *bufio.Reader, debug bool) (v word.Word, ok bool) {
	tok, err := readToken(r)
	if err != nil {
		return 0, false
	}
	n, _ := strconv.ParseInt(tok, 10, 32)
	drainNewline(r, debug)
	return word.Word(int16(n)), true
}

// ReadDouble reads a signed 32-bit integer from r and packs it as a
// big-endian word pair.
func ReadDouble(r *bufio.Reader, debug bool) (hi, lo word.Word, ok bool) {
	tok, err := readToken(r)
	if err != nil {
		return 0, 0, false
	}
	n, _ := strconv.ParseInt(tok, 10, 64)
	drainNewline(r, debug)
	hi, lo = word.UnpackDouble(int32(n))
	return hi, lo, true
}

// ReadFixed reads a decimal number from r and converts it to a
// fixed-point double scaled by word.Scales[scale].
func ReadFixed(r *bufio.Reader, scale int, debug bool) (hi, lo word.Word, ok bool) {
	scale = word.ResolveScale(scale)
	tok, err := readToken(r)
	if err != nil {
		return 0, 0, false
	}
	f, _ := strconv.ParseFloat(tok, 64)
	drainNewline(r, debug)
	n := int32(f * float64(word.Scales[scale]))
	hi, lo = word.UnpackDouble(n)
	return hi, lo, true
}

// ReadChar reads a single byte into the low byte of a word.
func ReadChar(r *bufio.Reader) (v word.Word, ok bool) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, false
	}
	return word.Word(b), true
}

// ReadLineStatus is READLN's result code.
type ReadLineStatus int

const (
	// StatusBufferFull means the buffer filled before a newline arrived.
	StatusBufferFull ReadLineStatus = 0
	// StatusOK means the line terminated normally.
	StatusOK ReadLineStatus = 1
)

// ReadLine reads one line from r into mem starting at bfp, encoding it
// as a packed string (two characters per word, zero-terminated), and
// reports the §4.2 READLN status. ok is false when input ends before
// any byte is read, in which case the caller must not also push a
// status word (spec.md §9 "Sticky EOF"); a partial line cut off by
// end-of-input is stored and reported as StatusOK.
func ReadLine(r *bufio.Reader, mem memory.Main, bfp word.Addr, maxWords int) (status ReadLineStatus, ok bool) {
	var sb strings.Builder
	full := false
	for {
		b, err := r.ReadByte()
		if err != nil {
			if sb.Len() == 0 {
				return 0, false
			}
			break
		}
		if b == '\n' {
			break
		}
		sb.WriteByte(b)
		if sb.Len() >= maxWords*2 {
			full = true
			break
		}
	}

	line := sb.String()
	i := 0
	for ; i+1 < len(line) && i/2 < maxWords; i += 2 {
		mem[int(bfp)+i/2] = word.PackChars(line[i+1], line[i])
	}
	if i < len(line) && i/2 < maxWords {
		mem[int(bfp)+i/2] = word.Word(line[i])
		i += 2
	}
	if i/2 < maxWords {
		mem[int(bfp)+i/2] = 0
	}

	if full {
		return StatusBufferFull, true
	}
	return StatusOK, true
}

func readToken(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	// skip leading whitespace
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		r.UnreadByte()
		break
	}
	for {
		b, err := r.ReadByte()
		if err != nil {
			if sb.Len() == 0 {
				return "", err
			}
			break
		}
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			break
		}
		sb.WriteByte(b)
	}
	return sb.String(), nil
}
