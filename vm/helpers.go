package vm

import "github.com/strinsberg/lt64/internal/word"

// base resolves the LOAD/STORE/DLOAD/DSTORE/PRNMEM addressing mode from
// an instruction's immediate byte: bit 0 set selects absolute
// addressing (base 0), clear selects free-memory-relative (base fmp).
func (c *Context) base(imm byte) word.Addr {
	if imm&1 != 0 {
		return 0
	}
	return c.FMP
}

// popD pops a double word off the data stack, high word first (it was
// pushed deeper than the low word).
func (c *Context) popD() (hi, lo word.Word) {
	lo = c.DS.Pop()
	hi = c.DS.Pop()
	return hi, lo
}

// pushD pushes a double word, high word first.
func (c *Context) pushD(hi, lo word.Word) {
	c.DS.Push(hi)
	c.DS.Push(lo)
}

// peekD reads the double-word pair starting depth pairs below the top
// without moving the stack pointer; depth 0 is the top pair.
func (c *Context) peekD(depth uint32) (hi, lo word.Word) {
	return c.DS.Peek(depth*2 + 1), c.DS.Peek(depth * 2)
}

// popRD / pushRD are popD/pushD for the return stack.
func (c *Context) popRD() (hi, lo word.Word) {
	lo = c.RS.Pop()
	hi = c.RS.Pop()
	return hi, lo
}

func (c *Context) pushRD(hi, lo word.Word) {
	c.RS.Push(hi)
	c.RS.Push(lo)
}

func boolWord(b bool) word.Word {
	if b {
		return 1
	}
	return 0
}
