package vm

import (
	"github.com/strinsberg/lt64/internal/iohelpers"
	"github.com/strinsberg/lt64/internal/memory"
	"github.com/strinsberg/lt64/internal/word"
)

// preStepCheck runs spec.md §4.1 step 2's five invariant checks at
// every dispatch boundary.
func (c *Context) preStepCheck() error {
	if c.PC >= c.BFP {
		return ErrPCOutOfBounds
	}
	if c.DS.Underflowed() {
		return ErrStackUnderflow
	}
	if c.DS.Overflowed(memory.EndStack) {
		return ErrStackOverflow
	}
	if c.RS.Underflowed() {
		return ErrReturnUnderflow
	}
	if c.RS.Overflowed(memory.EndReturn) {
		return ErrReturnOverflow
	}
	return nil
}

// Step runs one dispatch iteration: pre-step validation, decode,
// execute, and (unless the opcode transferred control itself) the
// post-step program-counter increment. done is true once the context
// has halted or faulted; the caller should stop calling Step and
// inspect c.Err().
func (c *Context) Step() (done bool) {
	if err := c.preStepCheck(); err != nil {
		c.err = err
		return true
	}

	raw := c.Mem[c.PC]
	op := Opcode(byte(uint16(raw)))
	imm := byte(uint16(raw) >> 8)

	transferred := false

	switch op {
	case HALT:
		return true

	case PUSH:
		c.PC++
		c.DS.Push(c.Mem[c.PC])
	case POP:
		c.DS.Pop()
	case LOAD:
		a := word.Addr(uint16(c.DS.Peek(0)))
		c.DS.Set(0, c.Mem[c.base(imm)+a])
	case STORE:
		a := word.Addr(uint16(c.DS.Pop()))
		v := c.DS.Pop()
		c.Mem[c.base(imm)+a] = v
	case FST:
		c.DS.Push(c.DS.Peek(0))
	case SEC:
		c.DS.Push(c.DS.Peek(1))
	case NTH:
		n := c.DS.Peek(0)
		x := c.DS.Peek(uint32(uint16(n)) + 1)
		c.DS.Set(0, x)
	case SWAP:
		a, b := c.DS.Peek(1), c.DS.Peek(0)
		c.DS.Set(1, b)
		c.DS.Set(0, a)
	case ROT:
		a, b, cc := c.DS.Peek(2), c.DS.Peek(1), c.DS.Peek(0)
		c.DS.Set(2, b)
		c.DS.Set(1, cc)
		c.DS.Set(0, a)
	case RPUSH:
		c.RS.Push(c.DS.Pop())
	case RPOP:
		c.DS.Push(c.RS.Pop())
	case RGRAB:
		c.DS.Push(c.RS.Peek(0))

	case DPUSH:
		c.PC++
		hi := c.Mem[c.PC]
		c.PC++
		lo := c.Mem[c.PC]
		c.pushD(hi, lo)
	case DPOP:
		c.popD()
	case DLOAD:
		a := word.Addr(uint16(c.DS.Pop()))
		base := c.base(imm) + a
		c.pushD(c.Mem[base], c.Mem[base+1])
	case DSTORE:
		a := word.Addr(uint16(c.DS.Pop()))
		hi, lo := c.popD()
		base := c.base(imm) + a
		c.Mem[base] = hi
		c.Mem[base+1] = lo
	case DFST:
		hi, lo := c.peekD(0)
		c.pushD(hi, lo)
	case DSEC:
		hi, lo := c.peekD(1)
		c.pushD(hi, lo)
	case DNTH:
		n := c.DS.Pop()
		depth := uint32(uint16(n)) * 2
		hi := c.DS.Peek(depth + 1)
		lo := c.DS.Peek(depth)
		c.pushD(hi, lo)
	case DSWAP:
		a0, a2 := c.DS.Peek(0), c.DS.Peek(2)
		c.DS.Set(0, a2)
		c.DS.Set(2, a0)
		a1, a3 := c.DS.Peek(1), c.DS.Peek(3)
		c.DS.Set(1, a3)
		c.DS.Set(3, a1)
	case DROT:
		t := c.DS.Peek(5)
		c.DS.Set(5, c.DS.Peek(3))
		c.DS.Set(3, c.DS.Peek(1))
		c.DS.Set(1, t)
		t2 := c.DS.Peek(4)
		c.DS.Set(4, c.DS.Peek(2))
		c.DS.Set(2, c.DS.Peek(0))
		c.DS.Set(0, t2)
	case DRPUSH:
		hi, lo := c.popD()
		c.pushRD(hi, lo)
	case DRPOP:
		hi, lo := c.popRD()
		c.pushD(hi, lo)
	case DRGRAB:
		hi, lo := c.RS.Peek(1), c.RS.Peek(0)
		c.pushD(hi, lo)

	case ADD:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(a + b)
	case SUB:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(a - b)
	case MULT:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(a * b)
	case DIV:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(a / b)
	case MOD:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(a % b)
	case EQ:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(boolWord(a == b))
	case LT:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(boolWord(a < b))
	case GT:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(boolWord(a > b))
	case MULTU:
		b, a := c.DS.Peek(0), c.DS.Peek(1)
		res := uint32(uint16(a)) * uint32(uint16(b))
		c.DS.Set(1, word.Word(uint16(res>>16)))
		c.DS.Set(0, word.Word(uint16(res)))
	case DIVU:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(word.Word(uint16(a) / uint16(b)))
	case MODU:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(word.Word(uint16(a) % uint16(b)))
	case LTU:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(boolWord(uint16(a) < uint16(b)))
	case GTU:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(boolWord(uint16(a) > uint16(b)))

	case SL:
		n, v := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(v << uint(uint16(n)))
	case SR:
		n, v := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(v >> uint(uint16(n)))
	case AND:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(a & b)
	case OR:
		b, a := c.DS.Pop(), c.DS.Pop()
		c.DS.Push(a | b)
	case NOT:
		c.DS.Set(0, ^c.DS.Peek(0))

	case DADD:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(word.UnpackDouble(word.PackDouble(aHi, aLo) + word.PackDouble(bHi, bLo)))
	case DSUB:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(word.UnpackDouble(word.PackDouble(aHi, aLo) - word.PackDouble(bHi, bLo)))
	case DMULT:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(word.UnpackDouble(word.PackDouble(aHi, aLo) * word.PackDouble(bHi, bLo)))
	case DDIV:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(word.UnpackDouble(word.PackDouble(aHi, aLo) / word.PackDouble(bHi, bLo)))
	case DMOD:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(word.UnpackDouble(word.PackDouble(aHi, aLo) % word.PackDouble(bHi, bLo)))
	case DEQ:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(0, boolWord(word.PackDouble(aHi, aLo) == word.PackDouble(bHi, bLo)))
	case DLT:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(0, boolWord(word.PackDouble(aHi, aLo) < word.PackDouble(bHi, bLo)))
	case DGT:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(0, boolWord(word.PackDouble(aHi, aLo) > word.PackDouble(bHi, bLo)))
	case DDIVU:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(word.UnpackDouble(int32(word.PackUDouble(aHi, aLo) / word.PackUDouble(bHi, bLo))))
	case DMODU:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(word.UnpackDouble(int32(word.PackUDouble(aHi, aLo) % word.PackUDouble(bHi, bLo))))
	case DLTU:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(0, boolWord(word.PackUDouble(aHi, aLo) < word.PackUDouble(bHi, bLo)))
	case DGTU:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(0, boolWord(word.PackUDouble(aHi, aLo) > word.PackUDouble(bHi, bLo)))

	case DSL:
		n := c.DS.Pop()
		hi, lo := c.popD()
		c.pushD(word.UnpackDouble(word.PackDouble(hi, lo) << uint(uint16(n))))
	case DSR:
		n := c.DS.Pop()
		hi, lo := c.popD()
		c.pushD(word.UnpackDouble(word.PackDouble(hi, lo) >> uint(uint16(n))))
	case DAND:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(word.UnpackDouble(word.PackDouble(aHi, aLo) & word.PackDouble(bHi, bLo)))
	case DOR:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		c.pushD(word.UnpackDouble(word.PackDouble(aHi, aLo) | word.PackDouble(bHi, bLo)))
	case DNOT:
		hi, lo := c.popD()
		c.pushD(word.UnpackDouble(^word.PackDouble(hi, lo)))

	case JUMP:
		c.PC = word.Addr(uint16(c.DS.Pop()))
		transferred = true
	case BRANCH:
		a := word.Addr(uint16(c.DS.Pop()))
		cond := c.DS.Pop()
		if cond != 0 {
			c.PC = a
			transferred = true
		}
	case CALL:
		a := word.Addr(uint16(c.DS.Pop()))
		c.RS.Push(word.Word(uint16(c.PC + 1)))
		c.PC = a
		transferred = true
	case RET:
		c.PC = word.Addr(uint16(c.RS.Pop()))
		transferred = true

	case OpDSP:
		c.DS.Push(word.Word(uint16(c.DS.Ptr)))
	case OpPC:
		c.DS.Push(word.Word(uint16(c.PC)))
	case OpBFP:
		c.DS.Push(word.Word(uint16(c.BFP)))
	case OpFMP:
		c.DS.Push(word.Word(uint16(c.FMP)))

	case WPRN:
		iohelpers.PrintWord(c.Stdout, c.DS.Pop())
	case WPRNU:
		iohelpers.PrintUWord(c.Stdout, word.UWord(uint16(c.DS.Pop())))
	case DPRN:
		hi, lo := c.popD()
		iohelpers.PrintDouble(c.Stdout, word.PackDouble(hi, lo))
	case DPRNU:
		hi, lo := c.popD()
		iohelpers.PrintUDouble(c.Stdout, word.PackUDouble(hi, lo))
	case FPRN:
		hi, lo := c.popD()
		iohelpers.PrintFixed(c.Stdout, word.PackDouble(hi, lo), word.DefaultScale)
	case FPRNSC:
		sc := c.DS.Pop()
		hi, lo := c.popD()
		iohelpers.PrintFixed(c.Stdout, word.PackDouble(hi, lo), int(sc))

	case PRNCH:
		iohelpers.WriteChar(c.Stdout, c.DS.Pop())
	case PRNPK:
		iohelpers.WritePackedPair(c.Stdout, c.DS.Pop())
	case PRN:
		iohelpers.WritePackedString(c.Stdout, c.Mem, c.BFP)
	case PRNLN:
		iohelpers.WritePackedString(c.Stdout, c.Mem, c.BFP)
		c.Stdout.WriteByte('\n')
	case PRNMEM:
		a := word.Addr(uint16(c.DS.Pop()))
		iohelpers.WritePackedString(c.Stdout, c.Mem, c.base(imm)+a)

	case WREAD:
		v, ok := iohelpers.ReadWord(c.Stdin, c.Opts.Debugging)
		if !ok {
			c.EOF = true
			v = 0
		}
		c.DS.Push(v)
	case DREAD:
		hi, lo, ok := iohelpers.ReadDouble(c.Stdin, c.Opts.Debugging)
		if !ok {
			c.EOF = true
			hi, lo = 0, 0
		}
		c.pushD(hi, lo)
	case FREAD:
		hi, lo, ok := iohelpers.ReadFixed(c.Stdin, word.DefaultScale, c.Opts.Debugging)
		if !ok {
			c.EOF = true
			hi, lo = 0, 0
		}
		c.pushD(hi, lo)
	case FREADSC:
		sc := c.DS.Pop()
		hi, lo, ok := iohelpers.ReadFixed(c.Stdin, int(sc), c.Opts.Debugging)
		if !ok {
			c.EOF = true
			hi, lo = 0, 0
		}
		c.pushD(hi, lo)
	case READCH:
		v, ok := iohelpers.ReadChar(c.Stdin)
		if !ok {
			c.EOF = true
			v = 0
		}
		c.DS.Push(v)
	case READLN:
		status, ok := iohelpers.ReadLine(c.Stdin, c.Mem, c.BFP, memory.BufferSize)
		if !ok {
			c.EOF = true
		} else {
			c.DS.Push(word.Word(status))
		}
	case IS_EOF:
		c.DS.Push(boolWord(c.EOF))
	case RESET_EOF:
		c.EOF = false

	case BFSTORE:
		i := c.DS.Pop()
		v := c.DS.Pop()
		c.Mem[c.BFP+word.Addr(uint16(i))] = v
	case BFLOAD:
		i := c.DS.Peek(0)
		c.DS.Set(0, c.Mem[c.BFP+word.Addr(uint16(i))])
	case HIGH:
		c.DS.Push(word.HighByte(c.DS.Peek(0)))
	case LOW:
		c.DS.Push(word.LowByte(c.DS.Peek(0)))
	case UNPACK:
		w := c.DS.Pop()
		hi, lo := word.UnpackBytes(w)
		c.DS.Push(hi)
		c.DS.Push(lo)
	case PACK:
		lo := c.DS.Pop()
		hi := c.DS.Pop()
		c.DS.Push(word.PackChars(byte(uint16(hi)), byte(uint16(lo))))

	case MEMCOPY:
		n := uint16(c.DS.Pop())
		addr := word.Addr(uint16(c.DS.Pop()))
		if imm == dirBufToFmp {
			copy(c.Mem[c.FMP+addr:c.FMP+addr+word.Addr(n)], c.Mem[c.BFP:c.BFP+word.Addr(n)])
		} else {
			copy(c.Mem[c.BFP:c.BFP+word.Addr(n)], c.Mem[c.FMP+addr:c.FMP+addr+word.Addr(n)])
		}
	case STRCOPY:
		addr := word.Addr(uint16(c.DS.Pop()))
		if imm == dirBufToFmp {
			n := word.Addr(word.StringLen(c.Mem, c.BFP))
			copy(c.Mem[c.FMP+addr:c.FMP+addr+n], c.Mem[c.BFP:c.BFP+n])
		} else {
			n := word.Addr(word.StringLen(c.Mem, c.FMP+addr))
			copy(c.Mem[c.BFP:c.BFP+n], c.Mem[c.FMP+addr:c.FMP+addr+n])
		}

	case FMULT:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		inter := int64(word.PackDouble(aHi, aLo)) * int64(word.PackDouble(bHi, bLo))
		c.pushD(word.UnpackDouble(int32(inter / int64(word.Scales[word.DefaultScale]))))
	case FDIV:
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		inter := float64(word.PackDouble(aHi, aLo)) / float64(word.PackDouble(bHi, bLo))
		c.pushD(word.UnpackDouble(int32(inter * float64(word.Scales[word.DefaultScale]))))
	case FMULTSC:
		sc := word.ResolveScale(int(c.DS.Pop()))
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		inter := int64(word.PackDouble(aHi, aLo)) * int64(word.PackDouble(bHi, bLo))
		c.pushD(word.UnpackDouble(int32(inter / int64(word.Scales[sc]))))
	case FDIVSC:
		sc := word.ResolveScale(int(c.DS.Pop()))
		bHi, bLo := c.popD()
		aHi, aLo := c.popD()
		inter := float64(word.PackDouble(aHi, aLo)) / float64(word.PackDouble(bHi, bLo))
		c.pushD(word.UnpackDouble(int32(inter * float64(word.Scales[sc]))))

	case READCH_BF:
		i := int(uint16(c.DS.Pop()))
		b, ok := iohelpers.ReadChar(c.Stdin)
		if !ok {
			c.EOF = true
			b = 0
		}
		wIdx := c.BFP + word.Addr(i/2)
		if i%2 == 0 {
			_, hi := word.SplitChars(c.Mem[wIdx])
			c.Mem[wIdx] = word.PackChars(hi, byte(uint16(b)))
		} else {
			lo, _ := word.SplitChars(c.Mem[wIdx])
			c.Mem[wIdx] = word.PackChars(byte(uint16(b)), lo)
			c.Mem[wIdx+1] = 0
		}
	case STREQ:
		bAddr := word.Addr(uint16(c.DS.Pop()))
		aAddr := word.Addr(uint16(c.DS.Pop()))
		c.DS.Push(boolWord(streq(c.Mem, aAddr, bAddr)))
	case MEMEQ:
		n := int(uint16(c.DS.Pop()))
		aAddr := word.Addr(uint16(c.DS.Pop()))
		bAddr := word.Addr(uint16(c.DS.Pop()))
		c.DS.Pop() // unused fourth operand, per spec.md's stated stack effect
		c.DS.Push(boolWord(memeq(c.Mem, aAddr, bAddr, n)))

	case BRKPNT:
		c.skipping = false

	default:
		c.err = ErrUnknownOpcode
		return true
	}

	if !transferred {
		c.PC++
	}
	return false
}

// streq compares two packed strings word by word until a mismatch or
// either terminator (spec.md §4.2 STREQ).
func streq(mem memory.Main, a, b word.Addr) bool {
	for i := 0; ; i++ {
		wa, wb := mem[int(a)+i], mem[int(b)+i]
		if wa != wb {
			return false
		}
		lo, hi := word.SplitChars(wa)
		if lo == 0 || hi == 0 {
			return true
		}
	}
}

// memeq compares n consecutive words starting at a and b.
func memeq(mem memory.Main, a, b word.Addr, n int) bool {
	for i := 0; i < n; i++ {
		if mem[int(a)+i] != mem[int(b)+i] {
			return false
		}
	}
	return true
}
