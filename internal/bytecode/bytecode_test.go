package bytecode

import "testing"

func TestWalkDecodesFixedAndVariableWidthOperands(t *testing.T) {
	b := NewBuilder()
	b.ConstInt(7)
	b.ConstString("hi")
	b.LoadLocal(3)
	b.Return()

	instrs := Walk(b.Bytes())
	wantOps := []Op{OpConstInt, OpConstString, OpLoadLocal, OpReturn}
	if len(instrs) != len(wantOps) {
		t.Fatalf("got %d instructions, want %d", len(instrs), len(wantOps))
	}
	for i, op := range wantOps {
		if instrs[i].Op != op {
			t.Fatalf("instruction %d: got op %v, want %v", i, instrs[i].Op, op)
		}
	}
	if instrs[1].StrLen != 2 {
		t.Fatalf("expected the string constant's length to decode as 2, got %d", instrs[1].StrLen)
	}
}

func TestRewriteLocalRefsOnlyTouchesLocalOpcodes(t *testing.T) {
	b := NewBuilder()
	b.LoadLocal(5)
	b.ConstInt(5) // same raw value as the local index, must NOT be rewritten
	b.StoreLocal(5)
	orig := append([]byte(nil), b.Bytes()...)

	rewritten := RewriteLocalRefs(b.Bytes(), map[uint32]uint32{5: 99})

	instrs := Walk(rewritten)
	if instrs[0].Op != OpLoadLocal {
		t.Fatalf("expected OpLoadLocal first, got %v", instrs[0].Op)
	}
	gotLoad := leUint32(instrs[0].Operand)
	if gotLoad != 99 {
		t.Fatalf("expected OpLoadLocal operand rewritten to 99, got %d", gotLoad)
	}
	gotStore := leUint32(instrs[2].Operand)
	if gotStore != 99 {
		t.Fatalf("expected OpStoreLocal operand rewritten to 99, got %d", gotStore)
	}

	// the ConstInt in between must be untouched
	if leUint64(instrs[1].Operand) != 5 {
		t.Fatalf("ConstInt operand must not be rewritten even though its value matches a local index")
	}

	if string(orig) == string(rewritten) {
		t.Fatalf("expected rewritten stream to differ from the original")
	}
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func TestPatchJumpToSupportsBackwardOffsets(t *testing.T) {
	b := NewBuilder()
	top := b.Len()
	b.ConstBool(true)
	exit := b.JumpIfFalse()
	backPos := b.Jump()
	b.PatchJumpTo(backPos, top)
	b.PatchJump(exit)

	instrs := Walk(b.Bytes())
	var jumpInstr Instr
	for _, instr := range instrs {
		if instr.Op == OpJump {
			jumpInstr = instr
		}
	}
	offset := int32(leUint32(jumpInstr.Operand))
	if offset >= 0 {
		t.Fatalf("expected a negative relative offset for a backward jump, got %d", offset)
	}
}
