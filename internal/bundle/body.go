package bundle

import (
	"encoding/binary"
	"fmt"

	"github.com/emberscript/emberc/internal/pool"
)

// encodeBody serializes a Definition's payload to its on-disk body bytes,
// dispatching on the DefKind tag the way spec.md §4.1 describes
// ("decode the body by type tag").
func encodeBody(v pool.AnyDefinition) []byte {
	switch d := v.(type) {
	case pool.UndefinedDef:
		return nil
	case pool.PoolType:
		return encodeType(d)
	case pool.Class:
		return encodeClass(d)
	case pool.Enum:
		return encodeIndexList(d.Members)
	case pool.BitField:
		return encodeIndexList(d.Members)
	case pool.EnumValue:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(d.Value))
		return b[:]
	case pool.Function:
		return encodeFunction(d)
	case pool.Parameter:
		var b [5]byte
		binary.LittleEndian.PutUint32(b[0:4], d.Type.Raw())
		if d.IsOut {
			b[4] = 1
		}
		return b[:]
	case pool.Local:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], d.Type.Raw())
		return b[:]
	case pool.Field:
		return encodeField(d)
	case pool.SourceFile:
		return nil
	default:
		panic(fmt.Sprintf("bundle: encodeBody: unhandled %T", v))
	}
}

func decodeBody(kind pool.DefKind, b []byte) (pool.AnyDefinition, error) {
	switch kind {
	case pool.DefUndefined:
		return pool.UndefinedDef{}, nil
	case pool.DefType:
		return decodeType(b)
	case pool.DefClass:
		return decodeClass(b)
	case pool.DefEnum:
		return pool.Enum{Members: decodeIndexList(b)}, nil
	case pool.DefBitField:
		return pool.BitField{Members: decodeIndexList(b)}, nil
	case pool.DefEnumValue:
		if len(b) < 8 {
			return nil, fmt.Errorf("truncated enum value body")
		}
		return pool.EnumValue{Value: int64(binary.LittleEndian.Uint64(b))}, nil
	case pool.DefFunction:
		return decodeFunction(b)
	case pool.DefParameter:
		if len(b) < 5 {
			return nil, fmt.Errorf("truncated parameter body")
		}
		return pool.Parameter{
			Type:  pool.NewIndex(pool.KindType, binary.LittleEndian.Uint32(b[0:4])),
			IsOut: b[4] != 0,
		}, nil
	case pool.DefLocal:
		if len(b) < 4 {
			return nil, fmt.Errorf("truncated local body")
		}
		return pool.Local{Type: pool.NewIndex(pool.KindType, binary.LittleEndian.Uint32(b))}, nil
	case pool.DefField:
		return decodeField(b)
	case pool.DefSourceFile:
		return pool.SourceFile{}, nil
	default:
		return nil, fmt.Errorf("unknown definition type tag %d", kind)
	}
}

func encodeIndexList(idxs []pool.Index) []byte {
	b := make([]byte, 4+4*len(idxs))
	binary.LittleEndian.PutUint32(b[0:4], uint32(len(idxs)))
	for i, idx := range idxs {
		binary.LittleEndian.PutUint32(b[4+4*i:8+4*i], idx.Raw())
	}
	return b
}

func decodeIndexList(b []byte) []pool.Index {
	if len(b) < 4 {
		return nil
	}
	n := binary.LittleEndian.Uint32(b[0:4])
	out := make([]pool.Index, 0, n)
	for i := uint32(0); i < n; i++ {
		off := 4 + 4*i
		if int(off+4) > len(b) {
			break
		}
		out = append(out, pool.NewIndex(pool.KindDef, binary.LittleEndian.Uint32(b[off:off+4])))
	}
	return out
}

func encodeType(t pool.PoolType) []byte {
	b := make([]byte, 0, 16)
	b = append(b, byte(t.Tag))
	var idx uint32
	switch t.Tag {
	case pool.TypeClass:
		idx = t.Class.Raw()
	case pool.TypeRef, pool.TypeWeakRef, pool.TypeArray, pool.TypeScriptRef:
		idx = t.Wrapped.Raw()
	}
	var idxBuf [4]byte
	binary.LittleEndian.PutUint32(idxBuf[:], idx)
	b = append(b, idxBuf[:]...)
	if t.Tag == pool.TypePrim {
		b = append(b, []byte(t.Prim)...)
	}
	return b
}

func decodeType(b []byte) (pool.PoolType, error) {
	if len(b) < 5 {
		return pool.PoolType{}, fmt.Errorf("truncated type body")
	}
	tag := pool.TypeTag(b[0])
	idx := binary.LittleEndian.Uint32(b[1:5])
	t := pool.PoolType{Tag: tag}
	switch tag {
	case pool.TypeClass:
		t.Class = pool.NewIndex(pool.KindClass, idx)
	case pool.TypeRef, pool.TypeWeakRef, pool.TypeArray, pool.TypeScriptRef:
		t.Wrapped = pool.NewIndex(pool.KindType, idx)
	case pool.TypePrim:
		t.Prim = string(b[5:])
	}
	return t, nil
}

func encodeClass(c pool.Class) []byte {
	var b []byte
	var flags byte
	if c.Flags.IsNative {
		flags |= 1 << 0
	}
	if c.Flags.IsImportOnly {
		flags |= 1 << 1
	}
	if c.Flags.IsAbstract {
		flags |= 1 << 2
	}
	if c.Flags.IsFinal {
		flags |= 1 << 3
	}
	if c.Flags.IsStruct {
		flags |= 1 << 4
	}
	b = append(b, flags)
	var baseBuf, tpBuf [4]byte
	binary.LittleEndian.PutUint32(baseBuf[:], c.Base.Raw())
	b = append(b, baseBuf[:]...)
	binary.LittleEndian.PutUint32(tpBuf[:], uint32(c.TypeParams))
	b = append(b, tpBuf[:]...)
	b = append(b, encodeIndexList(c.Fields)...)
	b = append(b, encodeIndexList(c.Methods)...)
	b = append(b, encodeIndexList(c.Statics)...)
	return b
}

func decodeClass(b []byte) (pool.Class, error) {
	if len(b) < 9 {
		return pool.Class{}, fmt.Errorf("truncated class body")
	}
	flags := b[0]
	base := binary.LittleEndian.Uint32(b[1:5])
	typeParams := binary.LittleEndian.Uint32(b[5:9])
	rest := b[9:]

	fields, rest := readIndexListPrefix(rest)
	methods, rest := readIndexListPrefix(rest)
	statics, _ := readIndexListPrefix(rest)

	c := pool.Class{
		Flags: pool.ClassFlags{
			IsNative:     flags&(1<<0) != 0,
			IsImportOnly: flags&(1<<1) != 0,
			IsAbstract:   flags&(1<<2) != 0,
			IsFinal:      flags&(1<<3) != 0,
			IsStruct:     flags&(1<<4) != 0,
		},
		Base:       indexFromRaw(base),
		TypeParams: int(typeParams),
		Fields:     fields,
		Methods:    methods,
		Statics:    statics,
	}
	return c, nil
}

func readIndexListPrefix(b []byte) ([]pool.Index, []byte) {
	if len(b) < 4 {
		return nil, b
	}
	n := binary.LittleEndian.Uint32(b[0:4])
	consumed := 4 + 4*int(n)
	if consumed > len(b) {
		consumed = len(b)
	}
	return decodeIndexList(b[:consumed]), b[consumed:]
}

func encodeFunction(f pool.Function) []byte {
	var b []byte
	var flags byte
	if f.Flags.IsNative {
		flags |= 1 << 0
	}
	if f.Flags.IsCallback {
		flags |= 1 << 1
	}
	if f.Flags.IsFinal {
		flags |= 1 << 2
	}
	if f.Flags.IsStatic {
		flags |= 1 << 3
	}
	if f.Flags.IsQuest {
		flags |= 1 << 4
	}
	if f.Flags.HasBody {
		flags |= 1 << 5
	}
	b = append(b, flags)
	var retBuf, baseBuf [4]byte
	binary.LittleEndian.PutUint32(retBuf[:], f.ReturnType.Raw())
	b = append(b, retBuf[:]...)
	binary.LittleEndian.PutUint32(baseBuf[:], f.Base.Raw())
	b = append(b, baseBuf[:]...)
	b = append(b, encodeIndexList(f.Params)...)
	b = append(b, encodeIndexList(f.Locals)...)
	var codeLen [4]byte
	binary.LittleEndian.PutUint32(codeLen[:], uint32(len(f.Code)))
	b = append(b, codeLen[:]...)
	b = append(b, f.Code...)
	return b
}

func decodeFunction(b []byte) (pool.Function, error) {
	if len(b) < 9 {
		return pool.Function{}, fmt.Errorf("truncated function body")
	}
	flags := b[0]
	ret := binary.LittleEndian.Uint32(b[1:5])
	base := binary.LittleEndian.Uint32(b[5:9])
	rest := b[9:]

	params, rest := readIndexListPrefix(rest)
	locals, rest := readIndexListPrefix(rest)
	if len(rest) < 4 {
		return pool.Function{}, fmt.Errorf("truncated function code length")
	}
	codeLen := binary.LittleEndian.Uint32(rest[0:4])
	rest = rest[4:]
	var code []byte
	if int(codeLen) <= len(rest) {
		code = append([]byte(nil), rest[:codeLen]...)
	}

	f := pool.Function{
		Flags: pool.FunctionFlags{
			IsNative:   flags&(1<<0) != 0,
			IsCallback: flags&(1<<1) != 0,
			IsFinal:    flags&(1<<2) != 0,
			IsStatic:   flags&(1<<3) != 0,
			IsQuest:    flags&(1<<4) != 0,
			HasBody:    flags&(1<<5) != 0,
		},
		ReturnType: indexFromRaw(ret),
		Base:       indexFromRaw(base),
		Params:     params,
		Locals:     locals,
		Code:       code,
	}
	return f, nil
}

func encodeField(f pool.Field) []byte {
	var b []byte
	var flags byte
	if f.IsNative {
		flags |= 1 << 0
	}
	if f.IsPersistent {
		flags |= 1 << 1
	}
	b = append(b, flags)
	var typeBuf [4]byte
	binary.LittleEndian.PutUint32(typeBuf[:], f.Type.Type.Raw())
	b = append(b, typeBuf[:]...)
	var defLen [4]byte
	binary.LittleEndian.PutUint32(defLen[:], uint32(len(f.Type.Default)))
	b = append(b, defLen[:]...)
	b = append(b, f.Type.Default...)
	return b
}

func decodeField(b []byte) (pool.Field, error) {
	if len(b) < 9 {
		return pool.Field{}, fmt.Errorf("truncated field body")
	}
	flags := b[0]
	typeIdx := binary.LittleEndian.Uint32(b[1:5])
	defLen := binary.LittleEndian.Uint32(b[5:9])
	rest := b[9:]
	var def []byte
	if int(defLen) <= len(rest) {
		def = append([]byte(nil), rest[:defLen]...)
	}
	return pool.Field{
		IsNative:     flags&(1<<0) != 0,
		IsPersistent: flags&(1<<1) != 0,
		Type:         pool.FieldType{Type: indexFromRaw(typeIdx), Default: def},
	}, nil
}
