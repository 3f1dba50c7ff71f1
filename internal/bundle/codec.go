package bundle

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/emberscript/emberc/internal/pool"
)

// defHeader is the on-disk shape of one DefinitionHeaderTable entry
// (spec.md §4.1 decode rules): name/parent indices, the body's offset+size
// within the file, its type tag, and three opaque bytes the runtime expects
// to round-trip untouched.
type defHeader struct {
	Name, Parent   uint32
	Offset, Size   uint32
	Type           uint8
	Unk1, Unk2, Unk3 uint8
}

const defHeaderSize = 4 + 4 + 4 + 4 + 1 + 1 + 1 + 1

// Decode parses a bundle image into a pool and its four string tables,
// following the read order in spec.md §4.1: header, the four string offset
// tables (free strings among them), the definition header table, then each
// definition body in turn.
func Decode(data []byte) (*pool.Pool, *pool.Tables, error) {
	if len(data) < HeaderSize {
		return nil, nil, fmt.Errorf("bundle: truncated header (%d bytes)", len(data))
	}
	h := unmarshalHeader(data[:HeaderSize])
	if h.Magic != Magic {
		return nil, nil, fmt.Errorf("bundle: bad magic %#x, want %#x", h.Magic, Magic)
	}
	// Version mismatches are a warning per spec.md §4.1, never fatal.

	names := pool.NewStringTable(pool.KindString, "None")
	tweak := pool.NewStringTable(pool.KindString, "")
	res := pool.NewStringTable(pool.KindString, "")
	free := pool.NewStringTable(pool.KindString, "")

	if err := decodeStringTable(data, h.Tables[TableNames], names); err != nil {
		return nil, nil, fmt.Errorf("bundle: names table: %w", err)
	}
	if err := decodeStringTable(data, h.Tables[TableTweakDBIDs], tweak); err != nil {
		return nil, nil, fmt.Errorf("bundle: tweakdb table: %w", err)
	}
	if err := decodeStringTable(data, h.Tables[TableResources], res); err != nil {
		return nil, nil, fmt.Errorf("bundle: resources table: %w", err)
	}
	if err := decodeStringTable(data, h.Tables[TableFreeStrings], free); err != nil {
		return nil, nil, fmt.Errorf("bundle: free-strings table: %w", err)
	}

	defTbl := h.Tables[TableDefinitions]
	n := int(defTbl.Count)
	headers := make([]defHeader, n)
	off := int(defTbl.Offset)
	for i := 0; i < n; i++ {
		if off+defHeaderSize > len(data) {
			return nil, nil, fmt.Errorf("bundle: truncated definition header table at entry %d", i)
		}
		headers[i] = readDefHeader(data[off : off+defHeaderSize])
		off += defHeaderSize
	}

	p := pool.New(names)
	// Slot 0 and 1 are already populated by pool.New (Undefined, DefaultSource).
	// Header entries describe slots 2..n+1 in file order.
	for _, dh := range headers {
		var body []byte
		if dh.Size > 0 {
			if int(dh.Offset)+int(dh.Size) > len(data) {
				return nil, nil, fmt.Errorf("bundle: definition body out of bounds")
			}
			body = data[dh.Offset : dh.Offset+dh.Size]
		}
		val, err := decodeBody(pool.DefKind(dh.Type), body)
		if err != nil {
			return nil, nil, fmt.Errorf("bundle: decoding definition body: %w", err)
		}
		p.Add(pool.Definition{
			Name:   pool.NewIndex(pool.KindString, dh.Name),
			Parent: indexFromRaw(dh.Parent),
			Unk1:   dh.Unk1,
			Unk2:   dh.Unk2,
			Unk3:   dh.Unk3,
			Value:  val,
		})
	}

	tables := &pool.Tables{Names: names, TweakDBID: tweak, Resources: res, Free: free}
	return p, tables, nil
}

func indexFromRaw(raw uint32) pool.Index {
	if raw == 0 {
		return pool.Undefined
	}
	return pool.NewIndex(pool.KindDef, raw)
}

func decodeStringTable(data []byte, th TableHeader, into *pool.StringTable) error {
	off := int(th.Offset)
	for i := uint32(0); i < th.Count; i++ {
		if off+6 > len(data) {
			return fmt.Errorf("truncated offset table entry %d", i)
		}
		strOff := binary.LittleEndian.Uint32(data[off : off+4])
		off += 4
		s, err := readLengthPrefixed(data, strOff)
		if err != nil {
			return err
		}
		into.Add(s)
	}
	return nil
}

func readLengthPrefixed(data []byte, at uint32) (string, error) {
	if int(at)+2 > len(data) {
		return "", fmt.Errorf("string offset %d out of bounds", at)
	}
	n := binary.LittleEndian.Uint16(data[at : at+2])
	start := at + 2
	if int(start)+int(n) > len(data) {
		return "", fmt.Errorf("string at offset %d overruns data blob", at)
	}
	return string(data[start : start+uint32(n)]), nil
}

func readDefHeader(b []byte) defHeader {
	return defHeader{
		Name:   binary.LittleEndian.Uint32(b[0:4]),
		Parent: binary.LittleEndian.Uint32(b[4:8]),
		Offset: binary.LittleEndian.Uint32(b[8:12]),
		Size:   binary.LittleEndian.Uint32(b[12:16]),
		Type:   b[16],
		Unk1:   b[17],
		Unk2:   b[18],
		Unk3:   b[19],
	}
}

func writeDefHeader(buf []byte, h defHeader) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Name)
	binary.LittleEndian.PutUint32(buf[4:8], h.Parent)
	binary.LittleEndian.PutUint32(buf[8:12], h.Offset)
	binary.LittleEndian.PutUint32(buf[12:16], h.Size)
	buf[16] = h.Type
	buf[17] = h.Unk1
	buf[18] = h.Unk2
	buf[19] = h.Unk3
}

// Encode writes a pool and its string tables back to a bundle image,
// following the exact step order of spec.md §4.1's encode rules.
func Encode(p *pool.Pool, tables *pool.Tables) ([]byte, error) {
	var out bytes.Buffer

	// (1) placeholder header.
	out.Write(make([]byte, HeaderSize))

	// (2) DataBlob: every unique string across all four tables, written once,
	// sharing a single byte offset per spec.md §3 dedup requirement.
	blobStart := out.Len()
	stringOffset := map[string]uint32{}
	writeUnique := func(s string) {
		if _, ok := stringOffset[s]; ok {
			return
		}
		stringOffset[s] = uint32(out.Len() - blobStart)
		var lenBuf [2]byte
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
		out.Write(lenBuf[:])
		out.WriteString(s)
	}
	for _, tbl := range []*pool.StringTable{tables.Names, tables.TweakDBID, tables.Resources, tables.Free} {
		for _, s := range tbl.All() {
			writeUnique(s)
		}
	}

	// (3) offset tables for names/tweakdb/resources, each entry a file offset
	// into the blob (blobStart is added back so offsets are file-absolute).
	var th [5]TableHeader
	writeOffsetTable := func(idx int, tbl *pool.StringTable) {
		th[idx] = TableHeader{Offset: uint32(out.Len()), Count: uint32(tbl.Len())}
		crc := crc32.NewIEEE()
		for _, s := range tbl.All() {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], stringOffset[s]+uint32(blobStart))
			out.Write(b[:])
			crc.Write(b[:])
		}
		th[idx].CRC32 = crc.Sum32()
	}
	writeOffsetTable(TableNames, tables.Names)
	writeOffsetTable(TableTweakDBIDs, tables.TweakDBID)
	writeOffsetTable(TableResources, tables.Resources)

	// (4) reserve definition-header table space.
	defTableOffset := out.Len()
	n := p.Len() - 2 // slots 0 (Undefined) and 1 (DefaultSource) are implicit
	out.Write(make([]byte, n*defHeaderSize))

	// (5) free-strings offset table.
	writeOffsetTable(TableFreeStrings, tables.Free)

	// (6) stream definition bodies, recording (offset, size) per definition.
	headers := make([]defHeader, n)
	for raw := 2; raw < p.Len(); raw++ {
		i := raw - 2
		def := p.Definition(pool.NewIndex(pool.KindDef, uint32(raw)))
		body := encodeBody(def.Value)
		headers[i] = defHeader{
			Name:   def.Name.Raw(),
			Parent: def.Parent.Raw(),
			Offset: uint32(out.Len()),
			Size:   uint32(len(body)),
			Type:   uint8(pool.KindOf(def.Value)),
			Unk1:   def.Unk1,
			Unk2:   def.Unk2,
			Unk3:   def.Unk3,
		}
		out.Write(body)
	}

	// (7) rewind and write the populated definition-header table.
	result := out.Bytes()
	pos := defTableOffset
	for _, dh := range headers {
		writeDefHeader(result[pos:pos+defHeaderSize], dh)
		pos += defHeaderSize
	}
	th[TableDefinitions] = TableHeader{Offset: uint32(defTableOffset), Count: uint32(n)}

	hdr := Header{
		Magic:   Magic,
		Version: 1,
		Tables:  th,
	}

	// (8) compute whole-file CRC32 with the hash field set to the
	// placeholder while hashing, then rewrite the header with the real hash.
	hdr.CRC32 = hashPlaceholder
	copy(result[:HeaderSize], marshalHeader(hdr))
	hdr.CRC32 = crc32.ChecksumIEEE(result)
	copy(result[:HeaderSize], marshalHeader(hdr))

	return result, nil
}
