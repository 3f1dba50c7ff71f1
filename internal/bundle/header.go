// Package bundle implements the on-disk codec for script bundles: decoding a
// bundle into an in-memory pool.Pool and re-encoding a pool back to bytes
// (spec.md §4.1). The binary layout follows the teacher corpus's pattern for
// fixed binary headers and offset-addressed tables (modeled on
// saferwall-pe's ImageDOSHeader / structUnpack idiom): plain structs decoded
// with encoding/binary, no reflection-heavy serialization library.
package bundle

import "encoding/binary"

// Magic is the fixed four-byte signature every bundle begins with
// (spec.md §4.1).
const Magic uint32 = 0x53444552

// HeaderSize is the fixed on-disk size of Header in bytes (spec.md §4.1).
const HeaderSize = 104

// TableHeader describes one of the five offset-addressed tables that follow
// DataBlob in the file: an offset into the file, an entry count, and a
// per-table CRC32.
type TableHeader struct {
	Offset uint32
	Count  uint32
	CRC32  uint32
}

// Timestamp is the packed day/month/year/hour/minute/second bitfield
// spec.md §4.1 describes. Pack stores it in the 4-byte on-disk field, bit
// layout LSB first:
//
//	s:6 m:6 h:5 day:5 month:4 year:6
//
// Only the low 6 bits of Year survive packing, and there is no millisecond
// component.
type Timestamp struct {
	Year, Month, Day     uint16
	Hour, Minute, Second uint16
}

// Pack encodes the timestamp into the 32-bit on-disk representation.
func (t Timestamp) Pack() uint32 {
	return uint32(t.Second&0x3F) |
		uint32(t.Minute&0x3F)<<6 |
		uint32(t.Hour&0x1F)<<12 |
		uint32(t.Day&0x1F)<<17 |
		uint32(t.Month&0x0F)<<22 |
		uint32(t.Year&0x0FFF)<<26&0xFFFFFFFF
}

// UnpackTimestamp decodes the 32-bit on-disk representation.
func UnpackTimestamp(v uint32) Timestamp {
	return Timestamp{
		Second: uint16(v & 0x3F),
		Minute: uint16((v >> 6) & 0x3F),
		Hour:   uint16((v >> 12) & 0x1F),
		Day:    uint16((v >> 17) & 0x1F),
		Month:  uint16((v >> 22) & 0x0F),
		Year:   uint16((v >> 26) & 0x3F),
	}
}

// TableIndex names the five TableHeader slots in Header.Tables, in file
// order (spec.md §4.1).
const (
	TableNames = iota
	TableTweakDBIDs
	TableResources
	TableDefinitions
	TableFreeStrings
)

// Header is the fixed 104-byte record at the start of every bundle.
type Header struct {
	Magic     uint32
	Version   uint32
	Flags     uint32
	Timestamp uint32
	Tables    [5]TableHeader
	CRC32     uint32    // whole-file CRC32, computed with this field set to hashPlaceholder during hashing
	Reserved  [24]byte // padding to bring the record to HeaderSize (104 bytes)
}

// hashPlaceholder is written into Header.CRC32 while computing the whole-file
// hash, per spec.md §4.1 encode rule 8 ("its own hash field set to
// 0xDEAD_BEEF during hashing").
const hashPlaceholder = 0xDEADBEEF

func marshalHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Flags)
	binary.LittleEndian.PutUint32(buf[12:16], h.Timestamp)
	off := 16
	for _, tbl := range h.Tables {
		binary.LittleEndian.PutUint32(buf[off:off+4], tbl.Offset)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], tbl.Count)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], tbl.CRC32)
		off += 12
	}
	binary.LittleEndian.PutUint32(buf[off:off+4], h.CRC32)
	return buf
}

func unmarshalHeader(buf []byte) Header {
	var h Header
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	h.Flags = binary.LittleEndian.Uint32(buf[8:12])
	h.Timestamp = binary.LittleEndian.Uint32(buf[12:16])
	off := 16
	for i := range h.Tables {
		h.Tables[i] = TableHeader{
			Offset: binary.LittleEndian.Uint32(buf[off : off+4]),
			Count:  binary.LittleEndian.Uint32(buf[off+4 : off+8]),
			CRC32:  binary.LittleEndian.Uint32(buf[off+8 : off+12]),
		}
		off += 12
	}
	h.CRC32 = binary.LittleEndian.Uint32(buf[off : off+4])
	return h
}
