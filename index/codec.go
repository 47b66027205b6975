package index

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/jobala/rtstore/util"
)

// Page layout, big endian:
//
//	0           leaf flag, 1 = leaf, 2 = internal
//	1..9        parent page offset, -1 for the root
//	9 + 40*i    entry i: minX, maxX, minY, maxY, payload
//
// The payload is a child page offset for internal nodes and -1 for leaves,
// whose records live in a block of maxEntries*recordWidth bytes right after
// the page. The first all zero entry slot ends the entry list.
const (
	HEADER_SIZE = 9
	ENTRY_SIZE  = 40

	LEAF_FLAG     byte = 1
	INTERNAL_FLAG byte = 2

	LEAF_PAYLOAD int64 = -1
)

var byteOrder = binary.BigEndian

func PageLen(maxEntries int) int {
	return HEADER_SIZE + maxEntries*ENTRY_SIZE
}

func LeafBlockLen(maxEntries int, schema *Schema) int {
	return maxEntries * schema.RecordWidth()
}

func DecodeHeader(buf []byte) (isLeaf bool, parentOffset int64, err error) {
	if len(buf) < HEADER_SIZE {
		return false, 0, util.CorruptPage("page header needs %d bytes, got %d", HEADER_SIZE, len(buf))
	}

	switch buf[0] {
	case LEAF_FLAG:
		isLeaf = true
	case INTERNAL_FLAG:
		isLeaf = false
	default:
		return false, 0, util.CorruptPage("invalid leaf flag %d", buf[0])
	}

	return isLeaf, int64(byteOrder.Uint64(buf[1:HEADER_SIZE])), nil
}

func EncodeHeader(buf []byte, isLeaf bool, parentOffset int64) {
	if isLeaf {
		buf[0] = LEAF_FLAG
	} else {
		buf[0] = INTERNAL_FLAG
	}
	byteOrder.PutUint64(buf[1:HEADER_SIZE], uint64(parentOffset))
}

// DecodeEntries reads the entry table of a page. Leaf entries come back with
// Child set to -1 and no record; records are decoded from the leaf block.
func DecodeEntries(buf []byte, maxEntries int, isLeaf bool) ([]Entry, error) {
	if len(buf) < PageLen(maxEntries) {
		return nil, util.CorruptPage("page needs %d bytes, got %d", PageLen(maxEntries), len(buf))
	}

	entries := make([]Entry, 0, maxEntries)
	for i := 0; i < maxEntries; i++ {
		slot := buf[HEADER_SIZE+i*ENTRY_SIZE : HEADER_SIZE+(i+1)*ENTRY_SIZE]
		if isEmptySlot(slot) {
			break
		}

		e := Entry{
			Bounds: Envelope{
				MinX: math.Float64frombits(byteOrder.Uint64(slot[0:8])),
				MaxX: math.Float64frombits(byteOrder.Uint64(slot[8:16])),
				MinY: math.Float64frombits(byteOrder.Uint64(slot[16:24])),
				MaxY: math.Float64frombits(byteOrder.Uint64(slot[24:32])),
			},
			Child: LEAF_PAYLOAD,
		}
		if !isLeaf {
			e.Child = int64(byteOrder.Uint64(slot[32:40]))
		}

		entries = append(entries, e)
	}

	return entries, nil
}

// EncodeEntries writes the entry table and zero fills the unused slots.
func EncodeEntries(buf []byte, entries []Entry, maxEntries int, isLeaf bool) error {
	if len(entries) > maxEntries {
		return util.InvalidEntry("%d entries exceed fan-out %d", len(entries), maxEntries)
	}
	if len(buf) < PageLen(maxEntries) {
		return util.InvalidEntry("page buffer needs %d bytes, got %d", PageLen(maxEntries), len(buf))
	}

	for i, e := range entries {
		if err := checkEntry(e, isLeaf); err != nil {
			return err
		}

		slot := buf[HEADER_SIZE+i*ENTRY_SIZE : HEADER_SIZE+(i+1)*ENTRY_SIZE]
		byteOrder.PutUint64(slot[0:8], math.Float64bits(e.Bounds.MinX))
		byteOrder.PutUint64(slot[8:16], math.Float64bits(e.Bounds.MaxX))
		byteOrder.PutUint64(slot[16:24], math.Float64bits(e.Bounds.MinY))
		byteOrder.PutUint64(slot[24:32], math.Float64bits(e.Bounds.MaxY))

		payload := LEAF_PAYLOAD
		if !isLeaf {
			payload = e.Child
		}
		byteOrder.PutUint64(slot[32:40], uint64(payload))
	}

	clear(buf[HEADER_SIZE+len(entries)*ENTRY_SIZE : PageLen(maxEntries)])
	return nil
}

func DecodeLeafRecord(buf []byte, schema *Schema) (Record, error) {
	if len(buf) < schema.RecordWidth() {
		return nil, util.CorruptPage("leaf record needs %d bytes, got %d", schema.RecordWidth(), len(buf))
	}

	rec := make(Record, len(schema.Fields))
	pos := 0
	for i, f := range schema.Fields {
		width := f.Width()
		raw := buf[pos : pos+width]

		switch f.Kind {
		case INT16:
			rec[i] = int16(byteOrder.Uint16(raw))
		case INT32:
			rec[i] = int32(byteOrder.Uint32(raw))
		case INT64:
			rec[i] = int64(byteOrder.Uint64(raw))
		case FLOAT32:
			rec[i] = math.Float32frombits(byteOrder.Uint32(raw))
		case FLOAT64:
			rec[i] = math.Float64frombits(byteOrder.Uint64(raw))
		case TEXT:
			enc, err := schema.textEncoding()
			if err != nil {
				return nil, util.CorruptPage("field %s: %v", f.Name, err)
			}
			text, err := enc.NewDecoder().Bytes(bytes.TrimRight(raw, " \x00"))
			if err != nil {
				return nil, util.CorruptPage("field %s: decoding text: %v", f.Name, err)
			}
			rec[i] = string(text)
		default:
			return nil, util.CorruptPage("field %s has unknown kind %q", f.Name, f.Kind)
		}

		pos += width
	}

	return rec, nil
}

// EncodeLeafRecord writes rec into buf. Values must have exactly the Go type
// of their field kind; text is space padded to the field width.
func EncodeLeafRecord(buf []byte, rec Record, schema *Schema) error {
	if len(rec) != len(schema.Fields) {
		return util.InvalidEntry("record has %d values, schema has %d fields", len(rec), len(schema.Fields))
	}
	if len(buf) < schema.RecordWidth() {
		return util.InvalidEntry("record buffer needs %d bytes, got %d", schema.RecordWidth(), len(buf))
	}

	pos := 0
	for i, f := range schema.Fields {
		width := f.Width()
		raw := buf[pos : pos+width]
		value := rec[i]

		switch f.Kind {
		case INT16:
			v, ok := value.(int16)
			if !ok {
				return kindMismatch(f, value)
			}
			byteOrder.PutUint16(raw, uint16(v))
		case INT32:
			v, ok := value.(int32)
			if !ok {
				return kindMismatch(f, value)
			}
			byteOrder.PutUint32(raw, uint32(v))
		case INT64:
			v, ok := value.(int64)
			if !ok {
				return kindMismatch(f, value)
			}
			byteOrder.PutUint64(raw, uint64(v))
		case FLOAT32:
			v, ok := value.(float32)
			if !ok {
				return kindMismatch(f, value)
			}
			byteOrder.PutUint32(raw, math.Float32bits(v))
		case FLOAT64:
			v, ok := value.(float64)
			if !ok {
				return kindMismatch(f, value)
			}
			byteOrder.PutUint64(raw, math.Float64bits(v))
		case TEXT:
			v, ok := value.(string)
			if !ok {
				return kindMismatch(f, value)
			}
			if err := encodeText(raw, v, f, schema); err != nil {
				return err
			}
		default:
			return util.CorruptPage("field %s has unknown kind %q", f.Name, f.Kind)
		}

		pos += width
	}

	return nil
}

func encodeText(raw []byte, value string, f Field, schema *Schema) error {
	enc, err := schema.textEncoding()
	if err != nil {
		return util.InvalidEntry("field %s: %v", f.Name, err)
	}

	data, err := enc.NewEncoder().Bytes([]byte(value))
	if err != nil {
		return util.InvalidEntry("field %s: %q is not representable: %v", f.Name, value, err)
	}
	if len(data) > len(raw) {
		return util.InvalidEntry("field %s: %q needs %d bytes, field is %d wide", f.Name, value, len(data), len(raw))
	}

	n := copy(raw, data)
	for i := n; i < len(raw); i++ {
		raw[i] = ' '
	}
	return nil
}

func kindMismatch(f Field, value any) error {
	return util.InvalidEntry("field %s expects %s, got %T", f.Name, f.Kind, value)
}

// checkEntry rejects entries the page format cannot tell apart from an empty
// slot: zero bounds pointing at the child page at offset 0.
func checkEntry(e Entry, isLeaf bool) error {
	if isLeaf || e.Child != 0 {
		return nil
	}

	b := e.Bounds
	if math.Float64bits(b.MinX)|math.Float64bits(b.MaxX)|math.Float64bits(b.MinY)|math.Float64bits(b.MaxY) == 0 {
		return util.InvalidEntry("zero envelope pointing at offset 0 is indistinguishable from an empty slot")
	}
	return nil
}

func isEmptySlot(slot []byte) bool {
	for _, b := range slot {
		if b != 0 {
			return false
		}
	}
	return true
}
