package index

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

type FieldKind string

const (
	INT16   FieldKind = "int16"
	INT32   FieldKind = "int32"
	INT64   FieldKind = "int64"
	FLOAT32 FieldKind = "float32"
	FLOAT64 FieldKind = "float64"
	TEXT    FieldKind = "text"
)

const DEFAULT_ENCODING = "ISO-8859-1"

// Width is the number of bytes one value of this field takes in a leaf
// record, or 0 for an unknown kind.
func (f Field) Width() int {
	switch f.Kind {
	case INT16:
		return 2
	case INT32, FLOAT32:
		return 4
	case INT64, FLOAT64:
		return 8
	case TEXT:
		return f.Size
	default:
		return 0
	}
}

func NewSchema(encodingName string, fields ...Field) (*Schema, error) {
	s := &Schema{Fields: fields, Encoding: encodingName}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) Validate() error {
	for i, f := range s.Fields {
		if f.Width() <= 0 {
			return fmt.Errorf("field %d (%s): unsupported kind %q or width %d", i, f.Name, f.Kind, f.Size)
		}
	}

	_, err := s.textEncoding()
	return err
}

// RecordWidth is the size of one leaf record.
func (s *Schema) RecordWidth() int {
	if s == nil {
		return 0
	}

	width := 0
	for _, f := range s.Fields {
		width += f.Width()
	}
	return width
}

func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if len(s.Fields) != len(other.Fields) || !strings.EqualFold(s.encodingName(), other.encodingName()) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i] != other.Fields[i] {
			return false
		}
	}
	return true
}

func (s *Schema) encodingName() string {
	if s.Encoding == "" {
		return DEFAULT_ENCODING
	}
	return s.Encoding
}

func (s *Schema) textEncoding() (encoding.Encoding, error) {
	if s.enc != nil {
		return s.enc, nil
	}

	name := s.encodingName()
	if strings.EqualFold(name, DEFAULT_ENCODING) {
		s.enc = charmap.ISO8859_1
		return s.enc, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown text encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("text encoding %q is not supported", name)
	}

	s.enc = enc
	return s.enc, nil
}

// Field is one fixed width column of a leaf record. Size is only used by
// text fields.
type Field struct {
	Name string    `msgpack:"name"`
	Kind FieldKind `msgpack:"kind"`
	Size int       `msgpack:"size"`
}

// Schema describes the leaf records of an index: an ordered list of fields
// and the character set text fields are stored in.
type Schema struct {
	Fields   []Field `msgpack:"fields"`
	Encoding string  `msgpack:"encoding"`

	enc encoding.Encoding
}

// Record holds one decoded leaf record, one value per schema field: int16,
// int32, int64, float32, float64 or string.
type Record []any
