package lake

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
)

// Column names of the dataset schema.  Downstream readers depend on these.
const (
	ColumnIDs              = "ids"
	ColumnImages           = "images"
	ColumnMasks            = "masks"
	ColumnSplit            = "split"
	ColumnOriginalFilename = "original_filename"
)

// Field metadata keys used when the schema is expressed in Arrow.
const (
	typeMetadataKey        = "lake.type"
	compressionMetadataKey = "sample_compression"
)

// ColumnType is the storage type of a column.
type ColumnType uint8

const (
	InvalidColumn ColumnType = iota
	Int32Column
	ImagePNGColumn
	TextColumn
)

func (t ColumnType) String() string {
	switch t {
	case Int32Column:
		return "int32"
	case ImagePNGColumn:
		return "image(png)"
	case TextColumn:
		return "text"
	default:
		return "invalid"
	}
}

// ParseColumnType is the inverse of ColumnType.String.
func ParseColumnType(s string) (ColumnType, error) {
	switch s {
	case "int32":
		return Int32Column, nil
	case "image(png)":
		return ImagePNGColumn, nil
	case "text":
		return TextColumn, nil
	default:
		return InvalidColumn, fmt.Errorf("unknown column type %q", s)
	}
}

// ArrowType returns the Arrow data type used to represent values of the column.
func (t ColumnType) ArrowType() arrow.DataType {
	switch t {
	case Int32Column:
		return arrow.PrimitiveTypes.Int32
	case ImagePNGColumn:
		return arrow.BinaryTypes.Binary
	case TextColumn:
		return arrow.BinaryTypes.String
	default:
		return arrow.Null
	}
}

// Column is a named, typed column.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is the ordered column set of a dataset.
type Schema []Column

// DefaultSchema returns the five-column image/mask schema.
func DefaultSchema() Schema {
	return Schema{
		{Name: ColumnIDs, Type: Int32Column},
		{Name: ColumnImages, Type: ImagePNGColumn},
		{Name: ColumnMasks, Type: ImagePNGColumn},
		{Name: ColumnSplit, Type: TextColumn},
		{Name: ColumnOriginalFilename, Type: TextColumn},
	}
}

// Index returns the position of the named column or -1.
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Equal returns true if both schemas have the same columns in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Validate checks column names are unique and types are known.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schema has no columns")
	}
	seen := make(map[string]struct{}, len(s))
	for _, c := range s {
		if c.Name == "" {
			return fmt.Errorf("schema has column with empty name")
		}
		if _, found := seen[c.Name]; found {
			return fmt.Errorf("schema has duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Type == InvalidColumn || c.Type > TextColumn {
			return fmt.Errorf("column %q has invalid type %d", c.Name, c.Type)
		}
	}
	return nil
}

func (s Schema) String() string {
	var buf bytes.Buffer
	for i, c := range s {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s (%s)", c.Name, c.Type)
	}
	return buf.String()
}

// Arrow returns the schema as an Arrow schema.  Image columns carry
// sample_compression=png field metadata.
func (s Schema) Arrow() *arrow.Schema {
	fields := make([]arrow.Field, len(s))
	for i, c := range s {
		keys := []string{typeMetadataKey}
		values := []string{c.Type.String()}
		if c.Type == ImagePNGColumn {
			keys = append(keys, compressionMetadataKey)
			values = append(values, "png")
		}
		fields[i] = arrow.Field{
			Name:     c.Name,
			Type:     c.Type.ArrowType(),
			Metadata: arrow.NewMetadata(keys, values),
		}
	}
	return arrow.NewSchema(fields, nil)
}

// SchemaFromArrow reverses Schema.Arrow.
func SchemaFromArrow(as *arrow.Schema) (Schema, error) {
	s := make(Schema, len(as.Fields()))
	for i, f := range as.Fields() {
		idx := f.Metadata.FindKey(typeMetadataKey)
		if idx < 0 {
			return nil, fmt.Errorf("arrow field %q has no %s metadata", f.Name, typeMetadataKey)
		}
		t, err := ParseColumnType(f.Metadata.Values()[idx])
		if err != nil {
			return nil, fmt.Errorf("arrow field %q: %w", f.Name, err)
		}
		s[i] = Column{Name: f.Name, Type: t}
	}
	return s, s.Validate()
}

// MarshalBinary writes the schema as an Arrow IPC stream holding only the
// schema message, readable by any Arrow implementation.
func (s Schema) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(s.Arrow()), ipc.WithAllocator(memory.NewGoAllocator()))
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("writing arrow schema: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary reads a schema written by MarshalBinary.
func (s *Schema) UnmarshalBinary(b []byte) error {
	r, err := ipc.NewReader(bytes.NewReader(b), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return fmt.Errorf("reading arrow schema: %w", err)
	}
	defer r.Release()
	schema, err := SchemaFromArrow(r.Schema())
	if err != nil {
		return err
	}
	*s = schema
	return nil
}
