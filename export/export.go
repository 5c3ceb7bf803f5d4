// Package export writes the committed records of a dataset as an Arrow IPC
// stream.  The stream schema is the dataset schema (ids as int32, images and
// masks as binary PNG bytes, split and original_filename as utf8) followed by
// images_shape and masks_shape, the per-row array shapes of the PNG columns as
// lists of int32.  Masks always have a trailing channel axis in masks_shape.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"github.com/gabbenick/artigo-deeplake/lake"
	"github.com/gabbenick/artigo-deeplake/storage"
)

// DefaultBatchSize is the number of records per Arrow record batch.
const DefaultBatchSize = 256

const (
	// ShapeSuffix is appended to a PNG column name to name its shape column.
	ShapeSuffix = "_shape"

	// shapeOfMetadataKey names the PNG column a shape column describes.
	shapeOfMetadataKey = "shape_of"
)

// Schema returns the Arrow schema of an export stream of a dataset with
// schema s: its columns followed by one shape column per PNG column.
func Schema(s lake.Schema) *arrow.Schema {
	fields := s.Arrow().Fields()
	for _, c := range s {
		if c.Type != lake.ImagePNGColumn {
			continue
		}
		fields = append(fields, arrow.Field{
			Name:     c.Name + ShapeSuffix,
			Type:     arrow.ListOf(arrow.PrimitiveTypes.Int32),
			Metadata: arrow.NewMetadata([]string{shapeOfMetadataKey}, []string{c.Name}),
		})
	}
	return arrow.NewSchema(fields, nil)
}

type batchWriter struct {
	schema *arrow.Schema
	pool   memory.Allocator
	writer *ipc.Writer

	ids       *array.Int32Builder
	images    *array.BinaryBuilder
	masks     *array.BinaryBuilder
	splits    *array.StringBuilder
	filenames *array.StringBuilder

	imageShapes *array.ListBuilder
	maskShapes  *array.ListBuilder
	rows        int64
}

func newBatchWriter(w io.Writer, schema *arrow.Schema) *batchWriter {
	pool := memory.NewGoAllocator()
	return &batchWriter{
		schema:    schema,
		pool:      pool,
		writer:    ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(pool)),
		ids:       array.NewInt32Builder(pool),
		images:    array.NewBinaryBuilder(pool, arrow.BinaryTypes.Binary),
		masks:     array.NewBinaryBuilder(pool, arrow.BinaryTypes.Binary),
		splits:    array.NewStringBuilder(pool),
		filenames: array.NewStringBuilder(pool),

		imageShapes: array.NewListBuilder(pool, arrow.PrimitiveTypes.Int32),
		maskShapes:  array.NewListBuilder(pool, arrow.PrimitiveTypes.Int32),
	}
}

func appendShape(lb *array.ListBuilder, shape []int) {
	lb.Append(true)
	vb := lb.ValueBuilder().(*array.Int32Builder)
	for _, d := range shape {
		vb.Append(int32(d))
	}
}

func (bw *batchWriter) append(r *lake.Record) {
	bw.ids.Append(r.ID)
	bw.images.Append(r.Image.PNG)
	bw.masks.Append(r.Mask.PNG)
	bw.splits.Append(string(r.Split))
	bw.filenames.Append(r.OriginalFilename)
	appendShape(bw.imageShapes, r.Image.Shape)
	appendShape(bw.maskShapes, lake.ExpandDims(r.Mask.Shape))
	bw.rows++
}

// flush writes the buffered rows as one record batch.
func (bw *batchWriter) flush() error {
	if bw.rows == 0 {
		return nil
	}
	cols := []arrow.Array{
		bw.ids.NewArray(),
		bw.images.NewArray(),
		bw.masks.NewArray(),
		bw.splits.NewArray(),
		bw.filenames.NewArray(),
		bw.imageShapes.NewArray(),
		bw.maskShapes.NewArray(),
	}
	defer func() {
		for _, col := range cols {
			col.Release()
		}
	}()
	record := array.NewRecord(bw.schema, cols, bw.rows)
	defer record.Release()
	bw.rows = 0
	return bw.writer.Write(record)
}

func (bw *batchWriter) close() error {
	bw.ids.Release()
	bw.images.Release()
	bw.masks.Release()
	bw.splits.Release()
	bw.filenames.Release()
	bw.imageShapes.Release()
	bw.maskShapes.Release()
	return bw.writer.Close()
}

// WriteArrow streams every committed record of ds to w in record batches of at
// most batchSize rows and returns the number of records written.
func WriteArrow(ds storage.Dataset, w io.Writer, batchSize int) (int, error) {
	if !ds.Schema().Equal(lake.DefaultSchema()) {
		return 0, fmt.Errorf("cannot export dataset with schema %s", ds.Schema())
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	bw := newBatchWriter(w, Schema(ds.Schema()))
	var n int
	err := ds.Scan(func(r *lake.Record) error {
		bw.append(r)
		n++
		if bw.rows >= int64(batchSize) {
			return bw.flush()
		}
		return nil
	})
	if err == nil {
		err = bw.flush()
	}
	if cerr := bw.close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("exporting %s: %w", ds.Path(), err)
	}
	return n, nil
}

// WriteArrowFile writes the committed records of ds to a new Arrow stream file.
func WriteArrowFile(ds storage.Dataset, filename string, batchSize int) (int, error) {
	f, err := os.Create(filename)
	if err != nil {
		return 0, fmt.Errorf("failed to create export file %s: %w", filename, err)
	}
	timedLog := lake.NewTimeLog()
	n, err := WriteArrow(ds, f, batchSize)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, err
	}
	timedLog.Infof("Exported %d records of %s to %s", n, ds.Path(), filename)
	return n, nil
}
