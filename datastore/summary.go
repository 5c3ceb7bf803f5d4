package datastore

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/gabbenick/artigo-deeplake/lake"
	"github.com/gabbenick/artigo-deeplake/storage"
)

// Summary describes a dataset's contents and version history.
type Summary struct {
	Path    string
	Engine  string
	Schema  lake.Schema
	Records int
	Commits int
	Head    *storage.Commit // nil if never committed
	Size    int64           // bytes on disk, -1 if the engine cannot tell
}

// Summarize gathers a Summary of an open dataset.
func Summarize(engine storage.Engine, ds storage.Dataset) (*Summary, error) {
	commits, err := ds.Log()
	if err != nil {
		return nil, fmt.Errorf("reading commit log of %s: %w", ds.Path(), err)
	}
	s := &Summary{
		Path:    ds.Path(),
		Schema:  ds.Schema(),
		Records: ds.Len(),
		Commits: len(commits),
		Size:    -1,
	}
	if engine != nil {
		s.Engine = engine.String()
	}
	if n := len(commits); n > 0 {
		head := commits[n-1]
		s.Head = &head
	}
	if sizer, ok := ds.(storage.Sizer); ok {
		if s.Size, err = sizer.Size(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset(path=%q, records=%d, commits=%d", s.Path, s.Records, s.Commits)
	if s.Engine != "" {
		fmt.Fprintf(&b, ", engine=%s", s.Engine)
	}
	if s.Size >= 0 {
		fmt.Fprintf(&b, ", size=%s", humanize.Bytes(uint64(s.Size)))
	}
	b.WriteString(")\n")

	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "  column\ttype\tarrow")
	fmt.Fprintln(w, "  ------\t----\t-----")
	for _, col := range s.Schema {
		fmt.Fprintf(w, "  %s\t%s\t%s\n", col.Name, col.Type, col.Type.ArrowType().Name())
	}
	w.Flush()

	if s.Head != nil {
		fmt.Fprintf(&b, "head: %s (%s)\n", s.Head, humanize.Time(s.Head.Time))
	}
	return b.String()
}
