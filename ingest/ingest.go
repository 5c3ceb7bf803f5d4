/*
Package ingest appends image/mask pairs from a source tree to an existing dataset.

The source tree holds one directory per split, each with images and masks:

	<root>/train/images/a.png   <root>/train/masks/a.png
	<root>/test/images/b.png    <root>/test/masks/b.png

Images are read in lexicographic filename order, train before test.  An image
whose filename is already in the dataset's original_filename column is
skipped, so re-running over an unchanged tree appends nothing.  All appended
records are committed once at the end of a run.
*/
package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/DmitriyVTitov/size"
	"github.com/dustin/go-humanize"

	"github.com/gabbenick/artigo-deeplake/lake"
	"github.com/gabbenick/artigo-deeplake/storage"
)

const (
	ImagesDir = "images"
	MasksDir  = "masks"
	Extension = ".png"
)

var (
	// ErrSourceNotFound is returned when the source root is not a directory.
	ErrSourceNotFound = errors.New("source root not found")

	// ErrMissingMask marks an image with no mask of the same name.
	ErrMissingMask = errors.New("no mask found")
)

// Config describes one ingestion run.
type Config struct {
	DatasetPath string
	SourceRoot  string
	Engine      string
	Options     storage.Options
}

// FileError records a source file that could not be ingested.
type FileError struct {
	Split    lake.Split
	Filename string
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s/%s: %v", e.Split, e.Filename, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// SplitResult counts what happened to the images of one split.
type SplitResult struct {
	Found        int  // png files in the images folder
	Appended     int  // new records
	Duplicates   int  // already in the dataset
	MissingMasks int  // skipped for lack of a mask
	Failed       int  // skipped after a decode or append error
	Skipped      bool // images or masks folder missing
}

// Result summarizes an ingestion run.
type Result struct {
	StartCount   int // records in the dataset before the run
	Appended     int
	Duplicates   int
	MissingMasks int
	Failed       []FileError
	PerSplit     map[lake.Split]SplitResult
	Commit       *storage.Commit // nil if nothing was appended
}

func (r *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "started with %d records, appended %d, skipped %d duplicates, %d without masks, %d failed",
		r.StartCount, r.Appended, r.Duplicates, r.MissingMasks, len(r.Failed))
	if r.Commit != nil {
		fmt.Fprintf(&b, "; %s", r.Commit)
	}
	return b.String()
}

// CommitMessage returns the message used to commit n appended pairs.
func CommitMessage(n int) string {
	return fmt.Sprintf("Appended %d new image/mask pairs to the dataset.", n)
}

// Run opens the configured dataset, ingests the source tree and closes the
// dataset.  A missing dataset or source root aborts the run before anything is
// appended.  A failed commit is returned along with the partial result.
func Run(cfg Config) (*Result, error) {
	engine, err := storage.GetEngine(cfg.Engine)
	if err != nil {
		return nil, err
	}
	lake.Infof("Attempting to open dataset: %s", cfg.DatasetPath)
	ds, err := engine.Open(cfg.DatasetPath, cfg.Options)
	if err != nil {
		if errors.Is(err, storage.ErrDatasetNotFound) {
			lake.Errorf("Dataset not found at %s. Run the create command first.", cfg.DatasetPath)
		}
		return nil, err
	}
	defer func() {
		if err := ds.Close(); err != nil {
			lake.Errorf("Closing dataset %s: %v", cfg.DatasetPath, err)
		}
	}()
	lake.Infof("Dataset opened successfully with %d records.", ds.Len())

	ing, err := NewIngestor(ds)
	if err != nil {
		return nil, err
	}
	return ing.Run(cfg.SourceRoot)
}

// Ingestor appends source pairs to an open dataset, skipping filenames the
// dataset already holds.
type Ingestor struct {
	ds       storage.Dataset
	seen     map[string]struct{}
	nextID   int32
	idsSpent error // set once the id space is exhausted
}

// NewIngestor loads the existing original filenames of ds for duplicate checks.
func NewIngestor(ds storage.Dataset) (*Ingestor, error) {
	ing := &Ingestor{ds: ds}
	if ds.Len() == 0 {
		lake.Infof("Dataset is empty. No existing original filenames to fetch for duplicate check.")
		ing.seen = make(map[string]struct{})
		return ing, nil
	}
	lake.Infof("Fetching existing filenames from %q column for duplicate check...", lake.ColumnOriginalFilename)
	seen, err := ds.ColumnSet(lake.ColumnOriginalFilename)
	if err != nil {
		return nil, fmt.Errorf("reading %q column of %s: %w", lake.ColumnOriginalFilename, ds.Path(), err)
	}
	ing.seen = seen
	lake.Infof("Fetched %d unique existing filenames (%s in memory).", len(seen), humanize.Bytes(uint64(size.Of(seen))))
	return ing, nil
}

// Seen returns true if filename is already in the dataset or was appended by
// this ingestor.
func (ing *Ingestor) Seen(filename string) bool {
	_, found := ing.seen[filename]
	return found
}

// Run ingests both splits under sourceRoot and commits if anything was appended.
func (ing *Ingestor) Run(sourceRoot string) (*Result, error) {
	if !lake.IsDir(sourceRoot) {
		lake.Errorf("Source root %q does not exist or is not a directory.", sourceRoot)
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceRoot)
	}
	res := &Result{
		StartCount: ing.ds.Len(),
		PerSplit:   make(map[lake.Split]SplitResult, len(lake.Splits)),
	}
	var err error
	if ing.nextID, err = lake.IDFromCount(res.StartCount); err != nil {
		return nil, err
	}

	for _, split := range lake.Splits {
		sr := ing.ingestSplit(sourceRoot, split, res)
		res.PerSplit[split] = sr
		res.Appended += sr.Appended
		res.Duplicates += sr.Duplicates
		res.MissingMasks += sr.MissingMasks
	}

	if res.Appended == 0 {
		lake.Infof("No new image/mask pairs were added. No commit needed.")
		return res, nil
	}
	msg := CommitMessage(res.Appended)
	lake.Infof("Attempting to commit: %s", msg)
	commit, err := ing.ds.Commit(msg)
	if err != nil {
		lake.Errorf("COMMIT FAILED: %v", err)
		return res, fmt.Errorf("commit of %d appended records failed: %w", res.Appended, err)
	}
	res.Commit = commit
	lake.Infof("COMMIT SUCCESSFUL: %s", commit)
	return res, nil
}

func (ing *Ingestor) ingestSplit(root string, split lake.Split, res *Result) (sr SplitResult) {
	timedLog := lake.NewTimeLog()
	imageDir := filepath.Join(root, string(split), ImagesDir)
	maskDir := filepath.Join(root, string(split), MasksDir)
	lake.Infof("Processing split folder %q", split)

	if !lake.IsDir(imageDir) {
		lake.Warningf("Image subfolder not found: %s. Skipping split %q.", imageDir, split)
		sr.Skipped = true
		return
	}
	if !lake.IsDir(maskDir) {
		lake.Warningf("Mask subfolder not found: %s. Skipping split %q.", maskDir, split)
		sr.Skipped = true
		return
	}
	filenames, err := ListPNG(imageDir)
	if err != nil {
		lake.Errorf("Unable to list %s, skipping split %q: %v", imageDir, split, err)
		sr.Skipped = true
		return
	}
	sr.Found = len(filenames)
	if sr.Found == 0 {
		lake.Infof("No PNG images found in %s.", imageDir)
		return
	}
	lake.Infof("Found %d PNG image files in %s.", sr.Found, imageDir)

	for i, filename := range filenames {
		if ing.Seen(filename) {
			sr.Duplicates++
			continue
		}
		err := ing.ingestPair(split, filepath.Join(imageDir, filename), maskDir)
		switch {
		case err == nil:
			sr.Appended++
		case errors.Is(err, ErrMissingMask):
			lake.Warningf("No mask found for %s/%s. Skipping.", split, filename)
			sr.MissingMasks++
		default:
			lake.Errorf("Error processing or appending %s/%s: %v", split, filename, err)
			sr.Failed++
			res.Failed = append(res.Failed, FileError{Split: split, Filename: filename, Err: err})
		}
		if lake.Verbose && (i+1)%1000 == 0 {
			timedLog.Debugf("Ingesting %s: %d of %d files examined", split, i+1, sr.Found)
		}
	}
	timedLog.Infof("Finished processing split %q. Added %d new image/mask pairs", split, sr.Appended)
	return
}

// ingestPair decodes one image and its mask and appends them as a new record.
func (ing *Ingestor) ingestPair(split lake.Split, imagePath, maskDir string) error {
	if ing.idsSpent != nil {
		return ing.idsSpent
	}
	filename := filepath.Base(imagePath)
	maskPath, found := FindMask(filename, maskDir)
	if !found {
		return ErrMissingMask
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return err
	}
	img, err := lake.ImageSample(data)
	if err != nil {
		return fmt.Errorf("image %s: %w", imagePath, err)
	}
	if data, err = os.ReadFile(maskPath); err != nil {
		return err
	}
	mask, err := lake.MaskSample(data)
	if err != nil {
		return fmt.Errorf("mask %s: %w", maskPath, err)
	}

	r := &lake.Record{
		ID:               ing.nextID,
		Image:            img,
		Mask:             mask,
		Split:            split,
		OriginalFilename: filename,
	}
	if err := ing.ds.Append(r); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	lake.Debugf("Appended %s", r)
	ing.seen[filename] = struct{}{}
	if ing.nextID, err = lake.NextID(ing.nextID); err != nil {
		ing.idsSpent = err
	}
	return nil
}

// ListPNG returns the names of the .png files in dir in lexicographic order.
// Hidden files and subdirectories are ignored.
func ListPNG(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != Extension {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// FindMask returns the path of the mask with the same base name as an image.
func FindMask(imageFilename, maskDir string) (string, bool) {
	base := strings.TrimSuffix(imageFilename, filepath.Ext(imageFilename))
	maskPath := filepath.Join(maskDir, base+Extension)
	fi, err := os.Stat(maskPath)
	if err != nil || fi.IsDir() {
		return "", false
	}
	return maskPath, true
}
