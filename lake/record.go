package lake

import (
	"fmt"
	"math"
)

// Split names the partition of the source tree a record came from.
type Split string

const (
	Train Split = "train"
	Test  Split = "test"
)

// Splits lists every split in processing order.
var Splits = []Split{Train, Test}

// ParseSplit returns the Split named by s.
func ParseSplit(s string) (Split, error) {
	for _, split := range Splits {
		if string(split) == s {
			return split, nil
		}
	}
	return "", fmt.Errorf("unknown split %q", s)
}

// Record is one image/mask pair plus its metadata.
type Record struct {
	ID               int32
	Image            *Sample
	Mask             *Sample
	Split            Split
	OriginalFilename string
}

func (r *Record) String() string {
	return fmt.Sprintf("record %d (%s/%s) image %s mask %s", r.ID, r.Split, r.OriginalFilename, r.Image, r.Mask)
}

// Validate checks a record is complete before it is stored.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("nil record")
	}
	if r.ID < 0 {
		return fmt.Errorf("record id %d is negative", r.ID)
	}
	if r.OriginalFilename == "" {
		return fmt.Errorf("record %d has no original filename", r.ID)
	}
	if _, err := ParseSplit(string(r.Split)); err != nil {
		return fmt.Errorf("record %d: %w", r.ID, err)
	}
	if err := r.Image.Validate(); err != nil {
		return fmt.Errorf("record %d image: %w", r.ID, err)
	}
	if err := r.Mask.Validate(); err != nil {
		return fmt.Errorf("record %d mask: %w", r.ID, err)
	}
	return nil
}

// NextID returns the identifier following id, or an error if the int32 id
// space is exhausted.
func NextID(id int32) (int32, error) {
	if id == math.MaxInt32 {
		return 0, fmt.Errorf("record id space exhausted at %d", id)
	}
	return id + 1, nil
}

// IDFromCount converts a record count to the next identifier to assign.
func IDFromCount(count int) (int32, error) {
	if count < 0 || count > math.MaxInt32 {
		return 0, fmt.Errorf("record count %d cannot be represented as an int32 id", count)
	}
	return int32(count), nil
}
