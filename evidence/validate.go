package evidence

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MaxImageBytes caps the decoded size of a single photo.
const MaxImageBytes = 8 << 20

var (
	ErrBadImage        = errors.New("evidence: malformed image payload")
	ErrImageTooLarge   = errors.New("evidence: image too large")
	ErrUnknownRoomType = errors.New("evidence: unknown room type")
	ErrRoomOutOfRange  = errors.New("evidence: room number out of range")
	ErrDuplicatePhoto  = errors.New("evidence: duplicate photo")
	ErrMissingPhoto    = errors.New("evidence: missing photo")
)

var imagePrefixes = []string{
	"data:image/jpeg;base64,",
	"data:image/jpg;base64,",
	"data:image/png;base64,",
	"data:image/webp;base64,",
	"data:image/heic;base64,",
}

// ValidateImage checks that data is a base64 image data URI within the size cap.
func ValidateImage(data string) error {
	var body string
	for _, prefix := range imagePrefixes {
		if rest, ok := strings.CutPrefix(data, prefix); ok {
			body = rest
			break
		}
	}
	if body == "" {
		return ErrBadImage
	}
	if base64.StdEncoding.DecodedLen(len(body)) > MaxImageBytes+2 {
		return ErrImageTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	if len(raw) == 0 {
		return ErrBadImage
	}
	if len(raw) > MaxImageBytes {
		return ErrImageTooLarge
	}
	return nil
}

// Rooms is a home size.
type Rooms struct {
	Beds  int
	Baths int
}

func (r Rooms) of(t RoomType) int {
	if t == Bedroom {
		return r.Beds
	}
	return r.Baths
}

// CheckComplete verifies the evidence for a claim that a home of size
// original is really reported. Every photo names a distinct room index within
// the reported size. Each room type needs one photo per room added beyond the
// original, and at least one photo whenever its count changed and is nonzero.
// The returned error names the first offending room.
func CheckComplete(original, reported Rooms, uploads []Upload) error {
	counts := make(map[RoomType]int, 2)
	seen := make(map[RoomType]map[int]bool, 2)

	for i, u := range uploads {
		if !u.RoomType.Valid() {
			return fmt.Errorf("%w: photo %d has %q", ErrUnknownRoomType, i, string(u.RoomType))
		}
		limit := reported.of(u.RoomType)
		if u.RoomNumber < 1 || u.RoomNumber > limit {
			return fmt.Errorf("%w: %s %d (claim has %d)", ErrRoomOutOfRange, u.RoomType, u.RoomNumber, limit)
		}
		if seen[u.RoomType] == nil {
			seen[u.RoomType] = make(map[int]bool, limit)
		}
		if seen[u.RoomType][u.RoomNumber] {
			return fmt.Errorf("%w: %s %d", ErrDuplicatePhoto, u.RoomType, u.RoomNumber)
		}
		seen[u.RoomType][u.RoomNumber] = true
		counts[u.RoomType]++

		if err := ValidateImage(u.Image); err != nil {
			return fmt.Errorf("%s %d: %w", u.RoomType, u.RoomNumber, err)
		}
	}

	for _, rt := range []RoomType{Bedroom, Bathroom} {
		want := max(reported.of(rt)-original.of(rt), 0)
		if want == 0 && reported.of(rt) != original.of(rt) && reported.of(rt) > 0 {
			want = 1
		}
		if counts[rt] < want {
			return fmt.Errorf("%w: %s needs %d, got %d", ErrMissingPhoto, rt, want, counts[rt])
		}
	}
	return nil
}
