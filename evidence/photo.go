// Package evidence validates and stores the room photos attached to a size
// claim.
package evidence

import "time"

type RoomType string

const (
	Bedroom  RoomType = "bedroom"
	Bathroom RoomType = "bathroom"
)

func (t RoomType) Valid() bool {
	return t == Bedroom || t == Bathroom
}

// Upload is one photo supplied with a new claim.
type Upload struct {
	RoomType   RoomType `json:"roomType"`
	RoomNumber int      `json:"roomNumber"`
	Image      string   `json:"image"`
}

// Photo mirrors the evidence_photos table. Image is opaque data-URI text.
type Photo struct {
	ID               string
	DisputeRequestID string
	RoomType         RoomType
	RoomNumber       int
	Image            string
	CreatedAt        time.Time
}
