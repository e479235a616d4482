package domain

// Room types recognized by the plan generator's zoning rules.
const (
	RoomLiving   = "living"
	RoomKitchen  = "kitchen"
	RoomDining   = "dining"
	RoomBedroom  = "bedroom"
	RoomBathroom = "bathroom"
	RoomLaundry  = "laundry"
	RoomHall     = "hall"
)

// SpecRoom is one room of a generated house specification.
type SpecRoom struct {
	ID   string  `json:"id"`
	Type string  `json:"type"`
	Name string  `json:"name"`
	Area float64 `json:"area_ft2"`
}

// HouseSpec is the authoritative generated specification for a job. It is
// upserted per job: reprocessing overwrites, never appends.
type HouseSpec struct {
	Version   string     `json:"version"`
	Style     string     `json:"style"`
	Bedrooms  int        `json:"bedrooms"`
	Bathrooms int        `json:"bathrooms"`
	Rooms     []SpecRoom `json:"rooms"`
	Notes     []string   `json:"notes"`
}

// CountRooms returns how many rooms of the given type the spec contains.
func (s *HouseSpec) CountRooms(roomType string) int {
	n := 0
	for _, r := range s.Rooms {
		if r.Type == roomType {
			n++
		}
	}
	return n
}
