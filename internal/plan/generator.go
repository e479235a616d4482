// Package plan derives a floor-plan graph from a house specification. The
// layout is a pure function: no randomness, no I/O, and identical input
// always yields a byte-identical canonical serialization.
package plan

import (
	"drafted/internal/domain"
)

// Layout constants, all in feet. Origin is the top-left corner of the
// outline; x grows right, y grows down.
const (
	outlineWidth  = 52.0
	outlineHeight = 34.0
	publicWidth   = 32.0
	privateWidth  = outlineWidth - publicWidth

	publicMinHeight  = 8.0
	publicMaxHeight  = 14.0
	privateMinHeight = 6.0
	privateMaxHeight = 12.0

	hallMinHeight = 4.0
)

// hallRoomID is fixed so the graph stays reproducible across runs.
const hallRoomID = "hall"

// defaultLivingID identifies the substitute room added when a spec carries
// no public rooms at all.
const defaultLivingID = "living-default"

var publicTypes = map[string]bool{
	domain.RoomLiving:  true,
	domain.RoomKitchen: true,
	domain.RoomDining:  true,
}

var privateTypes = map[string]bool{
	domain.RoomBedroom:  true,
	domain.RoomBathroom: true,
	domain.RoomLaundry:  true,
}

// Generate places the spec's rooms into a fixed two-zone layout: public
// rooms (living/kitchen/dining) stacked down the left column, private rooms
// (bedroom/bathroom/laundry) down the right. Rooms that would overflow the
// outline are dropped without a warning; only an entirely empty zone warns.
// Leftover space in the public column becomes a hall when at least
// hallMinHeight remains.
func Generate(spec *domain.HouseSpec) *domain.PlanGraph {
	graph := &domain.PlanGraph{
		Version:  "1.0",
		Outline:  domain.Rect{X: 0, Y: 0, W: outlineWidth, H: outlineHeight},
		Rooms:    []domain.PlanRoom{},
		Edges:    []domain.PlanEdge{},
		Warnings: []string{},
	}

	public := filterRooms(spec.Rooms, publicTypes)
	if len(public) == 0 {
		graph.Warnings = append(graph.Warnings, "No public rooms (living/kitchen/dining) in spec; adding default Great Room.")
		public = []domain.SpecRoom{{
			ID:   defaultLivingID,
			Type: domain.RoomLiving,
			Name: "Great Room",
			Area: 320,
		}}
	}

	y := 0.0
	for _, r := range public {
		h := clamp(r.Area/publicWidth, publicMinHeight, publicMaxHeight)
		if y+h > outlineHeight {
			break
		}
		graph.Rooms = append(graph.Rooms, domain.PlanRoom{
			ID:   r.ID,
			Name: r.Name,
			Type: r.Type,
			Area: r.Area,
			Rect: domain.Rect{X: 0, Y: y, W: publicWidth, H: h},
		})
		y += h
	}

	hallPlaced := false
	if hallHeight := outlineHeight - y; hallHeight >= hallMinHeight {
		graph.Rooms = append(graph.Rooms, domain.PlanRoom{
			ID:   hallRoomID,
			Name: "Hall",
			Type: domain.RoomHall,
			Area: publicWidth * hallHeight,
			Rect: domain.Rect{X: 0, Y: y, W: publicWidth, H: hallHeight},
		})
		hallPlaced = true
	}

	private := filterRooms(spec.Rooms, privateTypes)
	if len(private) == 0 {
		graph.Warnings = append(graph.Warnings, "No private rooms (bedroom/bathroom/laundry) in spec; adding defaults.")
	}

	y = 0.0
	for _, r := range private {
		h := clamp(r.Area/privateWidth, privateMinHeight, privateMaxHeight)
		if y+h > outlineHeight {
			break
		}
		graph.Rooms = append(graph.Rooms, domain.PlanRoom{
			ID:   r.ID,
			Name: r.Name,
			Type: r.Type,
			Area: r.Area,
			Rect: domain.Rect{X: publicWidth, Y: y, W: privateWidth, H: h},
		})
		y += h
	}

	graph.Edges = adjacencyEdges(graph.Rooms, hallPlaced)
	return graph
}

// adjacencyEdges applies the fixed type-pair rules: living–kitchen,
// kitchen–dining, living–dining, and hall to the first bedroom.
func adjacencyEdges(rooms []domain.PlanRoom, hallPlaced bool) []domain.PlanEdge {
	edges := []domain.PlanEdge{}
	living := firstOfType(rooms, domain.RoomLiving)
	kitchen := firstOfType(rooms, domain.RoomKitchen)
	dining := firstOfType(rooms, domain.RoomDining)

	if living != nil && kitchen != nil {
		edges = append(edges, domain.PlanEdge{A: living.ID, B: kitchen.ID, Kind: domain.EdgeAdjacent})
	}
	if kitchen != nil && dining != nil {
		edges = append(edges, domain.PlanEdge{A: kitchen.ID, B: dining.ID, Kind: domain.EdgeAdjacent})
	}
	if living != nil && dining != nil {
		edges = append(edges, domain.PlanEdge{A: living.ID, B: dining.ID, Kind: domain.EdgeAdjacent})
	}
	if hallPlaced {
		if bed := firstOfType(rooms, domain.RoomBedroom); bed != nil {
			edges = append(edges, domain.PlanEdge{A: hallRoomID, B: bed.ID, Kind: domain.EdgeCirculation})
		}
	}
	return edges
}

func filterRooms(rooms []domain.SpecRoom, types map[string]bool) []domain.SpecRoom {
	out := []domain.SpecRoom{}
	for _, r := range rooms {
		if types[r.Type] {
			out = append(out, r)
		}
	}
	return out
}

func firstOfType(rooms []domain.PlanRoom, roomType string) *domain.PlanRoom {
	for i := range rooms {
		if rooms[i].Type == roomType {
			return &rooms[i]
		}
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
