package plan

import (
	"strings"
	"testing"

	"drafted/internal/domain"
)

func sampleSpec() *domain.HouseSpec {
	return &domain.HouseSpec{
		Version:   "1.0",
		Style:     "contemporary",
		Bedrooms:  3,
		Bathrooms: 2,
		Rooms: []domain.SpecRoom{
			{ID: "living", Type: domain.RoomLiving, Name: "Great Room", Area: 320},
			{ID: "kitchen", Type: domain.RoomKitchen, Name: "Kitchen", Area: 220},
			{ID: "dining", Type: domain.RoomDining, Name: "Dining", Area: 160},
			{ID: "laundry", Type: domain.RoomLaundry, Name: "Laundry", Area: 70},
			{ID: "bed-1", Type: domain.RoomBedroom, Name: "Primary Bedroom", Area: 240},
			{ID: "bed-2", Type: domain.RoomBedroom, Name: "Bedroom 2", Area: 150},
			{ID: "bath-1", Type: domain.RoomBathroom, Name: "Bathroom 1", Area: 70},
		},
	}
}

func roomByID(t *testing.T, g *domain.PlanGraph, id string) domain.PlanRoom {
	t.Helper()
	for _, r := range g.Rooms {
		if r.ID == id {
			return r
		}
	}
	t.Fatalf("room %q not in plan", id)
	return domain.PlanRoom{}
}

func TestGenerateDeterministic(t *testing.T) {
	a := Generate(sampleSpec())
	b := Generate(sampleSpec())

	aj, err := a.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	bj, err := b.CanonicalJSON()
	if err != nil {
		t.Fatalf("canonical json: %v", err)
	}
	if string(aj) != string(bj) {
		t.Fatal("same spec produced different plans")
	}

	ah, _ := a.ContentHash()
	bh, _ := b.ContentHash()
	if ah != bh || ah == "" {
		t.Fatalf("content hash mismatch: %q vs %q", ah, bh)
	}
}

func TestGenerateColumns(t *testing.T) {
	g := Generate(sampleSpec())

	living := roomByID(t, g, "living")
	if living.Rect.X != 0 || living.Rect.W != publicWidth {
		t.Fatalf("living placed at %+v, want left column", living.Rect)
	}
	if living.Rect.H != 10 { // 320 / 32
		t.Fatalf("living height = %v, want 10", living.Rect.H)
	}

	bed := roomByID(t, g, "bed-1")
	if bed.Rect.X != publicWidth || bed.Rect.W != privateWidth {
		t.Fatalf("bedroom placed at %+v, want right column", bed.Rect)
	}
	if bed.Rect.H != 12 { // 240 / 20 = 12, at the clamp ceiling
		t.Fatalf("bedroom height = %v, want 12", bed.Rect.H)
	}

	laundry := roomByID(t, g, "laundry")
	if laundry.Rect.H != 6 { // 70 / 20 = 3.5, clamped up
		t.Fatalf("laundry height = %v, want clamp floor 6", laundry.Rect.H)
	}

	// Public stack: 10 + 8 + 8 = 26 ft used (kitchen and dining both
	// clamp up to the 8 ft floor), leaving 8 ft of hall.
	hall := roomByID(t, g, "hall")
	if hall.Rect.Y != 26 || hall.Rect.H != 8 {
		t.Fatalf("hall rect = %+v, want y=26 h=8", hall.Rect)
	}
	if len(g.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", g.Warnings)
	}
}

func TestGenerateEdges(t *testing.T) {
	g := Generate(sampleSpec())

	want := map[[2]string]string{
		{"living", "kitchen"}: domain.EdgeAdjacent,
		{"kitchen", "dining"}: domain.EdgeAdjacent,
		{"living", "dining"}:  domain.EdgeAdjacent,
		{"hall", "bed-1"}:     domain.EdgeCirculation,
	}
	if len(g.Edges) != len(want) {
		t.Fatalf("got %d edges, want %d: %+v", len(g.Edges), len(want), g.Edges)
	}
	for _, e := range g.Edges {
		kind, ok := want[[2]string{e.A, e.B}]
		if !ok {
			t.Fatalf("unexpected edge %+v", e)
		}
		if e.Kind != kind {
			t.Fatalf("edge %s-%s kind = %s, want %s", e.A, e.B, e.Kind, kind)
		}
	}
}

func TestGenerateNoPublicRooms(t *testing.T) {
	spec := &domain.HouseSpec{
		Version: "1.0",
		Rooms: []domain.SpecRoom{
			{ID: "bed-1", Type: domain.RoomBedroom, Name: "Bedroom 1", Area: 150},
		},
	}
	g := Generate(spec)

	living := roomByID(t, g, defaultLivingID)
	if living.Name != "Great Room" || living.Area != 320 {
		t.Fatalf("default public room = %+v", living)
	}
	if len(g.Warnings) != 1 || !strings.Contains(g.Warnings[0], "No public rooms") {
		t.Fatalf("warnings = %v", g.Warnings)
	}

	// Determinism holds for the substitute room too.
	h1, _ := g.ContentHash()
	h2, _ := Generate(spec).ContentHash()
	if h1 != h2 {
		t.Fatal("default room broke determinism")
	}
}

func TestGenerateNoPrivateRooms(t *testing.T) {
	spec := &domain.HouseSpec{
		Version: "1.0",
		Rooms: []domain.SpecRoom{
			{ID: "living", Type: domain.RoomLiving, Name: "Living", Area: 300},
		},
	}
	g := Generate(spec)
	if len(g.Warnings) != 1 || !strings.Contains(g.Warnings[0], "No private rooms") {
		t.Fatalf("warnings = %v", g.Warnings)
	}
}

func TestGenerateOverflowDropsSilently(t *testing.T) {
	spec := sampleSpec()
	for i := 0; i < 8; i++ {
		spec.Rooms = append(spec.Rooms, domain.SpecRoom{
			ID:   "extra-bed-" + string(rune('a'+i)),
			Type: domain.RoomBedroom,
			Name: "Extra Bedroom",
			Area: 200,
		})
	}
	g := Generate(spec)

	for _, r := range g.Rooms {
		if r.Rect.Y+r.Rect.H > outlineHeight+1e-9 {
			t.Fatalf("room %s exceeds outline: %+v", r.ID, r.Rect)
		}
	}
	// Dropping is not an error and not a warning.
	if len(g.Warnings) != 0 {
		t.Fatalf("overflow produced warnings: %v", g.Warnings)
	}
	// Private column fits 6+12 and 6+12-clamped rooms; some extras must be gone.
	if domainRoomCount(g, domain.RoomBedroom) >= 2+8 {
		t.Fatal("no bedrooms were dropped")
	}
}

func domainRoomCount(g *domain.PlanGraph, roomType string) int {
	n := 0
	for _, r := range g.Rooms {
		if r.Type == roomType {
			n++
		}
	}
	return n
}

func TestRenderSVG(t *testing.T) {
	g := Generate(sampleSpec())
	svg := RenderSVG(g)

	if !strings.HasPrefix(svg, `<svg xmlns="http://www.w3.org/2000/svg" width="624" height="408"`) {
		t.Fatalf("svg header: %.120s", svg)
	}
	if !strings.HasSuffix(svg, "</svg>") {
		t.Fatal("svg not closed")
	}
	if !strings.Contains(svg, ">Primary Bedroom</text>") {
		t.Fatal("room label missing")
	}
	// One background rect, one border rect, one per room.
	if got := strings.Count(svg, "<rect"); got != 2+len(g.Rooms) {
		t.Fatalf("rect count = %d, want %d", got, 2+len(g.Rooms))
	}
}

func TestRenderSVGEscapesLabels(t *testing.T) {
	g := &domain.PlanGraph{
		Version: "1.0",
		Outline: domain.Rect{W: 10, H: 10},
		Rooms: []domain.PlanRoom{
			{ID: "r", Name: `Kid's <Room> & "Den"`, Type: domain.RoomBedroom, Rect: domain.Rect{W: 10, H: 10}},
		},
	}
	svg := RenderSVG(g)
	if strings.Contains(svg, "<Room>") {
		t.Fatal("label not escaped")
	}
	if !strings.Contains(svg, "&lt;Room&gt;") {
		t.Fatalf("escaped label missing: %s", svg)
	}
}
