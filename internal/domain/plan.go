package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Rect is an axis-aligned rectangle in feet. Origin is the outline's
// top-left corner; x grows right, y grows down.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// PlanRoom is a room placed on the floor plan.
type PlanRoom struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Type string  `json:"type"`
	Area float64 `json:"area_ft2"`
	Rect Rect    `json:"rect_ft"`
}

// PlanEdge records adjacency between two placed rooms.
type PlanEdge struct {
	A    string `json:"a"`
	B    string `json:"b"`
	Kind string `json:"kind"`
}

const (
	EdgeAdjacent    = "adjacent"
	EdgeCirculation = "circulation"
)

// PlanGraph is the derived floor-plan graph for a job: deterministic from
// the HouseSpec, upserted per job.
type PlanGraph struct {
	Version  string     `json:"version"`
	Outline  Rect       `json:"outline_ft"`
	Rooms    []PlanRoom `json:"rooms"`
	Edges    []PlanEdge `json:"edges"`
	Warnings []string   `json:"warnings"`
}

// CanonicalJSON serializes the graph with stable field order and no
// incidental whitespace, so identical graphs always produce identical
// bytes. Downstream caches key on the hash of this serialization.
func (p *PlanGraph) CanonicalJSON() ([]byte, error) {
	return json.Marshal(p)
}

// ContentHash returns the sha256 hex digest of the canonical serialization.
func (p *PlanGraph) ContentHash() (string, error) {
	b, err := p.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// ValidationResult tags persisted plan graphs.
const (
	PlanValidationOK   = "ok"
	PlanValidationWarn = "warn"
)
