package domain

import "time"

// ArtifactType tags what a generated file contains.
type ArtifactType string

const (
	ArtifactSpecJSON      ArtifactType = "spec_json"
	ArtifactPlanSVG       ArtifactType = "plan_svg"
	ArtifactExteriorImage ArtifactType = "exterior_image"
)

// Artifact is one generated, checksummed output file of a job. Rows are
// immutable after insert; a regenerate produces new artifacts under a new
// job. Checksum and size reflect the bytes on disk at write time; a file
// missing later is a runtime integrity failure, not a data-model violation.
type Artifact struct {
	ID        string
	JobID     string
	Type      ArtifactType
	Path      string
	MIMEType  string
	Checksum  string
	SizeBytes int64
	Meta      map[string]any
	CreatedAt time.Time
}
