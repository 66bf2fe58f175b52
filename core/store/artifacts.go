package store

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ArtifactSet is the payload handed to the Publisher collaborator:
// a branch name, a commit message, and the relative-path→content map
// for the two stores and the evidence file. The publishing mechanism
// itself (branch/commit/PR creation) lives outside this pipeline.
type ArtifactSet struct {
	Branch  string
	Message string
	Files   map[string][]byte
}

// BuildArtifacts renders the stores and evidence log into an
// ArtifactSet. The branch name carries a fresh UUID so repeated runs
// never collide.
func BuildArtifacts(suppliers, parts *Store, evidence *EvidenceLog, at time.Time) (*ArtifactSet, error) {
	supplierCSV, err := suppliers.Render()
	if err != nil {
		return nil, fmt.Errorf("rendering supplier store: %w", err)
	}
	partCSV, err := parts.Render()
	if err != nil {
		return nil, fmt.Errorf("rendering parts store: %w", err)
	}
	evidenceJSON, err := evidence.Render()
	if err != nil {
		return nil, err
	}

	return &ArtifactSet{
		Branch:  "partspipe/ingest-" + uuid.NewString(),
		Message: fmt.Sprintf("Ingest supplier/parts data (%s)", at.UTC().Format(time.RFC3339)),
		Files: map[string][]byte{
			filepath.Base(suppliers.Path()): supplierCSV,
			filepath.Base(parts.Path()):     partCSV,
			EvidenceFilename(at):            evidenceJSON,
		},
	}, nil
}
