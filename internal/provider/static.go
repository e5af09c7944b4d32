package provider

import (
	"context"
	"log"

	"github.com/lucasnoah/healfactory/internal/patch"
)

// Static returns a fixed set of proposals without any network call. Used
// for offline runs and demos.
type Static struct {
	Fixes []patch.Patch
	Title string
}

// ProposeFixes returns copies of the canned fixes with pending status.
func (s *Static) ProposeFixes(ctx context.Context, req Request) (*Response, error) {
	log.Printf("[PROVIDER] static provider returning %d canned fixes", len(s.Fixes))

	out := make([]patch.Patch, len(s.Fixes))
	copy(out, s.Fixes)
	for i := range out {
		out[i].File = patch.NormalizePath(out[i].File)
		out[i].Status = patch.StatusPending
	}

	title := s.Title
	if title == "" {
		title = defaultCommitTitle
	}
	return &Response{Patches: out, CommitTitle: title}, nil
}
