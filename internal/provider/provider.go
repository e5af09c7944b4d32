// Package provider defines the generative fix provider contract used by
// the healing loop for logic and type errors the deterministic detector
// cannot reach.
package provider

import (
	"context"

	"github.com/lucasnoah/healfactory/internal/patch"
	"github.com/lucasnoah/healfactory/internal/testrun"
)

// Request carries everything a provider needs to propose fixes: the
// rendered file tree, the candidate source files, and the test failures.
type Request struct {
	Tree     string
	Files    map[string]string
	Failures []testrun.Failure
}

// Response is a set of proposed patches plus the commit title to use when
// they are applied.
type Response struct {
	Patches     []patch.Patch
	CommitTitle string
}

// FixProvider proposes line-level fixes for failing tests.
type FixProvider interface {
	ProposeFixes(ctx context.Context, req Request) (*Response, error)
}
