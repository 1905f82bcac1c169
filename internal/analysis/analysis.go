// Package analysis defines the contract with the external analysis service
// that turns a source video into a transcript and scored time segments.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrPermanent marks failures that retrying cannot fix, such as malformed input.
var ErrPermanent = errors.New("permanent analysis failure")

// Permanent wraps err so that IsPermanent reports true.
func Permanent(err error) error {
	if err == nil || errors.Is(err, ErrPermanent) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

type Request struct {
	UploadID string
	Source   string
	Kind     string
}

type Transcript struct {
	Language   string
	Confidence float64
	// TextRef is the storage key of the full text or word-level data.
	TextRef string
}

type Segment struct {
	StartS float64
	EndS   float64
	Score  float64
	Reason json.RawMessage
}

type Result struct {
	Transcript Transcript
	Segments   []Segment
}

// Collaborator analyzes one upload. Implementations return an error wrapped
// with Permanent when the request can never succeed; every other error is
// treated as transient.
type Collaborator interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
}

// validSegments drops intervals that are empty or inverted.
func validSegments(in []Segment) []Segment {
	out := make([]Segment, 0, len(in))
	for _, s := range in {
		if !(s.EndS > s.StartS) || s.StartS < 0 {
			continue
		}
		out = append(out, s)
	}
	return out
}
