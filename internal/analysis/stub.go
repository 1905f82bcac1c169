package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
)

var hooks = []string{
	"Nobody talks about this",
	"The secret that changed everything",
	"The mistake everyone makes",
	"The truth about overnight success",
	"Here's what happened next",
}

var categories = []string{"educational", "entertainment", "inspirational", "controversial"}

// Stub is a deterministic Collaborator: the same source always yields the
// same transcript and segments. It can be told to fail.
type Stub struct {
	mu        sync.Mutex
	failTimes int
	permanent bool
	calls     int
}

func NewStub() *Stub {
	return &Stub{}
}

// FailNext makes the next n calls return a transient error.
func (s *Stub) FailNext(n int) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTimes = n
	return s
}

// FailPermanently makes every call return a permanent error.
func (s *Stub) FailPermanently() *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permanent = true
	return s
}

// Calls returns how many times Analyze ran.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *Stub) Analyze(ctx context.Context, req Request) (*Result, error) {
	s.mu.Lock()
	s.calls++
	permanent := s.permanent
	fail := s.failTimes > 0
	if fail {
		s.failTimes--
	}
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if permanent {
		return nil, Permanent(fmt.Errorf("source %q cannot be decoded", req.Source))
	}
	if fail {
		return nil, errors.New("analysis service unavailable")
	}
	return Synthesize(req.Source), nil
}

// Synthesize builds the deterministic result for a source descriptor.
func Synthesize(source string) *Result {
	h := fnv.New64a()
	h.Write([]byte(source))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	count := 4 + rng.Intn(14)
	segments := make([]Segment, 0, count)
	cursor := 0.0
	for i := 0; i < count; i++ {
		start := cursor + float64(rng.Intn(20))
		length := 15 + float64(rng.Intn(76))
		score := 60 + float64(rng.Intn(400))/10
		reason, _ := json.Marshal(map[string]any{
			"reasons":    []string{hooks[rng.Intn(len(hooks))]},
			"category":   categories[rng.Intn(len(categories))],
			"confidence": 0.8 + float64(rng.Intn(15))/100,
		})
		segments = append(segments, Segment{
			StartS: start,
			EndS:   start + length,
			Score:  score,
			Reason: reason,
		})
		cursor = start + length/2
	}

	return &Result{
		Transcript: Transcript{
			Language:   "en",
			Confidence: 0.88 + float64(rng.Intn(8))/100,
			TextRef:    fmt.Sprintf("transcripts/%x.srt", h.Sum64()),
		},
		Segments: segments,
	}
}
