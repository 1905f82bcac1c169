// Package clips derives ranked output clips from scored segments.
package clips

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"reelclip/internal/models"
)

// DefaultTopK is the number of clips kept per upload.
const DefaultTopK = 10

type Options struct {
	TopK int
	// MinSeconds and MaxSeconds normalize clip length when positive. A short
	// clip is extended and a long one is cut, both from its start offset.
	MinSeconds float64
	MaxSeconds float64
}

// Candidate is a derived clip before ids and ownership are assigned.
type Candidate struct {
	SegmentID string
	Rank      int
	Title     string
	StartS    float64
	EndS      float64
	Score     float64
}

// Derive ranks segments by score (descending), breaking ties by earlier
// start, then earlier end, then id, and maps the top K to candidates. The
// input slice is not modified.
func Derive(segments []models.Segment, opts Options) []Candidate {
	k := opts.TopK
	if k <= 0 {
		k = DefaultTopK
	}

	ranked := make([]models.Segment, len(segments))
	copy(ranked, segments)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.StartS != b.StartS {
			return a.StartS < b.StartS
		}
		if a.EndS != b.EndS {
			return a.EndS < b.EndS
		}
		return a.ID < b.ID
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}

	out := make([]Candidate, 0, len(ranked))
	for i, s := range ranked {
		rank := i + 1
		start, end := normalize(s.StartS, s.EndS, opts)
		out = append(out, Candidate{
			SegmentID: s.ID,
			Rank:      rank,
			Title:     title(s.Reason, rank),
			StartS:    start,
			EndS:      end,
			Score:     s.Score,
		})
	}
	return out
}

// Build turns candidates into clip records for a project.
func Build(candidates []Candidate, projectID, uploadID string, newID func() string) []models.Clip {
	out := make([]models.Clip, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, models.Clip{
			ID:        newID(),
			ProjectID: projectID,
			UploadID:  uploadID,
			SegmentID: c.SegmentID,
			Rank:      c.Rank,
			Title:     c.Title,
			StartS:    c.StartS,
			EndS:      c.EndS,
			Score:     c.Score,
			Status:    models.ClipStatusReady,
		})
	}
	return out
}

func normalize(start, end float64, opts Options) (float64, float64) {
	length := end - start
	if opts.MinSeconds > 0 && length < opts.MinSeconds {
		end = start + opts.MinSeconds
	}
	if opts.MaxSeconds > 0 && length > opts.MaxSeconds {
		end = start + opts.MaxSeconds
	}
	return start, end
}

// title uses the reason's "title", else its first hook, else "Clip N".
func title(reason json.RawMessage, rank int) string {
	if len(reason) > 0 {
		var meta struct {
			Title string   `json:"title"`
			Hooks []string `json:"hooks"`
		}
		if err := json.Unmarshal(reason, &meta); err == nil {
			if t := strings.TrimSpace(meta.Title); t != "" {
				return t
			}
			for _, h := range meta.Hooks {
				if h = strings.TrimSpace(h); h != "" {
					return h
				}
			}
		}
	}
	return fmt.Sprintf("Clip %d", rank)
}
