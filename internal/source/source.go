// Package source parses the opaque source descriptors accepted at intake.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	ytdl "github.com/kkdai/youtube/v2"

	"reelclip/internal/models"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid source descriptor")

const maxDescriptorLength = 2048

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Descriptor is a validated source reference.
type Descriptor struct {
	Kind  string
	Value string
	// VideoID is set for YouTube links.
	VideoID string
}

// IsYouTube reports whether the descriptor points at a YouTube video.
func (d Descriptor) IsYouTube() bool {
	return d.VideoID != ""
}

// Parse validates raw as a descriptor of the given kind. An empty kind is
// inferred: http(s) URLs are remote, everything else is a storage key.
func Parse(raw, kind string) (Descriptor, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Descriptor{}, fmt.Errorf("%w: empty", ErrInvalid)
	}
	if len(value) > maxDescriptorLength {
		return Descriptor{}, fmt.Errorf("%w: longer than %d characters", ErrInvalid, maxDescriptorLength)
	}
	if strings.IndexFunc(value, unicode.IsControl) >= 0 {
		return Descriptor{}, fmt.Errorf("%w: contains control characters", ErrInvalid)
	}

	if kind == "" {
		kind = inferKind(value)
	}

	switch kind {
	case models.SourceKindFile:
		return parseFileKey(value)
	case models.SourceKindRemoteURL:
		return parseRemoteURL(value)
	default:
		return Descriptor{}, fmt.Errorf("%w: unknown kind %q", ErrInvalid, kind)
	}
}

func inferKind(value string) string {
	lower := strings.ToLower(value)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return models.SourceKindRemoteURL
	}
	return models.SourceKindFile
}

func parseFileKey(value string) (Descriptor, error) {
	if strings.Contains(value, "://") {
		return Descriptor{}, fmt.Errorf("%w: storage key must not be a URL", ErrInvalid)
	}
	if strings.HasPrefix(value, "/") {
		return Descriptor{}, fmt.Errorf("%w: storage key must be relative", ErrInvalid)
	}
	for _, part := range strings.Split(value, "/") {
		if part == "" || part == "." || part == ".." {
			return Descriptor{}, fmt.Errorf("%w: malformed storage key %q", ErrInvalid, value)
		}
	}
	return Descriptor{Kind: models.SourceKindFile, Value: value}, nil
}

func parseRemoteURL(value string) (Descriptor, error) {
	u, err := url.Parse(value)
	if err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Descriptor{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalid, u.Scheme)
	}
	if u.Hostname() == "" {
		return Descriptor{}, fmt.Errorf("%w: missing host", ErrInvalid)
	}

	if isYouTubeHost(u.Hostname()) {
		id, err := ytdl.ExtractVideoID(value)
		if err != nil {
			return Descriptor{}, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		if !videoIDPattern.MatchString(id) {
			return Descriptor{}, fmt.Errorf("%w: no video id in %q", ErrInvalid, value)
		}
		return Descriptor{
			Kind:    models.SourceKindRemoteURL,
			Value:   "https://www.youtube.com/watch?v=" + id,
			VideoID: id,
		}, nil
	}

	return Descriptor{Kind: models.SourceKindRemoteURL, Value: u.String()}, nil
}

func isYouTubeHost(host string) bool {
	switch strings.ToLower(host) {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be":
		return true
	default:
		return false
	}
}
