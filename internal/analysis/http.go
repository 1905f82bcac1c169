package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"reelclip/internal/logger"
	"reelclip/internal/models"
)

const maxResponseBytes = 16 << 20

// HTTPClient drives the staged analysis service:
// fetch -> /transcribe -> /segment -> /score-segments.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	// transportRetries is how often a stage is retried on connection errors
	// before the failure is handed back to the job queue.
	transportRetries uint64
	log              *logrus.Entry
}

func NewHTTPClient(baseURL string, stageTimeout time.Duration, log logrus.FieldLogger) *HTTPClient {
	return &HTTPClient{
		baseURL:          strings.TrimRight(baseURL, "/"),
		client:           &http.Client{Timeout: stageTimeout},
		transportRetries: 2,
		log:              logger.Component(log, "analysis"),
	}
}

type fetchResponse struct {
	VideoPath string `json:"videoPath"`
}

type transcriptResponse struct {
	ID           string   `json:"id"`
	Language     string   `json:"language"`
	Confidence   *float64 `json:"confidence"`
	SrtKey       string   `json:"srtKey"`
	WordsJSONKey string   `json:"wordsJsonKey"`
}

type segmentResponse struct {
	Segments []json.RawMessage `json:"segments"`
}

type scoredSegment struct {
	ID         string          `json:"id"`
	StartS     float64         `json:"startS"`
	EndS       float64         `json:"endS"`
	Score      float64         `json:"score"`
	Text       string          `json:"text"`
	ReasonJSON json.RawMessage `json:"reasonJson"`
}

type scoreResponse struct {
	ScoredSegments []scoredSegment `json:"scoredSegments"`
}

// Analyze runs all stages for one upload.
func (c *HTTPClient) Analyze(ctx context.Context, req Request) (*Result, error) {
	log := c.log.WithField("upload_id", req.UploadID)

	videoPath, err := c.fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	log.WithField("video_path", videoPath).Debug("source fetched")

	var rawTranscript json.RawMessage
	if err := c.post(ctx, "/transcribe", map[string]any{"videoPath": videoPath, "uploadId": req.UploadID}, &rawTranscript); err != nil {
		return nil, err
	}
	var transcript transcriptResponse
	if err := json.Unmarshal(rawTranscript, &transcript); err != nil {
		return nil, Permanent(fmt.Errorf("decode transcript: %w", err))
	}

	var segmented segmentResponse
	if err := c.post(ctx, "/segment", map[string]any{"transcriptResult": rawTranscript, "uploadId": req.UploadID}, &segmented); err != nil {
		return nil, err
	}

	var scored scoreResponse
	if len(segmented.Segments) > 0 {
		body := map[string]any{"segments": segmented.Segments, "transcriptResult": rawTranscript}
		if err := c.post(ctx, "/score-segments", body, &scored); err != nil {
			return nil, err
		}
	}

	result := &Result{
		Transcript: Transcript{
			Language: transcript.Language,
			TextRef:  transcript.SrtKey,
		},
	}
	if transcript.Confidence != nil {
		result.Transcript.Confidence = *transcript.Confidence
	}
	if result.Transcript.TextRef == "" {
		result.Transcript.TextRef = transcript.WordsJSONKey
	}

	segments := make([]Segment, 0, len(scored.ScoredSegments))
	for _, s := range scored.ScoredSegments {
		segments = append(segments, Segment{
			StartS: s.StartS,
			EndS:   s.EndS,
			Score:  s.Score,
			Reason: reasonWithText(s.ReasonJSON, s.Text),
		})
	}
	result.Segments = validSegments(segments)

	if dropped := len(segments) - len(result.Segments); dropped > 0 {
		log.WithField("dropped", dropped).Warn("discarded segments with empty or inverted intervals")
	}
	log.WithField("segments", len(result.Segments)).Info("analysis finished")
	return result, nil
}

func (c *HTTPClient) fetch(ctx context.Context, req Request) (string, error) {
	var out fetchResponse
	var err error
	switch req.Kind {
	case models.SourceKindFile:
		err = c.post(ctx, "/download-storage", map[string]string{"storageKey": req.Source}, &out)
	case models.SourceKindRemoteURL:
		err = c.post(ctx, "/download-youtube", map[string]string{"url": req.Source}, &out)
	default:
		return "", Permanent(fmt.Errorf("unsupported source kind %q", req.Kind))
	}
	if err != nil {
		return "", err
	}
	if out.VideoPath == "" {
		return "", fmt.Errorf("fetch returned no video path")
	}
	return out.VideoPath, nil
}

// statusError carries the body of a non-2xx response.
type statusError struct {
	Path   string
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("analysis %s: status %d: %s", e.Path, e.Status, e.Body)
}

// post sends in as JSON and decodes the response into out. Connection
// errors are retried briefly; HTTP errors are returned as-is so the queue
// decides about redelivery.
func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return Permanent(fmt.Errorf("encode %s request: %w", path, err))
	}

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(Permanent(err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			c.log.WithError(err).WithField("path", path).Warn("analysis request failed")
			return err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}

		if resp.StatusCode >= 300 {
			serr := &statusError{Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			if rejectsInput(resp.StatusCode) || markedPermanent(body) {
				return backoff.Permanent(Permanent(serr))
			}
			return backoff.Permanent(serr)
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newTransportBackOff(), c.transportRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return err
	}

	if markedPermanent(body) {
		return Permanent(fmt.Errorf("analysis %s rejected the request: %s", path, strings.TrimSpace(string(body))))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func newTransportBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// rejectsInput reports whether the status means the request itself is
// malformed, so resending it cannot succeed. Other 4xx (408, 429, ...) are
// retried like server errors.
func rejectsInput(code int) bool {
	return code == http.StatusBadRequest || code == http.StatusUnprocessableEntity
}

// markedPermanent reports whether the body is a JSON object with "permanent": true.
func markedPermanent(body []byte) bool {
	var flag struct {
		Permanent bool `json:"permanent"`
	}
	if err := json.Unmarshal(body, &flag); err != nil {
		return false
	}
	return flag.Permanent
}

// reasonWithText adds the segment text to its reason metadata when missing.
func reasonWithText(reason json.RawMessage, text string) json.RawMessage {
	if text == "" {
		return reason
	}
	fields := map[string]any{}
	if len(reason) > 0 {
		if err := json.Unmarshal(reason, &fields); err != nil {
			return reason
		}
	}
	if _, ok := fields["text"]; ok {
		return reason
	}
	fields["text"] = text
	merged, err := json.Marshal(fields)
	if err != nil {
		return reason
	}
	return merged
}
