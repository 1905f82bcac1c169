package youtube

import (
	"context"
	"fmt"
	"time"

	"github.com/kkdai/youtube/v2"

	"reelclip/internal/source"
)

// Client はYouTube API操作を抽象化するクライアント
type Client struct {
	client youtube.Client
}

// NewClient は新しいYouTubeクライアントを作成
func NewClient() *Client {
	return &Client{
		client: youtube.Client{},
	}
}

// VideoInfo は動画のメタ情報
type VideoInfo struct {
	ID       string
	Title    string
	Author   string
	Duration time.Duration
}

// GetVideo は動画情報を取得
func (c *Client) GetVideo(ctx context.Context, videoID string) (*VideoInfo, error) {
	video, err := c.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, err
	}

	return &VideoInfo{
		ID:       video.ID,
		Title:    video.Title,
		Author:   video.Author,
		Duration: video.Duration,
	}, nil
}

// Title は投稿時にタイトルが省略された場合の表示名を返す
func (c *Client) Title(ctx context.Context, d source.Descriptor) (string, error) {
	if !d.IsYouTube() {
		return "", fmt.Errorf("not a youtube source: %s", d.Value)
	}
	info, err := c.GetVideo(ctx, d.VideoID)
	if err != nil {
		return "", fmt.Errorf("failed to get video %s: %w", d.VideoID, err)
	}
	return info.Title, nil
}
