package webfetch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/naozine/nz-html-fetch/pkg/htmlfetch"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"reelclip/internal/models"
	"reelclip/internal/source"
)

// ErrUnsupported はこのクライアントで扱わないソース
var ErrUnsupported = errors.New("webfetch: only non-YouTube remote URLs are supported")

// Client はWebページ取得クライアント（ヘッドレスブラウザ）
type Client struct {
	fetcher *htmlfetch.Fetcher
	timeout time.Duration
}

// Options はクライアント作成オプション
type Options struct {
	Stealth     bool          // ボット検出回避
	Proxy       string        // プロキシアドレス
	BrowserPath string        // ブラウザパス
	Timeout     time.Duration // 1ページあたりの上限
}

// NewClient はブラウザを起動してクライアントを作成
func NewClient(opts *Options) (*Client, error) {
	var fetcherOpts []htmlfetch.Option
	timeout := 10 * time.Second

	if opts != nil {
		if opts.BrowserPath != "" {
			fetcherOpts = append(fetcherOpts, htmlfetch.WithBrowserPath(opts.BrowserPath))
		}
		if opts.Proxy != "" {
			fetcherOpts = append(fetcherOpts, htmlfetch.WithProxy(opts.Proxy))
		}
		fetcherOpts = append(fetcherOpts, htmlfetch.WithStealth(opts.Stealth))
		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
	}

	fetcher := htmlfetch.New(fetcherOpts...)
	if err := fetcher.Start(); err != nil {
		return nil, err
	}
	return &Client{fetcher: fetcher, timeout: timeout}, nil
}

// Close はブラウザを終了
func (c *Client) Close() error {
	if c.fetcher != nil {
		return c.fetcher.Close()
	}
	return nil
}

// Title はリモートURLのページタイトルを取得（intake.TitleResolver）
func (c *Client) Title(ctx context.Context, d source.Descriptor) (string, error) {
	if d.Kind != models.SourceKindRemoteURL || d.IsYouTube() {
		return "", ErrUnsupported
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// タイトルだけが必要なので広告と画像はブロック
	result, err := c.fetcher.Fetch(ctx, d.Value, htmlfetch.WithBlocking(htmlfetch.BlockingOptions{Ads: true, Image: true}))
	if err != nil {
		return "", err
	}
	return PageTitle(result.HTML), nil
}

// PageTitle はHTMLからタイトルを抽出（og:title を <title> より優先）
func PageTitle(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var title string
	inTitle := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(title), " ")
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.DataAtom {
			case atom.Title:
				inTitle = title == ""
			case atom.Meta:
				if og := ogTitle(tok); og != "" {
					return strings.Join(strings.Fields(og), " ")
				}
			case atom.Body:
				if title != "" {
					return strings.Join(strings.Fields(title), " ")
				}
			}
		case html.TextToken:
			if inTitle {
				title += string(z.Text())
			}
		case html.EndTagToken:
			if z.Token().DataAtom == atom.Title {
				inTitle = false
			}
		}
	}
}

func ogTitle(tok html.Token) string {
	var property, content string
	for _, a := range tok.Attr {
		switch a.Key {
		case "property":
			property = a.Val
		case "content":
			content = a.Val
		}
	}
	if property == "og:title" {
		return content
	}
	return ""
}
