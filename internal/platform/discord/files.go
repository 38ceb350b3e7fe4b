package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/bwmarrin/discordgo"
)

// fileFetcher downloads attachment URLs so they can be re-uploaded. Discord
// CDN links expire, so forwarding the URL alone is not enough.
type fileFetcher struct {
	client   *http.Client
	maxBytes int64
}

func newFileFetcher(client *http.Client, maxBytes int64) *fileFetcher {
	return &fileFetcher{client: client, maxBytes: maxBytes}
}

func (f *fileFetcher) Fetch(ctx context.Context, rawURL string) (*discordgo.File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, fmt.Errorf("download %s: larger than %d bytes", rawURL, f.maxBytes)
	}

	return &discordgo.File{
		Name:        fileName(rawURL),
		ContentType: resp.Header.Get("Content-Type"),
		Reader:      bytes.NewReader(body),
	}, nil
}

func fileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "attachment"
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "attachment"
	}
	return name
}
