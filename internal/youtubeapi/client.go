// Package youtubeapi implements the structured-data lookup against the
// platform's public Data API v3.
package youtubeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ashh-m/ytkeywordsearchtool/internal/harvest"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

// Config controls the API client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client calls the Data API. With no key configured every lookup reports
// disabled and the resolver falls through to the rendered page.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New builds an API client.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// Enabled reports whether a credential is configured.
func (c *Client) Enabled() bool { return c != nil && c.apiKey != "" }

type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			PublishedAt  string   `json:"publishedAt"`
			ChannelID    string   `json:"channelId"`
			Title        string   `json:"title"`
			Description  string   `json:"description"`
			ChannelTitle string   `json:"channelTitle"`
			Tags         []string `json:"tags"`
			Thumbnails   map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		// The API serializes every count as a JSON string.
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// Video fetches one item's metadata. A missing item, a missing credential,
// or a quota rejection all yield (nil, nil): absence is a signal to fall
// back, not a failure.
func (c *Client) Video(ctx context.Context, id string) (*harvest.ResolvedMetadata, error) {
	if !c.Enabled() {
		return nil, nil
	}
	var resp videoListResponse
	ok, err := c.get(ctx, "videos", url.Values{
		"part": {"snippet,contentDetails,statistics"},
		"id":   {id},
	}, &resp)
	if err != nil || !ok {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	item := resp.Items[0]

	meta := &harvest.ResolvedMetadata{
		ID:       item.ID,
		Hashtags: harvest.ExtractHashtags(item.Snippet.Title + "\n" + item.Snippet.Description),
	}
	setString(&meta.Title, item.Snippet.Title)
	setString(&meta.Description, item.Snippet.Description)
	setString(&meta.UploadDate, item.Snippet.PublishedAt)
	setString(&meta.ChannelID, item.Snippet.ChannelID)
	setString(&meta.ChannelName, item.Snippet.ChannelTitle)
	meta.ViewCount = parseCount(item.Statistics.ViewCount)
	meta.LikeCount = parseCount(item.Statistics.LikeCount)
	meta.CommentCount = parseCount(item.Statistics.CommentCount)
	meta.DurationSeconds = harvest.ParseDuration(item.ContentDetails.Duration)
	if meta.CommentCount == nil && item.Statistics.ViewCount != "" {
		// A present statistics block with an absent comment count means
		// comments are turned off for the item.
		off := true
		meta.CommentsOff = &off
	}
	for _, key := range []string{"maxres", "high", "default"} {
		if thumb, ok := item.Snippet.Thumbnails[key]; ok && thumb.URL != "" {
			setString(&meta.ThumbnailURL, thumb.URL)
			break
		}
	}
	return meta, nil
}

type channelListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title     string `json:"title"`
			CustomURL string `json:"customUrl"`
		} `json:"snippet"`
		Statistics struct {
			SubscriberCount string `json:"subscriberCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// Channel fetches channel-level enrichment by channel identifier.
func (c *Client) Channel(ctx context.Context, id string) (*harvest.ChannelInfo, error) {
	if !c.Enabled() {
		return nil, nil
	}
	var resp channelListResponse
	ok, err := c.get(ctx, "channels", url.Values{
		"part": {"snippet,statistics"},
		"id":   {id},
	}, &resp)
	if err != nil || !ok {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	item := resp.Items[0]

	info := &harvest.ChannelInfo{ID: item.ID}
	setString(&info.Title, item.Snippet.Title)
	if item.Snippet.CustomURL != "" {
		handle := item.Snippet.CustomURL
		if handle[0] == '@' {
			handle = handle[1:]
		}
		info.Handle = &handle
	}
	info.SubscriberCount = parseCount(item.Statistics.SubscriberCount)
	return info, nil
}

// get performs one API call. It returns ok=false without an error on quota
// or permission rejections, letting callers degrade quietly.
func (c *Client) get(ctx context.Context, resource string, params url.Values, out any) (bool, error) {
	params.Set("key", c.apiKey)
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, resource, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build %s request: %w", resource, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("call %s: %w", resource, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusTooManyRequests:
		c.logger.Warn("api rejected request, falling back to page extraction",
			zap.String("resource", resource), zap.Int("status", resp.StatusCode))
		return false, nil
	default:
		return false, fmt.Errorf("call %s: unexpected status %d", resource, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("decode %s response: %w", resource, err)
	}
	return true, nil
}

func setString(dst **string, v string) {
	if v != "" {
		*dst = &v
	}
}

func parseCount(v string) *int64 {
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
