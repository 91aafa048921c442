package youtube

import (
	"context"
	"fmt"

	"github.com/kkdai/youtube/v2"

	"agrovoice/internal/models"
)

// Client wraps the YouTube metadata and stream API.
type Client struct {
	client youtube.Client
}

// NewClient creates a new YouTube client.
func NewClient() *Client {
	return &Client{client: youtube.Client{}}
}

// GetVideoMeta fetches full metadata for a single video by key or URL.
func (c *Client) GetVideoMeta(ctx context.Context, keyOrURL string) (*models.VideoMeta, error) {
	video, err := c.client.GetVideoContext(ctx, keyOrURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	meta := videoToMeta(video)
	return &meta, nil
}

// ListPlaylist returns metadata for every video in a playlist (a channel's
// uploads playlist works too), in playlist order. Any failure here is fatal
// for the ingestion run.
func (c *Client) ListPlaylist(ctx context.Context, playlistURL string) ([]models.VideoMeta, error) {
	playlist, err := c.client.GetPlaylistContext(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}

	items := make([]models.VideoMeta, 0, len(playlist.Videos))
	for _, entry := range playlist.Videos {
		items = append(items, models.VideoMeta{
			Key:          entry.ID,
			Title:        entry.Title,
			URL:          watchURL(entry.ID),
			ChannelTitle: entry.Author,
			Duration:     entry.Duration.Seconds(),
		})
	}
	return items, nil
}

func videoToMeta(video *youtube.Video) models.VideoMeta {
	meta := models.VideoMeta{
		Key:          video.ID,
		Title:        video.Title,
		Description:  video.Description,
		URL:          watchURL(video.ID),
		ChannelTitle: video.Author,
		PublishedAt:  video.PublishDate,
		Duration:     video.Duration.Seconds(),
		ViewCount:    video.Views,
	}
	if len(video.Thumbnails) > 0 {
		meta.Thumbnail = video.Thumbnails[0].URL
	}
	return meta
}

func watchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
