package youtube

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	ytdl "github.com/kkdai/youtube/v2"
)

// Download is the result of acquiring one video's audio. Cleanup removes the
// file and must be invoked once the caller is done with it, on every exit path.
type Download struct {
	Path     string
	Title    string
	Duration float64
	Cleanup  func()
}

// DownloadAudio fetches the highest-bitrate audio-only stream for the video
// and writes it to dir using the given key as the filename stem.
func (c *Client) DownloadAudio(ctx context.Context, videoURL, key, dir string) (*Download, error) {
	video, err := c.client.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	format, err := selectAudioFormat(video)
	if err != nil {
		return nil, err
	}

	stream, _, err := c.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream: %w", err)
	}
	defer stream.Close()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	outputPath := filepath.Join(dir, key+extensionFor(format.MimeType))

	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(file, stream); err != nil {
		file.Close()
		os.Remove(outputPath)
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(outputPath)
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return &Download{
		Path:     outputPath,
		Title:    video.Title,
		Duration: video.Duration.Seconds(),
		Cleanup:  func() { os.Remove(outputPath) },
	}, nil
}

// selectAudioFormat picks the audio-only format with the highest bitrate.
func selectAudioFormat(video *ytdl.Video) (*ytdl.Format, error) {
	var formats []*ytdl.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		// Skip non-default alternate language tracks
		if f.AudioTrack != nil && !f.AudioTrack.AudioIsDefault {
			continue
		}
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("no audio formats available for video %s", video.ID)
	}
	sort.Slice(formats, func(i, j int) bool {
		return formats[i].Bitrate > formats[j].Bitrate
	})
	return formats[0], nil
}

func extensionFor(mimeType string) string {
	if strings.Contains(mimeType, "mp4") {
		return ".m4a"
	}
	if strings.Contains(mimeType, "webm") {
		return ".webm"
	}
	return ".audio"
}
