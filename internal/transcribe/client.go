package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"agrovoice/internal/models"
)

// Client calls an OpenAI-compatible speech-to-text endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a transcription client for the given endpoint.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		model:      "whisper-1",
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

type verboseResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start   float64 `json:"start"`
		End     float64 `json:"end"`
		Text    string  `json:"text"`
		AvgLogp float64 `json:"avg_logprob"`
	} `json:"segments"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Transcribe uploads the audio file and returns the verbose transcription.
// Failures carry an ErrorKind derived from the HTTP status where possible.
func (c *Client) Transcribe(ctx context.Context, path string, opts Options) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, NewError(KindInvalidInput, fmt.Sprintf("cannot open audio file: %v", err))
	}
	defer file.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	_ = w.WriteField("model", c.model)
	format := opts.ResponseFormat
	if format == "" {
		format = "verbose_json"
	}
	_ = w.WriteField("response_format", format)
	if opts.Language != "" {
		_ = w.WriteField("language", opts.Language)
	}
	if opts.Prompt != "" {
		_ = w.WriteField("prompt", opts.Prompt)
	}
	if opts.Temperature > 0 {
		_ = w.WriteField("temperature", fmt.Sprintf("%g", opts.Temperature))
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewError(KindTransient, fmt.Sprintf("transcription request failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, respBody)
	}

	var vr verboseResponse
	if err := json.Unmarshal(respBody, &vr); err != nil {
		return nil, NewError(KindTransient, fmt.Sprintf("failed to decode transcription response: %v", err))
	}

	result := &Result{
		Text:     vr.Text,
		Language: vr.Language,
		Duration: vr.Duration,
	}
	var logpSum float64
	for _, s := range vr.Segments {
		result.Segments = append(result.Segments, models.Segment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
		logpSum += s.AvgLogp
	}
	if len(vr.Segments) > 0 {
		// avg_logprob is <= 0; fold it into a rough 0..1 confidence
		result.Confidence = clamp01(1 + logpSum/float64(len(vr.Segments)))
	}
	return result, nil
}

func statusError(code int, body []byte) *Error {
	var ae apiError
	msg := fmt.Sprintf("transcription service returned %d", code)
	if json.Unmarshal(body, &ae) == nil && ae.Error.Message != "" {
		msg = ae.Error.Message
	}

	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewError(KindUnauthorized, msg)
	case http.StatusRequestEntityTooLarge:
		return NewError(KindTooLarge, msg)
	case http.StatusUnsupportedMediaType:
		return NewError(KindUnsupported, msg)
	case http.StatusBadRequest:
		return NewError(KindInvalidInput, msg)
	}
	// 429 and 5xx land here and stay retryable; everything unknown
	// falls back to message inspection.
	return Classify(fmt.Errorf("%s", msg))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
