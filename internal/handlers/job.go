package handlers

import (
	"net/http"

	"agrovoice/internal/models"
	"agrovoice/internal/scheduler"
	"agrovoice/internal/youtube"

	"github.com/labstack/echo/v4"
)

// JobHandler exposes the ingestion queue over HTTP.
type JobHandler struct {
	sched *scheduler.Scheduler
	yt    *youtube.Client
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(sched *scheduler.Scheduler, yt *youtube.Client) *JobHandler {
	return &JobHandler{sched: sched, yt: yt}
}

// IngestRequest submits videos for processing. Either an explicit list of
// video keys/URLs or a playlist URL to expand, not both.
type IngestRequest struct {
	Videos      []string `json:"videos,omitempty"`
	PlaylistURL string   `json:"playlist_url,omitempty"`
	Priority    string   `json:"priority,omitempty"`
}

// IngestResponse reports the jobs created for one submission.
type IngestResponse struct {
	JobIDs  []string `json:"job_ids"`
	Skipped []string `json:"skipped,omitempty"`
}

// Ingest resolves the submitted videos and enqueues them as one batch.
// Items that fail metadata lookup are reported as skipped; the rest of the
// batch proceeds.
func (h *JobHandler) Ingest(c echo.Context) error {
	ctx := c.Request().Context()

	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Videos) == 0 && req.PlaylistURL == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "videos or playlist_url is required"})
	}

	var items []models.VideoMeta
	var skipped []string

	if req.PlaylistURL != "" {
		listed, err := h.yt.ListPlaylist(ctx, req.PlaylistURL)
		if err != nil {
			return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
		}
		items = listed
	}
	for _, v := range req.Videos {
		meta, err := h.yt.GetVideoMeta(ctx, v)
		if err != nil {
			skipped = append(skipped, v)
			continue
		}
		items = append(items, *meta)
	}

	if len(items) == 0 {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   "no resolvable videos in submission",
			"skipped": skipped,
		})
	}

	ids := h.sched.EnqueueBatch(items, parsePriority(req.Priority))
	return c.JSON(http.StatusAccepted, IngestResponse{JobIDs: ids, Skipped: skipped})
}

// List returns all jobs, optionally filtered by ?status=.
func (h *JobHandler) List(c echo.Context) error {
	status := models.JobStatus(c.QueryParam("status"))
	return c.JSON(http.StatusOK, h.sched.ListJobs(status))
}

// Get returns one job by ID.
func (h *JobHandler) Get(c echo.Context) error {
	job := h.sched.GetJob(c.Param("id"))
	if job == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}
	return c.JSON(http.StatusOK, job)
}

// Status returns queue counters and the next-job ETA.
func (h *JobHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sched.Status())
}

// Report aggregates the outcome of the job IDs passed in the body.
func (h *JobHandler) Report(c echo.Context) error {
	var req struct {
		JobIDs []string `json:"job_ids"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	return c.JSON(http.StatusOK, h.sched.Report(req.JobIDs))
}

func parsePriority(s string) int {
	switch s {
	case "high":
		return models.PriorityHigh
	case "low":
		return models.PriorityLow
	default:
		return models.PriorityNormal
	}
}
