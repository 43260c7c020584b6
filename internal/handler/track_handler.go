package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"

	"github.com/jengzang/trails-backend-go/internal/importer"
	"github.com/jengzang/trails-backend-go/internal/models"
	"github.com/jengzang/trails-backend-go/internal/service"
	"github.com/jengzang/trails-backend-go/internal/spatial"
	"github.com/jengzang/trails-backend-go/internal/track"
	"github.com/jengzang/trails-backend-go/pkg/response"
)

// maxUploadSize bounds GPX uploads
const maxUploadSize = 32 << 20

// TrackHandler handles HTTP requests for tracks
type TrackHandler struct {
	service      *service.TrackService
	defaultOwner string
}

// NewTrackHandler creates a new track handler. Requests that name no owner
// act for defaultOwner.
func NewTrackHandler(service *service.TrackService, defaultOwner string) *TrackHandler {
	return &TrackHandler{service: service, defaultOwner: defaultOwner}
}

// TrackDetail is a stored track with its summary
type TrackDetail struct {
	Summary *models.TrackSummary `json:"summary"`
	Record  models.TrackRecord   `json:"record"`
}

// RemoveRangeRequest selects the points [from, to) of a segment
type RemoveRangeRequest struct {
	From *int `json:"from" binding:"required"`
	To   *int `json:"to" binding:"required"`
}

// ImportGPX imports an uploaded GPX file, sent as the "file" form field or
// as the raw request body
// POST /api/v1/tracks/import
func (h *TrackHandler) ImportGPX(c *gin.Context) {
	data, err := readUpload(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	summary, err := h.service.ImportGPX(c.Request.Context(), h.owner(c), data)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Created(c, summary)
}

// ListTracks lists track summaries
// GET /api/v1/tracks?owner=&page=&pageSize=&bbox=west,south,east,north
func (h *TrackHandler) ListTracks(c *gin.Context) {
	var filter models.TrackFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	if bbox := c.Query("bbox"); bbox != "" {
		within, err := parseBBox(bbox)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		filter.Within = within
	}

	resp, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, resp)
}

// GetTrack returns a track summary and its encoded record
// GET /api/v1/tracks/:id
func (h *TrackHandler) GetTrack(c *gin.Context) {
	t, summary, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	defer t.Close()

	response.Success(c, TrackDetail{Summary: summary, Record: t.ToRecord()})
}

// GetMetadata returns the metadata computed from the stored points
// GET /api/v1/tracks/:id/metadata
func (h *TrackHandler) GetMetadata(c *gin.Context) {
	m, err := h.service.Metadata(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, m)
}

// DeleteTrack deletes a track
// DELETE /api/v1/tracks/:id
func (h *TrackHandler) DeleteTrack(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{"message": "Track deleted successfully"})
}

// RemoveRange removes a range of points from one segment
// POST /api/v1/tracks/:id/segments/:si/remove
func (h *TrackHandler) RemoveRange(c *gin.Context) {
	si, err := strconv.Atoi(c.Param("si"))
	if err != nil {
		response.BadRequest(c, "Invalid segment index")
		return
	}

	var req RemoveRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	summary, err := h.service.RemoveRange(c.Request.Context(), c.Param("id"), si, *req.From, *req.To)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, summary)
}

func (h *TrackHandler) owner(c *gin.Context) string {
	if owner := c.Query("owner"); owner != "" {
		return owner
	}
	if owner := c.GetHeader("X-Owner"); owner != "" {
		return owner
	}
	return h.defaultOwner
}

// fail maps service errors to HTTP statuses
func (h *TrackHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTrackNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrInvalidRange),
		errors.Is(err, importer.ErrNotGPX),
		errors.Is(err, track.ErrInvalidModel):
		response.BadRequest(c, err.Error())
	default:
		c.Error(err)
		response.InternalError(c, "Internal server error")
	}
}

func readUpload(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, errors.New("missing file field")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, errors.New("unreadable upload")
		}
		defer f.Close()
		return io.ReadAll(f)
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, errors.New("unreadable request body")
	}
	if len(data) == 0 {
		return nil, errors.New("empty request body")
	}
	return data, nil
}

// parseBBox reads "west,south,east,north"
func parseBBox(s string) (*orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, errors.New("bbox must be west,south,east,north")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.New("bbox must be west,south,east,north")
		}
		v[i] = f
	}
	if v[1] > v[3] || v[0] > v[2] {
		return nil, errors.New("bbox is empty")
	}
	b := spatial.NewBound(v[1], v[0], v[3], v[2])
	return &b, nil
}
