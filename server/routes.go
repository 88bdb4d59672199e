package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"nvr-orchestrator/constant"
	"nvr-orchestrator/dto"
	"nvr-orchestrator/pkg/apperror"
	"nvr-orchestrator/service"
)

type ruleListings interface {
	SummaryResponses(ctx context.Context) (map[string]service.RuleSummaries, error)
	SearchResponses(ctx context.Context) (map[string]service.RuleSearches, error)
}

type handlers struct {
	footage  service.FootageService
	pipeline service.PipelineService
	rules    service.RuleService
	listings ruleListings
}

type clipQuery struct {
	StartTime *float64 `form:"start_time" binding:"required"`
	EndTime   *float64 `form:"end_time" binding:"required"`
	Download  bool     `form:"download"`
}

func (q clipQuery) request(camera string) dto.ClipRequest {
	return dto.ClipRequest{Camera: camera, StartTime: *q.StartTime, EndTime: *q.EndTime}
}

func registerRoutes(r *gin.Engine, h *handlers) {
	api := r.Group("/api")

	api.GET("/cameras", h.listCameras)
	api.GET("/cameras/:camera/clip", h.cameraClip)
	api.POST("/cameras/:camera/export", h.exportClip)
	api.GET("/events", h.listEvents)
	api.GET("/events/:id/clip.mp4", h.eventClip)
	api.GET("/exports/:id", h.exportDetails)
	api.GET("/exports/:id/video", h.exportVideo)

	api.GET("/summary/:camera", h.summarize)
	api.GET("/search-embeddings/:camera", h.searchEmbeddings)
	api.GET("/summary-status/:id", h.summaryStatus)

	api.POST("/rules", h.addRule)
	api.GET("/rules", h.listRules)
	api.GET("/rules/responses", h.summaryResponses)
	api.GET("/rules/search-responses", h.searchResponses)
	api.GET("/rules/:id", h.getRule)
	api.DELETE("/rules/:id", h.deleteRule)
}

// requestLogger puts a per-request logger carrying a request id into the
// request context.
func requestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		logger := base.With().Str("request_id", requestID).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context()))

		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request handled")
	}
}

func writeError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	event := zerolog.Ctx(c.Request.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = zerolog.Ctx(c.Request.Context()).Error()
	}
	event.Err(err).Int("status", status).Str("path", c.FullPath()).Msg("request failed")
	c.AbortWithStatusJSON(status, gin.H{"detail": apperror.Detail(err)})
}

func bindClipQuery(c *gin.Context) (clipQuery, bool) {
	var q clipQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, apperror.Validation("bind query", "start_time and end_time are required numbers"))
		return q, false
	}
	return q, true
}

func disposition(download bool, name string) string {
	kind := "inline"
	if download {
		kind = "attachment"
	}
	if name == "" {
		return kind
	}
	return fmt.Sprintf("%s; filename=%q", kind, name)
}

func (h *handlers) listCameras(c *gin.Context) {
	cameras, err := h.footage.Cameras(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cameras": cameras})
}

func (h *handlers) cameraClip(c *gin.Context) {
	q, ok := bindClipQuery(c)
	if !ok {
		return
	}

	stream, err := h.footage.CameraClip(c.Request.Context(), q.request(c.Param("camera")), q.Download)
	if err != nil {
		writeError(c, err)
		return
	}
	defer stream.Body.Close()

	c.DataFromReader(http.StatusOK, -1, stream.ContentType, stream.Body, map[string]string{
		"Content-Disposition": stream.ContentDisposition,
	})
}

func (h *handlers) exportClip(c *gin.Context) {
	q, ok := bindClipQuery(c)
	if !ok {
		return
	}

	var payload dto.ExportRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, apperror.Validation("bind export", err.Error()))
		return
	}

	resp, err := h.footage.Export(c.Request.Context(), q.request(c.Param("camera")), payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) listEvents(c *gin.Context) {
	camera := c.Query("camera")
	if camera == "" {
		writeError(c, apperror.Validation("list events", "camera is required"))
		return
	}

	events, err := h.footage.Events(c.Request.Context(), camera)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *handlers) eventClip(c *gin.Context) {
	download := c.Query("download") == "true" || c.Query("download") == "1"

	stream, err := h.footage.EventClip(c.Request.Context(), c.Param("id"), download)
	if err != nil {
		writeError(c, err)
		return
	}
	defer stream.Body.Close()

	c.DataFromReader(http.StatusOK, -1, stream.ContentType, stream.Body, map[string]string{
		"Content-Disposition": stream.ContentDisposition,
	})
}

func (h *handlers) exportDetails(c *gin.Context) {
	export, err := h.footage.ExportDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, export)
}

func (h *handlers) exportVideo(c *gin.Context) {
	download := c.Query("download") == "true" || c.Query("download") == "1"

	video, err := h.footage.ExportVideo(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	defer video.Body.Close()

	c.DataFromReader(http.StatusOK, video.Size, "video/mp4", video.Body, map[string]string{
		"Content-Disposition": disposition(download, video.Name),
	})
}

func (h *handlers) summarize(c *gin.Context) {
	q, ok := bindClipQuery(c)
	if !ok {
		return
	}

	pipelineID, err := h.pipeline.SummarizeClip(c.Request.Context(), q.request(c.Param("camera")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pipelineID)
}

func (h *handlers) searchEmbeddings(c *gin.Context) {
	q, ok := bindClipQuery(c)
	if !ok {
		return
	}

	result, err := h.pipeline.IndexClip(c.Request.Context(), q.request(c.Param("camera")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{result.VideoID: result.Message})
}

func (h *handlers) summaryStatus(c *gin.Context) {
	result, err := h.pipeline.GetResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	if result.Status == constant.JobStatusPending {
		c.JSON(http.StatusOK, result.Message)
		return
	}
	c.JSON(http.StatusOK, result.Result)
}

func (h *handlers) addRule(c *gin.Context) {
	var req dto.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperror.Validation("bind rule", err.Error()))
		return
	}

	rule, err := h.rules.Add(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rule added", "rule": rule})
}

func (h *handlers) listRules(c *gin.Context) {
	rules, err := h.rules.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h *handlers) getRule(c *gin.Context) {
	rule, err := h.rules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *handlers) deleteRule(c *gin.Context) {
	id := c.Param("id")
	if err := h.rules.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Rule %s deleted", id)})
}

func (h *handlers) summaryResponses(c *gin.Context) {
	out, err := h.listings.SummaryResponses(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handlers) searchResponses(c *gin.Context) {
	out, err := h.listings.SearchResponses(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
