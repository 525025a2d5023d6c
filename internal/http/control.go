package http

import (
	"image"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"safeheads/internal/crop"
	"safeheads/internal/helmet"
	"safeheads/internal/video"
)

// ControlHandler exposes the runtime controls of the video process:
// pause, seek, detection toggles, ROI updates and the in-memory helmet
// results.
type ControlHandler struct {
	scheduler    *video.Scheduler
	source       *video.Source
	scanner      *helmet.Scanner
	extractor    *crop.Extractor
	roi          *video.ROI
	stream       *MJPEGStream
	violationDir string
	log          zerolog.Logger
}

func NewControlHandler(
	scheduler *video.Scheduler,
	source *video.Source,
	scanner *helmet.Scanner,
	extractor *crop.Extractor,
	roi *video.ROI,
	stream *MJPEGStream,
	violationDir string,
	log zerolog.Logger,
) *ControlHandler {
	return &ControlHandler{
		scheduler:    scheduler,
		source:       source,
		scanner:      scanner,
		extractor:    extractor,
		roi:          roi,
		stream:       stream,
		violationDir: violationDir,
		log:          log,
	}
}

func (h *ControlHandler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	public := r.Group("/api/v1")
	{
		public.GET("/status", h.status)
		public.GET("/helmet/results", h.helmetResults)
		public.GET("/violations", h.listViolations)
		public.GET("/violations/files", h.violationFiles)
		public.GET("/violations/image/:name", h.violationImage)
		public.GET("/crops/info", h.cropInfo)
	}
	if h.stream != nil {
		r.GET("/video_feed", gin.WrapH(h.stream))
	}

	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/control/pause", h.pause)
		protected.POST("/control/resume", h.resume)
		protected.POST("/control/seek", h.seek)
		protected.POST("/control/detection", h.toggleDetection)
		protected.POST("/control/confidence", h.setConfidence)
		protected.POST("/control/roi", h.setROI)
		protected.POST("/control/helmet", h.toggleHelmet)
		protected.POST("/control/crop", h.setCropSettings)
		protected.POST("/helmet/results/clear", h.clearHelmetResults)
		protected.POST("/violations/clear", h.clearViolations)
		protected.POST("/crops/clear", h.clearCrops)
	}
}

func (h *ControlHandler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"source_kind":       h.source.Kind().String(),
		"fps":               h.source.FPS(),
		"total_frames":      h.source.TotalFrames(),
		"position":          h.source.Position(),
		"paused":            h.source.Paused(),
		"frames_processed":  h.scheduler.FrameCount(),
		"detection_enabled": h.scheduler.DetectionEnabled(),
		"conf_threshold":    h.scheduler.ConfThreshold(),
		"helmet_enabled":    h.scanner.Enabled(),
		"roi_points":        h.roi.Points(),
	})
}

func (h *ControlHandler) pause(c *gin.Context) {
	if err := h.source.Pause(); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "paused"})
}

func (h *ControlHandler) resume(c *gin.Context) {
	if err := h.source.Resume(); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "playing"})
}

func (h *ControlHandler) seek(c *gin.Context) {
	var req struct {
		Frame int `json:"frame"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	frame, err := h.source.Seek(req.Frame)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "frame": frame})
}

func (h *ControlHandler) toggleDetection(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	h.scheduler.SetDetectionEnabled(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "enabled": req.Enabled})
}

func (h *ControlHandler) setConfidence(c *gin.Context) {
	var req struct {
		Threshold float64 `json:"threshold"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if req.Threshold <= 0 || req.Threshold > 1 {
		c.JSON(http.StatusBadRequest, errorResponse("threshold must be in (0, 1]"))
		return
	}
	h.scheduler.SetConfThreshold(req.Threshold)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "threshold": req.Threshold})
}

func (h *ControlHandler) setROI(c *gin.Context) {
	var req struct {
		Points [][2]int `json:"points"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	points := make([]image.Point, 0, len(req.Points))
	for _, p := range req.Points {
		points = append(points, image.Pt(p[0], p[1]))
	}
	h.roi.Set(points)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "points": len(h.roi.Points())})
}

func (h *ControlHandler) toggleHelmet(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	h.scanner.SetEnabled(req.Enabled)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "enabled": req.Enabled})
}

func (h *ControlHandler) helmetResults(c *gin.Context) {
	results := h.scanner.Results()
	limit := queryLimit(c, len(results))
	c.JSON(http.StatusOK, gin.H{
		"total":   len(results),
		"results": results[len(results)-limit:],
	})
}

func (h *ControlHandler) listViolations(c *gin.Context) {
	violations := h.scanner.Violations()
	limit := queryLimit(c, len(violations))
	c.JSON(http.StatusOK, gin.H{
		"total":      len(violations),
		"violations": violations[len(violations)-limit:],
	})
}

func (h *ControlHandler) violationFiles(c *gin.Context) {
	entries, err := os.ReadDir(h.violationDir)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"total": 0, "files": []string{}})
		return
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, "violation_vehicle_") && strings.HasSuffix(name, ".jpg") {
			files = append(files, name)
		}
	}
	c.JSON(http.StatusOK, gin.H{"total": len(files), "files": files})
}

func (h *ControlHandler) violationImage(c *gin.Context) {
	name := filepath.Base(c.Param("name"))
	if !strings.HasPrefix(name, "violation_vehicle_") || !strings.HasSuffix(name, ".jpg") {
		c.JSON(http.StatusBadRequest, errorResponse("invalid violation file name"))
		return
	}
	path := filepath.Join(h.violationDir, name)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusNotFound, errorResponse("violation image not found"))
		return
	}
	c.File(path)
}

func (h *ControlHandler) setCropSettings(c *gin.Context) {
	var req struct {
		SaveIntervalMs int `json:"save_interval_ms"`
		MinWidth       int `json:"min_width"`
		MinHeight      int `json:"min_height"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	if req.SaveIntervalMs > 0 {
		h.extractor.SetSaveInterval(time.Duration(req.SaveIntervalMs) * time.Millisecond)
	}
	h.extractor.SetMinSize(req.MinWidth, req.MinHeight)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ControlHandler) cropInfo(c *gin.Context) {
	entries, err := os.ReadDir(h.extractor.Dir())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"total": 0, "files": []gin.H{}})
		return
	}

	type cropFile struct {
		name  string
		size  int64
		mtime int64
	}
	var crops []cropFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jpg") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		crops = append(crops, cropFile{name: entry.Name(), size: info.Size(), mtime: info.ModTime().Unix()})
	}
	sort.Slice(crops, func(i, j int) bool { return crops[i].mtime > crops[j].mtime })

	limit := 50
	if len(crops) < limit {
		limit = len(crops)
	}
	files := make([]gin.H, 0, limit)
	for _, cf := range crops[:limit] {
		files = append(files, gin.H{
			"name":     cf.name,
			"size":     cf.size,
			"modified": cf.mtime,
		})
	}
	c.JSON(http.StatusOK, gin.H{"total": len(crops), "files": files})
}

func (h *ControlHandler) clearCrops(c *gin.Context) {
	entries, err := os.ReadDir(h.extractor.Dir())
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "deleted": 0})
		return
	}
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jpg") {
			continue
		}
		if err := os.Remove(filepath.Join(h.extractor.Dir(), entry.Name())); err == nil {
			deleted++
		}
	}
	h.log.Info().Int("deleted", deleted).Msg("crop directory cleared")
	c.JSON(http.StatusOK, gin.H{"status": "ok", "deleted": deleted})
}

func (h *ControlHandler) clearHelmetResults(c *gin.Context) {
	h.scanner.ClearResults()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *ControlHandler) clearViolations(c *gin.Context) {
	h.scanner.ClearViolations()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func queryLimit(c *gin.Context, total int) int {
	limit := total
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed >= 0 && parsed < total {
			limit = parsed
		}
	}
	return limit
}
