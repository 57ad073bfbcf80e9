package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"go.ngs.io/iono-api/internal/domain"
	"go.ngs.io/iono-api/internal/usecase"
)

// Handler handles HTTP requests for ionospheric delays.
type Handler struct {
	delayUC *usecase.DelayUseCase
}

// NewHandler creates a new HTTP handler.
func NewHandler(delayUC *usecase.DelayUseCase) *Handler {
	return &Handler{
		delayUC: delayUC,
	}
}

// GetDelays handles GET /v1/delays.
func (h *Handler) GetDelays(c *gin.Context) {
	req := usecase.DelayRequest{
		IonexFile: c.Query("ionex"),
		NavFile:   c.Query("nav"),
		Refresh:   c.Query("refresh") == "true",
	}

	var err error
	if req.Lat, req.Lon, err = parsePosition(c); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ElevationDeg, req.AzimuthDeg, err = parseGeometry(c); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Execute use case.
	response, err := h.delayUC.Execute(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetKlobuchar handles GET /v1/klobuchar.
func (h *Handler) GetKlobuchar(c *gin.Context) {
	req := usecase.KlobucharRequest{NavFile: c.Query("nav")}

	timeStr := c.Query("time")
	if timeStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "time parameter is required"})
		return
	}
	t, err := time.Parse(time.RFC3339, timeStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid time (expected RFC3339): %v", err)})
		return
	}
	req.Time = t

	if req.Lat, req.Lon, err = parsePosition(c); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ElevationDeg, req.AzimuthDeg, err = parseGeometry(c); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	response, err := h.delayUC.Klobuchar(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetGPSTime handles GET /v1/gpstime.
func (h *Handler) GetGPSTime(c *gin.Context) {
	t := time.Now().UTC()
	if timeStr := c.Query("time"); timeStr != "" {
		parsed, err := time.Parse(time.RFC3339, timeStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid time (expected RFC3339): %v", err)})
			return
		}
		t = parsed
	}

	response, err := usecase.GPSTime(t)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetFiles handles GET /v1/files.
func (h *Handler) GetFiles(c *gin.Context) {
	response, err := h.delayUC.ListFiles()
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// parsePosition reads the required lat and lon query parameters.
func parsePosition(c *gin.Context) (*float64, *float64, error) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" || lonStr == "" {
		return nil, nil, errors.New("lat and lon parameters are required")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid latitude: %v", err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid longitude: %v", err)
	}
	return &lat, &lon, nil
}

// parseGeometry reads elevation (default 90) and azimuth (default 0).
func parseGeometry(c *gin.Context) (float64, float64, error) {
	elevation, err := strconv.ParseFloat(c.DefaultQuery("elevation", "90"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid elevation: %v", err)
	}
	azimuth, err := strconv.ParseFloat(c.DefaultQuery("azimuth", "0"), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid azimuth: %v", err)
	}
	return elevation, azimuth, nil
}

// respondError maps domain errors to HTTP status codes.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRange):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDataNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
