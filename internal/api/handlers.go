package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"smartmeter-poller/internal/collector"
	"smartmeter-poller/internal/measurement"
)

// handleHealth reports ok once at least one meter is set up.
// GET /healthz
func (s *Server) handleHealth(c *gin.Context) {
	meters := s.meters.Meters()
	ready := 0
	for _, m := range meters {
		if m.Status().Ready {
			ready++
		}
	}

	status, code := "ok", http.StatusOK
	if len(meters) > 0 && ready == 0 {
		status, code = "starting", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{"status": status, "meters": len(meters), "ready": ready})
}

// GET /api/v1/meters
func (s *Server) handleListMeters(c *gin.Context) {
	meters := s.meters.Meters()
	out := make([]collector.MeterStatus, 0, len(meters))
	for _, m := range meters {
		out = append(out, m.Status())
	}

	c.JSON(http.StatusOK, gin.H{
		"data": out,
		"meta": gin.H{"count": len(out)},
	})
}

// GET /api/v1/meters/:id
func (s *Server) handleGetMeter(c *gin.Context) {
	m, ok := s.lookup(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"status":   m.Status(),
			"entities": m.Entities(),
		},
	})
}

// handleMeasurements returns the current projected readings. With
// ?available=true only available readings are listed.
// GET /api/v1/meters/:id/measurements
func (s *Server) handleMeasurements(c *gin.Context) {
	m, ok := s.lookup(c)
	if !ok {
		return
	}

	onlyAvailable := false
	if v := c.Query("available"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "available must be a boolean"})
			return
		}
		onlyAvailable = b
	}

	readings := m.Readings()
	out := make([]measurement.Reading, 0, len(readings))
	for _, r := range readings {
		if onlyAvailable && !r.Available {
			continue
		}
		out = append(out, r)
	}

	c.JSON(http.StatusOK, gin.H{
		"data": out,
		"meta": gin.H{"count": len(out), "meter_id": m.ID()},
	})
}

// GET /api/v1/catalog
func (s *Server) handleCatalog(c *gin.Context) {
	entries := s.cat.Entries()
	out := make([]gin.H, 0, len(entries))
	for _, d := range entries {
		out = append(out, gin.H{
			"key":         d.Key,
			"token":       s.cat.Token(d.Key),
			"aliases":     s.cat.Aliases(d.Key),
			"name":        d.Name,
			"unit":        d.Unit,
			"category":    d.Category,
			"aggregation": d.Aggregation,
			"icon":        d.Icon,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"data": out,
		"meta": gin.H{"count": len(out)},
	})
}

func (s *Server) lookup(c *gin.Context) (*collector.Meter, bool) {
	id := c.Param("id")
	m, ok := s.meters.Meter(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "meter not found"})
		return nil, false
	}
	return m, true
}
