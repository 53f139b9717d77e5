package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"teralink/internal"
)

type resolveResponse struct {
	Status         string                  `json:"status"`
	URL            string                  `json:"url"`
	Files          []internal.ResolvedFile `json:"files"`
	Count          int                     `json:"count"`
	ProcessingTime string                  `json:"processing_time"`
	Cached         bool                    `json:"cached,omitempty"`
}

func (s *Server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "running",
		"service":  ServiceName,
		"version":  Version,
		"endpoint": "/api?url=TERABOX_URL",
	})
}

func (s *Server) handleResolve(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "URL parameter is required",
			"usage":   "/api?url=https://terabox.com/s/...",
		})
		return
	}

	result, err := s.resolver.Resolve(c.Request.Context(), rawURL)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resolveResponse{
		Status:         "success",
		URL:            result.URL,
		Files:          result.Files,
		Count:          result.Count(),
		ProcessingTime: fmt.Sprintf("%.2fs", result.ProcessingTime.Seconds()),
		Cached:         result.Cached,
	})
}

func (s *Server) writeError(c *gin.Context, err error) {
	te, ok := internal.AsTeraboxError(err)
	if !ok {
		internal.LogError("Unexpected resolver failure: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"kind":    "Internal",
			"message": "internal error",
		})
		return
	}

	internal.LogTeraboxError(te)

	body := gin.H{
		"status":   "error",
		"kind":     te.Type.String(),
		"message":  te.Message,
		"solution": te.Suggestion,
	}
	if te.Type == internal.ErrInvalidURL {
		body["supported_domains"] = s.validator.AllowedDomains()
	}
	if te.RetryAfter > 0 {
		c.Header("Retry-After", fmt.Sprint(te.RetryAfter))
	}

	c.JSON(te.HTTPStatus(s.config.NotFoundStatus), body)
}
