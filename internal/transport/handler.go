package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go-ocr-service/internal/config"
	apperrors "go-ocr-service/internal/errors"
	"go-ocr-service/internal/logger"
	"go-ocr-service/internal/service"
	"go-ocr-service/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewHandler wires the HTTP surface: POST /ocr, GET /health, GET /.
func NewHandler(svc service.OCRService, cfg *config.Config) http.Handler {
	r := gin.Default()

	r.Use(
		corsMiddleware(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
	)

	r.GET("/", serviceInfo(svc))
	r.GET("/health", healthCheck(svc))
	r.POST("/ocr", recognize(svc, cfg))

	return r
}

func recognize(svc service.OCRService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"user_agent": c.Request.UserAgent(),
			"ip":         c.ClientIP(),
		}).Info("Processing OCR request")

		opts := service.RequestOptions{
			Languages:    parseLanguages(c.PostForm("languages")),
			ExpectedText: c.PostForm("expected_text"),
		}

		var (
			response *models.NormalizedResponse
			err      error
		)

		imageURL := c.PostForm("url")
		if imageURL == "" {
			imageURL = c.Query("url")
		}
		if imageURL != "" {
			if vErr := validateImageURL(imageURL); vErr != nil {
				respondError(c, http.StatusBadRequest, "invalid image URL", vErr)
				return
			}
			response, err = svc.RecognizeURL(ctx, imageURL, opts)
		} else {
			data, readErr := readUploadedFile(c)
			if readErr != nil {
				respondError(c, http.StatusBadRequest, "no file uploaded", readErr)
				return
			}
			opts.Source = "upload"
			response, err = svc.RecognizeBytes(ctx, data, opts)
		}

		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "OCR processing failed", err)
			return
		}

		c.JSON(http.StatusOK, response)
	}
}

// healthCheck reports readiness from adapter state only. It always
// returns 200; degraded is expressed in the body.
func healthCheck(svc service.OCRService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Health())
	}
}

func serviceInfo(svc service.OCRService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Info())
	}
}

func readUploadedFile(c *gin.Context) ([]byte, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("multipart field 'file' is required: %w", err)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read uploaded file: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("uploaded file is empty")
	}
	return data, nil
}

func parseLanguages(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var langs []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			langs = append(langs, part)
		}
	}
	return langs
}

func validateImageURL(imageURL string) error {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}
	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}
	return nil
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Detail: fmt.Sprintf("%s: %v", message, err),
	})
}
