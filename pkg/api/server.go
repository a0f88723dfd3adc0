// Package api provides the REST API server for midi2wav
package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/james-see/midi2wav/pkg/config"
	"github.com/james-see/midi2wav/pkg/converter"
	"github.com/james-see/midi2wav/pkg/engine"
	"github.com/james-see/midi2wav/pkg/engine/soft"
	"github.com/james-see/midi2wav/pkg/log"
)

// @title midi2wav API
// @version 1.0
// @description API for rendering MIDI files to WAV through an instrument bank
// @host localhost:8080
// @BasePath /api/v1

// Server renders uploaded MIDI files. Every request gets its own engine and
// scratch directory.
type Server struct {
	cfg     config.Config
	factory engine.Factory
	log     logrus.FieldLogger
}

// NewServer returns a Server creating engines through factory.
func NewServer(cfg config.Config, factory engine.Factory, logger logrus.FieldLogger) *Server {
	return &Server{
		cfg:     cfg,
		factory: factory,
		log:     logger.WithField("component", "api"),
	}
}

// StartServer starts the API server on the specified port with the software engine
func StartServer(port int, cfg config.Config) error {
	logger := log.WithLevel(cfg.LogLevel)
	s := NewServer(cfg, soft.Factory(soft.Options{Logger: logger}), logger)
	return s.Router().Run(fmt.Sprintf(":%d", port))
}

// Router builds the gin engine serving every route.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/convert/midi2wav", s.handleMIDIToWAV)
		v1.GET("/formats", listFormats)
		v1.GET("/reverb-presets", s.listReverbPresets)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "midi2wav",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns the accepted input, bank and output formats
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":     []string{string(converter.FormatMIDI), string(converter.FormatWAV), string(converter.FormatBank)},
		"conversions": converter.GetSupportedConversions(),
	})
}

// listReverbPresets godoc
// @Summary List reverb presets
// @Description Returns the reverb presets and the one applied to renders
// @Tags info
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/reverb-presets [get]
func (s *Server) listReverbPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"presets": engine.ReverbPresets(),
		"default": s.cfg.ReverbPreset().String(),
	})
}

// handleMIDIToWAV godoc
// @Summary Render MIDI to WAV
// @Description Upload a MIDI file and an optional SoundFont bank and receive a WAV file
// @Tags convert
// @Accept multipart/form-data
// @Produce audio/wav
// @Param file formData file true "MIDI file to render"
// @Param bank formData file false "Instrument bank (.sf2); defaults to the configured bank"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/convert/midi2wav [post]
func (s *Server) handleMIDIToWAV(c *gin.Context) {
	id := uuid.NewString()
	c.Header("X-Job-ID", id)
	logger := s.log.WithField("job", id)

	if limit := s.cfg.Server.MaxUploadBytes; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	// Get uploaded file
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	defer func() { _ = file.Close() }()

	// Read file content
	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	if converter.DetectFormatFromContent(data) != converter.FormatMIDI {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is not a standard MIDI file"})
		return
	}

	dir, err := os.MkdirTemp("", "midi2wav-"+id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job directory"})
		return
	}
	defer func() { _ = os.RemoveAll(dir) }()

	bankPath, status, err := s.bank(c, dir)
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	req := converter.Request{
		MIDIPath: filepath.Join(dir, "input.mid"),
		BankPath: bankPath,
		WAVPath:  filepath.Join(dir, "output.wav"),
	}
	if err := os.WriteFile(req.MIDIPath, data, 0o600); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
		return
	}

	conv := converter.New(s.factory, converter.OptionsFromConfig(s.cfg))
	conv.SetLogger(logger)
	report, err := conv.Convert(c.Request.Context(), req)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "job": id})
		return
	}

	result, err := os.ReadFile(req.WAVPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Render produced no output", "job": id})
		return
	}

	// Generate output filename
	outputName := converter.OutputPath(filepath.Base(header.Filename), "")

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", outputName))
	c.Header("X-Render-Steps", strconv.Itoa(report.Steps))
	c.Data(http.StatusOK, "audio/wav", result)
}

// bank stores the uploaded bank in dir, or falls back to the configured one.
func (s *Server) bank(c *gin.Context, dir string) (string, int, error) {
	file, header, err := c.Request.FormFile("bank")
	if errors.Is(err, http.ErrMissingFile) {
		if s.cfg.Bank == "" {
			return "", http.StatusBadRequest, errors.New("no instrument bank uploaded or configured")
		}
		return s.cfg.Bank, 0, nil
	}
	if err != nil {
		return "", http.StatusBadRequest, errors.New("failed to read bank")
	}
	defer func() { _ = file.Close() }()
	return storeBank(file, header, dir)
}

func storeBank(file multipart.File, header *multipart.FileHeader, dir string) (string, int, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", http.StatusBadRequest, errors.New("failed to read bank")
	}
	if converter.DetectFormatFromContent(data) != converter.FormatBank {
		return "", http.StatusBadRequest, fmt.Errorf("%s is not an instrument bank", filepath.Base(header.Filename))
	}
	path := filepath.Join(dir, "bank"+filepath.Ext(header.Filename))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", http.StatusInternalServerError, errors.New("failed to store bank")
	}
	return path, 0, nil
}

// statusFor maps a render failure onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrAssetNotFound), errors.Is(err, engine.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrEngineUnavailable), errors.Is(err, engine.ErrDeviceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
