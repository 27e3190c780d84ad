package services

import (
	"time"

	"github.com/rentesla/mobile-backend/internal/logger"
	"github.com/rentesla/mobile-backend/internal/utils"
)

// OCRConfig is read once at startup and immutable afterwards.
type OCRConfig struct {
	// ConfidenceThreshold is the minimum OCR confidence for any
	// automatic approval.
	ConfidenceThreshold float64
	// AutoApproveThreshold is a reserved stricter threshold; the current
	// approval path only requires ConfidenceThreshold.
	AutoApproveThreshold float64
	// Timeout bounds a single extraction task.
	Timeout time.Duration
	// MockEnabled selects the deterministic extractor over the vision
	// service.
	MockEnabled bool
	// WorkerCount is the size of the OCR worker pool.
	WorkerCount int
}

func LoadOCRConfig(log *logger.Logger) OCRConfig {
	cfg := OCRConfig{
		ConfidenceThreshold:  utils.GetEnvAsFloat("OCR_CONFIDENCE_THRESHOLD", 0.8, log),
		AutoApproveThreshold: utils.GetEnvAsFloat("OCR_AUTO_APPROVE_THRESHOLD", 0.95, log),
		Timeout:              time.Duration(utils.GetEnvAsInt("OCR_TIMEOUT_SECONDS", 30, log)) * time.Second,
		MockEnabled:          utils.GetEnvAsBool("OCR_MOCK_ENABLED", true, log),
		WorkerCount:          utils.GetEnvAsInt("OCR_WORKER_COUNT", 4, log),
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	log.Info("OCR configuration loaded",
		"confidenceThreshold", cfg.ConfidenceThreshold,
		"autoApproveThreshold", cfg.AutoApproveThreshold,
		"timeout", cfg.Timeout,
		"mockEnabled", cfg.MockEnabled,
		"workerCount", cfg.WorkerCount,
	)
	return cfg
}
