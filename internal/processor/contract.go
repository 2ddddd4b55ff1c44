// Package processor defines the processing request contract and its three
// implementations: Local runs the engines in-process, Server exposes any
// Processor over HTTP, and Client talks to a remote Server.
package processor

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pockethour/image-sentinel/internal/common"
)

const (
	AlgorithmWatermark = "watermark"
	AlgorithmForensics = "forensics"
)

// Request asks for one embed or analysis run. OutputPath is a hint: lossy
// extensions are replaced by a lossless one and the path actually written is
// echoed back in Response.OutputPath.
type Request struct {
	InputPath     string `json:"inputPath"`
	OutputPath    string `json:"outputPath"`
	Algorithm     string `json:"algorithm"`
	WatermarkData string `json:"watermarkData,omitempty"`
}

type Response struct {
	Success     bool   `json:"success"`
	OutputPath  string `json:"outputPath,omitempty"`
	PreviewPath string `json:"previewPath,omitempty"`
	Algorithm   string `json:"algorithm,omitempty"`

	// watermark
	EmbeddedText string `json:"embeddedText,omitempty"`

	// forensics
	Score            int     `json:"score,omitempty"`
	RiskLevel        string  `json:"riskLevel,omitempty"`
	AnomalyIntensity float64 `json:"anomalyIntensity,omitempty"`
	Disclaimer       string  `json:"disclaimer,omitempty"`

	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

type VerifyRequest struct {
	InputPath string `json:"inputPath"`
}

type VerifyResponse struct {
	Success         bool    `json:"success"`
	ExtractedText   string  `json:"extractedText,omitempty"`
	ConfidenceScore float64 `json:"confidenceScore"`

	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Processor runs image processing requests. Calls block for the full
// duration of image I/O; callers impose deadlines through ctx.
type Processor interface {
	Process(ctx context.Context, req Request) (*Response, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error)
}

// Wire error codes.
const (
	CodeInvalidPayload   = "invalid_payload"
	CodeCapacityExceeded = "capacity_exceeded"
	CodeImageRead        = "image_read_failure"
	CodeUnknownAlgorithm = "unknown_algorithm"
	CodeInternal         = "internal"
)

var codes = []struct {
	code   string
	err    error
	status int
}{
	{CodeInvalidPayload, common.ErrInvalidPayload, http.StatusBadRequest},
	{CodeCapacityExceeded, common.ErrCapacityExceeded, http.StatusUnprocessableEntity},
	{CodeImageRead, common.ErrImageRead, http.StatusUnprocessableEntity},
	{CodeUnknownAlgorithm, common.ErrUnknownAlgorithm, http.StatusBadRequest},
}

// CodeFor maps err to its wire code and HTTP status.
func CodeFor(err error) (string, int) {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code, c.status
		}
	}
	return CodeInternal, http.StatusInternalServerError
}

// ErrorFor rebuilds a sentinel-wrapped error from a wire code.
func ErrorFor(code, msg string) error {
	for _, c := range codes {
		if c.code == code {
			return fmt.Errorf("%w: %s", c.err, msg)
		}
	}
	return fmt.Errorf("%w: %s", common.ErrorInternal, msg)
}
