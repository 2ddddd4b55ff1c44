package processor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pockethour/image-sentinel/internal/common"
	"github.com/pockethour/image-sentinel/internal/forensics"
	"github.com/pockethour/image-sentinel/internal/imagex"
	"github.com/pockethour/image-sentinel/internal/logging"
	"github.com/pockethour/image-sentinel/internal/watermark"
)

// Local runs the watermark engine and the forensic analyzer in-process.
type Local struct {
	logger logging.Logger
}

func NewLocal(logger logging.Logger) *Local {
	return &Local{logger: logger.With("module", "processor")}
}

// PreviewPath returns where the preview for output is written.
func PreviewPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".preview.jpg"
}

func (p *Local) Process(ctx context.Context, req Request) (*Response, error) {
	if req.InputPath == "" || req.OutputPath == "" {
		return nil, fmt.Errorf("%w: input and output paths are required", common.ErrInvalidPayload)
	}
	if req.Algorithm != AlgorithmWatermark && req.Algorithm != AlgorithmForensics {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownAlgorithm, req.Algorithm)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, format, err := imagex.DecodeFile(req.InputPath)
	if err != nil {
		return nil, err
	}

	out := imagex.LosslessPath(req.OutputPath)
	preview := PreviewPath(out)

	p.logger.Debug(ctx, "processing", "algorithm", req.Algorithm, "input", req.InputPath, "format", format)

	if req.Algorithm == AlgorithmWatermark {
		res, err := watermark.Embed(img, req.WatermarkData)
		if err != nil {
			return nil, err
		}
		if err := imagex.EncodeFile(out, res.Marked); err != nil {
			return nil, err
		}
		if err := imagex.EncodeFile(preview, res.Preview); err != nil {
			return nil, err
		}
		return &Response{
			Success:      true,
			OutputPath:   out,
			PreviewPath:  preview,
			Algorithm:    res.Evidence.Algorithm,
			EmbeddedText: res.Evidence.EmbeddedText,
		}, nil
	}

	res, err := forensics.Analyze(img)
	if err != nil {
		return nil, err
	}
	if err := imagex.EncodeFile(out, res.Overlay); err != nil {
		return nil, err
	}
	thumb := imagex.Thumbnail(res.Overlay, watermark.PreviewMaxSide)
	imagex.Banner(thumb, fmt.Sprintf("ELA: %s risk, score %d", res.Report.RiskLevel, res.Report.Score))
	if err := imagex.EncodeFile(preview, thumb); err != nil {
		return nil, err
	}

	return &Response{
		Success:          true,
		OutputPath:       out,
		PreviewPath:      preview,
		Algorithm:        forensics.Algorithm,
		Score:            res.Report.Score,
		RiskLevel:        string(res.Report.RiskLevel),
		AnomalyIntensity: res.Report.AnomalyIntensity,
		Disclaimer:       forensics.Disclaimer,
	}, nil
}

func (p *Local) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	if req.InputPath == "" {
		return nil, fmt.Errorf("%w: input path is required", common.ErrInvalidPayload)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := imagex.DecodeFile(req.InputPath)
	if err != nil {
		return nil, err
	}

	ex := watermark.Extract(img)
	return &VerifyResponse{
		Success:         ex.Found,
		ExtractedText:   ex.Text,
		ConfidenceScore: ex.Confidence,
	}, nil
}
