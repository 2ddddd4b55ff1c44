package models

import (
	"encoding/json"
	"fmt"
)

type EvidenceKind string

const (
	KindWatermark    EvidenceKind = "watermark"
	KindForensic     EvidenceKind = "forensic"
	KindVerification EvidenceKind = "verification"
)

// Evidence is the result of one algorithm run. Concrete types are
// WatermarkEvidence, ForensicEvidence and VerificationEvidence.
type Evidence interface {
	Kind() EvidenceKind
}

type WatermarkEvidence struct {
	EmbeddedText string `json:"embeddedText"`
	Algorithm    string `json:"algorithm"`
}

type ForensicEvidence struct {
	Score            int     `json:"score"`
	RiskLevel        string  `json:"riskLevel"`
	AnomalyIntensity float64 `json:"anomalyIntensity"`
	Algorithm        string  `json:"algorithm"`
	Disclaimer       string  `json:"disclaimer,omitempty"`
}

type VerificationEvidence struct {
	Found         bool    `json:"found"`
	ExtractedText string  `json:"extractedText,omitempty"`
	Confidence    float64 `json:"confidence"`
}

func (WatermarkEvidence) Kind() EvidenceKind    { return KindWatermark }
func (ForensicEvidence) Kind() EvidenceKind     { return KindForensic }
func (VerificationEvidence) Kind() EvidenceKind { return KindVerification }

type envelope struct {
	Kind EvidenceKind    `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalEvidence encodes e as {"kind": ..., "data": {...}}. A nil Evidence
// encodes to nil.
func MarshalEvidence(e Evidence) ([]byte, error) {
	if e == nil {
		return nil, nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Kind: e.Kind(), Data: data})
}

// UnmarshalEvidence is the inverse of MarshalEvidence.
func UnmarshalEvidence(b []byte) (Evidence, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("evidence envelope: %w", err)
	}

	var e Evidence
	var err error
	switch env.Kind {
	case KindWatermark:
		var v WatermarkEvidence
		err = json.Unmarshal(env.Data, &v)
		e = v
	case KindForensic:
		var v ForensicEvidence
		err = json.Unmarshal(env.Data, &v)
		e = v
	case KindVerification:
		var v VerificationEvidence
		err = json.Unmarshal(env.Data, &v)
		e = v
	default:
		return nil, fmt.Errorf("unknown evidence kind %q", env.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("evidence %s: %w", env.Kind, err)
	}
	return e, nil
}
