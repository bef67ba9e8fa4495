package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/orbitalscope/terralens/pkg/models"
)

// ExtractDetections flattens the executor's result document into queryable
// detection rows. Two shapes are recognized: a generic detections[] array
// (deforestation, mining, fire, segmentation) and a buildings[] array from the
// height estimators. Unrecognized documents yield no detections, which is fine;
// summary-only results stay on the job record.
func ExtractDetections(job *models.Job, result json.RawMessage, at time.Time, newID func() uuid.UUID) []*models.Detection {
	var doc struct {
		Detections []map[string]any `json:"detections"`
		Buildings  []map[string]any `json:"buildings"`
	}
	if err := json.Unmarshal(result, &doc); err != nil {
		return nil
	}

	var out []*models.Detection
	for _, entry := range doc.Detections {
		d := detectionFromEntry(entry, "", job.ID, at, newID)
		if d != nil {
			out = append(out, d)
		}
	}
	for _, entry := range doc.Buildings {
		d := detectionFromEntry(entry, "building", job.ID, at, newID)
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

func detectionFromEntry(entry map[string]any, category string, jobID uuid.UUID, at time.Time, newID func() uuid.UUID) *models.Detection {
	if category == "" {
		category = stringField(entry, "category", "type")
	}
	if category == "" {
		return nil
	}

	confidence := normalizeConfidence(numberField(entry, "confidence"))
	lat, latOK := lookupNumber(entry, "latitude", "lat")
	lng, lngOK := lookupNumber(entry, "longitude", "lng")
	if !latOK || !lngOK {
		return nil
	}

	severity := stringField(entry, "severity")
	if !models.ValidSeverity(severity) {
		severity = severityFromConfidence(confidence)
	}

	return &models.Detection{
		ID:         newID(),
		JobID:      jobID,
		Category:   category,
		Confidence: confidence,
		Severity:   severity,
		Latitude:   lat,
		Longitude:  lng,
		Attributes: attributesFromEntry(entry),
		DetectedAt: at,
	}
}

// normalizeConfidence maps executor confidences to the 0-100 range. Model
// scripts emit probabilities in 0..1; those are scaled up.
func normalizeConfidence(v float64) float64 {
	if v > 0 && v <= 1 {
		v *= 100
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func severityFromConfidence(confidence float64) string {
	switch {
	case confidence >= 90:
		return models.SeverityHigh
	case confidence >= 70:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// attributesFromEntry carries every executor-specific field that is not one of
// the first-class detection columns.
func attributesFromEntry(entry map[string]any) json.RawMessage {
	rest := make(map[string]any)
	for k, v := range entry {
		switch k {
		case "category", "type", "confidence", "severity", "latitude", "lat", "longitude", "lng":
			continue
		}
		rest[k] = v
	}
	if len(rest) == 0 {
		return nil
	}
	raw, err := json.Marshal(rest)
	if err != nil {
		return nil
	}
	return raw
}

func stringField(entry map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := entry[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func numberField(entry map[string]any, keys ...string) float64 {
	v, _ := lookupNumber(entry, keys...)
	return v
}

func lookupNumber(entry map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if f, ok := entry[k].(float64); ok {
			return f, true
		}
	}
	return 0, false
}
