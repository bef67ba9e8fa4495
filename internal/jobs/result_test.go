package jobs

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/orbitalscope/terralens/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractionJob(kind string) *models.Job {
	return &models.Job{ID: uuid.New(), Kind: kind}
}

func TestExtractDetections_BuildingConfidenceScaledTo100(t *testing.T) {
	result := json.RawMessage(`{
		"summary": {"buildingCount": 1, "averageHeight": 12.5},
		"buildings": [
			{"latitude": -3.25, "longitude": -64.25, "confidence": 0.87, "heightMeters": 12.5}
		]
	}`)

	detections := ExtractDetections(extractionJob(models.KindBuildingHeight), result, time.Now().UTC(), uuid.New)
	require.Len(t, detections, 1)

	d := detections[0]
	assert.Equal(t, "building", d.Category)
	assert.Equal(t, 87.0, d.Confidence)
	assert.Equal(t, -3.25, d.Latitude)
	assert.Equal(t, -64.25, d.Longitude)

	var attrs map[string]any
	require.NoError(t, json.Unmarshal(d.Attributes, &attrs))
	assert.Equal(t, 12.5, attrs["heightMeters"])
}

func TestExtractDetections_GenericArrayPassesThrough(t *testing.T) {
	result := json.RawMessage(`{
		"detections": [
			{"category": "forest_loss", "confidence": 92, "severity": "high", "latitude": -3.1, "longitude": -64.1},
			{"type": "mining_activity", "confidence": 64, "latitude": -3.2, "longitude": -64.2}
		]
	}`)

	job := extractionJob(models.KindDeforestation)
	detections := ExtractDetections(job, result, time.Now().UTC(), uuid.New)
	require.Len(t, detections, 2)

	assert.Equal(t, "forest_loss", detections[0].Category)
	assert.Equal(t, 92.0, detections[0].Confidence)
	assert.Equal(t, models.SeverityHigh, detections[0].Severity)
	assert.Equal(t, job.ID, detections[0].JobID)

	// "type" is an accepted alias for the category field.
	assert.Equal(t, "mining_activity", detections[1].Category)
	assert.Equal(t, 64.0, detections[1].Confidence)
}

func TestExtractDetections_SeverityDerivedFromConfidence(t *testing.T) {
	result := json.RawMessage(`{
		"detections": [
			{"category": "a", "confidence": 95, "latitude": 1, "longitude": 1},
			{"category": "b", "confidence": 75, "latitude": 1, "longitude": 1},
			{"category": "c", "confidence": 40, "latitude": 1, "longitude": 1}
		]
	}`)

	detections := ExtractDetections(extractionJob(models.KindFire), result, time.Now().UTC(), uuid.New)
	require.Len(t, detections, 3)
	assert.Equal(t, models.SeverityHigh, detections[0].Severity)
	assert.Equal(t, models.SeverityMedium, detections[1].Severity)
	assert.Equal(t, models.SeverityLow, detections[2].Severity)
}

func TestExtractDetections_SkipsEntriesWithoutCoordinates(t *testing.T) {
	result := json.RawMessage(`{
		"detections": [
			{"category": "forest_loss", "confidence": 90},
			{"confidence": 90, "latitude": 1, "longitude": 1}
		]
	}`)

	detections := ExtractDetections(extractionJob(models.KindDeforestation), result, time.Now().UTC(), uuid.New)
	assert.Empty(t, detections)
}

func TestExtractDetections_SummaryOnlyResult(t *testing.T) {
	result := json.RawMessage(`{"summary": {"confidenceScore": 88}}`)

	detections := ExtractDetections(extractionJob(models.KindImagery), result, time.Now().UTC(), uuid.New)
	assert.Empty(t, detections)
}

func TestNormalizeConfidence(t *testing.T) {
	assert.Equal(t, 87.0, normalizeConfidence(0.87))
	assert.Equal(t, 87.0, normalizeConfidence(87))
	assert.Equal(t, 100.0, normalizeConfidence(1))
	assert.Equal(t, 100.0, normalizeConfidence(250))
	assert.Equal(t, 0.0, normalizeConfidence(-3))
	assert.Equal(t, 0.0, normalizeConfidence(0))
}
