package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/mfaflow/internal/models"
)

func sampleRuns() []*models.RunRecord {
	started := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	return []*models.RunRecord{
		{
			ID:         "run_b",
			Scenario:   "multifactor-login",
			State:      models.StateAborted,
			Step:       models.StateAwaitingMaskedPassword,
			ErrorKind:  "InvalidPosition",
			Error:      "masked password: invalid position",
			StartedAt:  started.Add(time.Minute),
			FinishedAt: started.Add(time.Minute + time.Second),
			Duration:   time.Second,
		},
		{
			ID:        "run_a",
			Scenario:  "multifactor-login",
			State:     models.StateLoggedIn,
			Welcome:   "Welcome, Alice!",
			Passed:    true,
			StartedAt: started,
			Duration:  1500 * time.Millisecond,
		},
	}
}

func TestPrinter_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newPrinter("text", &buf).Runs(sampleRuns()))

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "run_b")
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "InvalidPosition")
	assert.Contains(t, out, "PASS")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("run_b")), bytes.Index(buf.Bytes(), []byte("run_a")))
}

func TestPrinter_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newPrinter("json", &buf).Runs(sampleRuns()))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "run_b", decoded[0]["id"])
	assert.Equal(t, "awaiting_masked_password", decoded[0]["step"])
	assert.NotContains(t, decoded[1], "error_kind")
}

func TestPrinter_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newPrinter("yaml", &buf).Run(sampleRuns()[0]))

	var decoded map[string]interface{}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "InvalidPosition", decoded["error_kind"])
	assert.Equal(t, false, decoded["passed"])
}

func TestPrinter_RecordSummary(t *testing.T) {
	var buf bytes.Buffer
	printRecord(&buf, sampleRuns()[0])

	out := buf.String()
	assert.Contains(t, out, "Failed step:")
	assert.Contains(t, out, "awaiting_masked_password")
	assert.NotContains(t, out, "Welcome:")

	buf.Reset()
	printRecord(&buf, sampleRuns()[1])
	assert.Contains(t, buf.String(), "Welcome, Alice!")
	assert.NotContains(t, buf.String(), "Failed step:")
}

func TestPrinter_UnsupportedFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, newPrinter("table", &buf).Runs(nil))
	assert.Error(t, newPrinter("xml", &buf).Run(sampleRuns()[0]))
}
