package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "info", "", false)

	Component(log, "pipeline").WithField("season", "2023-24").Info("Batch committed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "2023-24", entry["season"])
	assert.Equal(t, "Batch committed", entry["msg"])
}

func TestTextInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "", "", true)

	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	log.Debug("hello")
	assert.True(t, strings.Contains(buf.String(), "msg=hello"))
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, "loud", "json", true)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	assert.Contains(t, buf.String(), "invalid_level")
}
