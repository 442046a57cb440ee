package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("bogus"))
}

func TestCustomFormatter(t *testing.T) {
	f := &CustomFormatter{}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "page feature set loaded\n",
		Data:    logrus.Fields{"features": 2, "bytes": 96},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)

	line := string(out)
	assert.Contains(t, line, "[03:04:05 UTC 2024/01/02]")
	assert.Contains(t, line, "[WARN]")
	assert.Contains(t, line, "page feature set loaded bytes=96 features=2\n")
}

func TestSetOutput(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{LogLevel: "debug"}))

	var buf bytes.Buffer
	SetOutput(&buf)

	Infof("catalog %s", "cluster")
	Debugf("iv batch %d", 7)
	WithFields(logrus.Fields{"blkno": 42}).Warn("slot too small")

	out := buf.String()
	assert.Contains(t, out, "catalog cluster")
	assert.Contains(t, out, "iv batch 7")
	assert.Contains(t, out, "slot too small blkno=42")
}
