package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picotm-go/picotm/cfg"
)

const (
	textTraceString = `^time=[0-9T:.Z+-]+ severity=TRACE msg=www.traceExample.com`
	textErrorString = `^time=[0-9T:.Z+-]+ severity=ERROR msg=www.errorExample.com`
	jsonInfoString  = `^{"time":"[^"]+","severity":"INFO","msg":"www.infoExample.com"}`
)

func redirectLogsToBuffer(buf *bytes.Buffer, format string, level slog.Level) {
	programLevel.Set(level)
	factory := &loggerFactory{format: format, level: level}
	defaultLoggerFactory = factory
	defaultLogger = slog.New(factory.createHandler(buf, programLevel))
}

func TestSeverityGating(t *testing.T) {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, "text", LevelError)

	Infof("www.infoExample.com")
	assert.Empty(t, buf.String())

	Errorf("www.errorExample.com")
	assert.Regexp(t, regexp.MustCompile(textErrorString), buf.String())
}

func TestTraceIsBelowDebug(t *testing.T) {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, "text", LevelTrace)

	Tracef("www.traceExample.com")
	assert.Regexp(t, regexp.MustCompile(textTraceString), buf.String())
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, "json", LevelInfo)

	Infof("www.infoExample.com")
	assert.Regexp(t, regexp.MustCompile(jsonInfoString), buf.String())
}

func TestInitAppliesSeverityAndFormat(t *testing.T) {
	lc := cfg.GetDefaultLoggingConfig()
	lc.Severity = cfg.WarningLogSeverity
	lc.Format = "json"

	err := Init(lc)

	require.NoError(t, err)
	assert.Equal(t, "json", defaultLoggerFactory.format)
	assert.Equal(t, LevelWarn, defaultLoggerFactory.level)
}

func TestInitRejectsUnknownSeverity(t *testing.T) {
	lc := cfg.GetDefaultLoggingConfig()
	lc.Severity = "BOGUS"

	err := Init(lc)

	assert.Error(t, err)
}
