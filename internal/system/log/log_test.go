package log

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/consent-lifecycle-store/internal/config"
)

func TestLogger_WithCarriesComponentFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)

	logger := NewWithLogrus(base).With(String(LoggerKeyComponentName, "ConsentStore"))
	logger.Warn("transition rejected", String("from", "Revoked"), Int("attempt", 2), Error(errors.New("boom")))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "transition rejected", entry.Message)
	assert.Equal(t, "ConsentStore", entry.Data[LoggerKeyComponentName])
	assert.Equal(t, "Revoked", entry.Data["from"])
	assert.Equal(t, 2, entry.Data["attempt"])
	assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "boom")
}

func TestLogger_RespectsLevel(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.InfoLevel)

	logger := NewWithLogrus(base)
	logger.Debug("hidden")
	assert.Empty(t, hook.Entries)

	logger.Info("shown")
	assert.Len(t, hook.Entries, 1)
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud", Format: "json", Output: "stdout"})
	assert.Error(t, err)

	l, err := New(config.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}

func TestSetLogger_IgnoresNil(t *testing.T) {
	before := GetLogger()
	SetLogger(nil)
	assert.Same(t, before, GetLogger())
}
