// MIT License
//
// Copyright (c) 2023-2026 PVArchive Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebug(t *testing.T) {
	t.Run("With Debug log level", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(DebugLevel, buffer)

		logger.Debug("test debug")
		actual, err := extractMessage(buffer.Bytes())
		require.NoError(t, err)
		require.Equal(t, "test debug", actual)

		lvl, err := extractLevel(buffer.Bytes())
		require.NoError(t, err)
		require.Equal(t, "debug", lvl)
		require.Equal(t, DebugLevel, logger.LogLevel())

		buffer.Reset()
		logger.Debugf("hello %s", "world")
		actual, err = extractMessage(buffer.Bytes())
		require.NoError(t, err)
		require.Equal(t, "hello world", actual)
	})
	t.Run("With Info log level", func(t *testing.T) {
		buffer := new(bytes.Buffer)
		logger := NewZap(InfoLevel, buffer)
		logger.Debug("test debug")
		require.Empty(t, buffer.String())
	})
}

func TestInfo(t *testing.T) {
	buffer := new(bytes.Buffer)
	logger := NewZap(InfoLevel, buffer)

	logger.Info("starting up")
	actual, err := extractMessage(buffer.Bytes())
	require.NoError(t, err)
	require.Equal(t, "starting up", actual)

	lvl, err := extractLevel(buffer.Bytes())
	require.NoError(t, err)
	require.Equal(t, "info", lvl)

	buffer.Reset()
	logger.Infof("hello %s", "world")
	actual, err = extractMessage(buffer.Bytes())
	require.NoError(t, err)
	require.Equal(t, "hello world", actual)
}

func TestWarn(t *testing.T) {
	buffer := new(bytes.Buffer)
	logger := NewZap(WarningLevel, buffer)

	logger.Warn("watch out")
	actual, err := extractMessage(buffer.Bytes())
	require.NoError(t, err)
	require.Equal(t, "watch out", actual)

	lvl, err := extractLevel(buffer.Bytes())
	require.NoError(t, err)
	require.Equal(t, "warn", lvl)
}

func TestError(t *testing.T) {
	buffer := new(bytes.Buffer)
	logger := NewZap(ErrorLevel, buffer)

	logger.Error("something broke")
	actual, err := extractMessage(buffer.Bytes())
	require.NoError(t, err)
	require.Equal(t, "something broke", actual)

	lvl, err := extractLevel(buffer.Bytes())
	require.NoError(t, err)
	require.Equal(t, "error", lvl)
}

func TestPanic(t *testing.T) {
	buffer := new(bytes.Buffer)
	logger := NewZap(PanicLevel, buffer)

	assert.Panics(t, func() {
		logger.Panic("boom")
	})
	actual, err := extractMessage(buffer.Bytes())
	require.NoError(t, err)
	require.Equal(t, "boom", actual)
}

func TestWith(t *testing.T) {
	buffer := new(bytes.Buffer)
	logger := NewZap(InfoLevel, buffer)

	child := logger.With("pv", "TEST:PV1", "count", 3)
	child.Info("registered")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &entry))
	assert.Equal(t, "registered", entry["msg"])
	assert.Equal(t, "TEST:PV1", entry["pv"])
	assert.EqualValues(t, 3, entry["count"])
}

func TestWithNoPairsReturnsSameLogger(t *testing.T) {
	logger := NewZap(InfoLevel, new(bytes.Buffer))
	require.Same(t, Logger(logger), logger.With())
}

func TestEnabled(t *testing.T) {
	logger := NewZap(InfoLevel, new(bytes.Buffer))
	assert.True(t, logger.Enabled(InfoLevel))
	assert.True(t, logger.Enabled(ErrorLevel))
	assert.False(t, logger.Enabled(DebugLevel))
}

func TestLogOutput(t *testing.T) {
	buffer := new(bytes.Buffer)
	logger := NewZap(InfoLevel, buffer)
	outputs := logger.LogOutput()
	require.Len(t, outputs, 1)
}

func TestStdLogger(t *testing.T) {
	buffer := new(bytes.Buffer)
	logger := NewZap(InfoLevel, buffer)

	std := logger.StdLogger()
	require.NotNil(t, std)
	std.Println("from the standard logger")

	actual, err := extractMessage(buffer.Bytes())
	require.NoError(t, err)
	require.Equal(t, "from the standard logger", actual)
}

func TestFlushWithoutBufferedOutputs(t *testing.T) {
	logger := NewZap(InfoLevel, new(bytes.Buffer))
	require.NoError(t, logger.Flush())
}

func TestDiscardLogger(t *testing.T) {
	DiscardLogger.Info("ignored")
	DiscardLogger.Debugf("ignored %d", 1)
	assert.Equal(t, InfoLevel, DiscardLogger.LogLevel())
	assert.False(t, DiscardLogger.Enabled(InfoLevel))
	assert.True(t, DiscardLogger.Enabled(PanicLevel))
	assert.Equal(t, DiscardLogger, DiscardLogger.With("k", "v"))
	assert.NoError(t, DiscardLogger.Flush())
	assert.Panics(t, func() { DiscardLogger.Panic("boom") })
}

// extractMessage returns the msg field of the last JSON log entry.
func extractMessage(bs []byte) (string, error) {
	entry, err := lastEntry(bs)
	if err != nil {
		return "", err
	}
	msg, _ := entry["msg"].(string)
	return msg, nil
}

// extractLevel returns the level field of the last JSON log entry.
func extractLevel(bs []byte) (string, error) {
	entry, err := lastEntry(bs)
	if err != nil {
		return "", err
	}
	lvl, _ := entry["level"].(string)
	return lvl, nil
}

func lastEntry(bs []byte) (map[string]any, error) {
	lines := bytes.Split(bytes.TrimSpace(bs), []byte("\n"))
	var entry map[string]any
	if err := json.Unmarshal(lines[len(lines)-1], &entry); err != nil {
		return nil, err
	}
	return entry, nil
}
