package lake

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) add(level, format string, args ...interface{}) {
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
}

func (r *recordingLogger) Debugf(format string, args ...interface{}) { r.add("D", format, args...) }
func (r *recordingLogger) Infof(format string, args ...interface{})  { r.add("I", format, args...) }
func (r *recordingLogger) Warningf(format string, args ...interface{}) {
	r.add("W", format, args...)
}
func (r *recordingLogger) Errorf(format string, args ...interface{}) { r.add("E", format, args...) }
func (r *recordingLogger) Criticalf(format string, args ...interface{}) {
	r.add("C", format, args...)
}
func (r *recordingLogger) Shutdown() {}

func withLogger(t *testing.T, m ModeFlag) *recordingLogger {
	rec := &recordingLogger{}
	oldMode := LogMode()
	SetLogger(rec)
	SetLogMode(m)
	t.Cleanup(func() {
		SetLogger(nil)
		SetLogMode(oldMode)
	})
	return rec
}

func TestLogMode(t *testing.T) {
	rec := withLogger(t, WarningMode)
	Debugf("debug")
	Infof("info")
	Warningf("warn %d", 1)
	Errorf("error")
	assert.Equal(t, []string{"W warn 1", "E error"}, rec.lines)

	SetLogMode(SilentMode)
	Criticalf("critical")
	assert.Len(t, rec.lines, 2)
}

func TestLibraryLogger(t *testing.T) {
	rec := withLogger(t, InfoMode)
	l := LibraryLogger("badger")
	l.Infof("replaying %d entries\n", 3)
	l.Warningf("slow write\n\n")
	assert.Equal(t, []string{"W badger: slow write"}, rec.lines)

	SetLogMode(DebugMode)
	l.Infof("replaying %d entries\n", 3)
	assert.Equal(t, "D badger: replaying 3 entries", rec.lines[1])
}

func TestLogConfigLogfile(t *testing.T) {
	oldMode := LogMode()
	t.Cleanup(func() {
		Shutdown()
		SetLogger(nil)
		SetLogMode(oldMode)
		Verbose = false
	})
	logfile := filepath.Join(t.TempDir(), "lake.log")
	c := &LogConfig{Logfile: logfile, MaxSize: 1, MaxAge: 1, Verbose: true}
	c.SetLogger()
	assert.Equal(t, DebugMode, LogMode())

	Infof("written to %s", "file")
	data, err := os.ReadFile(logfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "INFO written to file")
}

func TestConvertToAbsolute(t *testing.T) {
	p, err := ConvertToAbsolute("data/ds", "/srv/lake")
	require.NoError(t, err)
	assert.Equal(t, "/srv/lake/data/ds", p)

	p, err = ConvertToAbsolute("/abs/ds/", "/srv/lake")
	require.NoError(t, err)
	assert.Equal(t, "/abs/ds", p)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	p, err = ConvertToAbsolute("ds", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "ds"), p)

	_, err = ConvertToAbsolute("", "/srv")
	assert.Error(t, err)
}

func TestNewCommitID(t *testing.T) {
	a, b := NewCommitID(), NewCommitID()
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
