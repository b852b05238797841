package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("run %s started", "01ABC")
	assert.Contains(t, out.String(), "run 01ABC started")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("generated %d files", 4)
	assert.Contains(t, out.String(), "generated 4 files")
}

func TestWarningAndErrorGoToErrOut(t *testing.T) {
	u, out, errOut := newTestUI()
	u.Warning("plan reconciled")
	u.Error("run stopped")
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "plan reconciled")
	assert.Contains(t, errOut.String(), "run stopped")
}

func TestVerboseLog(t *testing.T) {
	u, out, _ := newTestUI()
	u.VerboseLog("hidden")
	assert.Empty(t, out.String())

	u.Verbose = true
	u.VerboseLog("shown")
	assert.Contains(t, out.String(), "shown")
}

func TestSeverityColor_UnknownPassesThrough(t *testing.T) {
	assert.Equal(t, "odd", SeverityColor("odd"))
}

func TestOutcomeColor_UnknownPassesThrough(t *testing.T) {
	assert.Equal(t, "pending", OutcomeColor("pending"))
}
