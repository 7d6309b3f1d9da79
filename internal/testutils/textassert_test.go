package testutils

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingT struct {
	messages []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.messages = append(r.messages, fmt.Sprintf(format, args...))
}

func TestTextAsserter_Defaults(t *testing.T) {
	opts := NewTextAsserter(t).Options()
	assert.True(t, opts.TrimSpace)
	assert.True(t, opts.IgnoreTrailingWhitespace)
	assert.True(t, opts.StripANSI)
	assert.False(t, opts.EnableColors)
}

func TestTextAsserter_Assert(t *testing.T) {
	rt := &recordingT{}
	ta := NewTextAsserterWithInterface(rt)

	assert.True(t, ta.Assert("\x1b[32mok\x1b[0m  \nline2\n", "ok\nline2"))
	assert.Empty(t, rt.messages)

	assert.False(t, ta.Assert("a\nb", "a\nc"))
	assert.Len(t, rt.messages, 1)
	assert.Contains(t, rt.messages[0], "-c")
	assert.Contains(t, rt.messages[0], "+b")

	strict := NewTextAsserterWithInterface(rt).WithOptions(WithTrimSpace(false), WithIgnoreTrailingWhitespace(false))
	assert.False(t, strict.Assert("x ", "x"))
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "Temp: 23.4", StripANSI("\x1b[1;36mTemp:\x1b[0m 23.4"))
}
