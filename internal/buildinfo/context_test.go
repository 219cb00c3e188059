package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextDefaults(t *testing.T) {
	t.Parallel()

	var nilCtx *Context
	assert.Equal(t, "unknown", nilCtx.GetVersion())
	assert.Equal(t, "unknown", (&Context{}).GetBuildDate())
	assert.Equal(t, "camruler@unknown", nilCtx.Release())
}

func TestContextString(t *testing.T) {
	t.Parallel()

	c := &Context{Version: "v1.2.0", BuildDate: "2026-10-01"}
	assert.Equal(t, "camruler v1.2.0 (built 2026-10-01)", c.String())
	assert.Equal(t, "camruler@v1.2.0", c.Release())
}
