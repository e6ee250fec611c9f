package buildconfig

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	info := Get()
	assert.Equal(t, "dev", info.Version)
	assert.NotEmpty(t, info.Commit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}
