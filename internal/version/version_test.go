package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	assert.True(t, IsVersionGreaterOrEqualThan("0.2.0", "0.2.0"))
	assert.True(t, IsVersionGreaterOrEqualThan("v0.10.0", "0.9.1"))
	assert.False(t, IsVersionGreaterThan("0.2.0", "0.2.0"))
	assert.True(t, IsVersionGreaterThan("1.0.0", "1.0.0-rc.1"))
}

func TestString(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldVersion, oldCommit })

	Version, GitCommit = "0.3.0", "unknown"
	assert.Equal(t, "0.3.0", String())
	GitCommit = "0123456789abcdef"
	assert.Equal(t, "0.3.0-01234567", String())
	assert.Equal(t, DevVersion, GetCurrentVersion("demo"))
	assert.Equal(t, "0.3.0", GetCurrentVersion("prod"))
}
