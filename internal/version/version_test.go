package version

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	assert.Equal(t, "dev", Version)
	assert.Equal(t, "dev", Commit)
	assert.Equal(t, "unknown", BuildTime)
}

func TestGet_FollowsLinkerOverrides(t *testing.T) {
	oldVersion, oldCommit, oldBuild := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = oldVersion, oldCommit, oldBuild })

	Version, Commit, BuildTime = "v1.4.0", "abc1234", "2026-01-02T03:04:05Z"
	info := Get("support-backend")

	assert.Equal(t, Info{
		Service:   "support-backend",
		Version:   "v1.4.0",
		Commit:    "abc1234",
		BuildTime: "2026-01-02T03:04:05Z",
	}, info)
	assert.Equal(t, "support-backend v1.4.0 (commit abc1234, built 2026-01-02T03:04:05Z)", info.String())
}

func TestInfo_JSON(t *testing.T) {
	data, err := json.Marshal(Get("support-admin"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"service":"support-admin","version":"dev","commit":"dev","buildTime":"unknown"}`, string(data))
}
