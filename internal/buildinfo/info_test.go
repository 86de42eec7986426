package buildinfo

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFillFromVCSStamp(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Path: "finledger", Version: "v0.4.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "9c2f4e1a7b3d5f60aa11bb22cc33"},
			{Key: "vcs.time", Value: "2024-06-01T10:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	got := fill(Info{Version: "dev", Commit: "none", Date: "unknown"}, bi)
	assert.Equal(t, Info{
		Version: "v0.4.1",
		Commit:  "9c2f4e1a7b3d5f60aa11bb22cc33",
		Date:    "2024-06-01T10:00:00Z",
		Dirty:   true,
	}, got)
	assert.Equal(t, "v0.4.1 (commit: 9c2f4e1a7b3d-dirty, built: 2024-06-01T10:00:00Z)", got.String())
}

func TestFillKeepsLinkerValues(t *testing.T) {
	bi := &debug.BuildInfo{
		Main:     debug.Module{Path: "finledger", Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffff"}},
	}

	got := fill(Info{Version: "1.2.0", Commit: "abc123", Date: "2024-05-01"}, bi)
	assert.Equal(t, "1.2.0 (commit: abc123, built: 2024-05-01)", got.String())

	dev := fill(Info{Version: "dev", Commit: "none", Date: "unknown"}, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	assert.Equal(t, "dev", dev.Version)
}
