package display

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/backmassage/stitch/internal/check"
	"github.com/backmassage/stitch/internal/config"
	"github.com/backmassage/stitch/internal/planner"
)

func TestWriteDryRun(t *testing.T) {
	plans := []planner.Plan{
		{
			Target:  planner.PlanPath{Path: "/out/a.mp4", Leaf: "a.mp4"},
			Sources: []planner.PlanPath{{Path: "/in/1.mp4", Leaf: "1.mp4"}, {Path: "/in/2.mp4", Leaf: "2.mp4"}},
		},
		{
			Target:  planner.PlanPath{Path: "/out/b.mp4", Leaf: "b.mp4"},
			Sources: []planner.PlanPath{{Path: "/in/3.mp4", Leaf: "3.mp4"}},
			Mode:    planner.ModeConcat,
		},
	}
	tools := check.Tools{FFmpeg: "/usr/bin/ffmpeg", FFprobe: "/usr/bin/ffprobe"}

	var buf bytes.Buffer
	require.NoError(t, WriteDryRun(&buf, tools, plans, config.ModeFilter))

	var got struct {
		Tools map[string]string `yaml:"tools"`
		Plans []struct {
			Target  map[string]string   `yaml:"target"`
			Sources []map[string]string `yaml:"sources"`
			Mode    string              `yaml:"mode"`
		} `yaml:"plans"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "/usr/bin/ffmpeg", got.Tools["ffmpeg"])
	require.Len(t, got.Plans, 2)
	assert.Equal(t, "filter", got.Plans[0].Mode, "default resolved against --mode")
	assert.Equal(t, "concat", got.Plans[1].Mode, "flag line wins")
	assert.Equal(t, "2.mp4", got.Plans[0].Sources[1]["leaf"])
	assert.Equal(t, planner.ModeDefault, plans[0].Mode, "input not mutated")
}
