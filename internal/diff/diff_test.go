package diff

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeNoChanges(t *testing.T) {
	content := "a\nb\nc\n"
	fd := Compute("f.txt", content, content)
	assert.False(t, fd.HasChanges())
	assert.Nil(t, fd.RenderUnified())
}

func TestComputeSimpleReplace(t *testing.T) {
	oldContent := "one\ntwo\nthree\n"
	newContent := "one\nTWO\nthree\n"
	fd := Compute("f.txt", oldContent, newContent)
	require.True(t, fd.HasChanges())
	require.Len(t, fd.Hunks, 1)

	rendered := strings.Join(fd.RenderUnified(), "\n")
	assert.Contains(t, rendered, "--- a/f.txt")
	assert.Contains(t, rendered, "+++ b/f.txt")
	assert.Contains(t, rendered, "-two")
	assert.Contains(t, rendered, "+TWO")
	assert.Contains(t, rendered, " one")
}

func TestComputeNewFile(t *testing.T) {
	fd := Compute("new.txt", "", "hello\nworld\n")
	assert.True(t, fd.IsNew)
	require.True(t, fd.HasChanges())
	rendered := fd.RenderUnified()
	assert.Equal(t, "--- /dev/null", rendered[0])
	assert.Contains(t, rendered, "+hello")
	assert.Contains(t, rendered, "+world")
}

func TestRenderUnifiedExactOutput(t *testing.T) {
	fd := Compute("f.txt", "a\nb\n", "a\nc\n")
	want := []string{
		"--- a/f.txt",
		"+++ b/f.txt",
		"@@ -1,2 +1,2 @@",
		" a",
		"-b",
		"+c",
	}
	if d := cmp.Diff(want, fd.RenderUnified()); d != "" {
		t.Errorf("unified render mismatch (-want +got):\n%s", d)
	}
}

func TestComputeDistantChangesSplitIntoHunks(t *testing.T) {
	var oldLines, newLines []string
	for i := 0; i < 30; i++ {
		oldLines = append(oldLines, "line")
		newLines = append(newLines, "line")
	}
	newLines[0] = "changed-top"
	newLines[29] = "changed-bottom"

	fd := Compute("f.txt", strings.Join(oldLines, "\n")+"\n", strings.Join(newLines, "\n")+"\n")
	assert.Len(t, fd.Hunks, 2)
}

func TestHunkCounts(t *testing.T) {
	oldContent := "a\nb\nc\nd\ne\n"
	newContent := "a\nb\nX\nY\nd\ne\n"
	fd := Compute("f.txt", oldContent, newContent)
	require.Len(t, fd.Hunks, 1)
	h := fd.Hunks[0]
	// context a,b + removed c + added X,Y + context d,e
	assert.Equal(t, 5, h.OldCount)
	assert.Equal(t, 6, h.NewCount)
	assert.Equal(t, 1, h.OldStart)
	assert.Equal(t, 1, h.NewStart)
}
