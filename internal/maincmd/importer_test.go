package maincmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSourceInlinesImports(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "greet.von", `fun greet() { print "hi"; }`)
	main := writeFile(t, dir, "main.von", "import \"greet.von\";\ngreet();\n")

	src, err := loadSource(main)
	require.NoError(t, err)
	assert.Contains(t, src, `fun greet()`)
	assert.Contains(t, src, "greet();")
}

func TestLoadSourceRejectsSelfImport(t *testing.T) {
	dir := t.TempDir()
	main := writeFile(t, dir, "main.von", "import \"main.von\";\n")

	_, err := loadSource(main)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import cycle detected")
}

func TestLoadSourceAllowsDiamondImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.von", `var shared = 1;`)
	writeFile(t, dir, "left.von", "import \"common.von\";\n")
	writeFile(t, dir, "right.von", "import \"common.von\";\n")
	main := writeFile(t, dir, "main.von", "import \"left.von\";\nimport \"right.von\";\n")

	src, err := loadSource(main)
	require.NoError(t, err)
	assert.Contains(t, src, "var shared = 1;")
}
