package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileEnsureSimpleComparison(t *testing.T) {
	pred, err := CompileEnsure("result.score >= 0.5")
	require.NoError(t, err)

	ok, err := pred(map[string]any{"score": 0.8})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pred(map[string]any{"score": 0.1})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileEnsureAndOr(t *testing.T) {
	pred, err := CompileEnsure("result.ok and result.score > 0")
	require.NoError(t, err)

	ok, err := pred(map[string]any{"ok": true, "score": 1.0})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = pred(map[string]any{"ok": false, "score": 1.0})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompileEnsureNestedAttributeAccess(t *testing.T) {
	pred, err := CompileEnsure("result.meta.label == \"great\"")
	require.NoError(t, err)

	ok, err := pred(map[string]any{"meta": map[string]any{"label": "great"}})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileEnsureRejectsDunderAttribute(t *testing.T) {
	_, err := CompileEnsure("result.__class__")
	require.Error(t, err)
	var cerr *CompileErr
	require.ErrorAs(t, err, &cerr)
}

func TestCompileEnsureRejectsTrailingUnderscoreAttribute(t *testing.T) {
	_, err := CompileEnsure("result.secret_")
	require.Error(t, err)
	var cerr *CompileErr
	require.ErrorAs(t, err, &cerr)
}

func TestCompileEnsureRejectsNonWhitelistedCall(t *testing.T) {
	_, err := CompileEnsure("eval(result.score)")
	require.Error(t, err)
	var cerr *CompileErr
	require.ErrorAs(t, err, &cerr)
}

func TestCompileEnsureFailsToEvaluateVsEvaluatesFalse(t *testing.T) {
	predFalse, err := CompileEnsure("result.score > 10")
	require.NoError(t, err)
	ok, err := predFalse(map[string]any{"score": 1.0})
	require.NoError(t, err)
	assert.False(t, ok)

	predMissing, err := CompileEnsure("result.missing > 10")
	require.NoError(t, err)
	_, err = predMissing(map[string]any{"score": 1.0})
	require.Error(t, err)
	var cerr *CompileErr
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "failed to evaluate")
}

func TestCompileEnsureLenHelper(t *testing.T) {
	pred, err := CompileEnsure("len(result.items) == 3")
	require.NoError(t, err)
	ok, err := pred(map[string]any{"items": []any{"a", "b", "c"}})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileEnsureIntHelper(t *testing.T) {
	pred, err := CompileEnsure("int(result.count) == 4")
	require.NoError(t, err)
	ok, err := pred(map[string]any{"count": "4"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileEnsureFileExistsHelper(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	pred, err := CompileEnsure("file_exists(result.path) and file_contains(result.path, \"hello\")")
	require.NoError(t, err)
	ok, err := pred(map[string]any{"path": path})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCompileEnsureInMembership(t *testing.T) {
	pred, err := CompileEnsure("\"b\" in result.tags")
	require.NoError(t, err)
	ok, err := pred(map[string]any{"tags": []any{"a", "b", "c"}})
	require.NoError(t, err)
	assert.True(t, ok)
}
