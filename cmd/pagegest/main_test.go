package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/pagegest/internal/pipeline"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pagegest dev")
}

func TestIngest_LocalTextFile(t *testing.T) {
	t.Setenv("PAGEGEST_CRAWL_SETTLE_DELAY", "0s")
	path := filepath.Join(t.TempDir(), "code.txt")
	content := "Глава 1. Общие положения\n\nСтатья 1. Первая статья начи-\f" +
		"нается здесь.\n\nСтатья 2. Вторая статья.\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	out, err := execute(t, "ingest", "Code", path,
		"--embedding-provider", "hash",
		"--pace-min", "0s", "--pace-max", "0s",
		"--log-level", "error",
	)
	require.NoError(t, err)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "docs_code", res.Collection)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 2, res.Chunks)
	assert.False(t, res.Empty)
}

func TestIngest_RequiresTwoArgs(t *testing.T) {
	_, err := execute(t, "ingest", "only-doc-id")
	assert.Error(t, err)
}
