package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFillAndInspect(t *testing.T) {
	requireT := require.New(t)
	dir := t.TempDir()

	configPath := filepath.Join(dir, "diskvideo.yaml")
	requireT.NoError(os.WriteFile(configPath, []byte("tempDir: "+dir+"\nlogLevel: error\n"), 0o600))

	for _, mode := range []string{"plain", "targa", "potential"} {
		path := filepath.Join(dir, mode+".dvs")

		var out, errOut bytes.Buffer
		code := run(context.Background(), &out, &errOut, []string{
			"fill", "-c", configPath, "--mode", mode, "-x", "200", "-y", "150", "--colors", "16", "--medium", "disk",
			"--cache-kib", "8", "-o", path,
		})
		requireT.Equal(0, code, errOut.String())
		requireT.Contains(out.String(), "medium:      disk")

		out.Reset()
		errOut.Reset()
		code = run(context.Background(), &out, &errOut, []string{"inspect", "--verify", path})
		requireT.Equal(0, code, errOut.String())
		requireT.Contains(out.String(), "mode:        "+mode)
		requireT.Contains(out.String(), "image:       200x150, 16 colors")
		requireT.Contains(out.String(), "verified:    ok")
	}
}

func TestInvalidInvocations(t *testing.T) {
	requireT := require.New(t)

	for _, args := range [][]string{
		nil,
		{"paint"},
		{"fill", "--mode", "sepia"},
		{"fill", "--width"},
		{"fill", "extra"},
		{"inspect"},
		{"inspect", filepath.Join(t.TempDir(), "missing.dvs")},
	} {
		var out, errOut bytes.Buffer
		requireT.NotEqual(0, run(context.Background(), &out, &errOut, args), "args: %v", args)
		requireT.NotEmpty(errOut.String(), "args: %v", args)
	}
}
