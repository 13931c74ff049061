//go:build integration

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ligustah/seqdl/internal/testutils"
)

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	data := testutils.GenerateTestData(t, 4*1024*1024)

	t.Log("Starting Minio container...")
	minio := testutils.StartMinioContainer(t, ctx, "cli-test-bucket")

	bucket, err := minio.OpenBucket(ctx)
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer bucket.Close()

	objectPath := "test/cli-file.bin"
	if err := bucket.WriteAll(ctx, objectPath, data, nil); err != nil {
		t.Fatalf("upload: %v", err)
	}

	t.Run("stat", func(t *testing.T) {
		if code := runStat([]string{minio.BucketURL, objectPath}); code != ExitSuccess {
			t.Fatalf("stat failed with exit code %d", code)
		}
	})

	for _, cmd := range []string{"get", "parts"} {
		t.Run(cmd, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "downloaded.bin")
			code := run([]string{cmd,
				"-output", out,
				"-workers", "4",
				"-part-size", "256KiB",
				minio.BucketURL, objectPath,
			})
			if code != ExitSuccess {
				t.Fatalf("%s failed with exit code %d", cmd, code)
			}

			got, err := os.ReadFile(out)
			if err != nil {
				t.Fatalf("read output: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Error("downloaded data mismatch")
			}
		})
	}

	t.Run("missing", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "missing.bin")
		code := runGet([]string{"-output", out, minio.BucketURL, "does/not/exist"})
		if code != ExitSourceNotAccess {
			t.Fatalf("expected exit code %d, got %d", ExitSourceNotAccess, code)
		}
	})
}
