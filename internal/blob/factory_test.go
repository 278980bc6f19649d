package blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		cfg  Config
		want Driver
	}{
		{Config{Root: t.TempDir()}, DriverFilesystem},
		{Config{Driver: DriverFilesystem, Root: t.TempDir()}, DriverFilesystem},
		{Config{Driver: DriverMemory}, DriverMemory},
	}
	for _, tc := range cases {
		store, err := Open(ctx, tc.cfg)
		if err != nil {
			t.Fatalf("open %+v: %v", tc.cfg, err)
		}
		if store.Driver() != tc.want {
			t.Fatalf("driver = %s, want %s", store.Driver(), tc.want)
		}
	}
	if _, err := Open(ctx, Config{Driver: "tape"}); err == nil {
		t.Fatalf("expected unknown driver error")
	}
	if _, err := Open(ctx, Config{Driver: DriverS3}); err == nil {
		t.Fatalf("expected missing bucket error")
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("RNDHARNESS_BLOB_DRIVER", "s3")
	t.Setenv("RNDHARNESS_BLOB_S3_BUCKET", "artifacts")
	t.Setenv("RNDHARNESS_BLOB_S3_PATH_STYLE", "TRUE")
	t.Setenv("RNDHARNESS_BLOB_FS_ROOT", "/tmp/ignored")
	cfg := ConfigFromEnv()
	if cfg.Driver != DriverS3 || cfg.S3.Bucket != "artifacts" || !cfg.S3.PathStyle || cfg.Root != "/tmp/ignored" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

// Every backend must behave the same through the facade.
func TestBackendsShareSemantics(t *testing.T) {
	fsStore, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	for _, store := range []Store{fsStore, NewMemory(), NewMockS3ForTests()} {
		t.Run(string(store.Driver()), func(t *testing.T) {
			ctx := context.Background()
			if _, err := store.Put(ctx, "run/report.json", bytes.NewReader([]byte(`{"ok":true}`)), PutOptions{ContentType: "application/json"}); err != nil {
				t.Fatalf("put: %v", err)
			}
			if _, err := store.Put(ctx, "run/report.json", bytes.NewReader(nil), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			_, rc, err := store.Get(ctx, "run/report.json")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			b, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(b) != `{"ok":true}` {
				t.Fatalf("body %q", b)
			}
			if _, err := store.Head(ctx, "run/missing.json"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			list, err := store.List(ctx, "run/")
			if err != nil || len(list) != 1 {
				t.Fatalf("list: %v %+v", err, list)
			}
			if ok, err := store.Delete(ctx, "run/report.json"); err != nil || !ok {
				t.Fatalf("delete: %v %v", ok, err)
			}
		})
	}
}
