package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"rndharness/internal/blob/core"
)

func TestMockStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	if store.Driver() != core.DriverS3 {
		t.Fatalf("expected s3 driver")
	}
	body := []byte(`{"weights":[0.1,0.2]}`)
	info, err := store.Put(ctx, "run/model/ite-regressor.json", bytes.NewReader(body),
		core.PutOptions{ContentType: "application/json", Metadata: map[string]string{"kind": "model"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != int64(len(body)) || info.ContentType != "application/json" || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.Metadata["kind"] != "model" {
		t.Fatalf("metadata lost: %+v", info.Metadata)
	}
	if _, err := store.Put(ctx, "run/model/ite-regressor.json", bytes.NewReader(body), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	_, rc, err := store.Get(ctx, "run/model/ite-regressor.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, body) {
		t.Fatalf("body mismatch %q", got)
	}
	if ok, err := store.Delete(ctx, "run/model/ite-regressor.json"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "run/model/ite-regressor.json"); err != nil || ok {
		t.Fatalf("second delete: %v %v", ok, err)
	}
	if _, _, err := store.Get(ctx, "run/model/ite-regressor.json"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMockStoreListPages(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("run/data/part-%d.jsonl", i)
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte(key)), core.PutOptions{}); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	if _, err := store.Put(ctx, "other/x.json", bytes.NewReader(nil), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	list, err := store.List(ctx, "run/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 5 || list[0].Key != "run/data/part-0.jsonl" || list[4].Key != "run/data/part-4.jsonl" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestPrefixedStoreHidesPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewMockForTests()
	store.prefix = "team-a"
	if _, err := store.Put(ctx, "run/a.json", bytes.NewReader([]byte("{}")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	list, err := store.List(ctx, "run/")
	if err != nil || len(list) != 1 || list[0].Key != "run/a.json" {
		t.Fatalf("list: %v %+v", err, list)
	}
	if _, err := store.Put(ctx, "/abs", bytes.NewReader(nil), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return respond(http.StatusInternalServerError, []byte("<Error><Code>InternalError</Code></Error>"), nil), nil
}

func TestServerErrorsAreNotNotFound(t *testing.T) {
	store := &Store{client: newMockClient(failingTransport{}), bucket: mockBucket}
	_, err := store.Head(context.Background(), "k")
	if err == nil || errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected a plain error, got %v", err)
	}
	if _, err := store.Put(context.Background(), "k", bytes.NewReader(nil), core.PutOptions{}); err == nil {
		t.Fatalf("expected put to fail when head errors")
	}
}

func TestDecodeAWSChunked(t *testing.T) {
	raw := "5;chunk-signature=abc\r\nhello\r\n6\r\n world\r\n0\r\nx-amz-checksum-crc32:AAAA\r\n\r\n"
	got, err := decodeAWSChunked([]byte(raw))
	if err != nil || string(got) != "hello world" {
		t.Fatalf("decode: %q %v", got, err)
	}
	if _, err := decodeAWSChunked([]byte("zz\r\n")); err == nil {
		t.Fatalf("expected bad size error")
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected bucket error")
	}
}
