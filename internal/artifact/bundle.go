package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"rndharness/internal/blob"
	"rndharness/internal/pipeline"
)

const (
	BundleName = "evaluation-submission-bundle.json"
	VerifyName = "evaluation-submission-verify.json"

	verifyParallelism = 8
)

// ErrVerification reports a bundle whose stored files no longer match.
var ErrVerification = errors.New("artifact: bundle verification failed")

// Status is the outcome of checking one bundle entry.
type Status string

const (
	StatusOK           Status = "ok"
	StatusMissing      Status = "missing-file"
	StatusSizeMismatch Status = "size-mismatch"
	StatusHashMismatch Status = "hash-mismatch"
)

// Bundle is the checksum manifest of a run's datasets and models.
type Bundle struct {
	BundleID        string    `json:"bundle_id"`
	RunID           string    `json:"run_id"`
	GeneratedAt     string    `json:"generated_at"`
	Profile         string    `json:"profile"`
	Seed            int64     `json:"seed"`
	SelectedAttempt int       `json:"selected_attempt"`
	Algorithm       string    `json:"hash_algorithm"`
	FileCount       int       `json:"file_count"`
	TotalBytes      int64     `json:"total_size_bytes"`
	Files           []Entry   `json:"files"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewBundle lists entries under a fresh bundle id.
func NewBundle(id string, res pipeline.Result, attempt int, entries []Entry, now time.Time) Bundle {
	b := Bundle{
		BundleID:        id,
		RunID:           res.RunID,
		GeneratedAt:     res.GeneratedAt,
		Profile:         string(res.Profile),
		Seed:            res.Seed,
		SelectedAttempt: attempt,
		Algorithm:       "sha256",
		FileCount:       len(entries),
		Files:           entries,
		CreatedAt:       now,
	}
	for _, e := range entries {
		b.TotalBytes += e.SizeBytes
	}
	return b
}

// VerifyItem is the check of one bundle entry.
type VerifyItem struct {
	Key            string `json:"key"`
	Status         Status `json:"status"`
	ExpectedSize   int64  `json:"expected_size_bytes"`
	ActualSize     int64  `json:"actual_size_bytes"`
	ExpectedSHA256 string `json:"expected_sha256"`
	ActualSHA256   string `json:"actual_sha256,omitempty"`
}

// Verification is the result of re-reading a bundle.
type Verification struct {
	BundleID     string       `json:"bundle_id"`
	RunID        string       `json:"run_id"`
	AllVerified  bool         `json:"all_verified"`
	CheckedCount int          `json:"checked_count"`
	FailedCount  int          `json:"failed_count"`
	Items        []VerifyItem `json:"items"`
	VerifiedAt   time.Time    `json:"verified_at"`
}

// Verify re-reads every bundle entry through store and compares size and
// sha256. Store errors other than a missing key abort the check.
func Verify(ctx context.Context, store blob.Store, b Bundle) (Verification, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(verifyParallelism)
	items := make([]VerifyItem, len(b.Files))
	for i, e := range b.Files {
		g.Go(func() error {
			it, err := verifyEntry(gctx, store, e)
			if err != nil {
				return err
			}
			items[i] = it
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Verification{}, err
	}
	v := Verification{BundleID: b.BundleID, RunID: b.RunID, CheckedCount: len(items), Items: items}
	for _, it := range items {
		if it.Status != StatusOK {
			v.FailedCount++
		}
	}
	v.AllVerified = v.FailedCount == 0
	return v, nil
}

func verifyEntry(ctx context.Context, store blob.Store, e Entry) (VerifyItem, error) {
	it := VerifyItem{Key: e.Key, ExpectedSize: e.SizeBytes, ExpectedSHA256: e.SHA256}
	_, rc, err := store.Get(ctx, e.Key)
	if errors.Is(err, blob.ErrNotFound) {
		it.Status = StatusMissing
		return it, nil
	}
	if err != nil {
		return VerifyItem{}, fmt.Errorf("artifact: verify %s: %w", e.Key, err)
	}
	defer func() { _ = rc.Close() }()
	h := sha256.New()
	n, err := io.Copy(h, rc)
	if err != nil {
		return VerifyItem{}, fmt.Errorf("artifact: verify %s: %w", e.Key, err)
	}
	it.ActualSize = n
	it.ActualSHA256 = hex.EncodeToString(h.Sum(nil))
	switch {
	case n != e.SizeBytes:
		it.Status = StatusSizeMismatch
	case it.ActualSHA256 != e.SHA256:
		it.Status = StatusHashMismatch
	default:
		it.Status = StatusOK
	}
	return it, nil
}

// ReadBundle loads a bundle written by Writer.
func ReadBundle(ctx context.Context, store blob.Store, key string) (Bundle, error) {
	var b Bundle
	if err := readJSON(ctx, store, key, &b); err != nil {
		return Bundle{}, err
	}
	return b, nil
}

func readJSON(ctx context.Context, store blob.Store, key string, v any) error {
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("artifact: read %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("artifact: decode %s: %w", key, err)
	}
	return nil
}
