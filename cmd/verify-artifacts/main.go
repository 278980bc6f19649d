// Command verify-artifacts re-hashes the files of an exported run bundle and
// prints the verification as JSON. Without --bundle it checks the bundle
// named by the latest-run pointer.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"rndharness/internal/artifact"
	"rndharness/internal/blob"
	"rndharness/internal/config"
)

const (
	exitOK    = 0
	exitFail  = 1
	exitUsage = 2
)

var (
	exitFunc = os.Exit
	nowFunc  = time.Now
	// openStore is replaced in tests to share an in-memory store.
	openStore = blob.Open
)

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newCommand(stdout)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	_, _ = fmt.Fprintf(stderr, "verify-artifacts: %v\n", err)
	if errors.Is(err, config.ErrInvalidOption) {
		return exitUsage
	}
	return exitFail
}

type result struct {
	BundleKey    string                  `json:"bundle_key"`
	Latest       *artifact.LatestPointer `json:"latest,omitempty"`
	Verification artifact.Verification   `json:"verification"`
}

func newCommand(stdout io.Writer) *cobra.Command {
	var (
		opts      config.BlobOptions
		bundleKey string
	)
	cmd := &cobra.Command{
		Use:           "verify-artifacts",
		Short:         "Check an exported run bundle against its stored files",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: unexpected arguments %q", config.ErrInvalidOption, args)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !anyChanged(cmd, storeFlags) {
				opts = config.BlobOptionsFromEnv()
			}
			if err := (config.Options{Blob: opts}).Validate(); err != nil {
				return err
			}
			return verify(cmd.Context(), opts.Config(), bundleKey, stdout)
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", config.ErrInvalidOption, err)
	})
	fl := cmd.Flags()
	fl.StringVar(&opts.Driver, "blob-driver", "fs", "artifact store: fs|s3")
	fl.StringVar(&opts.Root, "out-root", "", "fs artifact root (default ./artifacts)")
	fl.StringVar(&opts.S3Bucket, "s3-bucket", "", "s3 bucket")
	fl.StringVar(&opts.S3Region, "s3-region", "", "s3 region")
	fl.StringVar(&opts.S3Endpoint, "s3-endpoint", "", "s3 endpoint url")
	fl.StringVar(&opts.S3Prefix, "s3-prefix", "", "key prefix inside the bucket")
	fl.BoolVar(&opts.S3PathStyle, "s3-path-style", false, "use path-style s3 addressing")
	fl.StringVar(&bundleKey, "bundle", "", "bundle key to verify (default: the latest run's bundle)")
	return cmd
}

var storeFlags = []string{"blob-driver", "out-root", "s3-bucket", "s3-region", "s3-endpoint", "s3-prefix", "s3-path-style"}

func anyChanged(cmd *cobra.Command, names []string) bool {
	for _, n := range names {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}

func verify(ctx context.Context, cfg blob.Config, bundleKey string, stdout io.Writer) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	res := result{BundleKey: bundleKey}
	if bundleKey == "" {
		latest, err := artifact.ReadLatest(ctx, store)
		if err != nil {
			return fmt.Errorf("read latest pointer: %w", err)
		}
		res.Latest = &latest
		res.BundleKey = latest.BundleKey
	}
	bundle, err := artifact.ReadBundle(ctx, store, res.BundleKey)
	if err != nil {
		return fmt.Errorf("read bundle %s: %w", res.BundleKey, err)
	}
	v, err := artifact.Verify(ctx, store, bundle)
	if err != nil {
		return err
	}
	v.VerifiedAt = nowFunc().UTC()
	res.Verification = v

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if !v.AllVerified {
		return fmt.Errorf("%w: %d of %d file(s) failed", artifact.ErrVerification, v.FailedCount, v.CheckedCount)
	}
	return nil
}
