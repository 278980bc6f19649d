// Package config loads, validates and resolves train-all options. Values
// come from defaults, then an optional YAML file, then explicit flags;
// pointer fields distinguish "unset" from a zero value.
package config

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"rndharness/internal/blob"
	"rndharness/internal/ledger"
	"rndharness/internal/orchestrator"
	"rndharness/internal/pipeline"
)

// ErrInvalidOption is wrapped by every load and validation failure.
var ErrInvalidOption = errors.New("config: invalid option")

const (
	defaultProfile          = "standard"
	defaultMaxAttempts      = 3
	defaultPostPassAttempts = 2
	defaultSeedStep         = 137
	defaultAutoDataScale    = 1.2
	defaultAutoMaxDataScale = 3.2
	defaultAutoMinObjective = 125.9
	defaultInvokedBy        = "train-all"
)

// Options are the raw, unresolved settings.
type Options struct {
	Profile                 string   `yaml:"profile" validate:"omitempty,oneof=smoke standard max auto"`
	Seed                    *int64   `yaml:"seed"`
	GeneratedAt             string   `yaml:"generated_at" validate:"omitempty,rfc3339"`
	MaxAttempts             *int     `yaml:"max_attempts" validate:"omitempty,min=1,max=30"`
	AutoPostPassMaxAttempts *int     `yaml:"auto_post_pass_max_attempts" validate:"omitempty,min=1,max=30"`
	SeedStep                *int64   `yaml:"seed_step" validate:"omitempty,min=1,max=1000000"`
	DataScale               *float64 `yaml:"data_scale" validate:"omitempty,min=1,max=10"`
	AutoMaxDataScale        *float64 `yaml:"auto_max_data_scale" validate:"omitempty,min=1,max=10"`
	AutoMinObjective        *float64 `yaml:"auto_min_weighted_objective_score" validate:"omitempty,min=0,max=500"`
	Parallelism             int      `yaml:"parallelism" validate:"min=0,max=64"`
	RequirePass             *bool    `yaml:"require_pass"`
	RequireStabilityBuffer  *bool    `yaml:"require_stability_buffer"`
	RequireObjectiveTarget  *bool    `yaml:"require_objective_target"`

	Blob   BlobOptions   `yaml:"blob"`
	Ledger LedgerOptions `yaml:"ledger"`

	MetricsOut string `yaml:"metrics_out"`
	TraceOut   string `yaml:"trace_out"`
	Output     string `yaml:"output"`
	Verbose    bool   `yaml:"verbose"`
	InvokedBy  string `yaml:"invoked_by"`
}

// BlobOptions select the artifact store.
type BlobOptions struct {
	Driver      string `yaml:"driver" validate:"omitempty,oneof=fs s3 memory"`
	Root        string `yaml:"root"`
	S3Bucket    string `yaml:"s3_bucket" validate:"required_if=Driver s3"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint" validate:"omitempty,url"`
	S3Prefix    string `yaml:"s3_prefix"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// LedgerOptions select the run ledger.
type LedgerOptions struct {
	Driver string `yaml:"driver" validate:"omitempty,oneof=none memory sqlite postgres"`
	DSN    string `yaml:"dsn"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("rfc3339", func(fl validator.FieldLevel) bool {
		_, err := parseTime(fl.Field().String())
		return err == nil
	})
	return v
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
}

// Validate checks every field and joins the failures, each wrapping
// ErrInvalidOption with its yaml path.
func (o Options) Validate() error {
	err := validate.Struct(o)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidOption, err)
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Options.")
		if fe.Param() != "" {
			errs = append(errs, fmt.Errorf("%w: %s: must satisfy %s=%s", ErrInvalidOption, field, fe.Tag(), fe.Param()))
		} else {
			errs = append(errs, fmt.Errorf("%w: %s: must satisfy %s", ErrInvalidOption, field, fe.Tag()))
		}
	}
	return errors.Join(errs...)
}

// Load reads a YAML options file. Unknown keys are rejected.
func Load(path string) (Options, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("%w: read %s: %w", ErrInvalidOption, path, err)
	}
	return Parse(b)
}

// Parse decodes YAML options. An empty document yields zero Options.
func Parse(b []byte) (Options, error) {
	var o Options
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("%w: decode yaml: %w", ErrInvalidOption, err)
	}
	return o, nil
}

// Resolved are the fully defaulted settings of one invocation.
type Resolved struct {
	Run        orchestrator.Options
	Blob       blob.Config
	Ledger     LedgerOptions
	MetricsOut string
	TraceOut   string
	Output     string
	Verbose    bool
	InvokedBy  string
}

// Resolve validates o and fills the profile-dependent defaults. now is
// used when no generated_at is given.
func (o Options) Resolve(now time.Time) (Resolved, error) {
	if err := o.Validate(); err != nil {
		return Resolved{}, err
	}
	profile := cmp.Or(o.Profile, defaultProfile)
	auto := profile == orchestrator.ProfileAuto

	generatedAt := now.UTC().Truncate(time.Millisecond)
	if o.GeneratedAt != "" {
		t, err := parseTime(o.GeneratedAt)
		if err != nil {
			return Resolved{}, fmt.Errorf("%w: generated_at: %w", ErrInvalidOption, err)
		}
		generatedAt = t.UTC()
	}

	seed := int64(pipeline.DefaultSeed)
	maxAttempts := defaultMaxAttempts
	if o.Seed != nil {
		seed = *o.Seed
		maxAttempts = 1
	}
	maxAttempts = deref(o.MaxAttempts, maxAttempts)

	dataScale := 1.0
	autoMax := 0.0
	minObjective := 0.0
	if auto {
		dataScale = defaultAutoDataScale
		autoMax = defaultAutoMaxDataScale
		minObjective = defaultAutoMinObjective
	}
	dataScale = deref(o.DataScale, dataScale)
	if !auto {
		autoMax = dataScale
	}

	run := orchestrator.Options{
		Profile:                 profile,
		BaseSeed:                seed,
		GeneratedAt:             generatedAt,
		MaxAttempts:             maxAttempts,
		AutoPostPassMaxAttempts: deref(o.AutoPostPassMaxAttempts, min(defaultPostPassAttempts, maxAttempts)),
		SeedStep:                deref(o.SeedStep, int64(defaultSeedStep)),
		DataScale:               dataScale,
		AutoMaxDataScale:        deref(o.AutoMaxDataScale, autoMax),
		AutoMinObjective:        deref(o.AutoMinObjective, minObjective),
		Parallelism:             max(1, o.Parallelism),
		RequirePass:             deref(o.RequirePass, true),
		RequireStabilityBuffer:  deref(o.RequireStabilityBuffer, auto),
		RequireObjectiveTarget:  deref(o.RequireObjectiveTarget, auto),
	}
	return Resolved{
		Run:        run,
		Blob:       o.Blob.Config(),
		Ledger:     LedgerOptions{Driver: cmp.Or(o.Ledger.Driver, string(ledger.DriverNone)), DSN: o.Ledger.DSN},
		MetricsOut: o.MetricsOut,
		TraceOut:   o.TraceOut,
		Output:     o.Output,
		Verbose:    o.Verbose,
		InvokedBy:  cmp.Or(o.InvokedBy, defaultInvokedBy),
	}, nil
}

// Config maps b onto the blob factory settings.
func (b BlobOptions) Config() blob.Config {
	return blob.Config{
		Driver: blob.Driver(b.Driver),
		Root:   b.Root,
		S3: blob.S3Config{
			Bucket:    b.S3Bucket,
			Region:    b.S3Region,
			Endpoint:  b.S3Endpoint,
			Prefix:    b.S3Prefix,
			PathStyle: b.S3PathStyle,
		},
	}
}

// BlobOptionsFromEnv reads the RNDHARNESS_BLOB_* variables.
func BlobOptionsFromEnv() BlobOptions {
	env := blob.ConfigFromEnv()
	return BlobOptions{
		Driver:      string(env.Driver),
		Root:        env.Root,
		S3Bucket:    env.S3.Bucket,
		S3Region:    env.S3.Region,
		S3Endpoint:  env.S3.Endpoint,
		S3PathStyle: env.S3.PathStyle,
	}
}

func deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
