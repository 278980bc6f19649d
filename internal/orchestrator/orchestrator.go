// Package orchestrator drives repeated training attempts across profile
// stages, scores every attempt against the KPI targets and selects the best
// one. Attempts inside a stage may run concurrently; ranking waits for the
// whole stage.
package orchestrator

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"rndharness/internal/ledger"
	"rndharness/internal/observability"
	"rndharness/internal/pipeline"
	"rndharness/internal/world"
)

var (
	// ErrInvalidOptions is returned before any attempt runs.
	ErrInvalidOptions = errors.New("orchestrator: invalid options")
	// ErrGateFailed marks a required quality gate the selection missed.
	ErrGateFailed = errors.New("orchestrator: quality gate failed")
)

// Options configure a multi-attempt run. Callers resolve profile-specific
// defaults before calling Run.
type Options struct {
	Profile                 string    `json:"profile_option"`
	BaseSeed                int64     `json:"base_seed"`
	GeneratedAt             time.Time `json:"generated_at"`
	MaxAttempts             int       `json:"max_attempts"`
	AutoPostPassMaxAttempts int       `json:"auto_post_pass_max_attempts"`
	SeedStep                int64     `json:"seed_step"`
	DataScale               float64   `json:"base_data_scale"`
	AutoMaxDataScale        float64   `json:"auto_max_data_scale"`
	AutoMinObjective        float64   `json:"auto_min_weighted_objective_score"`
	Parallelism             int       `json:"parallelism"`
	RequirePass             bool      `json:"require_pass"`
	RequireStabilityBuffer  bool      `json:"require_stability_buffer"`
	RequireObjectiveTarget  bool      `json:"require_objective_target"`
}

func (o Options) validate() error {
	if o.Profile != ProfileAuto {
		if _, err := world.ParseProfile(o.Profile); err != nil {
			return fmt.Errorf("%w: profile: %w", ErrInvalidOptions, err)
		}
	}
	switch {
	case o.GeneratedAt.IsZero():
		return fmt.Errorf("%w: generated_at is required", ErrInvalidOptions)
	case o.MaxAttempts < 1:
		return fmt.Errorf("%w: max_attempts must be >= 1", ErrInvalidOptions)
	case o.SeedStep < 1:
		return fmt.Errorf("%w: seed_step must be >= 1", ErrInvalidOptions)
	}
	return nil
}

// RunGroup keys the ledger records of one invocation.
func (o Options) RunGroup() string {
	return strconv.FormatInt(o.BaseSeed, 10) + "-" + o.Profile
}

// TrainFunc runs one attempt.
type TrainFunc func(ctx context.Context, opts pipeline.Options, deps pipeline.Deps) (pipeline.Result, error)

// AttemptMetrics receives attempt outcomes and the selected KPI values.
// observability.PrometheusRecorder implements it.
type AttemptMetrics interface {
	RecordAttempt(attempt int, objective float64, gatePassed bool)
	SetKPI(id string, value float64)
}

// Deps are the collaborators of a run. Only Train has a non-trivial
// default; nil Attempts and Ledger are skipped.
type Deps struct {
	Logger   observability.Logger
	Metrics  observability.MetricsRecorder
	Tracer   observability.Tracer
	Attempts AttemptMetrics
	Ledger   ledger.Store
	Train    TrainFunc
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = observability.NopLogger()
	}
	if d.Metrics == nil {
		d.Metrics = observability.NopRecorder()
	}
	if d.Tracer == nil {
		d.Tracer = observability.NopTracer()
	}
	if d.Train == nil {
		d.Train = pipeline.TrainAll
	}
	return d
}

// AttemptSummary is one scored attempt. Result carries the full outcome for
// artifact export and is not serialised.
type AttemptSummary struct {
	Attempt                  int                     `json:"attempt"`
	Stage                    int                     `json:"stage"`
	Profile                  world.Profile           `json:"profile"`
	RunID                    string                  `json:"run_id"`
	Seed                     int64                   `json:"seed"`
	DataScale                float64                 `json:"data_scale"`
	GeneratedAt              string                  `json:"generated_at"`
	GatePassed               bool                    `json:"gate_passed"`
	StabilityBufferSatisfied bool                    `json:"stability_buffer_satisfied"`
	WeightedPassScorePercent float64                 `json:"weighted_pass_score_percent"`
	WeightedObjectiveScore   float64                 `json:"weighted_objective_score"`
	KPI                      pipeline.KPISummary     `json:"kpi"`
	ModelMetrics             pipeline.ModelMetrics   `json:"model_metrics"`
	DatasetSummary           pipeline.DatasetSummary `json:"dataset_summary"`

	Result pipeline.Result `json:"-"`
}

// StageReport summarises one profile stage and its best attempt.
type StageReport struct {
	Stage                        int           `json:"stage"`
	Profile                      world.Profile `json:"profile"`
	AttemptBudget                int           `json:"stage_attempt_budget"`
	AttemptCount                 int           `json:"stage_attempt_count"`
	DataScaleStart               float64       `json:"data_scale_start"`
	DataScaleEnd                 float64       `json:"data_scale_end"`
	DataScaleCap                 float64       `json:"data_scale_cap"`
	BestAttempt                  int           `json:"best_attempt"`
	BestDataScale                float64       `json:"best_data_scale"`
	BestRunID                    string        `json:"best_run_id"`
	BestGatePassed               bool          `json:"best_gate_passed"`
	BestStabilityBufferSatisfied bool          `json:"best_stability_buffer_satisfied"`
	BestObjectiveTargetSatisfied bool          `json:"best_objective_target_satisfied"`
	BestWeightedPassScorePercent float64       `json:"best_weighted_pass_score_percent"`
	BestWeightedObjectiveScore   float64       `json:"best_weighted_objective_score"`
}

// Report is the outcome of a run: every attempt in attempt order plus the
// selection and its derived tables.
type Report struct {
	Options                  Options               `json:"options"`
	ProfilePlan              []world.Profile       `json:"profile_plan"`
	DataScaleStrategy        string                `json:"data_scale_strategy"`
	StageReports             []StageReport         `json:"stage_reports"`
	Attempts                 []AttemptSummary      `json:"attempts"`
	SelectedAttempt          int                   `json:"selected_attempt"`
	SelectedRunID            string                `json:"selected_run_id"`
	SelectedProfile          world.Profile         `json:"selected_profile"`
	SelectedSeed             int64                 `json:"selected_seed"`
	SelectedDataScale        float64               `json:"selected_data_scale"`
	GatePassed               bool                  `json:"pass_gate"`
	StabilityBufferSatisfied bool                  `json:"stability_buffer_satisfied"`
	ObjectiveTargetSatisfied bool                  `json:"objective_target_satisfied"`
	StabilityThresholds      StabilityThresholds   `json:"stability_thresholds"`
	Stability                StabilityReport       `json:"stability"`
	WeightedPassScorePercent float64               `json:"weighted_pass_score_percent"`
	WeightedObjectiveScore   float64               `json:"weighted_objective_score"`
	WeightedKPIs             []WeightedKPIItem     `json:"kpis"`
	ImplementationCoverage   CoverageReport        `json:"implementation_coverage"`
	DataRequirements         DataRequirementReport `json:"data_requirements"`
}

// Selected returns the chosen attempt.
func (r Report) Selected() AttemptSummary {
	for _, a := range r.Attempts {
		if a.Attempt == r.SelectedAttempt {
			return a
		}
	}
	return AttemptSummary{}
}

// GateError joins the failures of every gate the options require, each
// wrapping ErrGateFailed. It is nil when all required gates hold.
func (r Report) GateError() error {
	o := r.Options
	var errs []error
	if o.RequirePass && !r.GatePassed {
		errs = append(errs, fmt.Errorf("%w: kpi gate failed after %d attempt(s): best run=%s weighted_pass_score_percent=%v",
			ErrGateFailed, len(r.Attempts), r.SelectedRunID, r.WeightedPassScorePercent))
	}
	if o.RequireStabilityBuffer && !r.StabilityBufferSatisfied {
		errs = append(errs, fmt.Errorf("%w: stability buffer failed after %d attempt(s): best run=%s weighted_objective_score=%v",
			ErrGateFailed, len(r.Attempts), r.SelectedRunID, r.WeightedObjectiveScore))
	}
	if o.RequireObjectiveTarget && !r.ObjectiveTargetSatisfied {
		errs = append(errs, fmt.Errorf("%w: objective target failed after %d attempt(s): best run=%s weighted_objective_score=%v required>=%v",
			ErrGateFailed, len(r.Attempts), r.SelectedRunID, r.WeightedObjectiveScore, o.AutoMinObjective))
	}
	if o.RequirePass && !r.ImplementationCoverage.AllSatisfied {
		errs = append(errs, fmt.Errorf("%w: implementation coverage failed: run=%s", ErrGateFailed, r.SelectedRunID))
	}
	return errors.Join(errs...)
}

// Rank orders attempts best first: gate, stability buffer, objective, pass
// score, then recommendation accuracy. Ties keep attempt order.
func Rank(attempts []AttemptSummary) []AttemptSummary {
	out := slices.Clone(attempts)
	slices.SortStableFunc(out, func(a, b AttemptSummary) int {
		if a.GatePassed != b.GatePassed {
			return boolFirst(a.GatePassed)
		}
		if a.StabilityBufferSatisfied != b.StabilityBufferSatisfied {
			return boolFirst(a.StabilityBufferSatisfied)
		}
		if c := cmp.Compare(b.WeightedObjectiveScore, a.WeightedObjectiveScore); c != 0 {
			return c
		}
		if c := cmp.Compare(b.WeightedPassScorePercent, a.WeightedPassScorePercent); c != 0 {
			return c
		}
		return cmp.Compare(b.KPI.RecommendationAccuracyPercent, a.KPI.RecommendationAccuracyPercent)
	})
	return out
}

func boolFirst(a bool) int {
	if a {
		return -1
	}
	return 1
}

type attemptJob struct {
	attempt     int
	stage       int
	profile     world.Profile
	seed        int64
	dataScale   float64
	generatedAt time.Time
}

type runner struct {
	opts Options
	deps Deps
}

// Run executes the profile plan and selects the best attempt.
func Run(ctx context.Context, opts Options, deps Deps) (Report, error) {
	if err := opts.validate(); err != nil {
		return Report{}, err
	}
	if opts.AutoPostPassMaxAttempts < 1 {
		opts.AutoPostPassMaxAttempts = min(2, opts.MaxAttempts)
	}
	r := &runner{opts: opts, deps: deps.withDefaults()}

	plan := ProfilePlan(opts.Profile)
	rep := Report{
		Options:             opts,
		ProfilePlan:         plan,
		DataScaleStrategy:   dataScaleStrategy(opts.Profile),
		StabilityThresholds: DefaultStability,
	}
	previousSatisfied := false
	global := 0
	for si, profile := range plan {
		budget := StageBudget(opts.Profile, si, previousSatisfied, opts.MaxAttempts, opts.AutoPostPassMaxAttempts)
		jobs := make([]attemptJob, budget)
		for ai := range jobs {
			jobs[ai] = attemptJob{
				attempt:     global + 1,
				stage:       si + 1,
				profile:     profile,
				seed:        AttemptSeed(opts.BaseSeed, si, ai, opts.MaxAttempts, opts.SeedStep),
				dataScale:   AttemptDataScale(opts.Profile, opts.DataScale, si, ai, opts.AutoMaxDataScale),
				generatedAt: AttemptGeneratedAt(opts.GeneratedAt, global),
			}
			global++
		}
		var stageAttempts []AttemptSummary
		err := observability.Instrument(ctx, r.deps.Tracer, r.deps.Metrics, "orchestrator.stage", func(ctx context.Context) error {
			var err error
			stageAttempts, err = r.runStage(ctx, jobs)
			return err
		})
		if err != nil {
			return Report{}, err
		}
		for _, a := range stageAttempts {
			if err := r.recordAttempt(ctx, a); err != nil {
				return Report{}, err
			}
		}
		rep.Attempts = append(rep.Attempts, stageAttempts...)

		best := Rank(stageAttempts)[0]
		objectiveMet := best.WeightedObjectiveScore >= opts.AutoMinObjective
		rep.StageReports = append(rep.StageReports, StageReport{
			Stage:                        si + 1,
			Profile:                      profile,
			AttemptBudget:                budget,
			AttemptCount:                 len(stageAttempts),
			DataScaleStart:               stageAttempts[0].DataScale,
			DataScaleEnd:                 stageAttempts[len(stageAttempts)-1].DataScale,
			DataScaleCap:                 opts.AutoMaxDataScale,
			BestAttempt:                  best.Attempt,
			BestDataScale:                best.DataScale,
			BestRunID:                    best.RunID,
			BestGatePassed:               best.GatePassed,
			BestStabilityBufferSatisfied: best.StabilityBufferSatisfied,
			BestObjectiveTargetSatisfied: objectiveMet,
			BestWeightedPassScorePercent: best.WeightedPassScorePercent,
			BestWeightedObjectiveScore:   best.WeightedObjectiveScore,
		})
		previousSatisfied = best.GatePassed && best.StabilityBufferSatisfied && objectiveMet
		r.deps.Logger.Info("stage best selected",
			"stage", si+1, "profile", profile, "attempts", len(stageAttempts),
			"best_attempt", best.Attempt, "run_id", best.RunID, "satisfied", previousSatisfied)
	}
	if len(rep.Attempts) == 0 {
		return Report{}, errors.New("orchestrator: no training attempts were executed")
	}

	r.selectBest(&rep)
	if err := r.recordSelection(ctx, rep); err != nil {
		return Report{}, err
	}
	return rep, nil
}

// runStage trains the stage's attempts, at most Parallelism at a time. The
// returned slice is in attempt order regardless of completion order.
func (r *runner) runStage(ctx context.Context, jobs []attemptJob) ([]AttemptSummary, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, r.opts.Parallelism))
	out := make([]AttemptSummary, len(jobs))
	for i, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var res pipeline.Result
			err := observability.Instrument(gctx, r.deps.Tracer, r.deps.Metrics, "orchestrator.attempt", func(ctx context.Context) error {
				var err error
				res, err = r.deps.Train(ctx, pipeline.Options{
					Profile:     job.profile,
					Seed:        job.seed,
					DataScale:   job.dataScale,
					GeneratedAt: job.generatedAt,
				}, pipeline.Deps{Logger: r.deps.Logger, Metrics: r.deps.Metrics, Tracer: r.deps.Tracer})
				return err
			})
			if err != nil {
				return fmt.Errorf("orchestrator: attempt %d: %w", job.attempt, err)
			}
			out[i] = summarizeAttempt(job, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func summarizeAttempt(job attemptJob, res pipeline.Result) AttemptSummary {
	scores := Score(res.KPI)
	return AttemptSummary{
		Attempt:                  job.attempt,
		Stage:                    job.stage,
		Profile:                  job.profile,
		RunID:                    res.RunID,
		Seed:                     job.seed,
		DataScale:                job.dataScale,
		GeneratedAt:              res.GeneratedAt,
		GatePassed:               GatePassed(res.KPI),
		StabilityBufferSatisfied: Stability(res.KPI).AllSatisfied,
		WeightedPassScorePercent: scores.WeightedPassScorePercent,
		WeightedObjectiveScore:   scores.WeightedObjectiveScore,
		KPI:                      res.KPI,
		ModelMetrics:             res.ModelMetrics,
		DatasetSummary:           res.DatasetSummary,
		Result:                   res,
	}
}

func (r *runner) selectBest(rep *Report) {
	sel := Rank(rep.Attempts)[0]
	items := WeightedKPIs(sel.KPI)
	totals := sumContributions(items)
	rep.SelectedAttempt = sel.Attempt
	rep.SelectedRunID = sel.RunID
	rep.SelectedProfile = sel.Profile
	rep.SelectedSeed = sel.Seed
	rep.SelectedDataScale = sel.DataScale
	rep.GatePassed = sel.GatePassed
	rep.StabilityBufferSatisfied = sel.StabilityBufferSatisfied
	rep.ObjectiveTargetSatisfied = sel.WeightedObjectiveScore >= r.opts.AutoMinObjective
	rep.Stability = Stability(sel.KPI)
	rep.WeightedKPIs = items
	rep.WeightedPassScorePercent = totals.WeightedPassScorePercent
	rep.WeightedObjectiveScore = totals.WeightedObjectiveScore
	rep.ImplementationCoverage = ImplementationCoverage(sel.Result)
	rep.DataRequirements = DataRequirements(sel.Result)

	if r.deps.Attempts != nil {
		for _, it := range items {
			r.deps.Attempts.SetKPI(it.ID, it.MeasuredValue)
		}
	}
	r.deps.Logger.Info("attempt selected",
		"attempt", sel.Attempt, "run_id", sel.RunID, "gate_passed", sel.GatePassed,
		"stability_buffer_satisfied", sel.StabilityBufferSatisfied,
		"weighted_objective_score", sel.WeightedObjectiveScore,
		"implementation_coverage_satisfied", rep.ImplementationCoverage.AllSatisfied)
}

func (r *runner) recordAttempt(ctx context.Context, a AttemptSummary) error {
	r.deps.Logger.Info("attempt scored",
		"attempt", a.Attempt, "stage", a.Stage, "profile", a.Profile, "run_id", a.RunID,
		"seed", a.Seed, "data_scale", a.DataScale, "gate_passed", a.GatePassed,
		"stability_buffer_satisfied", a.StabilityBufferSatisfied,
		"weighted_pass_score_percent", a.WeightedPassScorePercent,
		"weighted_objective_score", a.WeightedObjectiveScore)
	if r.deps.Attempts != nil {
		r.deps.Attempts.RecordAttempt(a.Attempt, a.WeightedObjectiveScore, a.GatePassed)
	}
	if r.deps.Ledger == nil {
		return nil
	}
	payload, err := json.Marshal(a.KPI)
	if err != nil {
		return fmt.Errorf("orchestrator: encode kpi: %w", err)
	}
	rec := ledger.AttemptRecord{
		RunGroup:                 r.opts.RunGroup(),
		RunID:                    a.RunID,
		Attempt:                  a.Attempt,
		Stage:                    a.Stage,
		Profile:                  string(a.Profile),
		Seed:                     a.Seed,
		DataScale:                a.DataScale,
		GatePassed:               a.GatePassed,
		StabilityBufferSatisfied: a.StabilityBufferSatisfied,
		WeightedPassScorePercent: a.WeightedPassScorePercent,
		WeightedObjectiveScore:   a.WeightedObjectiveScore,
		KPI:                      payload,
	}
	if err := r.deps.Ledger.RecordAttempt(ctx, rec); err != nil {
		return fmt.Errorf("orchestrator: ledger: %w", err)
	}
	r.deps.Logger.Debug("ledger attempt written", "run_group", rec.RunGroup, "attempt", rec.Attempt)
	return nil
}

func (r *runner) recordSelection(ctx context.Context, rep Report) error {
	if r.deps.Ledger == nil {
		return nil
	}
	rec := ledger.SelectionRecord{
		RunGroup:                 r.opts.RunGroup(),
		RunID:                    rep.SelectedRunID,
		Attempt:                  rep.SelectedAttempt,
		GatePassed:               rep.GatePassed,
		StabilityBufferSatisfied: rep.StabilityBufferSatisfied,
		ObjectiveTargetSatisfied: rep.ObjectiveTargetSatisfied,
		WeightedObjectiveScore:   rep.Selected().WeightedObjectiveScore,
	}
	if err := r.deps.Ledger.RecordSelection(ctx, rec); err != nil {
		return fmt.Errorf("orchestrator: ledger: %w", err)
	}
	r.deps.Logger.Debug("ledger selection written", "run_group", rec.RunGroup, "attempt", rec.Attempt)
	return nil
}
