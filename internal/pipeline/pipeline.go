// Package pipeline runs one deterministic training attempt: it builds the
// synthetic world, trains every model in dependency order, runs the
// optimizer for each test user and scores the outcome against the KPI
// evaluators. A run never writes anything; the Result carries the models and
// datasets for whoever persists them.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rndharness/internal/features"
	"rndharness/internal/kpi"
	"rndharness/internal/model"
	"rndharness/internal/numeric"
	"rndharness/internal/observability"
	"rndharness/internal/optimizer"
	"rndharness/internal/prng"
	"rndharness/internal/scenario"
	"rndharness/internal/world"
)

// ErrInvariant marks a structural violation that aborts a run: an empty
// sample set, a dimension mismatch, a duplicate sample id, an unregistered
// class key or missing source coverage.
var ErrInvariant = errors.New("pipeline: invariant violated")

// DefaultSeed is the base seed used when none is given.
const DefaultSeed = 20260227

// Options select what one attempt generates.
type Options struct {
	Profile     world.Profile
	Seed        int64
	DataScale   float64
	GeneratedAt time.Time
}

// Deps are the observability hooks a run reports through. Nil members are
// replaced with no-ops.
type Deps struct {
	Logger  observability.Logger
	Metrics observability.MetricsRecorder
	Tracer  observability.Tracer
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
	return d
}

// FormatTimestamp renders t the way every report timestamp is written.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(kpi.TimestampLayout)
}

// RunID derives the run identifier from the generation time, profile and
// data scale. A unit scale adds no suffix.
func RunID(generatedAt string, profile world.Profile, dataScale float64) string {
	id := "rnd-ai-" + strings.NewReplacer(":", "-", ".", "-").Replace(generatedAt) + "-" + string(profile)
	if dataScale != 1 {
		id += "-scale-" + strings.Replace(strconv.FormatFloat(dataScale, 'f', -1, 64), ".", "_", 1)
	}
	return id
}

// Training hyperparameters that do not vary with the profile.
var (
	recommenderTrain = model.TrainConfig{LearningRate: 0.008, L2: 0.00015}
	safetyTrain      = model.TrainConfig{LearningRate: 0.006, L2: 0.0002}
	dataLakeTrain    = model.TrainConfig{LearningRate: 0.0055, L2: 0.00025}
	iteTrain         = model.TrainConfig{LearningRate: 0.007, L2: 0.00012}
	iteFineTune      = model.TrainConfig{LearningRate: 0.0035, L2: 0.00008}
	actionTrain      = model.TrainConfig{LearningRate: 0.01, L2: 0.0002}
	actionFineTune   = model.TrainConfig{LearningRate: 0.004, L2: 0.00018}
	llmTrain         = model.TrainConfig{LearningRate: 0.01, L2: 0.00015}
	integrationTrain = model.TrainConfig{LearningRate: 0.008, L2: 0.00015}
)

const (
	embeddingDim        = 16
	rerankerLearnRate   = 0.21
	safetySplit         = 0.85
	rerankerSplit       = 0.86
	regressionSplit     = 0.86
	feedbackSplit       = 0.85
	minITEFeedback      = 2400
	minActionFeedback   = 2200
	minReferenceSamples = 420
	minIntegrationEval  = 450
	minGeneticSamples   = 1400
	minActionEval       = 1100
	minLLMEval          = 1300
	minWorkflowSamples  = 1400
	minScenarioSamples  = 1500
)

func epochs(cfg model.TrainConfig, n int) model.TrainConfig {
	cfg.Epochs = n
	return cfg
}

// run carries the state shared between stages of one attempt.
type run struct {
	seed    int64
	cfg     world.ProfileConfig
	catalog world.Catalog
	train   []world.User
	test    []world.User
	res     Result

	twoTower    model.TwoTower
	safety      model.Softmax
	reranker    model.StumpEnsemble
	dataLake    model.Softmax
	registry    *model.ClassRegistry
	ite         model.Linear
	action      model.Softmax
	llm         model.Softmax
	integration model.Softmax
}

func (r *run) rng(offset uint32) *prng.Rand { return prng.Derive(r.seed, offset) }

func (r *run) models() optimizer.Models {
	return optimizer.Models{Recommender: r.twoTower, Safety: r.safety, Reranker: r.reranker}
}

func (r *run) pick(u world.User) []string {
	return optimizer.PickTop(u, r.catalog, r.models()).IDs
}

type stage struct {
	name string
	fn   func() (int, error)
}

// TrainAll runs one attempt. The context is checked between stages; the
// numeric work inside a stage is not interruptible.
func TrainAll(ctx context.Context, opts Options, deps Deps) (Result, error) {
	deps = deps.withDefaults()
	if opts.GeneratedAt.IsZero() {
		return Result{}, fmt.Errorf("pipeline: generated_at: %w: zero time", ErrInvariant)
	}
	dataScale := numeric.Clamp(opts.DataScale, 1, 10)
	cfg, err := world.ResolveProfile(opts.Profile, dataScale)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: %w", err)
	}
	generatedAt := FormatTimestamp(opts.GeneratedAt)
	r := &run{seed: opts.Seed, cfg: cfg}
	r.res = Result{
		RunID:       RunID(generatedAt, opts.Profile, dataScale),
		GeneratedAt: generatedAt,
		Profile:     opts.Profile,
		Seed:        opts.Seed,
	}

	stages := []stage{
		{"world", r.buildWorld},
		{"recommender", r.trainRecommender},
		{"safety", r.trainSafety},
		{"reranker", r.trainReranker},
		{"data_lake", r.trainDataLake},
		{"ite", r.trainITE},
		{"action", r.trainAction},
		{"llm", r.trainLLM},
		{"integration", r.trainIntegration},
		{"evaluate", r.evaluate},
		{"scenarios", r.simulateScenarios},
		{"kpi", func() (int, error) { return r.scoreKPIs(generatedAt, opts.GeneratedAt) }},
	}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		deps.Logger.Debug("pipeline stage started", "run_id", r.res.RunID, "stage", st.name)
		var n int
		err := observability.Instrument(ctx, deps.Tracer, deps.Metrics, "pipeline."+st.name, func(context.Context) error {
			var err error
			n, err = st.fn()
			return err
		})
		if err != nil {
			deps.Logger.Error("pipeline stage failed", "run_id", r.res.RunID, "stage", st.name, "error", err)
			return Result{}, err
		}
		deps.Logger.Info("pipeline stage finished", "run_id", r.res.RunID, "stage", st.name, "samples", n)
	}

	r.res.DatasetConfig = DatasetConfig{
		Profile:       opts.Profile,
		DataScale:     dataScale,
		ProfileConfig: cfg,
		Seed:          opts.Seed,
		CatalogSize:   len(r.catalog),
	}
	r.res.Models = Models{
		TwoTower:       r.twoTower,
		Reranker:       r.reranker,
		Safety:         r.safety,
		DataLake:       DataLakeModel{Softmax: r.dataLake, ClassIndexToKey: r.registry},
		ITE:            r.ite,
		ITEFineTune:    r.res.Models.ITEFineTune,
		Action:         r.action,
		ActionFineTune: r.res.Models.ActionFineTune,
		LLM:            LLMModel{Softmax: r.llm, AnswerKeys: append([]string(nil), scenario.LLMKeys...)},
		Integration:    r.integration,
	}
	return r.res, nil
}

func invariant(what string, err error) error {
	return fmt.Errorf("pipeline: %s: %w: %w", what, ErrInvariant, err)
}

func requireRows(what string, n int) error {
	if n == 0 {
		return fmt.Errorf("pipeline: %s: %w: no samples", what, ErrInvariant)
	}
	return nil
}

func (r *run) buildWorld() (int, error) {
	r.catalog = world.BuildCatalog(r.seed)
	r.train, r.test = world.Populations(r.seed, r.cfg)
	if err := firstErr(requireRows("train users", len(r.train)), requireRows("test users", len(r.test))); err != nil {
		return 0, err
	}
	d := &r.res.Datasets
	d.Catalog, d.TrainUsers, d.TestUsers = r.catalog, r.train, r.test
	r.res.DatasetSummary.TrainUsers = len(r.train)
	r.res.DatasetSummary.TestUsers = len(r.test)
	return len(r.train) + len(r.test), nil
}

func (r *run) trainRecommender() (int, error) {
	pairs := buildRecommenderPairs(r.train, r.catalog, r.rng(0x201))
	if err := requireRows("recommender pairs", len(pairs)); err != nil {
		return 0, err
	}
	base := model.NewTwoTower(features.UserDim, features.IngredientDim, embeddingDim, r.rng(0x202))
	m, err := base.Fit(pairs, epochs(recommenderTrain, r.cfg.RecommenderEpochs), r.rng(0x203))
	if err != nil {
		return 0, invariant("recommender", err)
	}
	r.twoTower = m
	r.res.Datasets.RecommenderPairs = pairs
	r.res.DatasetSummary.RecommenderPairs = len(pairs)
	return len(pairs), nil
}

func (r *run) trainSafety() (int, error) {
	rows := buildSafetyRows(r.train, r.catalog)
	samples := classSamples(rows)
	train, val := model.Split(samples, safetySplit)
	m, err := model.NewSoftmax(len(world.Decisions), features.SafetyDim, r.rng(0x301)).
		Fit(train, epochs(safetyTrain, r.cfg.SafetyEpochs), r.rng(0x302))
	if err != nil {
		return 0, invariant("safety classifier", err)
	}
	r.safety = m
	r.res.ModelMetrics.SafetyAccuracyPercent = numeric.RoundTo(m.Accuracy(val), 2)
	r.res.Datasets.SafetyRows = rows
	r.res.DatasetSummary.SafetySamples = len(rows)
	return len(rows), nil
}

func (r *run) trainReranker() (int, error) {
	rows, samples := buildRerankerRows(r.train, r.catalog, r.twoTower, r.safety,
		rerankerSampleCount(r.cfg.TrainUsers), r.rng(0x251))
	train, val := model.Split(samples, rerankerSplit)
	m, err := model.FitStumps(train, model.StumpConfig{
		InputDim:     features.RerankerDim,
		Rounds:       r.cfg.RerankerRounds,
		LearningRate: rerankerLearnRate,
		MaxSamples:   rerankerMaxSamples(len(train)),
	}, r.rng(0x252))
	if err != nil {
		return 0, invariant("reranker", err)
	}
	r.reranker = m
	r.res.ModelMetrics.RerankerRMSE = numeric.RoundTo(m.RMSE(val), 4)
	r.res.Datasets.RerankerRows = rows
	r.res.DatasetSummary.RerankerSamples = len(rows)
	return len(rows), nil
}

func (r *run) trainDataLake() (int, error) {
	r.registry = model.NewClassRegistry()
	rows := buildDataLakeRows(r.train, r.catalog, r.registry)
	samples, err := relabel(rows, r.registry)
	if err != nil {
		return 0, err
	}
	train, val := model.Split(samples, safetySplit)
	m, err := model.NewSoftmax(r.registry.Len(), features.SafetyDim, r.rng(0x401)).
		Fit(train, epochs(dataLakeTrain, r.cfg.DataLakeEpochs), r.rng(0x402))
	if err != nil {
		return 0, invariant("data-lake classifier", err)
	}
	r.dataLake = m
	r.res.ModelMetrics.DataLakeAccuracyPercent = numeric.RoundTo(m.Accuracy(val), 2)
	r.res.Datasets.DataLakeRows = rows
	r.res.DatasetSummary.DataLakeSamples = len(rows)
	return len(rows), nil
}

func (r *run) trainITE() (int, error) {
	rows := buildITERows(r.train, r.catalog, r.cfg.TrainUsers*8, r.rng(0x501))
	if err := requireRows("ite samples", len(rows)); err != nil {
		return 0, err
	}
	train, val := model.Split(regSamples(rows), regressionSplit)
	base, err := model.NewLinear(features.ComboDim, r.rng(0x502)).
		Fit(train, epochs(iteTrain, r.cfg.ITEEpochs), r.rng(0x503))
	if err != nil {
		return 0, invariant("ite regressor", err)
	}

	models := r.models()
	pick := func(u world.User) []string { return optimizer.PickTop(u, r.catalog, models).IDs }
	feedback, fbSamples := scenario.BuildITEFeedback(r.train, r.catalog, pick, base,
		max(r.cfg.TrainUsers*2, minITEFeedback), r.rng(0x504))
	if err := requireRows("ite feedback", len(fbSamples)); err != nil {
		return 0, err
	}
	fbTrain, fbVal := model.Split(fbSamples, feedbackSplit)
	var candidate model.Linear
	ft, err := model.FineTune(base,
		func(m model.Linear) (model.Linear, error) {
			var err error
			candidate, err = m.Fit(fbTrain, epochs(iteFineTune, r.cfg.ActionFineTuneEpochs), r.rng(0x505))
			return candidate, err
		},
		func(m model.Linear) float64 { return m.RMSE(val) },
		model.LowerIsBetter)
	if err != nil {
		return 0, invariant("ite fine-tune", err)
	}
	r.ite = ft.Model
	gain := ft.Before - ft.After
	r.res.Models.ITEFineTune = ITEFineTuneSummary{
		BeforeRMSE:            numeric.RoundTo(ft.Before, 6),
		FeedbackRMSECandidate: numeric.RoundTo(candidate.RMSE(fbVal), 6),
		FeedbackRMSE:          numeric.RoundTo(ft.Model.RMSE(fbVal), 6),
		AfterRMSECandidate:    numeric.RoundTo(ft.Candidate, 6),
		AfterRMSE:             numeric.RoundTo(ft.After, 6),
		Gain:                  numeric.RoundTo(gain, 6),
		RollbackApplied:       ft.RollbackApplied,
		FeedbackSampleCount:   len(feedback),
	}
	mm := &r.res.ModelMetrics
	mm.ITERMSEBeforeFineTune = numeric.RoundTo(ft.Before, 4)
	mm.ITEFeedbackRMSE = numeric.RoundTo(ft.Model.RMSE(fbVal), 4)
	mm.ITEFineTuneGain = numeric.RoundTo(gain, 4)
	mm.ITEFineTuneRollbackApplied = ft.RollbackApplied
	mm.ITERMSE = numeric.RoundTo(ft.After, 4)
	r.res.Datasets.ITERows = rows
	r.res.Datasets.ITEFeedback = feedback
	r.res.DatasetSummary.ITESamples = len(rows)
	r.res.DatasetSummary.ITEFeedbackSamples = len(feedback)
	return len(rows) + len(feedback), nil
}

func (r *run) trainAction() (int, error) {
	records := scenario.BuildClosedLoopRecords(r.train, r.catalog, r.ite, r.cfg.TrainUsers*2, r.rng(0x601))
	if err := requireRows("closed-loop records", len(records)); err != nil {
		return 0, err
	}
	train, val := model.Split(scenario.ActionSamples(records), regressionSplit)
	base, err := model.NewSoftmax(len(scenario.Actions), scenario.ActionDim, r.rng(0x602)).
		Fit(train, epochs(actionTrain, r.cfg.ActionEpochs), r.rng(0x603))
	if err != nil {
		return 0, invariant("action classifier", err)
	}

	feedback, fbSamples := scenario.BuildActionFeedback(records, base,
		max(r.cfg.TrainUsers*2, minActionFeedback), r.rng(0x604))
	if err := requireRows("action feedback", len(fbSamples)); err != nil {
		return 0, err
	}
	fbTrain, fbVal := model.Split(fbSamples, feedbackSplit)
	ft, err := model.FineTune(base,
		func(m model.Softmax) (model.Softmax, error) {
			return m.Fit(fbTrain, epochs(actionFineTune, r.cfg.ActionFineTuneEpochs), r.rng(0x605))
		},
		func(m model.Softmax) float64 { return m.Accuracy(val) },
		model.HigherIsBetter)
	if err != nil {
		return 0, invariant("action fine-tune", err)
	}
	r.action = ft.Model
	gain := ft.After - ft.Before
	fbAccuracy := ft.Model.Accuracy(fbVal)
	r.res.Models.ActionFineTune = ActionFineTuneSummary{
		BeforeAccuracyPercent:   numeric.RoundTo(ft.Before, 2),
		FeedbackAccuracyPercent: numeric.RoundTo(fbAccuracy, 2),
		AfterAccuracyCandidate:  numeric.RoundTo(ft.Candidate, 2),
		AfterAccuracyPercent:    numeric.RoundTo(ft.After, 2),
		GainPercentPoint:        numeric.RoundTo(gain, 4),
		RollbackApplied:         ft.RollbackApplied,
		FeedbackSampleCount:     len(feedback),
	}
	mm := &r.res.ModelMetrics
	mm.ActionAccuracyBeforeFineTunePercent = numeric.RoundTo(ft.Before, 2)
	mm.ActionFineTuneGainPercent = numeric.RoundTo(gain, 4)
	mm.ActionFineTuneRollbackApplied = ft.RollbackApplied
	mm.ActionFeedbackAccuracyPercent = numeric.RoundTo(fbAccuracy, 2)
	mm.ActionAccuracyPercent = numeric.RoundTo(ft.After, 2)
	r.res.Datasets.ClosedLoop = records
	r.res.Datasets.ClosedLoopFeedback = feedback
	r.res.DatasetSummary.ActionSamples = len(records)
	r.res.DatasetSummary.ActionFeedbackSamples = len(feedback)
	return len(records) + len(feedback), nil
}

func (r *run) trainLLM() (int, error) {
	records := scenario.BuildLLMRecords(r.cfg.TrainUsers*2, r.rng(0x701))
	if err := requireRows("llm records", len(records)); err != nil {
		return 0, err
	}
	train, val := model.Split(scenario.LLMSamples(records), regressionSplit)
	m, err := model.NewSoftmax(len(scenario.LLMKeys), scenario.LLMDim, r.rng(0x702)).
		Fit(train, epochs(llmTrain, r.cfg.LLMEpochs), r.rng(0x703))
	if err != nil {
		return 0, invariant("llm classifier", err)
	}
	r.llm = m
	r.res.ModelMetrics.LLMAccuracyPercent = numeric.RoundTo(m.Accuracy(val), 2)
	r.res.Datasets.LLM = records
	r.res.DatasetSummary.LLMSamples = len(records)
	return len(records), nil
}

func (r *run) trainIntegration() (int, error) {
	records := scenario.BuildIntegrationRecords(r.cfg.TrainUsers*2, r.rng(0x801))
	if err := requireSourceCoverage(records); err != nil {
		return 0, err
	}
	train, val := model.Split(scenario.IntegrationSamples(records), regressionSplit)
	m, err := model.NewSoftmax(2, scenario.IntegrationDim, r.rng(0x802)).
		Fit(train, epochs(integrationTrain, r.cfg.IntegrationEpochs), r.rng(0x803))
	if err != nil {
		return 0, invariant("integration classifier", err)
	}
	r.integration = m
	r.res.ModelMetrics.IntegrationAccuracyPercent = numeric.RoundTo(binaryAccuracy(m, val), 2)
	r.res.Datasets.Integration = records
	r.res.DatasetSummary.IntegrationSamples = len(records)
	return len(records), nil
}

// requireSourceCoverage rejects an integration set missing any data source.
func requireSourceCoverage(records []scenario.IntegrationRecord) error {
	seen := make(map[world.DataSource]bool, len(world.DataSources))
	for _, rec := range records {
		seen[rec.Source] = true
	}
	for _, src := range world.DataSources {
		if !seen[src] {
			return fmt.Errorf("pipeline: integration records: %w: no %s sessions", ErrInvariant, src)
		}
	}
	return nil
}

func (r *run) evaluate() (int, error) {
	ev := evaluateTestUsers(r.test, r.catalog, r.models(), r.rng(0x901))
	if err := requireRows("evaluation", len(ev.recommendation)); err != nil {
		return 0, err
	}
	d := &r.res.Datasets
	d.OptimizationConstraints = ev.constraints
	d.ProAssessments = ev.pro
	d.KPI01 = ev.recommendation
	d.KPI02 = ev.improvement

	nTest := len(r.test)
	d.KPI05Module03 = buildSafetyReferenceSamples(r.test, r.catalog, r.safety,
		max(minReferenceSamples, nTest), r.rng(0xa01))
	d.KPI05Module02 = buildDataLakeReferenceSamples(r.test, r.catalog, r.registry, r.dataLake,
		max(minReferenceSamples, nTest), r.rng(0xa02))
	d.KPI07, d.KPI05Module07 = buildIntegrationEvaluation(
		scenario.BuildIntegrationRecords(max(minIntegrationEval, nTest), r.rng(0xa03)), r.integration)
	d.GeneticAdjustments = scenario.BuildGeneticRecords(r.test, max(minGeneticSamples, nTest), r.rng(0xa0b))
	d.KPI03 = buildActionEvaluation(
		scenario.BuildClosedLoopRecords(r.test, r.catalog, r.ite, max(minActionEval, nTest), r.rng(0xa04)), r.action)
	d.KPI04 = buildLLMEvaluation(scenario.BuildLLMRecords(max(minLLMEval, nTest), r.rng(0xa05)), r.llm)

	mm := &r.res.ModelMetrics
	mm.OptimizationConstraintSatisfactionPercent = constraintSatisfactionPercent(ev.constraints)
	mm.GeneticTraceCoveragePercent, mm.GeneticRuleCatalogCoveragePercent = scenario.GeneticCoverage(d.GeneticAdjustments)

	s := &r.res.DatasetSummary
	s.OptimizationConstraints = len(ev.constraints)
	s.ProAssessments = len(ev.pro)
	s.GeneticAdjustmentSamples = len(d.GeneticAdjustments)
	return len(ev.recommendation), nil
}

func (r *run) simulateScenarios() (int, error) {
	d := &r.res.Datasets
	nTest := len(r.test)
	d.Workflows = scenario.BuildWorkflowRecords(r.test, r.pick, max(minWorkflowSamples, nTest), r.rng(0xa07))
	d.Schedules = scenario.BuildScheduleRecords(r.test, max(minScenarioSamples, nTest), r.rng(0xa0a))
	d.NodeTraces = scenario.BuildNodeTraceRecords(r.test, max(minScenarioSamples, nTest), r.rng(0xa08))
	d.CragGroundings = scenario.BuildCragRecords(max(minScenarioSamples, nTest), r.rng(0xa09))

	mm := &r.res.ModelMetrics
	mm.WorkflowCompletionRatePercent = scenario.CompletedPercent(d.Workflows,
		func(w scenario.WorkflowRecord) bool { return w.Completed })
	mm.ClosedLoopScheduleExecutionPercent = scenario.CompletedPercent(d.Schedules,
		func(s scenario.ScheduleRecord) bool { return s.Completed })
	mm.ClosedLoopNodeFlowSuccessPercent = scenario.CompletedPercent(d.NodeTraces,
		func(n scenario.NodeTraceRecord) bool { return n.Completed })
	mm.CragGroundingAccuracyPercent = scenario.CompletedPercent(d.CragGroundings,
		func(c scenario.CragRecord) bool { return c.AnswerAccepted })

	s := &r.res.DatasetSummary
	s.Workflows = len(d.Workflows)
	s.ClosedLoopSchedules = len(d.Schedules)
	s.ClosedLoopNodeTraces = len(d.NodeTraces)
	s.CragGroundings = len(d.CragGroundings)
	return s.Workflows + s.ClosedLoopSchedules + s.ClosedLoopNodeTraces + s.CragGroundings, nil
}

func (r *run) scoreKPIs(evaluatedAt string, generatedAt time.Time) (int, error) {
	d := &r.res.Datasets
	d.KPI06 = scenario.BuildAdverseEvents(generatedAt, r.rng(0xa06))
	if err := checkUniqueIDs(d); err != nil {
		return 0, err
	}

	var (
		rep KPIReports
		err error
	)
	if rep.KPI01, err = kpi.EvaluateRecommendation(d.KPI01, evaluatedAt); err != nil {
		return 0, fmt.Errorf("pipeline: kpi01: %w", err)
	}
	if rep.KPI02, err = kpi.EvaluateImprovement(d.KPI02, evaluatedAt); err != nil {
		return 0, fmt.Errorf("pipeline: kpi02: %w", err)
	}
	if rep.KPI03, err = kpi.EvaluateAction(d.KPI03, evaluatedAt); err != nil {
		return 0, fmt.Errorf("pipeline: kpi03: %w", err)
	}
	if rep.KPI04, err = kpi.EvaluateLLM(d.KPI04, evaluatedAt); err != nil {
		return 0, fmt.Errorf("pipeline: kpi04: %w", err)
	}
	if rep.KPI05.Module02, err = kpi.EvaluateDataLakeReference(d.KPI05Module02, evaluatedAt); err != nil {
		return 0, fmt.Errorf("pipeline: kpi05 module02: %w", err)
	}
	if rep.KPI05.Module03, err = kpi.EvaluateSafetyReference(d.KPI05Module03, evaluatedAt); err != nil {
		return 0, fmt.Errorf("pipeline: kpi05 module03: %w", err)
	}
	if rep.KPI05.Module07, err = kpi.EvaluateInterfaceWiring(d.KPI05Module07, evaluatedAt); err != nil {
		return 0, fmt.Errorf("pipeline: kpi05 module07: %w", err)
	}
	if rep.KPI06, err = kpi.EvaluateAdverseEvents(d.KPI06, evaluatedAt); err != nil {
		return 0, fmt.Errorf("pipeline: kpi06: %w", err)
	}
	if rep.KPI07, err = kpi.EvaluateIntegration(d.KPI07, evaluatedAt); err != nil {
		return 0, fmt.Errorf("pipeline: kpi07: %w", err)
	}
	rep.KPI05.AveragedAccuracyPercent = kpi.ReferenceAverage(rep.KPI05.Module02, rep.KPI05.Module03, rep.KPI05.Module07)
	r.res.KPIReports = rep
	r.res.KPI = summarize(rep)

	s := &r.res.DatasetSummary
	s.KPI01Samples, s.KPI02Samples = len(d.KPI01), len(d.KPI02)
	s.KPI03Samples, s.KPI04Samples = len(d.KPI03), len(d.KPI04)
	s.KPI05Module02Samples, s.KPI05Module03Samples = len(d.KPI05Module02), len(d.KPI05Module03)
	s.KPI05Module07Samples = len(d.KPI05Module07)
	s.KPI06Samples, s.KPI07Samples = len(d.KPI06), len(d.KPI07)
	return s.KPI01Samples + s.KPI02Samples + s.KPI03Samples + s.KPI04Samples +
		s.KPI05Module02Samples + s.KPI05Module03Samples + s.KPI05Module07Samples +
		s.KPI06Samples + s.KPI07Samples, nil
}

func summarize(rep KPIReports) KPISummary {
	return KPISummary{
		RecommendationAccuracyPercent:       rep.KPI01.Value,
		EfficacySCGIPp:                      rep.KPI02.Value,
		ActionAccuracyPercent:               rep.KPI03.Value,
		LLMAccuracyPercent:                  rep.KPI04.Value,
		ReferenceAccuracyPercent:            rep.KPI05.AveragedAccuracyPercent,
		AdverseEventCountPerYear:            rep.KPI06.CountedEventCount,
		AdverseEventWindowCoverageDays:      rep.KPI06.CoverageDays,
		AdverseEventWindowCoverageSatisfied: rep.KPI06.CoverageSatisfied,
		IntegrationRatePercent:              rep.KPI07.Value,
		IntegrationSampleCountSatisfied:     rep.KPI07.MinSampleCountSatisfied,
		IntegrationSourceCoverageSatisfied:  rep.KPI07.SourceCoverageSatisfied,
		IntegrationPerSourceMinSatisfied:    rep.KPI07.PerSourceMinSatisfied,
		AllTargetsSatisfied: rep.KPI01.TargetSatisfied &&
			rep.KPI02.TargetSatisfied &&
			rep.KPI03.TargetSatisfied &&
			rep.KPI04.TargetSatisfied &&
			rep.KPI05.Module02.TargetSatisfied &&
			rep.KPI05.Module03.TargetSatisfied &&
			rep.KPI05.Module07.TargetSatisfied &&
			rep.KPI06.TargetSatisfied &&
			rep.KPI07.TargetSatisfied,
		AllDataRequirementsSatisfied: rep.KPI01.MinSampleCountSatisfied &&
			rep.KPI02.MinSampleCountSatisfied &&
			rep.KPI03.MinSampleCountSatisfied &&
			rep.KPI04.MinSampleCountSatisfied &&
			rep.KPI05.Module02.MinSampleCountSatisfied &&
			rep.KPI05.Module03.MinSampleCountSatisfied &&
			rep.KPI05.Module07.MinSampleCountSatisfied &&
			rep.KPI06.CoverageSatisfied &&
			rep.KPI07.MinSampleCountSatisfied &&
			rep.KPI07.SourceCoverageSatisfied &&
			rep.KPI07.PerSourceMinSatisfied,
	}
}

// checkUniqueIDs rejects a KPI sample set that reuses a sample id.
func checkUniqueIDs(d *Datasets) error {
	sets := []struct {
		name string
		ids  []string
	}{
		{"kpi01", ids(d.KPI01, func(s kpi.RecommendationSample) string { return s.SampleID })},
		{"kpi02", ids(d.KPI02, func(s kpi.ImprovementSample) string { return s.SampleID })},
		{"kpi03", ids(d.KPI03, func(s kpi.ActionSample) string { return s.SampleID })},
		{"kpi04", ids(d.KPI04, func(s kpi.LLMSample) string { return s.SampleID })},
		{"kpi05 module02", ids(d.KPI05Module02, func(s kpi.DataLakeReferenceSample) string { return s.SampleID })},
		{"kpi05 module03", ids(d.KPI05Module03, func(s kpi.SafetyReferenceSample) string { return s.SampleID })},
		{"kpi05 module07", ids(d.KPI05Module07, func(s kpi.InterfaceSample) string { return s.SampleID })},
		{"kpi06", ids(d.KPI06, func(s kpi.AdverseEventSample) string { return s.SampleID })},
		{"kpi07", ids(d.KPI07, func(s kpi.IntegrationSample) string { return s.SampleID })},
	}
	for _, set := range sets {
		seen := make(map[string]bool, len(set.ids))
		for _, id := range set.ids {
			if seen[id] {
				return fmt.Errorf("pipeline: %s: %w: duplicate sample id %q", set.name, ErrInvariant, id)
			}
			seen[id] = true
		}
	}
	return nil
}

func ids[T any](rows []T, id func(T) string) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = id(r)
	}
	return out
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
