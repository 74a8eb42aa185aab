// Package log defines standard attribute keys.
//
// Keys follow the hierarchical "group.name" convention so that JSON logs can
// be filtered per concern (model, data, metrics, cv, ...).

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the estimator type, e.g. "RandomForestClassifier".
	ModelNameKey = "model.name"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "score", "prepare", "cross_validate".
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is logging, e.g. "model_selection".
	ComponentKey = "ml.component"

	// PhaseKey indicates the pipeline stage, e.g. "preprocessing", "validation".
	PhaseKey = "ml.phase"

	// RunIDKey carries the unique id of one experiment run.
	RunIDKey = "run.id"
)

// Data Shape and Characteristics
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	SourceKey   = "data.source"
	ColumnKey   = "data.column"
	MissingKey  = "data.missing"
)

// Performance and quality metrics
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	OOBScoreKey   = "metrics.oob_score"
	MeanScoreKey  = "metrics.mean"
	StdScoreKey   = "metrics.std"
	AUCKey        = "metrics.roc_auc"
	IterationKey  = "training.iteration"
)

// Cross validation and search
const (
	FoldKey       = "cv.fold"
	NSplitsKey    = "cv.n_splits"
	CandidateKey  = "search.candidate"
	CandidatesKey = "search.candidates"
)

// Error Context
const (
	ErrorTypeKey  = "error.type"
	StacktraceKey = "error.stacktrace"
)

// Hyperparameters and configuration
const (
	HyperParamsKey = "model.hyperparams"
	RandomSeedKey  = "config.random_seed"
	NJobsKey       = "config.n_jobs"
)

// Standard attribute values.
const (
	OperationFit           = "fit"
	OperationPredict       = "predict"
	OperationScore         = "score"
	OperationPrepare       = "prepare"
	OperationCrossValidate = "cross_validate"
	OperationSearch        = "grid_search"

	PhaseLoading       = "loading"
	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseValidation    = "validation"
	PhaseInference     = "inference"
)
