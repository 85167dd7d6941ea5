// pkg/schema/events.go
package schema

type ProcessingStage string

const (
	StageIdle       ProcessingStage = "idle"
	StageValidation ProcessingStage = "validating"
	StageRasterize  ProcessingStage = "rasterizing"
	StageRecognize  ProcessingStage = "recognizing"
	StageAssemble   ProcessingStage = "assembling"
	StageCleanup    ProcessingStage = "cleaning_up"
	StageDone       ProcessingStage = "done"
)

type FailureType string

const (
	FailureTypePreflight     FailureType = "preflight"
	FailureTypeRasterization FailureType = "rasterization"
	FailureTypeRecognition   FailureType = "recognition"
	FailureTypeAssembly      FailureType = "assembly"
	FailureTypeArgument      FailureType = "argument"
)

type OutcomeKind string

const (
	OutcomeSuccess             OutcomeKind = "success"
	OutcomeSuccessWithWarnings OutcomeKind = "success_with_warnings"
	OutcomeFatal               OutcomeKind = "fatal"
)

type PageStatus string

const (
	PageRecognized PageStatus = "recognized"
	PageFailed     PageStatus = "failed"
)

type LifecycleEvent struct {
	RunID       string          `json:"run_id" yaml:"run_id"`
	Stage       ProcessingStage `json:"stage" yaml:"stage"`
	Page        int             `json:"page,omitempty" yaml:"page,omitempty"`
	TotalPages  int             `json:"total_pages,omitempty" yaml:"total_pages,omitempty"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
	FailureType FailureType     `json:"failure_type,omitempty" yaml:"failure_type,omitempty"`
	HappenedAt  int64           `json:"happened_at" yaml:"happened_at"`
}

type PageProgress struct {
	RunID      string `json:"run_id"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	Percent    int    `json:"percent"`
	HappenedAt int64  `json:"happened_at"`
}

type PageReport struct {
	Page             int        `json:"page" yaml:"page"`
	Status           PageStatus `json:"status" yaml:"status"`
	Characters       int        `json:"characters" yaml:"characters"`
	Reason           string     `json:"reason,omitempty" yaml:"reason,omitempty"`
	ProcessingTimeMs int64      `json:"processing_time_ms" yaml:"processing_time_ms"`
}

type RunDone struct {
	RunID            string           `json:"run_id" yaml:"run_id"`
	SourcePath       string           `json:"source_path" yaml:"source_path"`
	ImageDir         string           `json:"image_dir" yaml:"image_dir"`
	OutputPath       string           `json:"output_path" yaml:"output_path"`
	Language         string           `json:"language" yaml:"language"`
	Outcome          OutcomeKind      `json:"outcome" yaml:"outcome"`
	TotalPages       int              `json:"total_pages" yaml:"total_pages"`
	FailedPages      []int            `json:"failed_pages,omitempty" yaml:"failed_pages,omitempty"`
	Pages            []PageReport     `json:"pages,omitempty" yaml:"pages,omitempty"`
	ProcessingTimeMs int64            `json:"processing_time_ms" yaml:"processing_time_ms"`
	Lifecycle        []LifecycleEvent `json:"lifecycle,omitempty" yaml:"lifecycle,omitempty"`
	Stage            ProcessingStage  `json:"stage,omitempty" yaml:"stage,omitempty"`
	Error            string           `json:"error,omitempty" yaml:"error,omitempty"`
	FailureType      FailureType      `json:"failure_type,omitempty" yaml:"failure_type,omitempty"`
	HappenedAt       int64            `json:"happened_at" yaml:"happened_at"`
}
