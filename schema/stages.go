package schema

// Stage is one discrete step of the remote build/deploy pipeline, tracked
// client-side.
type Stage string

const (
	// StagePending is the initial stage before any backend activity.
	StagePending Stage = "PENDING"
	// StageGeneratingBackend indicates backend code generation is running.
	StageGeneratingBackend Stage = "GENERATING_BACKEND"
	// StageBuildingImage indicates the container image build is running.
	StageBuildingImage Stage = "BUILDING_IMAGE"
	// StageDeployingContainer indicates the container is being deployed.
	StageDeployingContainer Stage = "DEPLOYING_CONTAINER"
	// StageWaitingForHealth indicates the deploy is waiting on health checks.
	StageWaitingForHealth Stage = "WAITING_FOR_HEALTH"
	// StageBackendReady indicates the generated backend answered healthy.
	StageBackendReady Stage = "BACKEND_READY"
	// StagePreparingFrontend indicates the frontend is being prepared.
	StagePreparingFrontend Stage = "PREPARING_FRONTEND"
	// StageReady is the terminal success stage.
	StageReady Stage = "READY"
	// StageFailed is the terminal failure stage, reachable from any
	// non-terminal stage.
	StageFailed Stage = "FAILED"
)

// stageOrder fixes the pipeline position of each non-failure stage.
var stageOrder = map[Stage]int{
	StagePending:            0,
	StageGeneratingBackend:  1,
	StageBuildingImage:      2,
	StageDeployingContainer: 3,
	StageWaitingForHealth:   4,
	StageBackendReady:       5,
	StagePreparingFrontend:  6,
	StageReady:              7,
}

// stageProgress maps each stage to its rendered progress percent.
var stageProgress = map[Stage]int{
	StagePending:            0,
	StageGeneratingBackend:  15,
	StageBuildingImage:      30,
	StageDeployingContainer: 45,
	StageWaitingForHealth:   60,
	StageBackendReady:       75,
	StagePreparingFrontend:  90,
	StageReady:              100,
}

// phaseStages maps backend phase strings to pipeline stages. Unknown phases
// have no mapping and cause no transition.
var phaseStages = map[Phase]Stage{
	"pending":             StagePending,
	"generate":            StageGeneratingBackend,
	"generating":          StageGeneratingBackend,
	"generating_backend":  StageGeneratingBackend,
	"build":               StageBuildingImage,
	"building":            StageBuildingImage,
	"building_image":      StageBuildingImage,
	"deploy":              StageDeployingContainer,
	"deploying":           StageDeployingContainer,
	"deploying_container": StageDeployingContainer,
	"health":              StageWaitingForHealth,
	"waiting_for_health":  StageWaitingForHealth,
	"backend_ready":       StageBackendReady,
	"frontend":            StagePreparingFrontend,
	"preparing_frontend":  StagePreparingFrontend,
	"ready":               StageReady,
}

// StageForPhase resolves a backend phase string to a stage. The second
// return is false for unrecognized phases.
func StageForPhase(phase Phase) (Stage, bool) {
	stage, ok := phaseStages[phase]
	return stage, ok
}

// StageOrder returns the pipeline position of a stage. FAILED and unknown
// stages return -1.
func StageOrder(stage Stage) int {
	order, ok := stageOrder[stage]
	if !ok {
		return -1
	}
	return order
}

// StagePercent returns the progress percent rendered for a stage. FAILED
// keeps whatever percent the session had reached, so it returns -1 here.
func StagePercent(stage Stage) int {
	percent, ok := stageProgress[stage]
	if !ok {
		return -1
	}
	return percent
}

// Terminal reports whether the stage ends the pipeline.
func (s Stage) Terminal() bool {
	return s == StageReady || s == StageFailed
}

// ProgressSnapshot is the render-friendly view of orchestration state. It is
// recomputed on every accepted BuildEvent and never mutated in place.
type ProgressSnapshot struct {
	Stage           Stage
	ProgressPercent int
	Message         string
	Error           string
	MockMode        bool
	PreviewURL      string
}
