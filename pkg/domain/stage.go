package domain

// Stage identifies a dispatch point within one Stage Registry.
// Stage names are scoped to the registry that declares them.
type Stage string

func (s Stage) String() string {
	return string(s)
}

// Global stages fired by the application root.
const (
	StageSetup         Stage = "setup"
	StagePlatformClaim Stage = "platform.claim"
	StagePlatformInit  Stage = "platform.init"
	StageRequest       Stage = "request"
	StageSession       Stage = "session"
	StageUser          Stage = "user"
	StageType          Stage = "type"
	StageASR           Stage = "interpretation.asr"
	StageNLU           Stage = "interpretation.nlu"
	StageInputs        Stage = "interpretation.inputs"
	StageRouter        Stage = "dialogue.router"
	StageLogic         Stage = "dialogue.logic"
	StageOutput        Stage = "response.output"
	StageResponse      Stage = "response"
	StageFlush         Stage = "response.flush"
	StageFail          Stage = "fail"
)

// Pipeline is the per-turn order of global stages, after the claim stage.
var Pipeline = []Stage{
	StagePlatformInit,
	StageRequest,
	StageSession,
	StageUser,
	StageType,
	StageASR,
	StageNLU,
	StageInputs,
	StageRouter,
	StageLogic,
	StageOutput,
	StageResponse,
	StageFlush,
}

// GlobalStages returns the full stage set of the application root.
func GlobalStages() []Stage {
	stages := make([]Stage, 0, len(Pipeline)+3)
	stages = append(stages, StageSetup, StagePlatformClaim)
	stages = append(stages, Pipeline...)
	return append(stages, StageFail)
}
