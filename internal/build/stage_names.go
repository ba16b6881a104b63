package build

// StageName is a strongly typed identifier for a build stage.
type StageName string

const (
	StagePrepareOutput   StageName = "prepare_output"
	StageDiscoverSources StageName = "discover_sources"
	StageRouteSources    StageName = "route_sources"
	StageBundleScripts   StageName = "bundle_scripts"
	StageBundleStyles    StageName = "bundle_styles"
	StageEmitFiles       StageName = "emit_files"
	StageRunPlugins      StageName = "run_plugins"
	StageEmitOutput      StageName = "emit_output"
)

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}

// pipeline is the fixed stage order of a build pass.
func pipeline() []StageDef {
	return []StageDef{
		{StagePrepareOutput, stagePrepareOutput},
		{StageDiscoverSources, stageDiscoverSources},
		{StageRouteSources, stageRouteSources},
		{StageBundleScripts, stageBundleScripts},
		{StageBundleStyles, stageBundleStyles},
		{StageEmitFiles, stageEmitFiles},
		{StageRunPlugins, stageRunPlugins},
		{StageEmitOutput, stageEmitOutput},
	}
}
