package constants

// Stages
const (
	StageLocal = "local"
	StageDev   = "dev"
	StageProd  = "prod"
	StageTest  = "test"
)

// Log levels
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Chain ids as short strings
const (
	ChainMainnet = "SN_MAIN"
	ChainSepolia = "SN_SEPOLIA"
)

// IsValidStage checks if the given stage is valid
func IsValidStage(stage string) bool {
	switch stage {
	case StageLocal, StageDev, StageProd, StageTest:
		return true
	}
	return false
}
