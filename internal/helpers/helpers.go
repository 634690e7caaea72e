package helpers

import (
	"strings"

	"github.com/cyphera/cyphera-wallet/internal/constants"
)

// Stage constants define the possible deployment/runtime environments.
const (
	StageProd  = constants.ProdEnvironment
	StageDev   = constants.DevEnvironment
	StageLocal = constants.LocalEnvironment
)

// IsValidStage checks if the provided stage string is one of the defined valid stages.
func IsValidStage(stage string) bool {
	switch stage {
	case StageProd, StageDev, StageLocal:
		return true
	default:
		return false
	}
}

// IsDeployed reports whether secrets should come from AWS rather than the local env.
func IsDeployed(stage string) bool {
	return stage == StageProd || stage == StageDev
}

// ShortAddress formats 0x1234567890abcdef... as 0x1234...cdef.
func ShortAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// NormalizeQuery trims and lowercases a free-text search query.
func NormalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}
