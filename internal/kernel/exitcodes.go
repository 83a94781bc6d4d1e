package kernel

import (
	"errors"

	"athyper/pkg/config"
	"athyper/pkg/tenantctx"
)

// Process exit codes. These are a contract with the process supervisor
// and must stay stable across releases. The 64+ range avoids shell and
// runtime codes.
const (
	ExitOK = 0

	ExitConfigFile   = 64
	ExitConfigSchema = 65
	ExitConfigSecret = 66
	ExitConfigRealm  = 67

	ExitUnknownRealm     = 68
	ExitUnknownTenant    = 69
	ExitUnknownOrg       = 70
	ExitOrgWithoutTenant = 71
	ExitContextRequired  = 72

	ExitBootstrap = 79
)

// Classify maps a boot failure to its exit code. Pure function: no
// global table, no side effects. Unclassified errors map to the
// generic bootstrap code.
func Classify(err error) int {
	if err == nil {
		return ExitOK
	}
	var cerr *config.Error
	if errors.As(err, &cerr) {
		switch cerr.Kind {
		case config.ErrFile:
			return ExitConfigFile
		case config.ErrSchema:
			return ExitConfigSchema
		case config.ErrSecret:
			return ExitConfigSecret
		case config.ErrRealm:
			return ExitConfigRealm
		}
	}
	var terr *tenantctx.Error
	if errors.As(err, &terr) {
		switch terr.Kind {
		case tenantctx.KindUnknownRealm:
			return ExitUnknownRealm
		case tenantctx.KindUnknownTenant:
			return ExitUnknownTenant
		case tenantctx.KindUnknownOrg:
			return ExitUnknownOrg
		case tenantctx.KindOrgWithoutTenant:
			return ExitOrgWithoutTenant
		case tenantctx.KindContextRequired:
			return ExitContextRequired
		}
	}
	return ExitBootstrap
}
