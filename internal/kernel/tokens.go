package kernel

import "athyper/pkg/container"

// Kernel token constants. Process-wide registrations are installed by
// Bootstrap; the context.* tokens are registered per request/job scope
// by the runtime modes.
const (
	TokenConfig    container.Token = "kernel.config"
	TokenLogger    container.Token = "kernel.logger"
	TokenLifecycle container.Token = "kernel.lifecycle"
	TokenSecrets   container.Token = "kernel.secrets"

	TokenAudit     container.Token = "adapter.audit"
	TokenVerifiers container.Token = "adapter.authn"
	TokenPipeline  container.Token = "kernel.authn"
	TokenRedis     container.Token = "adapter.redis"
	TokenPostgres  container.Token = "adapter.postgres"

	TokenRequestContext container.Token = "context.request"
	TokenTenantContext  container.Token = "context.tenant"
	TokenAuthContext    container.Token = "context.auth"
)
