// Best-effort execution policy for cache and counter operations.
//
// The cache store is an accelerator, never a source of truth: a failed
// lookup falls through to the record store, a failed write only shortens
// the cache's usefulness, and a failed invalidation sweep is healed by TTL
// expiry. Rate limiting is likewise a soft control — when the counter
// store is unreachable the request is admitted (fail-open) rather than
// rejected. This file makes that swallow decision explicit and observable
// instead of scattering silent error drops through the call sites.
package services

import (
	"github.com/rs/zerolog/log"
)

// bestEffort runs fn and, on error, logs it at warn level tagged with the
// operation name instead of propagating it. Use only for operations whose
// failure must not fail the request path.
func bestEffort(op string, fn func() error) {
	if err := fn(); err != nil {
		log.Warn().Err(err).Str("op", op).Msg("best-effort operation failed")
	}
}
