// Package service implements the transport-facing API surface.
// Services translate HTTP payloads into biz calls and map domain
// errors onto transport status codes.
package service

import "github.com/google/wire"

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(
	NewDispatchService,
	NewWorkflowService,
	NewAdminService,
	NewWebhookService,
)
