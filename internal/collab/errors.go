package collab

import "errors"

// ErrTransient marks a collaborator failure the caller should retry once
// with backoff before surfacing: 5xx responses. A timeout is not wrapped
// in it; it surfaces as the context's deadline error.
var ErrTransient = errors.New("collaborator: transient failure")

// ErrPermanent marks a collaborator failure that should not be retried:
// 4xx responses such as a malformed request.
var ErrPermanent = errors.New("collaborator: permanent failure")
