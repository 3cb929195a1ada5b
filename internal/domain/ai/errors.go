package ai

import "errors"

// ErrQuotaExceeded means the advisor provider refused the request for
// quota or rate reasons (HTTP 429). The API answers 429 as well.
var ErrQuotaExceeded = errors.New("ai quota exceeded")
