package engine

import "errors"

// Sentinel errors for the ClientError taxonomy in SPEC_FULL.md §7. CLI and
// dashboard callers distinguish these with errors.Is instead of string
// matching.
var (
	// ErrDuplicateID is returned by Store.Insert when the job id already exists.
	ErrDuplicateID = errors.New("job id already exists")

	// ErrNotFound is returned when a lookup by id finds nothing.
	ErrNotFound = errors.New("job not found")

	// ErrNotInDLQ is returned by Store.DLQRetry when the job isn't state=dead.
	ErrNotInDLQ = errors.New("job is not in the dead letter queue")

	// ErrUnknownConfigKey is returned by config set/get for an unrecognized key.
	ErrUnknownConfigKey = errors.New("unknown config key")

	// ErrInvalidConfigValue is returned when a config value fails validation.
	ErrInvalidConfigValue = errors.New("invalid config value")

	// ErrInvalidPayload is returned when a JSON job submission document is
	// malformed, carries an unrecognized field, or omits a required field.
	ErrInvalidPayload = errors.New("invalid job payload")
)

// clientErrors are the sentinels SPEC_FULL.md §7 classifies as ClientError:
// rejected at the boundary without touching state.
var clientErrors = []error{
	ErrDuplicateID,
	ErrNotFound,
	ErrNotInDLQ,
	ErrUnknownConfigKey,
	ErrInvalidConfigValue,
	ErrInvalidPayload,
}

// IsClientError reports whether err is, or wraps, one of the ClientError
// sentinels, so callers can pick exit code 2 over exit code 1.
func IsClientError(err error) bool {
	for _, sentinel := range clientErrors {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
