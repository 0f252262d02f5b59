// internal/jobs/sanitize.go
package jobs

import "fmt"

// maxVerbatimLen is the length threshold below which a scalar is logged
// verbatim. Longer values are reduced to their type name to bound log volume
// and avoid leaking large payloads.
const maxVerbatimLen = 100

// EntityRef is a loggable reference to a stored entity, rendered as
// "Kind#id".
type EntityRef struct {
	Kind string
	ID   any
}

// LoggableArgs is a fixed-shape sequence of pre-sanitized, already
// stringified argument tokens, computed before the Runner is invoked.
type LoggableArgs []string

// Sanitize renders job arguments for logging: entity references become
// "Kind#id", short scalars appear verbatim, and everything else is reduced
// to its type name.
func Sanitize(args ...any) LoggableArgs {
	tokens := make(LoggableArgs, len(args))
	for i, arg := range args {
		tokens[i] = sanitizeOne(arg)
	}
	return tokens
}

func sanitizeOne(arg any) string {
	switch v := arg.(type) {
	case EntityRef:
		return fmt.Sprintf("%s#%v", v.Kind, v.ID)
	case string:
		if len(v) < maxVerbatimLen {
			return v
		}
		return fmt.Sprintf("%T", v)
	case bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprint(v)
	default:
		return fmt.Sprintf("%T", arg)
	}
}
