package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectLifecycle = "dbi.lifecycle"
)

// BuildStageSubject builds the per-stage lifecycle subject, e.g.
// dbi.lifecycle.interactionError.
func BuildStageSubject(base, stage string) string {
	return fmt.Sprintf("%s.%s", base, stage)
}

// BuildHandlerSubject builds the per-handler lifecycle subject. Spaces in
// hierarchical command names become underscores so the name stays one token.
func BuildHandlerSubject(base, stage, name string) string {
	safe := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	safe = strings.ReplaceAll(safe, ".", "_")
	return fmt.Sprintf("%s.%s.%s", base, stage, safe)
}
