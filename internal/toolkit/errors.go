package toolkit

import (
	"errors"
	"fmt"
)

// InvalidCredentialError reports that a message contained a credential for
// a capability but the value was malformed. Nothing is stored; the caller
// tells the user the value looked wrong instead of silently re-prompting.
type InvalidCredentialError struct {
	Capability string
	Reason     string
}

func (e *InvalidCredentialError) Error() string {
	return fmt.Sprintf("%s: invalid credential: %s", e.Capability, e.Reason)
}

// BuildError reports that a stored credential was rejected at build time
// (for example an expired token). The wrapper deletes the stored credential
// and re-prompts.
type BuildError struct {
	Capability string
	Err        error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: build failed: %v", e.Capability, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// DependencyError reports that a capability's prerequisite is not
// configured while the capability itself is active. Treated the same as a
// build failure by callers.
type DependencyError struct {
	Capability string
	Dependency string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: prerequisite capability %q is not configured", e.Capability, e.Dependency)
}

// IsBuildFailure reports whether err is a build-time capability failure
// (BuildError or DependencyError).
func IsBuildFailure(err error) bool {
	var be *BuildError
	var de *DependencyError
	return errors.As(err, &be) || errors.As(err, &de)
}
