package buildorder

import (
	"fmt"

	"github.com/temirov/checkouts/internal/registry"
)

const referenceErrorTemplateConstant = "build plan %s step %d references unknown project %q"

// ReferenceError reports a source install step naming a project the registry
// does not track. It indicates a registry and build plan mismatch.
type ReferenceError struct {
	Plan        string
	StepIndex   int
	ProjectName string
}

// Error describes the dangling reference.
func (referenceError ReferenceError) Error() string {
	return fmt.Sprintf(referenceErrorTemplateConstant, referenceError.Plan, referenceError.StepIndex, referenceError.ProjectName)
}

// UsedRemotes returns the primary remote of every project installed from
// source, in plan order then step order. A project installed by several
// steps appears once per step. Any unknown project fails the whole call.
func UsedRemotes(trackedRegistry registry.Registry, plans []Plan) ([]registry.Remote, error) {
	projectsByName := trackedRegistry.Index()
	usedRemotes := make([]registry.Remote, 0)

	for _, plan := range plans {
		for stepIndex, step := range plan.Steps {
			if step.Kind != KindSourceInstall {
				continue
			}
			project, found := projectsByName[step.ProjectName]
			if !found {
				return nil, ReferenceError{Plan: plan.Name, StepIndex: stepIndex, ProjectName: step.ProjectName}
			}
			usedRemotes = append(usedRemotes, project.PrimaryRemote.Clone())
		}
	}

	return usedRemotes, nil
}
