package buildorder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/temirov/checkouts/internal/registry"
	"github.com/temirov/checkouts/internal/repos/filesystem"
)

const (
	// KindSourceInstall tags a step that builds a project from its source remote.
	KindSourceInstall = "source_install"

	hiddenFilePrefixConstant           = "."
	planFileSuffixConstant             = "yaml"
	directoryRequiredMessageConstant   = "build order directory must be provided"
	directoryReadErrorTemplateConstant = "failed to list build order directory %s: %w"
	planReadErrorTemplateConstant      = "failed to read build plan %s: %w"
	planDecodeErrorTemplateConstant    = "failed to decode build plan %s document %d: %w"
	missingProjectNameTemplateConstant = "build plan %s step %d: %s step has no proj_name"
)

// ErrDirectoryRequired indicates LoadPlans was called with an empty path.
var ErrDirectoryRequired = errors.New(directoryRequiredMessageConstant)

// Step is one build plan record. Keys other than kind and proj_name are ignored.
type Step struct {
	Kind        string `yaml:"kind"`
	ProjectName string `yaml:"proj_name"`
}

// Plan is the ordered step sequence read from one build plan file.
type Plan struct {
	Name  string
	Steps []Step
}

// DirectoryReader exposes the file access needed to load build plans.
type DirectoryReader interface {
	ReadDir(path string) ([]fs.DirEntry, error)
	ReadFile(path string) ([]byte, error)
}

// PlanLoader reads build plan directories.
type PlanLoader struct {
	directoryReader DirectoryReader
}

// NewPlanLoader constructs a loader; a nil reader uses the operating system.
func NewPlanLoader(directoryReader DirectoryReader) *PlanLoader {
	if directoryReader == nil {
		directoryReader = filesystem.OSFileSystem{}
	}
	return &PlanLoader{directoryReader: directoryReader}
}

// LoadPlans reads every plan file of directory in ascending filename order.
// Plan files end in "yaml"; names starting with a dot are ignored, as are
// subdirectories.
func (loader *PlanLoader) LoadPlans(directory string) ([]Plan, error) {
	trimmedDirectory := strings.TrimSpace(directory)
	if len(trimmedDirectory) == 0 {
		return nil, ErrDirectoryRequired
	}

	entries, readDirectoryError := loader.directoryReader.ReadDir(trimmedDirectory)
	if readDirectoryError != nil {
		return nil, fmt.Errorf(directoryReadErrorTemplateConstant, trimmedDirectory, readDirectoryError)
	}

	planFileNames := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isPlanFileName(entry.Name()) {
			continue
		}
		planFileNames = append(planFileNames, entry.Name())
	}
	sort.Strings(planFileNames)

	plans := make([]Plan, 0, len(planFileNames))
	for _, planFileName := range planFileNames {
		contents, readError := loader.directoryReader.ReadFile(filepath.Join(trimmedDirectory, planFileName))
		if readError != nil {
			return nil, fmt.Errorf(planReadErrorTemplateConstant, planFileName, readError)
		}
		plan, decodeError := DecodePlan(planFileName, bytes.NewReader(contents))
		if decodeError != nil {
			return nil, decodeError
		}
		plans = append(plans, plan)
	}

	return plans, nil
}

// DecodePlan reads a multi-document YAML stream of steps. Empty documents
// are skipped.
func DecodePlan(name string, reader io.Reader) (Plan, error) {
	decoder := yaml.NewDecoder(reader)
	plan := Plan{Name: name}

	for documentIndex := 0; ; documentIndex++ {
		var documentNode yaml.Node
		decodeError := decoder.Decode(&documentNode)
		if errors.Is(decodeError, io.EOF) {
			break
		}
		if decodeError != nil {
			return Plan{}, fmt.Errorf(planDecodeErrorTemplateConstant, name, documentIndex, decodeError)
		}
		if registry.IsEmptyDocument(&documentNode) {
			continue
		}

		var step Step
		if nodeDecodeError := documentNode.Decode(&step); nodeDecodeError != nil {
			return Plan{}, fmt.Errorf(planDecodeErrorTemplateConstant, name, documentIndex, nodeDecodeError)
		}
		step.Kind = strings.TrimSpace(step.Kind)
		step.ProjectName = strings.TrimSpace(step.ProjectName)
		if step.Kind == KindSourceInstall && len(step.ProjectName) == 0 {
			return Plan{}, fmt.Errorf(missingProjectNameTemplateConstant, name, len(plan.Steps), KindSourceInstall)
		}
		plan.Steps = append(plan.Steps, step)
	}

	return plan, nil
}

func isPlanFileName(fileName string) bool {
	if strings.HasPrefix(fileName, hiddenFilePrefixConstant) {
		return false
	}
	return strings.HasSuffix(fileName, planFileSuffixConstant)
}
