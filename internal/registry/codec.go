package registry

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	yamlIndentWidthConstant               = 2
	yamlNullTagConstant                   = "!!null"
	nameFieldConstant                     = "name"
	primaryRemoteFieldConstant            = "primary_remote"
	remotesFieldTemplateConstant          = "remotes.%s"
	hostFieldSuffixConstant               = ".host"
	userFieldSuffixConstant               = ".user"
	repoNameFieldSuffixConstant           = ".repo_name"
	requiredValueMessageConstant          = "value required"
	duplicateNameTemplateConstant         = "duplicate project name %q"
	parseErrorTemplateConstant            = "registry document %d: %s: %s"
	parseErrorWithProjectTemplateConstant = "registry document %d (project %q): %s: %s"
	documentDecodeFieldConstant           = "document"
	documentDecodeErrorTemplateConstant   = "failed to decode registry document %d: %w"
	documentEncodeErrorTemplateConstant   = "failed to encode project %q: %w"
	encoderCloseErrorTemplateConstant     = "failed to finalize registry encoding: %w"
)

// ParseError reports a registry document that does not satisfy the schema.
type ParseError struct {
	DocumentIndex int
	ProjectName   string
	Field         string
	Reason        string
}

// Error describes the invalid document.
func (parseError ParseError) Error() string {
	if len(parseError.ProjectName) == 0 {
		return fmt.Sprintf(parseErrorTemplateConstant, parseError.DocumentIndex, parseError.Field, parseError.Reason)
	}
	return fmt.Sprintf(parseErrorWithProjectTemplateConstant, parseError.DocumentIndex, parseError.ProjectName, parseError.Field, parseError.Reason)
}

// Decode reads a multi-document YAML stream, one project per document, and
// validates every project.
func Decode(reader io.Reader) (Registry, error) {
	decoder := yaml.NewDecoder(reader)
	projects := make([]Project, 0)
	seenNames := make(map[string]struct{})

	for documentIndex := 0; ; documentIndex++ {
		var documentNode yaml.Node
		decodeError := decoder.Decode(&documentNode)
		if errors.Is(decodeError, io.EOF) {
			break
		}
		if decodeError != nil {
			return Registry{}, fmt.Errorf(documentDecodeErrorTemplateConstant, documentIndex, decodeError)
		}
		if IsEmptyDocument(&documentNode) {
			continue
		}

		var project Project
		if nodeDecodeError := documentNode.Decode(&project); nodeDecodeError != nil {
			return Registry{}, ParseError{DocumentIndex: documentIndex, Field: documentDecodeFieldConstant, Reason: nodeDecodeError.Error()}
		}

		validatedProject, validationError := validateProject(documentIndex, project)
		if validationError != nil {
			return Registry{}, validationError
		}

		if _, duplicate := seenNames[validatedProject.Name]; duplicate {
			return Registry{}, ParseError{
				DocumentIndex: documentIndex,
				ProjectName:   validatedProject.Name,
				Field:         nameFieldConstant,
				Reason:        fmt.Sprintf(duplicateNameTemplateConstant, validatedProject.Name),
			}
		}
		seenNames[validatedProject.Name] = struct{}{}
		projects = append(projects, validatedProject)
	}

	return Registry{Projects: projects}, nil
}

// Encode writes every project as its own YAML document, preserving order.
func Encode(writer io.Writer, registry Registry) error {
	if len(registry.Projects) == 0 {
		return nil
	}
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(yamlIndentWidthConstant)
	for _, project := range registry.Projects {
		if encodeError := encoder.Encode(project); encodeError != nil {
			return fmt.Errorf(documentEncodeErrorTemplateConstant, project.Name, encodeError)
		}
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(encoderCloseErrorTemplateConstant, closeError)
	}
	return nil
}

// EncodeRemotes writes remotes as a multi-document YAML stream. No remotes
// produce no bytes.
func EncodeRemotes(writer io.Writer, remotes []Remote) error {
	if len(remotes) == 0 {
		return nil
	}
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(yamlIndentWidthConstant)
	for _, remote := range remotes {
		if encodeError := encoder.Encode(remote); encodeError != nil {
			return fmt.Errorf(documentEncodeErrorTemplateConstant, remote.OwnerRepository(), encodeError)
		}
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(encoderCloseErrorTemplateConstant, closeError)
	}
	return nil
}

// IsEmptyDocument reports whether a decoded YAML document holds nothing or
// an explicit null.
func IsEmptyDocument(documentNode *yaml.Node) bool {
	if documentNode == nil || len(documentNode.Content) == 0 {
		return true
	}
	return documentNode.Content[0].Tag == yamlNullTagConstant
}

func validateProject(documentIndex int, project Project) (Project, error) {
	project.Name = strings.TrimSpace(project.Name)
	if len(project.Name) == 0 {
		return Project{}, ParseError{DocumentIndex: documentIndex, Field: nameFieldConstant, Reason: requiredValueMessageConstant}
	}

	primaryRemote, primaryError := validateRemote(documentIndex, project.Name, primaryRemoteFieldConstant, project.PrimaryRemote)
	if primaryError != nil {
		return Project{}, primaryError
	}
	project.PrimaryRemote = primaryRemote

	for label, remote := range project.Remotes {
		validatedRemote, remoteError := validateRemote(documentIndex, project.Name, fmt.Sprintf(remotesFieldTemplateConstant, label), remote)
		if remoteError != nil {
			return Project{}, remoteError
		}
		project.Remotes[label] = validatedRemote
	}

	return project, nil
}

func validateRemote(documentIndex int, projectName string, fieldPrefix string, remote Remote) (Remote, error) {
	host, hostError := ParseHost(string(remote.Host))
	if hostError != nil {
		return Remote{}, ParseError{DocumentIndex: documentIndex, ProjectName: projectName, Field: fieldPrefix + hostFieldSuffixConstant, Reason: hostError.Error()}
	}
	remote.Host = host

	remote.User = strings.TrimSpace(remote.User)
	if len(remote.User) == 0 {
		return Remote{}, ParseError{DocumentIndex: documentIndex, ProjectName: projectName, Field: fieldPrefix + userFieldSuffixConstant, Reason: requiredValueMessageConstant}
	}

	remote.RepoName = strings.TrimSpace(remote.RepoName)
	if len(remote.RepoName) == 0 {
		return Remote{}, ParseError{DocumentIndex: documentIndex, ProjectName: projectName, Field: fieldPrefix + repoNameFieldSuffixConstant, Reason: requiredValueMessageConstant}
	}

	return remote, nil
}
