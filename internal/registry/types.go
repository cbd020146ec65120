package registry

import (
	"errors"
	"fmt"
	"strings"
)

const (
	hostGitHubValueConstant          = "github.com"
	hostGitLabValueConstant          = "gitlab.com"
	hostBitbucketValueConstant       = "bitbucket.org"
	hostEmptyMessageConstant         = "host must be provided"
	hostMalformedTemplateConstant    = "host %q is not a valid host name"
	hostLabelSeparatorConstant       = "."
	hostLabelHyphenConstant          = '-'
	hostNameMaximumLengthConstant    = 253
	hostLabelMaximumLengthConstant   = 63
	ownerRepositorySeparatorConstant = "/"
)

// Host identifies the provider serving a remote. Any well-formed host name
// is accepted; only HostGitHub is eligible for branch sync.
type Host string

// Well-known hosting providers.
const (
	HostGitHub    Host = Host(hostGitHubValueConstant)
	HostGitLab    Host = Host(hostGitLabValueConstant)
	HostBitbucket Host = Host(hostBitbucketValueConstant)
)

// ParseHost lower-cases a host value and rejects empty or malformed names.
func ParseHost(hostValue string) (Host, error) {
	normalizedValue := strings.ToLower(strings.TrimSpace(hostValue))
	if len(normalizedValue) == 0 {
		return "", errors.New(hostEmptyMessageConstant)
	}
	if !isHostName(normalizedValue) {
		return "", fmt.Errorf(hostMalformedTemplateConstant, hostValue)
	}
	return Host(normalizedValue), nil
}

func isHostName(value string) bool {
	if len(value) > hostNameMaximumLengthConstant {
		return false
	}
	for _, label := range strings.Split(value, hostLabelSeparatorConstant) {
		if len(label) == 0 || len(label) > hostLabelMaximumLengthConstant {
			return false
		}
		if label[0] == hostLabelHyphenConstant || label[len(label)-1] == hostLabelHyphenConstant {
			return false
		}
		for _, character := range label {
			isLetter := character >= 'a' && character <= 'z'
			isDigit := character >= '0' && character <= '9'
			if !isLetter && !isDigit && character != hostLabelHyphenConstant {
				return false
			}
		}
	}
	return true
}

// String returns the textual host identifier.
func (host Host) String() string {
	return string(host)
}

// Remote is one hosted copy of a project's source.
type Remote struct {
	Host          Host   `yaml:"host"`
	User          string `yaml:"user"`
	RepoName      string `yaml:"repo_name"`
	DefaultBranch string `yaml:"default_branch,omitempty"`

	// Extra keeps document keys the registry does not model so a load and
	// persist cycle writes them back unchanged.
	Extra map[string]any `yaml:",inline"`
}

// OwnerRepository renders the remote as owner/repository.
func (remote Remote) OwnerRepository() string {
	return remote.User + ownerRepositorySeparatorConstant + remote.RepoName
}

// Clone returns a copy of the remote that shares no mutable state.
func (remote Remote) Clone() Remote {
	cloned := remote
	cloned.Extra = cloneExtra(remote.Extra)
	return cloned
}

// Project is a single registry entry.
type Project struct {
	Name          string            `yaml:"name"`
	PrimaryRemote Remote            `yaml:"primary_remote"`
	Remotes       map[string]Remote `yaml:"remotes"`

	Extra map[string]any `yaml:",inline"`
}

// Clone returns a deep copy of the project.
func (project Project) Clone() Project {
	cloned := project
	cloned.PrimaryRemote = project.PrimaryRemote.Clone()
	cloned.Extra = cloneExtra(project.Extra)
	if project.Remotes != nil {
		cloned.Remotes = make(map[string]Remote, len(project.Remotes))
		for label, remote := range project.Remotes {
			cloned.Remotes[label] = remote.Clone()
		}
	}
	return cloned
}

// ApplyDefaultBranch records the resolved branch on the primary remote and on
// every remote of the project hosted by the same provider.
func (project *Project) ApplyDefaultBranch(branchName string) {
	project.PrimaryRemote.DefaultBranch = branchName
	for label, remote := range project.Remotes {
		if remote.Host != project.PrimaryRemote.Host {
			continue
		}
		remote.DefaultBranch = branchName
		project.Remotes[label] = remote
	}
}

// Registry is the ordered collection of tracked projects.
type Registry struct {
	Projects []Project
}

// Lookup returns the project with the provided name.
func (registry Registry) Lookup(projectName string) (Project, bool) {
	for _, project := range registry.Projects {
		if project.Name == projectName {
			return project, true
		}
	}
	return Project{}, false
}

// Index builds a name keyed view of the registry.
func (registry Registry) Index() map[string]Project {
	index := make(map[string]Project, len(registry.Projects))
	for _, project := range registry.Projects {
		index[project.Name] = project
	}
	return index
}

// Clone returns a deep copy of the registry.
func (registry Registry) Clone() Registry {
	clonedProjects := make([]Project, len(registry.Projects))
	for projectIndex, project := range registry.Projects {
		clonedProjects[projectIndex] = project.Clone()
	}
	return Registry{Projects: clonedProjects}
}

func cloneExtra(extra map[string]any) map[string]any {
	if extra == nil {
		return nil
	}
	cloned := make(map[string]any, len(extra))
	for key, value := range extra {
		cloned[key] = value
	}
	return cloned
}
