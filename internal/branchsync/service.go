package branchsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/checkouts/internal/githubapi"
	"github.com/temirov/checkouts/internal/registry"
	"github.com/temirov/checkouts/internal/repos/shared"
)

const (
	// DefaultConcurrency bounds the number of fetches in flight.
	DefaultConcurrency = 8

	fetcherMissingMessageConstant            = "branch fetcher not configured"
	unknownPolicyTemplateConstant            = "unknown transport failure policy %q (expected %s or %s)"
	transportAbortErrorTemplateConstant      = "aborting sync at project %s (%s): %v"
	unresolvedReportTemplateConstant         = "The project %s has no upstream on %s with %s: %v\n"
	fetchLogMessageConstant                  = "resolving default branch"
	resolvedLogMessageConstant               = "resolved default branch"
	unresolvedLogMessageConstant             = "default branch unresolved"
	skippedLogMessageConstant                = "skipping project hosted outside github"
	summaryLogMessageConstant                = "branch sync completed"
	logFieldProjectConstant                  = "project"
	logFieldRemoteConstant                   = "remote"
	logFieldHostConstant                     = "host"
	logFieldBranchConstant                   = "default_branch"
	logFieldResolvedCountConstant            = "resolved"
	logFieldUnresolvedCountConstant          = "unresolved"
	logFieldSkippedCountConstant             = "skipped"
	transportFailurePolicySkipValueConstant  = "skip"
	transportFailurePolicyAbortValueConstant = "abort"
)

// ErrFetcherNotConfigured indicates the service was built without a fetcher.
var ErrFetcherNotConfigured = errors.New(fetcherMissingMessageConstant)

// BranchFetcher resolves repository metadata for one owner/repository pair.
type BranchFetcher interface {
	FetchRepository(executionContext context.Context, owner string, repository string) (githubapi.RepositoryMetadata, error)
}

// TransportFailurePolicy decides what a transport failure does to the pass.
type TransportFailurePolicy string

const (
	// TransportFailurePolicySkip reports the project and continues.
	TransportFailurePolicySkip TransportFailurePolicy = transportFailurePolicySkipValueConstant
	// TransportFailurePolicyAbort stops the pass and discards its results.
	TransportFailurePolicyAbort TransportFailurePolicy = transportFailurePolicyAbortValueConstant
)

// ParseTransportFailurePolicy converts a configuration value into a policy.
// Empty input selects TransportFailurePolicySkip.
func ParseTransportFailurePolicy(value string) (TransportFailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", transportFailurePolicySkipValueConstant:
		return TransportFailurePolicySkip, nil
	case transportFailurePolicyAbortValueConstant:
		return TransportFailurePolicyAbort, nil
	default:
		return "", fmt.Errorf(unknownPolicyTemplateConstant, value, TransportFailurePolicySkip, TransportFailurePolicyAbort)
	}
}

// UnmarshalText lets configuration decoding validate the policy value.
func (policy *TransportFailurePolicy) UnmarshalText(text []byte) error {
	parsedPolicy, parseError := ParseTransportFailurePolicy(string(text))
	if parseError != nil {
		return parseError
	}
	*policy = parsedPolicy
	return nil
}

// Dependencies enumerates the collaborators of the sync service.
type Dependencies struct {
	Fetcher  BranchFetcher
	Reporter shared.Reporter
	Logger   *zap.Logger
}

// Options tunes a sync pass.
type Options struct {
	Concurrency            int
	TransportFailurePolicy TransportFailurePolicy
}

// ProjectFailure records a project whose default branch could not be resolved.
type ProjectFailure struct {
	ProjectName     string
	OwnerRepository string
	Cause           error
}

// Result describes a completed sync pass.
type Result struct {
	Registry   registry.Registry
	Resolved   []string
	Unresolved []ProjectFailure
	Skipped    []string
}

// TransportAbortError stops a pass under TransportFailurePolicyAbort.
type TransportAbortError struct {
	ProjectName     string
	OwnerRepository string
	Cause           error
}

// Error describes the aborted pass.
func (abortError TransportAbortError) Error() string {
	return fmt.Sprintf(transportAbortErrorTemplateConstant, abortError.ProjectName, abortError.OwnerRepository, abortError.Cause)
}

// Unwrap exposes the transport failure.
func (abortError TransportAbortError) Unwrap() error {
	return abortError.Cause
}

// Service resolves default branches for every GitHub hosted project of a
// registry and merges them back.
type Service struct {
	fetcher     BranchFetcher
	reporter    shared.Reporter
	logger      *zap.Logger
	concurrency int
	policy      TransportFailurePolicy
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies Dependencies, options Options) (*Service, error) {
	if dependencies.Fetcher == nil {
		return nil, ErrFetcherNotConfigured
	}

	reporter := dependencies.Reporter
	if reporter == nil {
		reporter = shared.NewWriterReporter(nil)
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	concurrency := options.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	policy := options.TransportFailurePolicy
	if len(policy) == 0 {
		policy = TransportFailurePolicySkip
	}

	return &Service{
		fetcher:     dependencies.Fetcher,
		reporter:    reporter,
		logger:      logger,
		concurrency: concurrency,
		policy:      policy,
	}, nil
}

type projectOutcomeKind int

const (
	projectOutcomeSkipped projectOutcomeKind = iota
	projectOutcomeResolved
	projectOutcomeUnresolved
)

type projectOutcome struct {
	kind          projectOutcomeKind
	defaultBranch string
	cause         error
}

// Sync fetches every eligible project with bounded concurrency and returns a
// copy of the registry with resolved branches merged in. The input registry
// is not modified. Per-project failures are reported and left unresolved;
// cancellation or an aborting transport failure returns an error and no
// registry.
func (service *Service) Sync(executionContext context.Context, input registry.Registry) (Result, error) {
	synchronized := input.Clone()
	outcomes := make([]projectOutcome, len(synchronized.Projects))

	group, groupContext := errgroup.WithContext(executionContext)
	group.SetLimit(service.concurrency)

	for projectIndex := range synchronized.Projects {
		project := synchronized.Projects[projectIndex]
		if project.PrimaryRemote.Host != registry.HostGitHub {
			outcomes[projectIndex] = projectOutcome{kind: projectOutcomeSkipped}
			service.logger.Debug(
				skippedLogMessageConstant,
				zap.String(logFieldProjectConstant, project.Name),
				zap.String(logFieldHostConstant, project.PrimaryRemote.Host.String()),
			)
			continue
		}
		if groupContext.Err() != nil {
			break
		}

		group.Go(func() error {
			outcome, abortError := service.resolveProject(groupContext, project)
			outcomes[projectIndex] = outcome
			return abortError
		})
	}

	if waitError := group.Wait(); waitError != nil {
		return Result{}, waitError
	}
	if contextError := executionContext.Err(); contextError != nil {
		return Result{}, contextError
	}

	result := Result{}
	for projectIndex := range synchronized.Projects {
		project := &synchronized.Projects[projectIndex]
		outcome := outcomes[projectIndex]
		switch outcome.kind {
		case projectOutcomeSkipped:
			result.Skipped = append(result.Skipped, project.Name)
		case projectOutcomeResolved:
			project.ApplyDefaultBranch(outcome.defaultBranch)
			result.Resolved = append(result.Resolved, project.Name)
		case projectOutcomeUnresolved:
			service.reporter.Printf(unresolvedReportTemplateConstant, project.Name, project.PrimaryRemote.User, project.PrimaryRemote.RepoName, outcome.cause)
			result.Unresolved = append(result.Unresolved, ProjectFailure{
				ProjectName:     project.Name,
				OwnerRepository: project.PrimaryRemote.OwnerRepository(),
				Cause:           outcome.cause,
			})
		}
	}
	result.Registry = synchronized

	service.logger.Info(
		summaryLogMessageConstant,
		zap.Int(logFieldResolvedCountConstant, len(result.Resolved)),
		zap.Int(logFieldUnresolvedCountConstant, len(result.Unresolved)),
		zap.Int(logFieldSkippedCountConstant, len(result.Skipped)),
	)

	return result, nil
}

func (service *Service) resolveProject(executionContext context.Context, project registry.Project) (projectOutcome, error) {
	ownerRepository := project.PrimaryRemote.OwnerRepository()
	service.logger.Debug(
		fetchLogMessageConstant,
		zap.String(logFieldProjectConstant, project.Name),
		zap.String(logFieldRemoteConstant, ownerRepository),
	)

	metadata, fetchError := service.fetcher.FetchRepository(executionContext, project.PrimaryRemote.User, project.PrimaryRemote.RepoName)
	if fetchError == nil {
		service.logger.Debug(
			resolvedLogMessageConstant,
			zap.String(logFieldProjectConstant, project.Name),
			zap.String(logFieldBranchConstant, metadata.DefaultBranch),
		)
		return projectOutcome{kind: projectOutcomeResolved, defaultBranch: metadata.DefaultBranch}, nil
	}

	if errors.Is(fetchError, context.Canceled) || errors.Is(fetchError, context.DeadlineExceeded) {
		return projectOutcome{kind: projectOutcomeUnresolved, cause: fetchError}, fetchError
	}

	if service.policy == TransportFailurePolicyAbort && githubapi.IsTransportFailure(fetchError) {
		abortError := TransportAbortError{ProjectName: project.Name, OwnerRepository: ownerRepository, Cause: fetchError}
		return projectOutcome{kind: projectOutcomeUnresolved, cause: fetchError}, abortError
	}

	service.logger.Warn(
		unresolvedLogMessageConstant,
		zap.String(logFieldProjectConstant, project.Name),
		zap.String(logFieldRemoteConstant, ownerRepository),
		zap.Error(fetchError),
	)
	return projectOutcome{kind: projectOutcomeUnresolved, cause: fetchError}, nil
}
