package githubapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v67/github"
	platformerrors "github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"github.com/temirov/checkouts/internal/metadatacache"
)

const (
	// DefaultRetryAttempts is the number of tries for a transient failure.
	DefaultRetryAttempts = 3
	// DefaultInitialBackoff is the wait before the first retry.
	DefaultInitialBackoff = 500 * time.Millisecond

	gitHubHostConstant                  = "github.com"
	repositoryEndpointTemplateConstant  = "repos/%s/%s"
	ownerFieldNameConstant              = "owner"
	repositoryFieldNameConstant         = "repository"
	requiredValueMessageConstant        = "value required"
	invalidInputErrorTemplateConstant   = "%s: %s"
	clientMissingMessageConstant        = "github client not configured"
	cacheMissingMessageConstant         = "metadata cache not configured"
	defaultBranchMissingMessageConstant = "default_branch missing from response"
	retryLogMessageConstant             = "retrying github request"
	requestLogMessageConstant           = "requesting github repository"
	logFieldRepositoryConstant          = "repository"
	logFieldWaitConstant                = "wait"
	logFieldErrorConstant               = "error"
)

// ErrClientNotConfigured indicates the fetcher was built without a client.
var ErrClientNotConfigured = errors.New(clientMissingMessageConstant)

// ErrCacheNotConfigured indicates the fetcher was built without a cache.
var ErrCacheNotConfigured = errors.New(cacheMissingMessageConstant)

// InvalidInputError surfaces validation issues for fetch inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// RepositoryMetadata contains the repository details resolved from GitHub.
type RepositoryMetadata struct {
	FullName      string
	DefaultBranch string
	Description   string
	HTMLURL       string
	Archived      bool
	Fork          bool
}

// Dependencies enumerates the collaborators of a Fetcher.
type Dependencies struct {
	Client *github.Client
	Cache  *metadatacache.Cache
	Logger *zap.Logger
}

// Options configures retries of transient failures.
type Options struct {
	RetryAttempts  int
	InitialBackoff time.Duration
}

// Fetcher resolves repository metadata through the GitHub REST API. It is
// safe for concurrent use.
type Fetcher struct {
	client         *github.Client
	cache          *metadatacache.Cache
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
}

// NewFetcher constructs a Fetcher from the provided dependencies.
func NewFetcher(dependencies Dependencies, options Options) (*Fetcher, error) {
	if dependencies.Client == nil {
		return nil, ErrClientNotConfigured
	}
	if dependencies.Cache == nil {
		return nil, ErrCacheNotConfigured
	}

	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	retryAttempts := options.RetryAttempts
	if retryAttempts <= 0 {
		retryAttempts = DefaultRetryAttempts
	}
	initialBackoff := options.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = DefaultInitialBackoff
	}

	return &Fetcher{
		client:         dependencies.Client,
		cache:          dependencies.Cache,
		logger:         logger,
		retryAttempts:  retryAttempts,
		initialBackoff: initialBackoff,
	}, nil
}

// FetchRepository issues GET /repos/{owner}/{repo}, consulting the run cache
// first. Failures satisfy IsNotFound or IsTransportFailure, except context
// cancellation which is returned unchanged.
func (fetcher *Fetcher) FetchRepository(executionContext context.Context, owner string, repository string) (RepositoryMetadata, error) {
	trimmedOwner := strings.TrimSpace(owner)
	if len(trimmedOwner) == 0 {
		return RepositoryMetadata{}, InvalidInputError{FieldName: ownerFieldNameConstant, Message: requiredValueMessageConstant}
	}
	trimmedRepository := strings.TrimSpace(repository)
	if len(trimmedRepository) == 0 {
		return RepositoryMetadata{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	cacheKey := metadatacache.Key(gitHubHostConstant, trimmedOwner, trimmedRepository)
	responseBody, fetchError := fetcher.cache.GetOrFetch(cacheKey, func() ([]byte, error) {
		return fetcher.requestWithRetry(executionContext, trimmedOwner, trimmedRepository)
	})
	if fetchError != nil {
		return RepositoryMetadata{}, fetchError
	}

	return decodeRepository(trimmedOwner+"/"+trimmedRepository, responseBody)
}

func (fetcher *Fetcher) requestWithRetry(executionContext context.Context, owner string, repository string) ([]byte, error) {
	exponentialBackoff := backoff.NewExponentialBackOff()
	exponentialBackoff.InitialInterval = fetcher.initialBackoff
	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(exponentialBackoff, uint64(fetcher.retryAttempts-1)), executionContext)

	operation := func() ([]byte, error) {
		responseBody, requestError := fetcher.request(executionContext, owner, repository)
		if requestError == nil {
			return responseBody, nil
		}
		if !platformerrors.IsRetryable(requestError) {
			return nil, backoff.Permanent(requestError)
		}
		return nil, requestError
	}

	notify := func(retryError error, wait time.Duration) {
		fetcher.logger.Debug(
			retryLogMessageConstant,
			zap.String(logFieldRepositoryConstant, owner+"/"+repository),
			zap.Duration(logFieldWaitConstant, wait),
			zap.String(logFieldErrorConstant, retryError.Error()),
		)
	}

	return backoff.RetryNotifyWithData[[]byte](operation, retryPolicy, notify)
}

func (fetcher *Fetcher) request(executionContext context.Context, owner string, repository string) ([]byte, error) {
	fetcher.logger.Debug(requestLogMessageConstant, zap.String(logFieldRepositoryConstant, owner+"/"+repository))

	request, requestCreationError := fetcher.client.NewRequest(http.MethodGet, fmt.Sprintf(repositoryEndpointTemplateConstant, owner, repository), nil)
	if requestCreationError != nil {
		return nil, requestCreationError
	}

	var responseBody bytes.Buffer
	_, requestError := fetcher.client.Do(executionContext, request, &responseBody)
	if requestError != nil {
		return nil, classifyRequestError(executionContext, requestError, owner, repository)
	}
	return responseBody.Bytes(), nil
}

func decodeRepository(repositoryIdentifier string, responseBody []byte) (RepositoryMetadata, error) {
	var repository github.Repository
	if decodingError := json.Unmarshal(responseBody, &repository); decodingError != nil {
		return RepositoryMetadata{}, ResponseDecodingError{Repository: repositoryIdentifier, Cause: decodingError}
	}
	if len(repository.GetDefaultBranch()) == 0 {
		return RepositoryMetadata{}, ResponseDecodingError{Repository: repositoryIdentifier, Cause: errors.New(defaultBranchMissingMessageConstant)}
	}
	return RepositoryMetadata{
		FullName:      repository.GetFullName(),
		DefaultBranch: repository.GetDefaultBranch(),
		Description:   repository.GetDescription(),
		HTMLURL:       repository.GetHTMLURL(),
		Archived:      repository.GetArchived(),
		Fork:          repository.GetFork(),
	}, nil
}
