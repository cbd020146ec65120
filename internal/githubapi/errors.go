package githubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v67/github"
	platformerrors "github.com/jmgilman/go/errors"
)

const (
	notFoundMessageTemplateConstant       = "repository %s/%s not found or inaccessible"
	transportMessageTemplateConstant      = "request for repository %s/%s failed"
	rateLimitMessageTemplateConstant      = "rate limit exceeded while requesting %s/%s"
	responseDecodingErrorTemplateConstant = "repository %s response decoding failed: %s"
	errorContextOwnerKeyConstant          = "owner"
	errorContextRepositoryKeyConstant     = "repository"
	errorContextStatusKeyConstant         = "status"
)

// ResponseDecodingError indicates the API answered with a body that does not
// describe a repository.
type ResponseDecodingError struct {
	Repository string
	Cause      error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Repository, decodingError.Cause)
}

// Unwrap exposes the underlying error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// IsNotFound reports whether err means the upstream repository is absent or
// inaccessible.
func IsNotFound(err error) bool {
	return platformerrors.GetCode(err) == platformerrors.CodeNotFound
}

// IsTransportFailure reports whether err is a network or service level
// failure that may succeed later.
func IsTransportFailure(err error) bool {
	switch platformerrors.GetCode(err) {
	case platformerrors.CodeNetwork, platformerrors.CodeRateLimit, platformerrors.CodeTimeout:
		return true
	default:
		return false
	}
}

// classifyRequestError maps go-github failures onto the platform error codes.
// Client side (4xx) answers are NotFound; rate limits, server errors and
// network errors are transport failures.
func classifyRequestError(requestContext context.Context, requestError error, owner string, repository string) error {
	if requestError == nil {
		return nil
	}
	if contextError := requestContext.Err(); contextError != nil {
		return contextError
	}

	errorContext := map[string]interface{}{
		errorContextOwnerKeyConstant:      owner,
		errorContextRepositoryKeyConstant: repository,
	}

	var rateLimitError *github.RateLimitError
	var abuseRateLimitError *github.AbuseRateLimitError
	if errors.As(requestError, &rateLimitError) || errors.As(requestError, &abuseRateLimitError) {
		return platformerrors.WrapWithContext(requestError, platformerrors.CodeRateLimit, fmt.Sprintf(rateLimitMessageTemplateConstant, owner, repository), errorContext)
	}

	var errorResponse *github.ErrorResponse
	if errors.As(requestError, &errorResponse) && errorResponse.Response != nil {
		statusCode := errorResponse.Response.StatusCode
		errorContext[errorContextStatusKeyConstant] = statusCode
		if statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError {
			return platformerrors.WrapWithContext(requestError, platformerrors.CodeNotFound, fmt.Sprintf(notFoundMessageTemplateConstant, owner, repository), errorContext)
		}
	}

	return platformerrors.WrapWithContext(requestError, platformerrors.CodeNetwork, fmt.Sprintf(transportMessageTemplateConstant, owner, repository), errorContext)
}
