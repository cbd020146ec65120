package githubapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v67/github"

	"github.com/temirov/checkouts/internal/githubauth"
)

const (
	defaultRequestTimeoutConstant   = 30 * time.Second
	trailingSlashConstant           = "/"
	tokenRequiredMessageConstant    = "github token must be provided"
	identityRequiredMessageConstant = "github identity must be provided"
	invalidBaseURLTemplateConstant  = "invalid github api base url %q: %w"
)

// ErrTokenRequired indicates the client was requested without a token.
var ErrTokenRequired = errors.New(tokenRequiredMessageConstant)

// ErrIdentityRequired indicates the client was requested without an identity.
var ErrIdentityRequired = errors.New(identityRequiredMessageConstant)

// ClientOptions tunes the process default client.
type ClientOptions struct {
	// BaseURL overrides https://api.github.com/, e.g. for GitHub Enterprise.
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds the authenticated session shared by every fetch of a run.
// The identity is sent as the User-Agent, as GitHub requires one per account.
func NewClient(credentials githubauth.Credentials, options ClientOptions) (*github.Client, error) {
	token := strings.TrimSpace(credentials.Token)
	if len(token) == 0 {
		return nil, ErrTokenRequired
	}
	identity := strings.TrimSpace(credentials.Identity)
	if len(identity) == 0 {
		return nil, ErrIdentityRequired
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeoutConstant}
	}

	client := github.NewClient(httpClient).WithAuthToken(token)
	client.UserAgent = identity

	baseURL := strings.TrimSpace(options.BaseURL)
	if len(baseURL) > 0 {
		if !strings.HasSuffix(baseURL, trailingSlashConstant) {
			baseURL += trailingSlashConstant
		}
		parsedBaseURL, parseError := url.Parse(baseURL)
		if parseError != nil {
			return nil, fmt.Errorf(invalidBaseURLTemplateConstant, options.BaseURL, parseError)
		}
		client.BaseURL = parsedBaseURL
	}

	return client, nil
}
