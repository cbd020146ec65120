package branchsync_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/checkouts/internal/branchsync"
	"github.com/temirov/checkouts/internal/githubauth"
	"github.com/temirov/checkouts/internal/registry"
)

const (
	commandRegistryDocumentsConstant = `name: numpy
primary_remote:
  host: github.com
  user: numpy
  repo_name: numpy
remotes:
  origin:
    host: github.com
    user: numpy
    repo_name: numpy
  fork:
    host: github.com
    user: builder
    repo_name: numpy
build_tool: meson
---
name: ghost
primary_remote:
  host: github.com
  user: nobody
  repo_name: ghost
remotes: {}
---
name: libxml2
primary_remote:
  host: gitlab.com
  user: GNOME
  repo_name: libxml2
remotes: {}
`
	commandRegistryFileNameConstant = "all_repos.yaml"
)

type stubCredentialsLoader struct {
	credentials githubauth.Credentials
	loadError   error
	sources     []githubauth.Sources
}

func (loader *stubCredentialsLoader) Load(sources githubauth.Sources) (githubauth.Credentials, error) {
	loader.sources = append(loader.sources, sources)
	if loader.loadError != nil {
		return githubauth.Credentials{}, loader.loadError
	}
	return loader.credentials, nil
}

type commandFixture struct {
	registryPath string
	requestCount *atomic.Int32
	serverURL    string
}

func newCommandFixture(t *testing.T, statusCode int) commandFixture {
	t.Helper()
	requestCount := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		requestCount.Add(1)
		responseWriter.Header().Set("Content-Type", "application/json")
		ownerRepository := strings.TrimPrefix(request.URL.Path, "/repos/")
		if statusCode != http.StatusOK {
			responseWriter.WriteHeader(statusCode)
			_, _ = responseWriter.Write([]byte(`{"message":"failure"}`))
			return
		}
		if ownerRepository != "numpy/numpy" {
			responseWriter.WriteHeader(http.StatusNotFound)
			_, _ = responseWriter.Write([]byte(`{"message":"Not Found"}`))
			return
		}
		_, _ = fmt.Fprintf(responseWriter, `{"full_name":%q,"default_branch":"main"}`, ownerRepository)
	}))
	t.Cleanup(server.Close)

	registryPath := filepath.Join(t.TempDir(), commandRegistryFileNameConstant)
	require.NoError(t, os.WriteFile(registryPath, []byte(commandRegistryDocumentsConstant), 0o644))

	return commandFixture{registryPath: registryPath, requestCount: requestCount, serverURL: server.URL}
}

func (fixture commandFixture) configuration() branchsync.CommandConfiguration {
	configuration := branchsync.DefaultCommandConfiguration()
	configuration.RegistryPath = fixture.registryPath
	configuration.APIBaseURL = fixture.serverURL
	configuration.RetryAttempts = 2
	configuration.RetryInitialBackoff = time.Millisecond
	return configuration
}

func executeSyncCommand(t *testing.T, builder *branchsync.CommandBuilder, arguments []string) (string, error) {
	t.Helper()
	command, buildError := builder.Build()
	require.NoError(t, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(outputBuffer)
	command.SetArgs(arguments)
	command.SilenceUsage = true

	executionError := command.ExecuteContext(context.Background())
	return outputBuffer.String(), executionError
}

func TestSyncCommandPersistsResolvedRegistry(t *testing.T) {
	fixture := newCommandFixture(t, http.StatusOK)
	credentialsLoader := &stubCredentialsLoader{credentials: githubauth.Credentials{Token: "ghp_test", Identity: "builder"}}
	builder := &branchsync.CommandBuilder{
		ConfigurationProvider: fixture.configuration,
		CredentialSourcesProvider: func() githubauth.Sources {
			return githubauth.Sources{TokenFilePath: "/etc/hub", IdentityEnvironmentVariable: "BUILD_USER"}
		},
		CredentialsLoader: credentialsLoader,
	}

	output, executionError := executeSyncCommand(t, builder, []string{})
	require.NoError(t, executionError)

	require.Equal(t, []githubauth.Sources{{TokenFilePath: "/etc/hub", IdentityEnvironmentVariable: "BUILD_USER"}}, credentialsLoader.sources)
	require.Equal(t, int32(2), fixture.requestCount.Load())
	require.Contains(t, output, "The project ghost has no upstream on nobody with ghost")
	require.Contains(t, output, "resolved")
	require.Contains(t, output, "skipped")

	persisted, loadError := registry.NewStore(nil).Load(fixture.registryPath)
	require.NoError(t, loadError)
	require.Len(t, persisted.Projects, 3)

	numpy, _ := persisted.Lookup("numpy")
	require.Equal(t, "main", numpy.PrimaryRemote.DefaultBranch)
	require.Equal(t, "main", numpy.Remotes["fork"].DefaultBranch)
	require.Equal(t, "meson", numpy.Extra["build_tool"])

	ghost, _ := persisted.Lookup("ghost")
	require.Empty(t, ghost.PrimaryRemote.DefaultBranch)
	require.Equal(t, []string{"numpy", "ghost", "libxml2"}, []string{persisted.Projects[0].Name, persisted.Projects[1].Name, persisted.Projects[2].Name})
}

func TestSyncCommandLeavesRegistryUntouched(t *testing.T) {
	testCases := []struct {
		name             string
		statusCode       int
		arguments        []string
		loadError        error
		expectError      bool
		expectedRequests int32
	}{
		{
			name:             "dry_run",
			statusCode:       http.StatusOK,
			arguments:        []string{"--dry-run"},
			expectedRequests: 2,
		},
		{
			name:             "abort_on_transport_failure",
			statusCode:       http.StatusBadGateway,
			arguments:        []string{"--abort-on-transport-failure"},
			expectError:      true,
			expectedRequests: -1,
		},
		{
			name:             "missing_credentials",
			statusCode:       http.StatusOK,
			arguments:        []string{},
			loadError:        githubauth.ConfigError{Setting: "identity environment variable"},
			expectError:      true,
			expectedRequests: 0,
		},
		{
			name:             "positional_arguments",
			statusCode:       http.StatusOK,
			arguments:        []string{"extra"},
			expectError:      true,
			expectedRequests: 0,
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			fixture := newCommandFixture(t, testCase.statusCode)
			builder := &branchsync.CommandBuilder{
				ConfigurationProvider: fixture.configuration,
				CredentialsLoader: &stubCredentialsLoader{
					credentials: githubauth.Credentials{Token: "ghp_test", Identity: "builder"},
					loadError:   testCase.loadError,
				},
			}

			_, executionError := executeSyncCommand(t, builder, testCase.arguments)
			if testCase.expectError {
				require.Error(t, executionError)
			} else {
				require.NoError(t, executionError)
			}
			if testCase.expectedRequests >= 0 {
				require.Equal(t, testCase.expectedRequests, fixture.requestCount.Load())
			}

			contents, readError := os.ReadFile(fixture.registryPath)
			require.NoError(t, readError)
			require.Equal(t, commandRegistryDocumentsConstant, string(contents))
		})
	}
}

func TestSyncCommandRegistryFlagOverridesConfiguration(t *testing.T) {
	fixture := newCommandFixture(t, http.StatusOK)
	alternatePath := filepath.Join(t.TempDir(), "alternate.yaml")
	require.NoError(t, os.WriteFile(alternatePath, []byte(commandRegistryDocumentsConstant), 0o644))

	builder := &branchsync.CommandBuilder{
		ConfigurationProvider: fixture.configuration,
		CredentialsLoader:     &stubCredentialsLoader{credentials: githubauth.Credentials{Token: "ghp_test", Identity: "builder"}},
	}

	_, executionError := executeSyncCommand(t, builder, []string{"--registry", alternatePath, "--concurrency", "1"})
	require.NoError(t, executionError)

	alternate, loadError := registry.NewStore(nil).Load(alternatePath)
	require.NoError(t, loadError)
	numpy, _ := alternate.Lookup("numpy")
	require.Equal(t, "main", numpy.PrimaryRemote.DefaultBranch)

	untouched, readError := os.ReadFile(fixture.registryPath)
	require.NoError(t, readError)
	require.Equal(t, commandRegistryDocumentsConstant, string(untouched))
}
