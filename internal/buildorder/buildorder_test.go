package buildorder_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/temirov/checkouts/internal/buildorder"
	"github.com/temirov/checkouts/internal/registry"
)

const (
	planAContentsConstant = `kind: source_install
proj_name: foo
---
kind: conda_install
proj_name: numpy
---
kind: source_install
proj_name: bar
`
	planBContentsConstant = `kind: source_install
proj_name: foo
`
)

func writePlanFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	directory := t.TempDir()
	for fileName, contents := range files {
		require.NoError(t, os.WriteFile(filepath.Join(directory, fileName), []byte(contents), 0o644))
	}
	return directory
}

func fooBarRegistry() registry.Registry {
	return registry.Registry{Projects: []registry.Project{
		{Name: "bar", PrimaryRemote: registry.Remote{Host: registry.HostGitHub, User: "bar-org", RepoName: "bar", DefaultBranch: "main"}},
		{Name: "foo", PrimaryRemote: registry.Remote{Host: registry.HostGitLab, User: "foo-org", RepoName: "foo"}},
	}}
}

func TestLoadPlansOrdersFilesAndSkipsHidden(t *testing.T) {
	directory := writePlanFiles(t, map[string]string{
		"b.yaml":        planBContentsConstant,
		"a.yaml":        planAContentsConstant,
		".draft.yaml":   "kind: source_install\nproj_name: hidden\n",
		"notes.txt":     "kind: source_install\nproj_name: ignored\n",
		"c.legacy.yaml": "",
	})
	require.NoError(t, os.Mkdir(filepath.Join(directory, "nested.yaml"), 0o755))

	plans, loadError := buildorder.NewPlanLoader(nil).LoadPlans(directory)
	require.NoError(t, loadError)

	planNames := make([]string, 0, len(plans))
	for _, plan := range plans {
		planNames = append(planNames, plan.Name)
	}
	require.Equal(t, []string{"a.yaml", "b.yaml", "c.legacy.yaml"}, planNames)
	require.Equal(t, []buildorder.Step{
		{Kind: buildorder.KindSourceInstall, ProjectName: "foo"},
		{Kind: "conda_install", ProjectName: "numpy"},
		{Kind: buildorder.KindSourceInstall, ProjectName: "bar"},
	}, plans[0].Steps)
	require.Empty(t, plans[2].Steps)
}

func TestUsedRemotesFollowsBuildOrder(t *testing.T) {
	directory := writePlanFiles(t, map[string]string{
		"a.yaml": planAContentsConstant,
		"b.yaml": planBContentsConstant,
	})
	plans, loadError := buildorder.NewPlanLoader(nil).LoadPlans(directory)
	require.NoError(t, loadError)

	trackedRegistry := fooBarRegistry()
	usedRemotes, filterError := buildorder.UsedRemotes(trackedRegistry, plans)
	require.NoError(t, filterError)

	foo, _ := trackedRegistry.Lookup("foo")
	bar, _ := trackedRegistry.Lookup("bar")
	expected := []registry.Remote{foo.PrimaryRemote, bar.PrimaryRemote, foo.PrimaryRemote}
	require.Empty(t, cmp.Diff(expected, usedRemotes))
}

func TestUsedRemotesRejectsUnknownProjects(t *testing.T) {
	plans := []buildorder.Plan{
		{Name: "a.yaml", Steps: []buildorder.Step{
			{Kind: buildorder.KindSourceInstall, ProjectName: "foo"},
			{Kind: "conda_install", ProjectName: "unknown-but-ignored"},
		}},
		{Name: "b.yaml", Steps: []buildorder.Step{
			{Kind: buildorder.KindSourceInstall, ProjectName: "baz"},
		}},
	}

	usedRemotes, filterError := buildorder.UsedRemotes(fooBarRegistry(), plans)
	require.Nil(t, usedRemotes)

	var referenceError buildorder.ReferenceError
	require.True(t, errors.As(filterError, &referenceError))
	require.Equal(t, buildorder.ReferenceError{Plan: "b.yaml", StepIndex: 0, ProjectName: "baz"}, referenceError)
}

func TestDecodePlanValidatesSteps(t *testing.T) {
	testCases := []struct {
		name             string
		contents         string
		expectedSteps    []buildorder.Step
		expectedFragment string
	}{
		{
			name:          "extra_keys_ignored",
			contents:      "kind: source_install\nproj_name: foo\nconfigure_flags: [--fast]\n",
			expectedSteps: []buildorder.Step{{Kind: buildorder.KindSourceInstall, ProjectName: "foo"}},
		},
		{
			name:          "empty_documents_skipped",
			contents:      "---\n---\nkind: source_install\nproj_name: foo\n---\n",
			expectedSteps: []buildorder.Step{{Kind: buildorder.KindSourceInstall, ProjectName: "foo"}},
		},
		{
			name:             "source_install_without_project",
			contents:         "kind: source_install\n",
			expectedFragment: "has no proj_name",
		},
		{
			name:             "malformed_yaml",
			contents:         "kind: [unterminated\n",
			expectedFragment: "failed to decode build plan",
		},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			plan, decodeError := buildorder.DecodePlan("plan.yaml", strings.NewReader(testCase.contents))
			if len(testCase.expectedFragment) > 0 {
				require.ErrorContains(t, decodeError, testCase.expectedFragment)
				return
			}
			require.NoError(t, decodeError)
			require.Equal(t, testCase.expectedSteps, plan.Steps)
		})
	}
}

func TestLoadPlansReportsDirectoryErrors(t *testing.T) {
	_, emptyError := buildorder.NewPlanLoader(nil).LoadPlans(" ")
	require.ErrorIs(t, emptyError, buildorder.ErrDirectoryRequired)

	_, missingError := buildorder.NewPlanLoader(nil).LoadPlans(filepath.Join(t.TempDir(), "absent"))
	require.ErrorIs(t, missingError, fs.ErrNotExist)
}
