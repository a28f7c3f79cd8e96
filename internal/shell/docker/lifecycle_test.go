package docker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artpar/launchpad/internal/core/deployment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Mock Client
// =============================================================================

type mockClient struct {
	mu sync.Mutex

	created   []ContainerSpec
	started   []string
	stopped   []string
	removed   []string
	builds    []BuildSpec
	listed    []ListOptions
	buildLogs []string

	containers []ContainerInfo

	buildErr  error
	createErr error
	startErr  error
	stopErrs  map[string]error
	listErr   error
}

func (m *mockClient) CreateContainer(_ context.Context, spec ContainerSpec) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	m.created = append(m.created, spec)
	return "id-" + spec.Name, nil
}

func (m *mockClient) StartContainer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.started = append(m.started, id)
	return nil
}

func (m *mockClient) StopContainer(_ context.Context, id string, _ *time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.stopErrs[id]; err != nil {
		return err
	}
	m.stopped = append(m.stopped, id)
	return nil
}

func (m *mockClient) RemoveContainer(_ context.Context, id string, _ RemoveOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, id)
	return nil
}

func (m *mockClient) ListContainers(_ context.Context, opts ListOptions) ([]ContainerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listed = append(m.listed, opts)
	if m.listErr != nil {
		return nil, m.listErr
	}
	filter := opts.Filters["label"]
	key, value, _ := strings.Cut(filter, "=")
	var out []ContainerInfo
	for _, c := range m.containers {
		if c.Labels[key] == value {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockClient) BuildImage(_ context.Context, spec BuildSpec, out BuildOutput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.builds = append(m.builds, spec)
	for _, line := range m.buildLogs {
		out(line)
	}
	return m.buildErr
}

func (m *mockClient) Ping(context.Context) error { return nil }
func (m *mockClient) Close() error               { return nil }

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// Recipe and Image Tests
// =============================================================================

func TestWriteRecipe_Static(t *testing.T) {
	dir := t.TempDir()
	l := NewLifecycle(&mockClient{}, LifecycleConfig{}, setupTestLogger())

	err := l.WriteRecipe(dir, deployment.Recipe{Dockerfile: "FROM nginx", StaticRule: "server {}"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, deployment.RecipeFileName))
	require.NoError(t, err)
	assert.Equal(t, "FROM nginx", string(data))
	data, err = os.ReadFile(filepath.Join(dir, deployment.StaticRuleFileName))
	require.NoError(t, err)
	assert.Equal(t, "server {}", string(data))
}

func TestWriteRecipe_NodeHasNoRule(t *testing.T) {
	dir := t.TempDir()
	l := NewLifecycle(&mockClient{}, LifecycleConfig{}, setupTestLogger())

	require.NoError(t, l.WriteRecipe(dir, deployment.Recipe{Dockerfile: "FROM node"}))

	_, err := os.Stat(filepath.Join(dir, deployment.StaticRuleFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteRecipe_MissingDir(t *testing.T) {
	l := NewLifecycle(&mockClient{}, LifecycleConfig{}, setupTestLogger())

	err := l.WriteRecipe(filepath.Join(t.TempDir(), "missing"), deployment.Recipe{Dockerfile: "FROM node"})

	assert.True(t, deployment.IsKind(err, deployment.KindContainer))
}

func TestBuildImage_TagsPerProject(t *testing.T) {
	mock := &mockClient{buildLogs: []string{"Step 1/2", "Successfully built"}}
	l := NewLifecycle(mock, LifecycleConfig{}, setupTestLogger())
	var lines []string

	tag, err := l.BuildImage(context.Background(), "/work/project-7", 7, func(line string) { lines = append(lines, line) })

	require.NoError(t, err)
	assert.Equal(t, "project-7", tag)
	require.Len(t, mock.builds, 1)
	assert.Equal(t, "/work/project-7", mock.builds[0].ContextDir)
	assert.Equal(t, deployment.RecipeFileName, mock.builds[0].Dockerfile)
	assert.Equal(t, "7", mock.builds[0].Labels[LabelProject])
	assert.Equal(t, []string{"Step 1/2", "Successfully built"}, lines)
}

func TestBuildImage_FailureIsContainerError(t *testing.T) {
	mock := &mockClient{buildErr: NewDockerError("BuildImage", "image", "project-7", "boom", ErrImageBuildFailed)}
	l := NewLifecycle(mock, LifecycleConfig{}, setupTestLogger())

	_, err := l.BuildImage(context.Background(), t.TempDir(), 7, nil)

	assert.Equal(t, deployment.KindContainer, deployment.KindOf(err))
	assert.ErrorIs(t, err, ErrImageBuildFailed)
}

// =============================================================================
// Instance Tests
// =============================================================================

func TestRun_CreatesAndStarts(t *testing.T) {
	mock := &mockClient{}
	l := NewLifecycle(mock, LifecycleConfig{}, setupTestLogger())
	plan := deployment.BuildInstancePlan(deployment.BuildInstancePlanParams{
		ProjectID:    7,
		DeploymentID: "dep-1",
		Recipe:       deployment.Recipe{ContainerPort: 80, StaticRule: "server {}"},
		HostPort:     30007,
		StartedAt:    time.Unix(1700000000, 0),
	})

	inst, err := l.Run(context.Background(), plan)

	require.NoError(t, err)
	assert.Equal(t, Instance{ID: "id-project-7-1700000000", Name: "project-7-1700000000", HostPort: 30007}, inst)
	require.Len(t, mock.created, 1)
	spec := mock.created[0]
	assert.Equal(t, "project-7", spec.Image)
	assert.Equal(t, "unless-stopped", spec.RestartPolicy.Name)
	assert.Equal(t, []PortBinding{{ContainerPort: 80, HostPort: 30007, Protocol: "tcp"}}, spec.Ports)
	assert.Equal(t, "dep-1", spec.Labels[LabelDeployment])
	assert.Equal(t, []string{"id-project-7-1700000000"}, mock.started)
}

func TestRun_StartFailureRemovesContainer(t *testing.T) {
	mock := &mockClient{startErr: NewDockerError("StartContainer", "container", "x", "port is already allocated", ErrPortAlreadyAllocated)}
	l := NewLifecycle(mock, LifecycleConfig{}, setupTestLogger())
	plan := deployment.InstancePlan{Name: "project-7-1", Image: "project-7", Port: deployment.PortPlan{ContainerPort: 80, HostPort: 30007}}

	_, err := l.Run(context.Background(), plan)

	assert.True(t, deployment.IsKind(err, deployment.KindContainer))
	assert.ErrorIs(t, err, ErrPortAlreadyAllocated)
	assert.Equal(t, []string{"id-project-7-1"}, mock.removed)
}

func TestRun_CreateFailure(t *testing.T) {
	mock := &mockClient{createErr: errors.New("no such image")}
	l := NewLifecycle(mock, LifecycleConfig{}, setupTestLogger())

	_, err := l.Run(context.Background(), deployment.InstancePlan{Name: "project-7-1"})

	assert.True(t, deployment.IsKind(err, deployment.KindContainer))
	assert.Empty(t, mock.started)
}

func TestRetireInstances_NamedAndLabelled(t *testing.T) {
	mock := &mockClient{containers: []ContainerInfo{
		{ID: "c1", Name: "project-7-100", Labels: map[string]string{LabelProject: "7"}},
		{ID: "c2", Name: "project-7-50", Labels: map[string]string{LabelProject: "7"}},
		{ID: "c3", Name: "project-8-100", Labels: map[string]string{LabelProject: "8"}},
	}}
	l := NewLifecycle(mock, LifecycleConfig{}, setupTestLogger())

	errs := l.RetireInstances(context.Background(), 7, []string{"project-7-100", ""})

	assert.Empty(t, errs)
	assert.Equal(t, []string{"project-7-100", "project-7-50"}, mock.stopped)
	assert.Equal(t, []string{"project-7-100", "project-7-50"}, mock.removed)
}

func TestRetireInstances_FailuresAreNonFatal(t *testing.T) {
	mock := &mockClient{stopErrs: map[string]error{
		"project-7-1": errors.New("daemon busy"),
	}}
	l := NewLifecycle(mock, LifecycleConfig{}, setupTestLogger())

	errs := l.RetireInstances(context.Background(), 7, []string{"project-7-1", "project-7-2"})

	require.Len(t, errs, 1)
	assert.Equal(t, "project-7-1", errs[0].Target)
	assert.Contains(t, errs[0].Error(), "daemon busy")
	assert.Equal(t, []string{"project-7-2"}, mock.stopped)
}

func TestRetireInstances_ListFailureStillRetiresNamed(t *testing.T) {
	mock := &mockClient{listErr: errors.New("list failed")}
	l := NewLifecycle(mock, LifecycleConfig{}, setupTestLogger())

	errs := l.RetireInstances(context.Background(), 7, []string{"project-7-1"})

	require.Len(t, errs, 1)
	assert.Equal(t, []string{"project-7-1"}, mock.stopped)
}

func TestStopAndRemove_AlreadyGone(t *testing.T) {
	mock := &mockClient{stopErrs: map[string]error{
		"gone":    NewDockerError("StopContainer", "container", "gone", "container not found", ErrContainerNotFound),
		"stopped": NewDockerError("StopContainer", "container", "stopped", "container is not running", ErrContainerNotRunning),
	}}
	l := NewLifecycle(mock, LifecycleConfig{}, setupTestLogger())

	assert.NoError(t, l.StopAndRemove(context.Background(), "gone"))
	assert.NoError(t, l.StopAndRemove(context.Background(), "stopped"))
	assert.Equal(t, []string{"gone", "stopped"}, mock.removed)
}

func TestRemoveByDeployment(t *testing.T) {
	mock := &mockClient{containers: []ContainerInfo{
		{ID: "c1", Name: "project-7-1", Labels: map[string]string{LabelDeployment: "dep-1"}},
		{ID: "c2", Name: "project-7-2", Labels: map[string]string{LabelDeployment: "dep-2"}},
	}}
	l := NewLifecycle(mock, LifecycleConfig{}, setupTestLogger())

	errs := l.RemoveByDeployment(context.Background(), "dep-1")

	assert.Empty(t, errs)
	assert.Equal(t, []string{"c1"}, mock.removed)
}
