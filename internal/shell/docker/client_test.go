package docker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

// Test container name prefix to identify test containers
const testPrefix = "launchpad-test-"

const testImage = "launchpad-test-image"

func skipIfNoDocker(t *testing.T) Client {
	t.Helper()
	ctx := context.Background()
	cli, err := NewDockerClient(ctx, "")
	if err != nil {
		t.Skip("Docker not available:", err)
	}
	if err := cli.Ping(ctx); err != nil {
		cli.Close()
		t.Skip("Docker not reachable:", err)
	}
	return cli
}

// buildTestImage builds a tiny image that sleeps forever. Tests that need a
// container are skipped when the base image cannot be fetched.
func buildTestImage(t *testing.T, cli Client) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile.test"),
		[]byte("FROM alpine:latest\nCMD [\"sleep\", \"3600\"]\n"), 0o644))

	var lines []string
	err := cli.BuildImage(context.Background(), BuildSpec{
		ContextDir: dir,
		Dockerfile: "Dockerfile.test",
		Tag:        testImage,
	}, func(line string) { lines = append(lines, line) })
	if err != nil {
		t.Skip("cannot build test image:", err)
	}
	assert.NotEmpty(t, lines)
}

func cleanupContainer(t *testing.T, cli Client, containerID string) {
	t.Helper()
	ctx := context.Background()
	timeout := 5 * time.Second
	cli.StopContainer(ctx, containerID, &timeout)
	cli.RemoveContainer(ctx, containerID, RemoveOptions{Force: true, RemoveVolumes: true})
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestPing_Success(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	assert.NoError(t, cli.Ping(context.Background()))
}

// =============================================================================
// Container Lifecycle Tests
// =============================================================================

func TestContainerLifecycle(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()
	buildTestImage(t, cli)
	ctx := context.Background()

	containerID, err := cli.CreateContainer(ctx, ContainerSpec{
		Name:  testPrefix + "lifecycle",
		Image: testImage,
		Env:   map[string]string{"PORT": "3000"},
		Labels: map[string]string{
			LabelManaged:    "true",
			LabelDeployment: "test-deployment",
		},
		Ports:         []PortBinding{{ContainerPort: 3000, HostPort: 0, Protocol: "tcp"}},
		RestartPolicy: RestartPolicy{Name: "unless-stopped"},
	})
	require.NoError(t, err)
	defer cleanupContainer(t, cli, containerID)

	require.NoError(t, cli.StartContainer(ctx, containerID))

	containers, err := cli.ListContainers(ctx, ListOptions{
		All:     true,
		Filters: map[string]string{"label": LabelDeployment + "=test-deployment"},
	})
	require.NoError(t, err)
	require.Len(t, containers, 1)
	assert.Equal(t, testPrefix+"lifecycle", containers[0].Name)
	assert.Equal(t, ContainerStatusRunning, containers[0].Status)
	assert.Equal(t, "true", containers[0].Labels[LabelManaged])

	timeout := 2 * time.Second
	require.NoError(t, cli.StopContainer(ctx, containerID, &timeout))
	require.NoError(t, cli.RemoveContainer(ctx, containerID, RemoveOptions{Force: true}))

	err = cli.RemoveContainer(ctx, containerID, RemoveOptions{Force: true})
	assert.ErrorIs(t, err, ErrContainerNotFound)
}

func TestCreateContainer_DuplicateName(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()
	buildTestImage(t, cli)
	ctx := context.Background()

	spec := ContainerSpec{Name: testPrefix + "duplicate", Image: testImage}

	containerID, err := cli.CreateContainer(ctx, spec)
	require.NoError(t, err)
	defer cleanupContainer(t, cli, containerID)

	_, err = cli.CreateContainer(ctx, spec)
	assert.ErrorIs(t, err, ErrContainerAlreadyExists)
}

func TestStopContainer_NotFound(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	err := cli.StopContainer(context.Background(), testPrefix+"does-not-exist", nil)
	assert.ErrorIs(t, err, ErrContainerNotFound)
}

func TestBuildImage_FailingStep(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()
	buildTestImage(t, cli)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile.test"),
		[]byte("FROM "+testImage+"\nRUN exit 7\n"), 0o644))

	err := cli.BuildImage(context.Background(), BuildSpec{
		ContextDir: dir,
		Dockerfile: "Dockerfile.test",
		Tag:        testImage + "-broken",
	}, nil)

	assert.ErrorIs(t, err, ErrImageBuildFailed)
}
