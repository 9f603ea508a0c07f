package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ashureev/companion/internal/agent"
)

const (
	// DefaultImage ships ffmpeg as its entrypoint.
	DefaultImage = "jrottenberg/ffmpeg:6.1-alpine"

	workDir   = "/work"
	inputName = "voice.ogg"
	outName   = "voice.wav"

	memoryLimitBytes = 256 * 1024 * 1024 // 256MB
	cpuQuota         = 50000             // 0.5 CPU
	pidsLimit        = 64

	removeTimeout = 10 * time.Second
)

// DockerAPI is the subset of the Docker client the transcoder needs.
type DockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
}

// Docker runs ffmpeg inside a throwaway container with no network, for hosts
// that do not have ffmpeg installed. scratchDir must be visible to the Docker
// daemon at the same path, since it is bind-mounted into the container.
type Docker struct {
	cli        DockerAPI
	image      string
	scratchDir string
}

// NewDocker creates a Docker-backed transcoder using the environment's daemon.
func NewDocker(imageName, scratchDir string) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	slog.Info("Docker transcoder initialized", "image", imageName)
	return NewDockerWithClient(cli, imageName, scratchDir), nil
}

// NewDockerWithClient creates a transcoder around an existing client.
func NewDockerWithClient(cli DockerAPI, imageName, scratchDir string) *Docker {
	if imageName == "" {
		imageName = DefaultImage
	}
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &Docker{cli: cli, image: imageName, scratchDir: scratchDir}
}

// Transcode implements Transcoder.
func (d *Docker) Transcode(ctx context.Context, audio []byte) ([]byte, error) {
	if len(audio) == 0 {
		return nil, agent.Wrap(collaborator, "docker", ErrEmptyInput)
	}

	dir, err := os.MkdirTemp(d.scratchDir, "transcode-")
	if err != nil {
		return nil, agent.Wrap(collaborator, "scratch dir", err)
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, inputName), audio, 0o644); err != nil {
		return nil, agent.Wrap(collaborator, "write input", err)
	}
	// The container may run as a non-root user.
	if err := os.Chmod(dir, 0o777); err != nil {
		return nil, agent.Wrap(collaborator, "scratch dir", err)
	}

	id, err := d.create(ctx, dir)
	if err != nil {
		return nil, agent.Wrap(collaborator, "create container", err)
	}
	defer d.remove(id)

	if err := d.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return nil, agent.Wrap(collaborator, "start container", err)
	}

	waitCh, errCh := d.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case <-ctx.Done():
		return nil, agent.Wrap(collaborator, "wait", ctx.Err())
	case err := <-errCh:
		return nil, agent.Wrap(collaborator, "wait", err)
	case res := <-waitCh:
		if res.Error != nil {
			return nil, agent.Wrap(collaborator, "wait", errors.New(res.Error.Message))
		}
		if res.StatusCode != 0 {
			return nil, agent.Wrap(collaborator, "ffmpeg", fmt.Errorf("exit code %d: %s", res.StatusCode, d.logs(ctx, id)))
		}
	}

	out, err := os.ReadFile(filepath.Join(dir, outName))
	if err != nil {
		return nil, agent.Wrap(collaborator, "read output", err)
	}
	if len(out) == 0 {
		return nil, agent.Wrap(collaborator, "ffmpeg", errors.New("no output produced"))
	}
	return out, nil
}

// create makes the container, pulling the image once if it is missing.
func (d *Docker) create(ctx context.Context, dir string) (string, error) {
	args := append([]string{"-hide_banner", "-loglevel", "error", "-y", "-i", workDir + "/" + inputName}, outputArgs...)
	args = append(args, workDir+"/"+outName)

	config := &container.Config{
		Image:           d.image,
		Entrypoint:      []string{"ffmpeg"},
		Cmd:             args,
		WorkingDir:      workDir,
		NetworkDisabled: true,
	}
	hostConfig := &container.HostConfig{
		NetworkMode: container.NetworkMode("none"),
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: dir,
			Target: workDir,
		}},
		Resources: container.Resources{
			Memory:    memoryLimitBytes,
			CPUQuota:  cpuQuota,
			PidsLimit: ptr(int64(pidsLimit)),
		},
	}
	name := "companion-transcode-" + uuid.NewString()

	resp, err := d.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err == nil {
		return resp.ID, nil
	}
	if !errdefs.IsNotFound(err) {
		return "", err
	}

	slog.Info("Transcoder image missing, pulling", "image", d.image)
	rc, pullErr := d.cli.ImagePull(ctx, d.image, image.PullOptions{})
	if pullErr != nil {
		return "", fmt.Errorf("pull image %s: %w", d.image, pullErr)
	}
	// The pull only completes once the progress stream is drained.
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()

	resp, err = d.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (d *Docker) logs(ctx context.Context, id string) string {
	rc, err := d.cli.ContainerLogs(ctx, id, container.LogsOptions{ShowStderr: true, Tail: "20"})
	if err != nil {
		return ""
	}
	defer rc.Close()
	b, _ := io.ReadAll(io.LimitReader(rc, 4096))
	return strings.TrimSpace(string(b))
}

// remove force-deletes the container with its own context so cleanup still
// happens after the caller's context is canceled.
func (d *Docker) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()
	if err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		if errdefs.IsNotFound(err) || strings.Contains(err.Error(), "is already in progress") {
			return
		}
		slog.Warn("Failed to remove transcoder container", "container_id", id, "error", err)
	}
}

func ptr[T any](v T) *T {
	return &v
}

var (
	_ Transcoder = (*Docker)(nil)
	_ DockerAPI  = (*client.Client)(nil)
)
