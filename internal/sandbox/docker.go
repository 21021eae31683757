package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
)

// Config configures the Docker runner.
type Config struct {
	// Host is the docker daemon address; empty uses DOCKER_HOST or the
	// platform default.
	Host string `yaml:"host"`

	Timeout    time.Duration `yaml:"timeout"`
	MemoryMB   int64         `yaml:"memory_mb"`
	PidsLimit  int64         `yaml:"pids_limit"`
	MaxOutput  int           `yaml:"max_output"`
	PullPolicy string        `yaml:"pull_policy"` // always, if-not-present or never

	// Toolchains override the defaults per language.
	Toolchains map[string]Toolchain `yaml:"toolchains"`
}

// DefaultConfig returns the standard sandbox limits.
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		MemoryMB:   256,
		PidsLimit:  64,
		MaxOutput:  64 << 10,
		PullPolicy: "if-not-present",
	}
}

// dockerAPI is the part of the docker client the runner uses.
type dockerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImageInspectWithRaw(ctx context.Context, image string) (types.ImageInspect, []byte, error)
	ImagePull(ctx context.Context, ref string, options types.ImagePullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// Docker runs candidate code in throwaway containers: no network, a
// read-only root with a small writable /tmp, and memory, CPU and process
// limits. It implements scoring.CodeRunner.
type Docker struct {
	api        dockerAPI
	cfg        Config
	toolchains map[string]Toolchain
	logger     *zap.Logger
}

// NewDocker connects to the docker daemon.
func NewDocker(cfg Config, logger *zap.Logger) (*Docker, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return newDocker(cli, cfg, logger), nil
}

func newDocker(api dockerAPI, cfg Config, logger *zap.Logger) *Docker {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MemoryMB <= 0 {
		cfg.MemoryMB = def.MemoryMB
	}
	if cfg.PidsLimit <= 0 {
		cfg.PidsLimit = def.PidsLimit
	}
	if cfg.MaxOutput <= 0 {
		cfg.MaxOutput = def.MaxOutput
	}
	if cfg.PullPolicy == "" {
		cfg.PullPolicy = def.PullPolicy
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	toolchains := DefaultToolchains()
	for lang, tc := range cfg.Toolchains {
		base := toolchains[lang]
		if tc.Image != "" {
			base.Image = tc.Image
		}
		if tc.File != "" {
			base.File = tc.File
		}
		if tc.Run != "" {
			base.Run = tc.Run
		}
		if tc.Env != nil {
			base.Env = tc.Env
		}
		toolchains[lang] = base
	}

	return &Docker{api: api, cfg: cfg, toolchains: toolchains, logger: logger}
}

// Ping checks the daemon is reachable.
func (d *Docker) Ping(ctx context.Context) error {
	if _, err := d.api.Ping(ctx); err != nil {
		return fmt.Errorf("docker ping failed: %w", err)
	}
	return nil
}

// Close releases the docker client.
func (d *Docker) Close() error {
	return d.api.Close()
}

// Execute runs code with input on stdin and returns what it printed.
// Compile errors, crashes and time-outs are the candidate's and come back
// as output that cannot match; only sandbox failures return an error.
func (d *Docker) Execute(ctx context.Context, code, language, input string) (string, error) {
	lang, tc, err := resolve(d.toolchains, language)
	if err != nil {
		return "", err
	}
	if err := d.ensureImage(ctx, tc.Image); err != nil {
		return "", fmt.Errorf("failed to pull image %s: %w", tc.Image, err)
	}

	id, err := d.create(ctx, lang, tc, code, input)
	if err != nil {
		return "", err
	}
	defer d.remove(id)

	start := time.Now()
	if err := d.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	exitCode, timedOut, err := d.wait(ctx, id)
	if err != nil {
		return "", err
	}

	stdout, stderr, err := d.logs(ctx, id)
	if err != nil {
		return "", err
	}

	d.logger.Debug("sandbox run finished",
		zap.String("container", id),
		zap.String("language", lang),
		zap.Int64("exit_code", exitCode),
		zap.Bool("timed_out", timedOut),
		zap.Duration("elapsed", time.Since(start)))

	return candidateOutput(stdout, stderr, int(exitCode), timedOut), nil
}

func (d *Docker) create(ctx context.Context, lang string, tc Toolchain, code, input string) (string, error) {
	env := append([]string{
		"GATEKEEP_SOURCE=" + code,
		"GATEKEEP_STDIN=" + input,
		"HOME=/tmp",
	}, tc.Env...)

	pids := d.cfg.PidsLimit
	containerConfig := &container.Config{
		Image:           tc.Image,
		Cmd:             []string{"sh", "-c", tc.script()},
		Env:             env,
		WorkingDir:      "/tmp",
		NetworkDisabled: true,
		Labels: map[string]string{
			"gatekeep.managed":  "true",
			"gatekeep.language": lang,
		},
	}
	hostConfig := &container.HostConfig{
		NetworkMode:    "none",
		ReadonlyRootfs: true,
		Tmpfs:          map[string]string{"/tmp": "rw,exec,size=64m"},
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges"},
		Resources: container.Resources{
			Memory:    d.cfg.MemoryMB << 20,
			NanoCPUs:  1_000_000_000,
			PidsLimit: &pids,
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
	}

	name := "gatekeep-run-" + uuid.New().String()[:12]
	resp, err := d.api.ContainerCreate(ctx, containerConfig, hostConfig, &network.NetworkingConfig{}, nil, name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}
	return resp.ID, nil
}

// wait blocks until the container exits or the run time limit passes, in
// which case the container is killed.
func (d *Docker) wait(ctx context.Context, id string) (exitCode int64, timedOut bool, err error) {
	runCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	statusCh, errCh := d.api.ContainerWait(runCtx, id, container.WaitConditionNotRunning)
	select {
	case st := <-statusCh:
		if st.Error != nil {
			return 0, false, fmt.Errorf("container wait failed: %s", st.Error.Message)
		}
		return st.StatusCode, false, nil
	case err := <-errCh:
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			if kerr := d.api.ContainerKill(context.Background(), id, "KILL"); kerr != nil {
				d.logger.Warn("failed to kill timed out container", zap.String("container", id), zap.Error(kerr))
			}
			return 0, true, nil
		}
		return 0, false, fmt.Errorf("container wait failed: %w", err)
	}
}

func (d *Docker) logs(ctx context.Context, id string) (string, string, error) {
	rc, err := d.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", fmt.Errorf("failed to get logs: %w", err)
	}
	defer rc.Close()

	stdout := &limitedBuffer{max: d.cfg.MaxOutput}
	stderr := &limitedBuffer{max: d.cfg.MaxOutput}
	if _, err := stdcopy.StdCopy(stdout, stderr, rc); err != nil {
		return "", "", fmt.Errorf("failed to read logs: %w", err)
	}
	return stdout.String(), stderr.String(), nil
}

// ensureImage pulls an image according to the pull policy.
func (d *Docker) ensureImage(ctx context.Context, image string) error {
	if d.cfg.PullPolicy == "never" {
		return nil
	}
	if _, _, err := d.api.ImageInspectWithRaw(ctx, image); err == nil && d.cfg.PullPolicy == "if-not-present" {
		return nil
	}

	d.logger.Info("pulling image", zap.String("image", image))
	out, err := d.api.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return err
	}
	defer out.Close()

	// Consume output
	_, err = io.Copy(io.Discard, out)
	return err
}

func (d *Docker) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		d.logger.Warn("failed to remove container", zap.String("container", id), zap.Error(err))
	}
}
