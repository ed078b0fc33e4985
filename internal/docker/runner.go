package docker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
)

// RunOpts describes one backend container invocation. WorkDir is bind
// mounted at /workspace.
type RunOpts struct {
	Image       string
	Command     []string
	WorkDir     string
	Env         map[string]string
	Timeout     time.Duration
	CPULimit    float64
	MemoryLimit int64
	Network     bool
	Logger      *slog.Logger
}

type RunResult struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
	Logs     string
}

// RunContainer runs opts.Image to completion or until opts.Timeout,
// returning exit code 124 on timeout. The container is always removed.
func RunContainer(ctx context.Context, opts *RunOpts) (*RunResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	envSlice := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		envSlice = append(envSlice, k+"="+v)
	}

	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: opts.WorkDir,
			Target: "/workspace",
		}},
		Init: &initTrue,
	}
	if !opts.Network {
		hostCfg.NetworkMode = "none"
	}
	if opts.CPULimit > 0 {
		hostCfg.NanoCPUs = int64(opts.CPULimit * 1e9)
	}
	if opts.MemoryLimit > 0 {
		hostCfg.Memory = opts.MemoryLimit
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config: &container.Config{
			Image:      opts.Image,
			Cmd:        opts.Command,
			Env:        envSlice,
			WorkingDir: "/workspace",
			Labels:     map[string]string{"rbench": "true"},
		},
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	waitResult := cli.ContainerWait(timeoutCtx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err != nil {
				cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
				logs := containerLogs(cli, containerID, "")
				logger.Warn("backend container timed out",
					slog.String("image", opts.Image),
					slog.Duration("timeout", opts.Timeout),
					slog.String("logs", logs))
				return &RunResult{
					ExitCode: 124,
					TimedOut: true,
					Duration: time.Since(start),
					Logs:     logs,
				}, nil
			}
			// nil error means no error on this channel; wait for result
		case status := <-waitResult.Result:
			logs := containerLogs(cli, containerID, "100")
			logger.Debug("backend container exited",
				slog.String("image", opts.Image),
				slog.Int64("exit_code", status.StatusCode),
				slog.Duration("elapsed", time.Since(start)))
			return &RunResult{
				ExitCode: int(status.StatusCode),
				Duration: time.Since(start),
				Logs:     logs,
			}, nil
		}
	}
}

func containerLogs(cli *client.Client, id, tail string) string {
	r, err := cli.ContainerLogs(context.Background(), id, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true, Tail: tail})
	if err != nil || r == nil {
		return ""
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	return string(data)
}
