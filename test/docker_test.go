//go:build integration

package test

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

type containerPort struct {
	name string
	id   string
	port int
}

type dockerContext struct {
	cli *client.Client
}

func getDockerContext() (*dockerContext, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	return &dockerContext{cli}, nil
}

func (d *dockerContext) startContainer(image, name, portMap string, binds []string, cmd []string, env []string) (cid string, port int, err error) {
	ctx := context.Background()

	containerConfig := &container.Config{
		Image: image,
		Cmd:   cmd,
		Labels: map[string]string{
			"binlogtest": "",
		},
		Env: env,
	}
	hostConfig := &container.HostConfig{
		Binds: binds,
	}
	var containerPort nat.Port
	if portMap != "" {
		containerPort = nat.Port(portMap)
		containerConfig.ExposedPorts = nat.PortSet{
			containerPort: struct{}{},
		}
		hostConfig.PortBindings = nat.PortMap{
			containerPort: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: ""}},
		}
	}
	resp, err := d.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if err != nil {
		return
	}
	cid = resp.ID
	err = d.cli.ContainerStart(ctx, cid, container.StartOptions{})
	if err != nil {
		return
	}

	if portMap == "" {
		return
	}
	var (
		maxRetries = 3
		delay      = 500 * time.Millisecond
		bindings   nat.PortMap
	)
	for i := 0; i < maxRetries; i++ {
		inspect, ierr := d.cli.ContainerInspect(ctx, cid)
		if ierr != nil {
			err = ierr
			return
		}
		bindings = inspect.NetworkSettings.Ports
		if inspect.State.Running && len(bindings[containerPort]) > 0 {
			break
		}
		time.Sleep(delay)
	}

	if len(bindings[containerPort]) == 0 {
		err = fmt.Errorf("no port mapping found for container %s %s port %s", cid, name, containerPort)
		return
	}
	port, err = strconv.Atoi(bindings[containerPort][0].HostPort)
	return
}

// copyFromContainer copies a single regular file out of the container into dir.
func (d *dockerContext) copyFromContainer(cid, src, dir string) error {
	rc, _, err := d.cli.CopyFromContainer(context.Background(), cid, src)
	if err != nil {
		return fmt.Errorf("failed to copy %s from container %s: %w", src, cid, err)
	}
	defer rc.Close()
	tr := tar.NewReader(rc)
	hdr, err := tr.Next()
	if err != nil {
		return fmt.Errorf("failed to read archive of %s: %w", src, err)
	}
	f, err := os.Create(filepath.Join(dir, filepath.Base(hdr.Name)))
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, tr); err != nil {
		return fmt.Errorf("failed to write %s: %w", hdr.Name, err)
	}
	return nil
}

func (d *dockerContext) rmContainers(cids ...string) error {
	ctx := context.Background()
	for _, cid := range cids {
		if err := d.cli.ContainerKill(ctx, cid, "SIGKILL"); err != nil {
			return fmt.Errorf("failed to kill container %s: %w", cid, err)
		}

		rmOpts := container.RemoveOptions{
			RemoveVolumes: true,
			Force:         true,
		}
		if err := d.cli.ContainerRemove(ctx, cid, rmOpts); err != nil {
			return fmt.Errorf("failed to remove container %s: %w", cid, err)
		}
	}
	return nil
}
