//go:build !windows

package uds

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// maxSocketPath is sizeof(sockaddr_un.sun_path) minus the terminating NUL.
func maxSocketPath() int {
	if runtime.GOOS == "linux" {
		return 107
	}
	return 103
}

// channelPath derives the socket file path and checks that it can be bound.
func channelPath(dir, name string) (string, error) {
	if name == "." || name == ".." || strings.ContainsRune(name, '/') {
		return "", fmt.Errorf("channel name %q is not a file name", name)
	}
	if dir == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locate executable: %w", err)
		}
		if exe, err = filepath.EvalSymlinks(exe); err != nil {
			return "", fmt.Errorf("resolve executable: %w", err)
		}
		dir = filepath.Dir(exe)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("socket dir: %w", err)
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("socket dir: %w", err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("socket dir %s is not a directory", dir)
	}
	p := filepath.Join(dir, name)
	if len(p) > maxSocketPath() {
		return "", fmt.Errorf("socket path %s is %d bytes, limit is %d", p, len(p), maxSocketPath())
	}
	return p, nil
}

// listen binds path, removing a stale socket left by an earlier run. Closing
// the listener unlinks the file.
func listen(path string) (net.Listener, error) {
	if fi, err := os.Lstat(path); err == nil {
		if fi.Mode()&os.ModeSocket == 0 {
			return nil, fmt.Errorf("%s exists and is not a socket", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, err
	}
	ln.SetUnlinkOnClose(true)
	return ln, nil
}

func dial(ctx context.Context, path string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", path)
}
