//go:build windows

package uds

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/Microsoft/go-winio"
)

const pipePrefix = `\\.\pipe\`

// channelPath maps the channel name into the named pipe namespace. The
// socket directory has no meaning there.
func channelPath(_ string, name string) (string, error) {
	if strings.ContainsAny(name, `\`) {
		return "", fmt.Errorf("pipe name %q contains a backslash", name)
	}
	return pipePrefix + name, nil
}

func listen(path string) (net.Listener, error) {
	return winio.ListenPipe(path, &winio.PipeConfig{InputBufferSize: 64 << 10, OutputBufferSize: 64 << 10})
}

func dial(ctx context.Context, path string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, path)
}
