package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"upsock/pkg/config"
	"upsock/pkg/protocol"
	"upsock/pkg/sample"
	"upsock/pkg/transport/uds"
)

// run executes the CLI with a quiet config and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	cfgPath := filepath.Join(t.TempDir(), "upsock.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log:\n  level: error\n  outputs: [stderr]\n"), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestFrameCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "frame", "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "frame_text.bin")

	b, err := os.ReadFile(filepath.Join(dir, "frame_notification_json.bin"))
	require.NoError(t, err)
	m, n, err := protocol.DecodeFrame(b, 0)
	require.NoError(t, err)
	assert.Equal(t, len(b), n)
	assert.Equal(t, "//test.app/18002/1/8002", m.Topic().String())
	require.NotNil(t, m.Attributes.Sink)
	assert.EqualValues(t, 1000, m.Attributes.TTL)
	assert.Equal(t, protocol.MessageTypeNotification, m.Attributes.Type)
}

func TestConfigCommand(t *testing.T) {
	out, err := run(t, "--authority", "svc-a", "--channel", "hello", "config")
	require.NoError(t, err)
	var cfg config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, "svc-a", cfg.Identity.Authority)
	assert.Equal(t, "hello", cfg.Transport.Channel)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestUnknownFormat(t *testing.T) {
	_, err := run(t, "pub", "--format", "xml", "--count", "1")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "xml"))
}

func TestPubDeliversToSubscriber(t *testing.T) {
	dir := t.TempDir()
	recv, err := uds.New(protocol.UUri{Authority: "svc-b"},
		uds.WithChannel("demo"),
		uds.WithSocketDir(dir),
		uds.WithBackoff(10*time.Millisecond),
		uds.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer recv.Close()

	got := make(chan *protocol.Message, 8)
	for _, res := range []uint32{0x8001, 0x8002, 0x8003} {
		topic := protocol.UUri{Authority: "test.app", UEID: 0x18002, UEVersionMajor: 1, ResourceID: res}
		require.NoError(t, recv.RegisterListener(topic, func(m *protocol.Message) { got <- m }))
	}

	_, err = run(t, "--socket-dir", dir, "--channel", "demo", "pub", "--count", "1", "--format", "raw")
	require.NoError(t, err)

	var counter *protocol.Message
	for i := 0; i < 3; i++ {
		select {
		case m := <-got:
			if m.Topic().ResourceID == 0x8003 {
				counter = m
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("sample %d not delivered", i)
		}
	}
	require.NotNil(t, counter)
	assert.Equal(t, []byte{1}, counter.Payload)
}

func TestSubCountsEveryReading(t *testing.T) {
	dir := t.TempDir()
	pub, err := uds.New(protocol.UUri{Authority: "svc-a"},
		uds.WithChannel("burst"),
		uds.WithSocketDir(dir),
		uds.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	defer pub.Close()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := run(t, "--socket-dir", dir, "--channel", "burst", "sub", "--count", "120", "--duration", "10s")
		done <- result{out, err}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	topics := sample.TopicsFor(config.Default().Identity)
	for i := 0; i < 40; i++ {
		for _, topic := range topics.All() {
			m := protocol.NewPublish(topic, protocol.FormatText, []byte(strconv.Itoa(i)))
			require.NoError(t, pub.Send(ctx, m))
		}
	}

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, 120, strings.Count(r.out, "\n"))
	assert.Contains(t, r.out, "counter")
}

func TestRPCClientAgainstServer(t *testing.T) {
	dir := t.TempDir()
	open := func(channel string) *uds.Transport {
		tr, err := uds.New(protocol.UUri{Authority: "test_rpc.app", UEID: 1, UEVersionMajor: 1},
			uds.WithChannel(channel),
			uds.WithSocketDir(dir),
			uds.WithBackoff(10*time.Millisecond),
			uds.WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)
		t.Cleanup(func() { _ = tr.Close() })
		return tr
	}
	req, rsp := open("rpc.milliseconds.req"), open("rpc.milliseconds.rsp")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := sample.NewRPCServer(req, rsp, sample.MethodFor(config.Default().Identity), zaptest.NewLogger(t))
	require.NoError(t, srv.Start(ctx))

	before := uint64(time.Now().UnixMilli())
	out, err := run(t, "--socket-dir", dir, "rpc-client", "--count", "2", "--interval", "10ms")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	for _, l := range lines {
		var ms uint64
		_, err := fmt.Sscanf(l, "received %d", &ms)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, ms, before)
	}
	assert.EqualValues(t, 2, srv.Handled())
}

func TestRPCChannelsMustDiffer(t *testing.T) {
	_, err := run(t, "rpc-client", "--request-channel", "x", "--response-channel", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}
