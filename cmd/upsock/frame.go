package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"upsock/pkg/protocol"
	"upsock/pkg/sample"
)

func newFrameCmd(a *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "frame",
		Short: "Write binary wire frames for interop checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			topics := sample.TopicsFor(a.cfg.Identity)
			out := cmd.OutOrStdout()

			// 1) text publish
			text := protocol.NewPublish(topics.Time, protocol.FormatText, []byte("hello"))
			// 2) CBOR publish
			cborBody, err := sample.EncodeValue(a.reg, protocol.FormatCBOR, 42, 8)
			if err != nil {
				return err
			}
			cbor := protocol.NewPublish(topics.Counter, protocol.FormatCBOR, cborBody)
			// 3) JSON notification with sink and ttl
			jsonBody, err := protocol.EncodePayload(a.reg, protocol.FormatJSON, map[string]any{"ok": true, "n": 42})
			if err != nil {
				return err
			}
			sink := protocol.UUri{Authority: "svc-b", UEID: 0x20, UEVersionMajor: 1}
			note := protocol.NewNotification(topics.Random, sink, protocol.FormatJSON, jsonBody)
			note.Attributes.TTL = 1000
			// 4) empty payload
			empty := protocol.NewPublish(topics.Time, protocol.FormatRaw, nil)

			for _, f := range []struct {
				name string
				msg  *protocol.Message
			}{
				{"frame_text.bin", text},
				{"frame_cbor.bin", cbor},
				{"frame_notification_json.bin", note},
				{"frame_empty.bin", empty},
			} {
				b, err := protocol.EncodeFrame(f.msg)
				if err != nil {
					return err
				}
				if err := writeOut(out, outDir, f.name, b); err != nil {
					return err
				}
			}
			fmt.Fprintln(out, "Generated frames in", outDir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "testdata/frame", "output directory for binary frames")
	return cmd
}

func writeOut(w io.Writer, dir, name string, b []byte) error {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(w, "%-28s %5d bytes  head: %s\n", name, len(b), shortHex(b, 32))
	return nil
}

func shortHex(b []byte, n int) string {
	if len(b) == 0 {
		return ""
	}
	n = min(n, len(b))
	enc := hex.EncodeToString(b[:n])
	var out []string
	for i := 0; i < len(enc); i += 4 {
		out = append(out, enc[i:min(i+4, len(enc))])
	}
	s := strings.Join(out, " ")
	if len(b) > n {
		s += " ..."
	}
	return s
}
