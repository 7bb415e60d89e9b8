// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/bureau-foundation/routerpeer/dataset"
	"github.com/bureau-foundation/routerpeer/lib/config"
	"github.com/bureau-foundation/routerpeer/lib/identity"
	"github.com/bureau-foundation/routerpeer/lib/testutil"
	"github.com/bureau-foundation/routerpeer/protocol"
	"github.com/bureau-foundation/routerpeer/relay"
	"github.com/bureau-foundation/routerpeer/transport"
)

// testPaths returns a state file and keyfile inside a fresh directory.
func testPaths(t *testing.T) (statePath, keyfilePath string) {
	t.Helper()
	directory := t.TempDir()
	return filepath.Join(directory, "state", "client_state.yaml"), filepath.Join(directory, "keyfile.jsonc")
}

func TestPrintPage(t *testing.T) {
	t.Parallel()
	statePath, keyfilePath := testPaths(t)

	var stdout bytes.Buffer
	err := run(context.Background(),
		[]string{"--config", statePath, "--keyfile", keyfilePath, "--print-page"},
		&stdout, io.Discard)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	output := stdout.String()
	for _, want := range []string{relay.PageName, "[Add Recp]", "#Send Msg", "<- private:Recp", "<- private:Messages", "{entry}"} {
		if !strings.Contains(output, want) {
			t.Errorf("page output missing %q:\n%s", want, output)
		}
	}

	cfg, err := config.LoadFile(statePath)
	if err != nil {
		t.Fatalf("state file not created: %v", err)
	}
	if addresses := cfg.Addresses(); len(addresses) != 1 || addresses[0] != config.DefaultRouterAddress {
		t.Errorf("created state file has addresses %v, want [%s]", addresses, config.DefaultRouterAddress)
	}
	if _, err := identity.LoadKeyfile(keyfilePath); err != nil {
		t.Errorf("keyfile not generated: %v", err)
	}
}

func TestPrintPageReusesKeyfile(t *testing.T) {
	t.Parallel()
	statePath, keyfilePath := testPaths(t)
	keypair, err := identity.Generate()
	if err != nil {
		t.Fatal(err)
	}
	if err := identity.WriteKeyfile(keyfilePath, keypair); err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"--config", statePath, "--keyfile", keyfilePath, "--print-page"}, &stdout, io.Discard); err != nil {
		t.Fatalf("run: %v", err)
	}
	loaded, err := identity.LoadKeyfile(keyfilePath)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Identity() != keypair.Identity() {
		t.Error("existing keyfile was replaced")
	}
}

func TestSecondInstanceIsRefused(t *testing.T) {
	t.Parallel()
	statePath, keyfilePath := testPaths(t)
	if err := os.MkdirAll(filepath.Dir(statePath), 0755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(statePath + ".lock")
	if locked, err := held.TryLock(); err != nil || !locked {
		t.Fatalf("taking lock: locked=%v err=%v", locked, err)
	}
	defer held.Unlock()

	err := run(context.Background(), []string{"--config", statePath, "--keyfile", keyfilePath, "--print-page"}, io.Discard, io.Discard)
	if err == nil {
		t.Fatal("run succeeded while the state file was locked")
	}
	var coder interface{ ExitCode() int }
	if !errors.As(err, &coder) || coder.ExitCode() != exitFailure {
		t.Errorf("error %v does not carry exit code %d", err, exitFailure)
	}
	if !strings.Contains(err.Error(), "already using") {
		t.Errorf("error = %v, want it to name the lock", err)
	}
}

func TestInvalidConfigIsRejected(t *testing.T) {
	t.Parallel()
	statePath, keyfilePath := testPaths(t)
	if err := os.MkdirAll(filepath.Dir(statePath), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(statePath, []byte("router:\n  compression: brotli\n"), 0644); err != nil {
		t.Fatal(err)
	}

	err := run(context.Background(), []string{"--config", statePath, "--keyfile", keyfilePath}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "router.compression") {
		t.Errorf("run = %v, want a router.compression validation error", err)
	}
}

func TestUnexpectedArgument(t *testing.T) {
	t.Parallel()
	if err := run(context.Background(), []string{"extra"}, io.Discard, io.Discard); err == nil {
		t.Error("run accepted a positional argument")
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()
	var stdout bytes.Buffer
	if err := run(context.Background(), []string{"--version"}, &stdout, io.Discard); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(stdout.String(), binaryName+" ") {
		t.Errorf("version output = %q", stdout.String())
	}
}

// TestRelayAgainstRouter runs the whole process against an in-process
// router: startup commands, a relayed message, then denial.
func TestRelayAgainstRouter(t *testing.T) {
	t.Parallel()
	server := transport.NewServer(transport.ServerConfig{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err := server.Listen("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	defer server.Close()

	statePath, keyfilePath := testPaths(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- run(ctx, []string{
			"--config", statePath,
			"--keyfile", keyfilePath,
			"--address", server.Address(),
			"--name", "Integration Peer",
		}, io.Discard, io.Discard)
	}()

	peer, err := server.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer peer.Close()

	receive := func() protocol.Message {
		t.Helper()
		message, err := peer.Receive()
		if err != nil {
			t.Fatalf("peer Receive: %v", err)
		}
		return message
	}

	wantStartup := []string{"router/set_identity_property", "dataset/subscribe", "dataset/subscribe", "router/subscribe", "ui/set_page"}
	for i, want := range wantStartup {
		message := receive()
		if got := message.Category().String() + "/" + message.Operation(); got != want {
			t.Fatalf("startup command %d = %s, want %s", i, got, want)
		}
		if i == 0 {
			if value := message.(*protocol.RouterMessage).Value; value != "Integration Peer" {
				t.Errorf("published name %q, want Integration Peer", value)
			}
		}
	}

	recipient, err := identity.Generate()
	if err != nil {
		t.Fatal(err)
	}
	if err := peer.Send(protocol.NewDatasetSnapshot(relay.RecipientsPath(), []dataset.Data{dataset.Text(recipient.Identity().Base64())})); err != nil {
		t.Fatal(err)
	}
	if err := peer.Send(protocol.NewUIInput(relay.SendMessageID, nil, protocol.TextInput("hello"))); err != nil {
		t.Fatal(err)
	}
	event, ok := receive().(*protocol.RouterMessage)
	if !ok || event.Op != protocol.RouterSendEvent || len(event.Recipients) != 1 || event.Recipients[0].Identity != recipient.Identity() {
		t.Fatalf("relay sent %+v, want send_event to the recipient", event)
	}

	if err := peer.Send(protocol.NewRouterStatus(protocol.RouterDenied)); err != nil {
		t.Fatal(err)
	}
	err = testutil.RequireReceive(t, result, 5*time.Second, "waiting for run to return after denial")
	var coder interface{ ExitCode() int }
	if !errors.Is(err, relay.ErrDenied) || !errors.As(err, &coder) || coder.ExitCode() != exitDenied {
		t.Errorf("run = %v, want ErrDenied with exit code %d", err, exitDenied)
	}
}
