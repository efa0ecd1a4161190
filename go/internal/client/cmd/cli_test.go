package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mcdev12/gymhub/go/internal/gateway"
	"github.com/mcdev12/gymhub/go/internal/history"
	"github.com/mcdev12/gymhub/go/internal/roster"
	"github.com/mcdev12/gymhub/go/internal/session"
	"github.com/mcdev12/gymhub/go/internal/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSession(t *testing.T) (string, *session.Store) {
	t.Helper()
	store := session.NewStore()
	svc := gateway.NewService(gateway.DefaultConfig(), gateway.Dependencies{
		Store:   store,
		History: history.NewMemoryStore(nil),
		Roster:  roster.NewProvider(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws", store
}

func executeCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := newRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func decodeSnapshot(t *testing.T, out string) session.Snapshot {
	t.Helper()
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	return snap
}

func TestRemoteAddRound(t *testing.T) {
	url, store := startSession(t)

	stdout, _, err := executeCLI(t, "--server", url, "remote", "add-round", "Ben")
	require.NoError(t, err)

	snap := decodeSnapshot(t, stdout)
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, map[string]int{"Ben": 1}, snap.Rounds)
	assert.Equal(t, 1, store.Current().Rounds["Ben"])
}

func TestRemoteAddRoundUsesParticipantFlag(t *testing.T) {
	url, store := startSession(t)

	_, _, err := executeCLI(t, "--server", url, "--participant", "Jona", "remote", "add-round")
	require.NoError(t, err)
	assert.Equal(t, 1, store.Current().Rounds["Jona"])

	_, _, err = executeCLI(t, "--server", url, "remote", "add-round")
	assert.ErrorContains(t, err, "participant is required")
}

func TestRemoteConfigure(t *testing.T) {
	url, store := startSession(t)

	stdout, _, err := executeCLI(t, "--server", url, "remote", "configure", "emom", "--interval", "45", "--rounds", "12")
	require.NoError(t, err)
	assert.Equal(t, timer.EMOM(45, 12), decodeSnapshot(t, stdout).TimerConfig)
	assert.Equal(t, timer.EMOM(45, 12), store.Current().TimerConfig)

	_, _, err = executeCLI(t, "--server", url, "remote", "configure", "countdown")
	assert.ErrorIs(t, err, timer.ErrInvalidConfig)

	_, _, err = executeCLI(t, "--server", url, "remote", "configure", "amrap")
	assert.ErrorIs(t, err, timer.ErrUnknownMode)
}

func TestRemoteLoadAndSetPart(t *testing.T) {
	url, store := startSession(t)

	path := filepath.Join(t.TempDir(), "wod.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"focus":"Legs","parts":[
		{"type":"Warmup","duration_min":8},
		{"type":"Strength","exercise":"Back Squat"}
	]}`), 0o600))

	_, _, err := executeCLI(t, "--server", url, "remote", "load", path)
	require.NoError(t, err)
	require.NotNil(t, store.Current().Workout)

	stdout, _, err := executeCLI(t, "--server", url, "remote", "set-part", "0")
	require.NoError(t, err)
	snap := decodeSnapshot(t, stdout)
	assert.Equal(t, 0, snap.ActivePartIndex)
	assert.Equal(t, timer.Countdown(480), snap.TimerConfig)

	stdout, _, err = executeCLI(t, "--server", url, "remote", "set-part", "7")
	require.NoError(t, err)
	assert.Equal(t, 1, decodeSnapshot(t, stdout).ActivePartIndex)
}

func TestRemoteState(t *testing.T) {
	url, store := startSession(t)
	_, err := store.Apply(context.Background(), session.AddRound{Participant: "Lio"}, "test")
	require.NoError(t, err)

	stdout, _, err := executeCLI(t, "--server", url, "remote", "state")
	require.NoError(t, err)
	assert.Equal(t, 1, decodeSnapshot(t, stdout).Rounds["Lio"])
}

func TestDisplayPrintsFrames(t *testing.T) {
	url, store := startSession(t)
	_, err := store.Apply(context.Background(), session.ConfigureTimer{Config: timer.Tabata(20, 10, 8)}, "test")
	require.NoError(t, err)

	stdout, stderr, err := executeCLI(t, "--server", url, "display", "--frames", "1")
	require.NoError(t, err)
	assert.Equal(t, "00:20  WORK 1/8  (paused)\n", stdout)
	assert.Contains(t, stderr, "[CONNECTED]")
}
