package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/netcanvas/internal/labserver"
	"github.com/HerbHall/netcanvas/internal/reach"
	"github.com/HerbHall/netcanvas/internal/version"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const officeDoc = `name: office
description: two hosts behind a switch
devices:
  - {name: h1, kind: host, ip: 10.0.0.1/24, x: 100, y: 100}
  - {name: h2, kind: host, ip: 10.0.0.2/24, x: 300, y: 100}
  - {name: s1, kind: switch, x: 200, y: 250}
links:
  - [h1, s1]
  - [h2, s1]
`

type env struct {
	dir    string
	config string
	lab    *labserver.Lab
	url    string
}

// newEnv starts a lab service and writes a config file pointing at it.
func newEnv(t *testing.T, token string) *env {
	t.Helper()
	lab := labserver.NewLab()
	srv := httptest.NewServer(labserver.New("", lab, token, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	ts := srv.URL

	dir := t.TempDir()
	cfg := filepath.Join(dir, "netcanvas.yaml")
	body := "api:\n  base_url: " + ts + "\n" +
		"storage:\n  path: " + filepath.Join(dir, "state.db") + "\n" +
		"log:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))
	return &env{dir: dir, config: cfg, lab: lab, url: ts}
}

type result struct {
	code   int
	stdout string
	stderr string
}

func (e *env) run(t *testing.T, args ...string) result {
	t.Helper()
	return e.runWith(t, &cli{}, "", args...)
}

func (e *env) runWith(t *testing.T, c *cli, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--config", e.config}, args...)
	code := c.execute(context.Background(), full, strings.NewReader(stdin), &out, &errOut)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

// loggedIn stores a token and seeds the office topology.
func (e *env) loggedIn(t *testing.T) {
	t.Helper()
	r := e.run(t, "auth", "set-token", "secret", "--user", "ada")
	require.Equal(t, 0, r.code, r.stderr)
	doc := filepath.Join(e.dir, "office.yaml")
	require.NoError(t, os.WriteFile(doc, []byte(officeDoc), 0o600))
	r = e.run(t, "topology", "create", "-f", doc)
	require.Equal(t, 0, r.code, r.stderr)
}

func TestVersion(t *testing.T) {
	e := newEnv(t, "")

	r := e.run(t, "version")

	assert.Equal(t, 0, r.code)
	assert.Equal(t, version.Info()+"\n", r.stdout)
}

func TestNotLoggedIn(t *testing.T) {
	e := newEnv(t, "")

	r := e.run(t, "topology", "ls")

	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "not logged in")
}

func TestAuthStatus(t *testing.T) {
	e := newEnv(t, "")

	r := e.run(t, "auth", "status")
	assert.Contains(t, r.stdout, "Not logged in")

	require.Equal(t, 0, e.run(t, "auth", "set-token", "tok", "--user", "ada").code)
	r = e.run(t, "auth", "status")
	assert.Equal(t, 0, r.code)
	assert.Contains(t, r.stdout, "ada")

	require.Equal(t, 0, e.run(t, "auth", "clear").code)
	r = e.run(t, "auth", "status")
	assert.Contains(t, r.stdout, "Not logged in")
}

func TestRejectedTokenExitsWithThree(t *testing.T) {
	e := newEnv(t, "secret")
	require.Equal(t, 0, e.run(t, "auth", "set-token", "wrong").code)

	r := e.run(t, "topology", "ls")

	assert.Equal(t, 3, r.code)
	assert.Contains(t, r.stderr, "session expired")
	assert.Contains(t, e.run(t, "auth", "status").stdout, "Not logged in")
}

func TestTopologyCreateListShow(t *testing.T) {
	e := newEnv(t, "secret")
	e.loggedIn(t)

	r := e.run(t, "topology", "ls")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "office")
	assert.Contains(t, r.stdout, "●")

	r = e.run(t, "topology", "show")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "office")
	assert.Contains(t, r.stdout, "10.0.0.2/24")
	assert.Contains(t, r.stdout, "h1 ── s1")
}

func TestTopologyCreateFromStdin(t *testing.T) {
	e := newEnv(t, "secret")
	require.Equal(t, 0, e.run(t, "auth", "set-token", "secret").code)

	r := e.runWith(t, &cli{}, officeDoc, "topology", "create", "lab2", "-f", "-")

	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Created topology 1")
	require.Len(t, e.lab.Topologies(), 1)
	assert.Equal(t, "lab2", e.lab.Topologies()[0].Name)
}

func TestTopologyExport(t *testing.T) {
	e := newEnv(t, "secret")
	e.loggedIn(t)

	r := e.run(t, "topology", "export")

	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "name: office")
	assert.Contains(t, r.stdout, "- h1")
}

func TestDeviceEditing(t *testing.T) {
	e := newEnv(t, "secret")
	e.loggedIn(t)

	r := e.run(t, "device", "set", "h1", "--name", "web")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "h1: web")

	r = e.run(t, "device", "unlink", "h2", "s1")
	require.Equal(t, 0, r.code, r.stderr)

	r = e.run(t, "device", "link", "h1", "h2")
	require.Equal(t, 0, r.code, r.stderr)

	r = e.run(t, "device", "move", "s1", "400", "320")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Moved s1 to 400,320")

	r = e.run(t, "device", "rm", "s1")
	require.Equal(t, 0, r.code, r.stderr)

	r = e.run(t, "topology", "show")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "web")
	assert.Contains(t, r.stdout, "h1 ── h2")
	assert.NotContains(t, r.stdout, "s1")
}

func TestDeviceAdd(t *testing.T) {
	e := newEnv(t, "secret")
	e.loggedIn(t)

	r := e.run(t, "device", "add", "router", "--x", "500", "--y", "200")

	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Created router")
}

func TestDeviceAddUnknownKind(t *testing.T) {
	e := newEnv(t, "secret")
	e.loggedIn(t)

	r := e.run(t, "device", "add", "printer")

	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "printer")
}

func TestPing(t *testing.T) {
	e := newEnv(t, "secret")
	e.loggedIn(t)

	r := e.run(t, "ping", "h1", "h2", "-c", "2")

	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "10.0.0.2")
}

type fakeChecker struct{ ok bool }

func (f fakeChecker) Check(_ context.Context, target string) (*reach.Result, error) {
	res := &reach.Result{Target: target, Success: f.ok, LatencyMs: 0.4}
	if !f.ok {
		res.Error = "timeout"
	}
	return res, nil
}

func TestDoctor(t *testing.T) {
	e := newEnv(t, "secret")
	e.loggedIn(t)

	r := e.runWith(t, &cli{checker: fakeChecker{ok: false}}, "", "doctor")

	require.Equal(t, 0, r.code, r.stderr+r.stdout)
	assert.Contains(t, r.stdout, "✓ token: present")
	assert.Contains(t, r.stdout, "✓ lab service")
	assert.Contains(t, r.stdout, "✓ api: 1 topologies")
	assert.Contains(t, r.stdout, "⚠ icmp")
}

func TestDoctorWithoutToken(t *testing.T) {
	e := newEnv(t, "secret")

	r := e.runWith(t, &cli{checker: fakeChecker{ok: true}}, "", "doctor")

	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stdout, "✗ token")
	assert.Contains(t, r.stdout, "✓ icmp")
	assert.NotContains(t, r.stdout, "api:")
}

func TestBackupRestore(t *testing.T) {
	e := newEnv(t, "secret")
	e.loggedIn(t)
	archive := filepath.Join(e.dir, "backup.tar.gz")

	r := e.run(t, "backup", "-o", archive)
	require.Equal(t, 0, r.code, r.stderr)
	require.FileExists(t, archive)

	require.Equal(t, 0, e.run(t, "auth", "clear").code)
	r = e.run(t, "restore", archive)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "state.db")

	r = e.run(t, "topology", "ls")
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "office")
}
