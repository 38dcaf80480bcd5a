package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fyrsmithlabs/orctasks/internal/config"
	"github.com/fyrsmithlabs/orctasks/internal/identity"
	"github.com/fyrsmithlabs/orctasks/internal/ledger"
	"github.com/fyrsmithlabs/orctasks/internal/seed"
	"github.com/fyrsmithlabs/orctasks/pkg/mcp"
	"github.com/fyrsmithlabs/orctasks/pkg/oauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "ledger.db")

	a, err := newApp(context.Background(), cfg, appOptions{logOutput: zapcore.AddSync(io.Discard)})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	_, err = seed.New(a.ledger, seed.WithHome("/home/dev")).Apply(context.Background(), mustDefaultSeed(t))
	require.NoError(t, err)
	return a
}

func mustDefaultSeed(t *testing.T) *seed.File {
	t.Helper()
	f, err := seed.Default()
	require.NoError(t, err)
	return f
}

func TestParseCallArgs(t *testing.T) {
	got, err := parseCallArgs([]string{
		"task_id=3",
		"include_completed=true",
		"title=Fix DLQ",
		"notes=",
		`message="quoted"`,
		`raw={"a":1}`,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"task_id":           float64(3),
		"include_completed": true,
		"title":             "Fix DLQ",
		"notes":             "",
		"message":           "quoted",
		"raw":               `{"a":1}`,
	}, got)

	_, err = parseCallArgs([]string{"nokey"})
	assert.ErrorContains(t, err, "not key=value")
	_, err = parseCallArgs([]string{"=v"})
	assert.Error(t, err)
	_, err = parseCallArgs([]string{"a=1", "a=2"})
	assert.ErrorContains(t, err, "given twice")
}

func TestPrintIdentity(t *testing.T) {
	var buf bytes.Buffer
	printIdentity(&buf, identity.Context{
		Role:       identity.RoleImplementer,
		AgentID:    "implementer_w1",
		Worktree:   &ledger.Worktree{Name: "w1", Branch: "ml/w1"},
		WorkingDir: "/src/worktrees/w1",
	})
	assert.Equal(t, "Role:      implementer\n"+
		"Agent ID:  implementer_w1\n"+
		"Worktree:  w1\n"+
		"Branch:    ml/w1\n"+
		"Directory: /src/worktrees/w1\n", buf.String())

	buf.Reset()
	printIdentity(&buf, identity.Maintenance("/tmp"))
	assert.Contains(t, buf.String(), "Worktree:  -\n")
	assert.NotContains(t, buf.String(), "Branch:")
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "Version:    dev")
}

func TestPrintTools(t *testing.T) {
	a := newTestApp(t)
	var buf bytes.Buffer
	require.NoError(t, printTools(&buf, a.catalogue.List()))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "create_task")
	assert.Contains(t, out, "title*,worktree_name*,description,priority")
	assert.Contains(t, out, "global_status")
}

func TestApp_Resolver(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	c, err := a.resolver.Resolve(ctx, "/home/dev/src/worktrees/ml-dlq-investigation-ems/app")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleImplementer, c.Role)
	assert.Equal(t, "implementer_ml-dlq-investigation-ems", c.AgentID)

	c, err = a.resolver.Resolve(ctx, "/home/dev/orc")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleOrchestrator, c.Role)
}

func TestApp_GatewayEndToEnd(t *testing.T) {
	a := newTestApp(t)
	ts := httptest.NewServer(a.httpServer().Echo())
	defer ts.Close()
	ctx := context.Background()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	httpClient, err := oauth.NewAuthorizedClient(ctx, ts.URL, "test")
	require.NoError(t, err)

	implementer := mcp.NewClient(ts.URL+"/mcp", "/home/dev/src/worktrees/ml-dlq-investigation-ems", httpClient)
	res, err := implementer.CallTool(ctx, "get_my_tasks", nil)
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "📋 **Tasks for ml-dlq-investigation-ems**")
	assert.Contains(t, res.Content[0].Text, "Branch: ml/dlq-investigation")
	assert.Contains(t, res.Content[0].Text, "Fix DLQ bot label length issue")

	orchestrator := mcp.NewClient(ts.URL+"/mcp", "/home/dev/orc", httpClient)
	res, err = orchestrator.CallTool(ctx, "create_task", map[string]any{
		"title":         "Wire alerts",
		"worktree_name": "ml-dlq-investigation-ems",
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, res.Content[0].Text, "Wire alerts")

	task, err := a.ledger.GetTask(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "Wire alerts", task.Title)
	require.Len(t, task.History, 1)
	assert.Equal(t, "orchestrator", task.History[0].AgentID)

	res, err = orchestrator.CallTool(ctx, "get_my_tasks", nil)
	require.NoError(t, err)
	assert.True(t, res.IsError)

	list, err := orchestrator.ListTools(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 5)
}

func TestSeedCmd(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("ORCTASKS_LOGGING_LEVEL", "error")
	t.Cleanup(func() { configPath, dbPath = "", "" })

	db := filepath.Join(home, "ledger.db")
	for i := 0; i < 2; i++ {
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"seed", "--db", db})
		require.NoError(t, cmd.Execute())
		if i == 0 {
			assert.Contains(t, out.String(), "3 repositories, 3 worktrees, 4 tasks, 6 history entries created")
		} else {
			assert.Contains(t, out.String(), "0 repositories, 0 worktrees, 0 tasks, 0 history entries created")
		}
	}
}
