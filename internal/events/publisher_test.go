package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fyrsmithlabs/orctasks/internal/ledger"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	server, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	})
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "orc.tasks.w1.created", Subject("orc.tasks", "w1", "created"))
	assert.Equal(t, "orc.tasks.my_wt_v2.status_changed", Subject("orc.tasks", "my wt.v2", "status_changed"))
	assert.Equal(t, "p._.x", Subject("p", "", "x"))
	assert.Equal(t, "p.a_b_.x", Subject("p", "a*b>", "x"))
}

func TestPublisher_HistoryAppended(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := Connect(server.ClientURL(), "", zap.NewNop())
	require.NoError(t, err)
	defer nc.Close()

	sub, err := nc.SubscribeSync("orc.tasks.>")
	require.NoError(t, err)
	require.NoError(t, nc.Flush())

	pub := NewPublisher(nc, "orc.tasks", nil)
	at := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	pub.HistoryAppended(context.Background(), ledger.Change{
		Worktree: "w1",
		Task:     ledger.Task{ID: 7, Title: "Fix bug", Status: ledger.StatusInProgress, Priority: ledger.PriorityHigh},
		Entry: ledger.HistoryEntry{
			Action:    ledger.ActionStatusChanged,
			OldValue:  "investigating",
			NewValue:  "in_progress",
			Notes:     "started",
			AgentID:   "implementer_w1",
			CreatedAt: at,
		},
	})

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "orc.tasks.w1.status_changed", msg.Subject)

	var ev Event
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, int64(7), ev.TaskID)
	assert.Equal(t, "in_progress", ev.NewValue)
	assert.Equal(t, "implementer_w1", ev.AgentID)
	assert.True(t, at.Equal(ev.OccurredAt))
}

func TestPublisher_ClosedConnectionIsLogged(t *testing.T) {
	server := startTestNATSServer(t)
	nc, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	nc.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	pub := NewPublisher(nc, "orc.tasks", zap.New(core))

	assert.NotPanics(t, func() {
		pub.HistoryAppended(context.Background(), ledger.Change{
			Worktree: "w1",
			Entry:    ledger.HistoryEntry{Action: ledger.ActionNotesAdded, AgentID: "orchestrator"},
		})
	})
	assert.Equal(t, 1, logs.FilterMessage("history event not published").Len())
}
