package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/fyrsmithlabs/orctasks/internal/ledger"
)

// AppendHistory inserts an audit row. There is deliberately no update or
// single-row delete for history.
func (s *Store) AppendHistory(ctx context.Context, e *ledger.HistoryEntry) error {
	if e.Action == "" || e.AgentID == "" {
		return &ledger.ValidationError{Field: "history", Message: "history rows need an action and an agent id"}
	}
	ts := toUnix(e.CreatedAt)
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO task_histories(task_id, action, old_value, new_value, notes, agent_id, created_at, updated_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TaskID, e.Action, nullString(e.OldValue), nullString(e.NewValue), nullString(e.Notes), e.AgentID, ts, ts)
	if err != nil {
		return err
	}
	e.ID, err = res.LastInsertId()
	return err
}

const historyColumns = `id, task_id, action, old_value, new_value, notes, agent_id, created_at`

func scanHistory(row scanner) (ledger.HistoryEntry, error) {
	var (
		e                 ledger.HistoryEntry
		oldV, newV, notes sql.NullString
		created           int64
	)
	if err := row.Scan(&e.ID, &e.TaskID, &e.Action, &oldV, &newV, &notes, &e.AgentID, &created); err != nil {
		return e, err
	}
	e.OldValue, e.NewValue, e.Notes = oldV.String, newV.String, notes.String
	e.CreatedAt = fromUnix(created)
	return e, nil
}

func (s *Store) History(ctx context.Context, taskID int64) ([]ledger.HistoryEntry, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM task_histories WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ledger.HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) LatestHistory(ctx context.Context, taskIDs []int64) (map[int64]ledger.HistoryEntry, error) {
	out := make(map[int64]ledger.HistoryEntry, len(taskIDs))
	if len(taskIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(taskIDs)), ",")
	args := make([]any, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}
	// Rows arrive newest first per task; keep the first seen.
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM task_histories WHERE task_id IN (`+placeholders+`)
		 ORDER BY task_id, created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		if _, seen := out[e.TaskID]; !seen {
			out[e.TaskID] = e
		}
	}
	return out, rows.Err()
}
