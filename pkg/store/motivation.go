// Copyright 2026 The Nyx Orchestrator Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nyxcore/orchestrator/pkg/errs"
)

// MotivationalTaskStatus is the closed set of statuses a MotivationalTask
// transitions through.
type MotivationalTaskStatus string

const (
	MotivationalTaskGenerated MotivationalTaskStatus = "generated"
	MotivationalTaskQueued    MotivationalTaskStatus = "queued"
	MotivationalTaskSpawned   MotivationalTaskStatus = "spawned"
	MotivationalTaskActive    MotivationalTaskStatus = "active"
	MotivationalTaskCompleted MotivationalTaskStatus = "completed"
	MotivationalTaskFailed    MotivationalTaskStatus = "failed"
	MotivationalTaskCancelled MotivationalTaskStatus = "cancelled"
)

// unitRange validates that a float lies in [0, 1], the invariant every
// MotivationalState range-bound field must satisfy on every write.
func unitRange(name string, v float64) error {
	if v < 0 || v > 1 {
		return errs.New(errs.KindValidation, fmt.Sprintf("%s must be in [0,1], got %v", name, v))
	}
	return nil
}

// MotivationalState is a named drive.
type MotivationalState struct {
	Kind             string
	Urgency          float64
	Satisfaction     float64
	DecayRate        float64
	BoostFactor      float64
	TriggerCondition map[string]any
	LastTriggeredAt  *time.Time
	LastSatisfiedAt  *time.Time
	SuccessCount     int
	FailureCount     int
	SuccessRate      float64
	Active           bool
	Metadata         map[string]any
	UpdatedAt        time.Time
}

// MotivationalStateRepo persists MotivationalState rows. These are
// process-wide and long-lived: Upsert both creates and updates.
type MotivationalStateRepo struct{ s *Store }

// MotivationalStates returns the MotivationalState repository.
func (s *Store) MotivationalStates() *MotivationalStateRepo { return &MotivationalStateRepo{s: s} }

// Upsert validates every range-bound field and writes the drive's current
// row, creating it if the kind is not yet known.
func (r *MotivationalStateRepo) Upsert(ctx context.Context, ms *MotivationalState) error {
	for name, v := range map[string]float64{
		"urgency": ms.Urgency, "satisfaction": ms.Satisfaction,
		"decay_rate": ms.DecayRate, "success_rate": ms.SuccessRate,
	} {
		if err := unitRange(name, v); err != nil {
			return err
		}
	}

	if ms.TriggerCondition == nil {
		ms.TriggerCondition = map[string]any{}
	}
	if ms.Metadata == nil {
		ms.Metadata = map[string]any{}
	}
	triggerJSON, err := json.Marshal(ms.TriggerCondition)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "marshal trigger condition", err)
	}
	metaJSON, err := json.Marshal(ms.Metadata)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "marshal motivational state metadata", err)
	}

	ms.UpdatedAt = time.Now().UTC()

	var upsertSQL string
	switch r.s.dialect {
	case "postgres":
		upsertSQL = `
			INSERT INTO motivational_states (kind, urgency, satisfaction, decay_rate, boost_factor, trigger_condition, last_triggered_at, last_satisfied_at, success_count, failure_count, success_rate, active, metadata, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (kind) DO UPDATE SET
				urgency = EXCLUDED.urgency, satisfaction = EXCLUDED.satisfaction, decay_rate = EXCLUDED.decay_rate,
				boost_factor = EXCLUDED.boost_factor, trigger_condition = EXCLUDED.trigger_condition,
				last_triggered_at = EXCLUDED.last_triggered_at, last_satisfied_at = EXCLUDED.last_satisfied_at,
				success_count = EXCLUDED.success_count, failure_count = EXCLUDED.failure_count,
				success_rate = EXCLUDED.success_rate, active = EXCLUDED.active, metadata = EXCLUDED.metadata, updated_at = EXCLUDED.updated_at`
	case "mysql":
		upsertSQL = `
			INSERT INTO motivational_states (kind, urgency, satisfaction, decay_rate, boost_factor, trigger_condition, last_triggered_at, last_satisfied_at, success_count, failure_count, success_rate, active, metadata, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				urgency = VALUES(urgency), satisfaction = VALUES(satisfaction), decay_rate = VALUES(decay_rate),
				boost_factor = VALUES(boost_factor), trigger_condition = VALUES(trigger_condition),
				last_triggered_at = VALUES(last_triggered_at), last_satisfied_at = VALUES(last_satisfied_at),
				success_count = VALUES(success_count), failure_count = VALUES(failure_count),
				success_rate = VALUES(success_rate), active = VALUES(active), metadata = VALUES(metadata), updated_at = VALUES(updated_at)`
	default: // sqlite
		upsertSQL = `
			INSERT OR REPLACE INTO motivational_states (kind, urgency, satisfaction, decay_rate, boost_factor, trigger_condition, last_triggered_at, last_satisfied_at, success_count, failure_count, success_rate, active, metadata, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	}

	_, err = r.s.exec(ctx, upsertSQL,
		ms.Kind, ms.Urgency, ms.Satisfaction, ms.DecayRate, ms.BoostFactor, string(triggerJSON),
		ms.LastTriggeredAt, ms.LastSatisfiedAt, ms.SuccessCount, ms.FailureCount, ms.SuccessRate,
		boolParam(ms.Active), string(metaJSON), ms.UpdatedAt)
	return err
}

// Get fetches a MotivationalState by kind.
func (r *MotivationalStateRepo) Get(ctx context.Context, kind string) (*MotivationalState, error) {
	row := r.s.queryRow(ctx, `
		SELECT kind, urgency, satisfaction, decay_rate, boost_factor, trigger_condition, last_triggered_at, last_satisfied_at, success_count, failure_count, success_rate, active, metadata, updated_at
		FROM motivational_states WHERE kind = ?`, kind)
	return scanMotivationalState(row)
}

// List returns every MotivationalState.
func (r *MotivationalStateRepo) List(ctx context.Context) ([]*MotivationalState, error) {
	rows, err := r.s.query(ctx, `
		SELECT kind, urgency, satisfaction, decay_rate, boost_factor, trigger_condition, last_triggered_at, last_satisfied_at, success_count, failure_count, success_rate, active, metadata, updated_at
		FROM motivational_states ORDER BY kind ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MotivationalState
	for rows.Next() {
		ms, err := scanMotivationalState(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ms)
	}
	return out, rows.Err()
}

func scanMotivationalState(row rowScanner) (*MotivationalState, error) {
	var ms MotivationalState
	var triggerJSON, metaJSON string
	var lastTriggered, lastSatisfied sql.NullTime
	var active int

	if err := row.Scan(&ms.Kind, &ms.Urgency, &ms.Satisfaction, &ms.DecayRate, &ms.BoostFactor, &triggerJSON,
		&lastTriggered, &lastSatisfied, &ms.SuccessCount, &ms.FailureCount, &ms.SuccessRate, &active, &metaJSON, &ms.UpdatedAt); err != nil {
		return nil, scanErr("motivational state", err)
	}
	ms.Active = active != 0
	if lastTriggered.Valid {
		t := lastTriggered.Time
		ms.LastTriggeredAt = &t
	}
	if lastSatisfied.Valid {
		t := lastSatisfied.Time
		ms.LastSatisfiedAt = &t
	}
	ms.TriggerCondition = map[string]any{}
	if triggerJSON != "" {
		if err := json.Unmarshal([]byte(triggerJSON), &ms.TriggerCondition); err != nil {
			return nil, errs.Wrap(errs.KindDatabase, "unmarshal trigger condition", err)
		}
	}
	ms.Metadata = map[string]any{}
	if metaJSON != "" {
		if err := json.Unmarshal([]byte(metaJSON), &ms.Metadata); err != nil {
			return nil, errs.Wrap(errs.KindDatabase, "unmarshal motivational state metadata", err)
		}
	}
	return &ms, nil
}

// MotivationalTask is a workflow spawned by the motivational engine.
type MotivationalTask struct {
	ID               string
	MotivationType   string
	ThoughtTreeID    *string
	Prompt           string
	Priority         float64
	ArbitrationScore float64
	Status           MotivationalTaskStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
	OutcomeScore     *float64
	SatisfactionGain *float64
	CancelReason     *string
}

// MotivationalTaskRepo persists MotivationalTask rows.
type MotivationalTaskRepo struct{ s *Store }

// MotivationalTasks returns the MotivationalTask repository.
func (s *Store) MotivationalTasks() *MotivationalTaskRepo { return &MotivationalTaskRepo{s: s} }

// Create inserts a new MotivationalTask in the generated status.
func (r *MotivationalTaskRepo) Create(ctx context.Context, motivationType, prompt string, priority, arbitrationScore float64) (*MotivationalTask, error) {
	now := time.Now().UTC()
	mt := &MotivationalTask{
		ID:               uuid.NewString(),
		MotivationType:   motivationType,
		Prompt:           prompt,
		Priority:         priority,
		ArbitrationScore: arbitrationScore,
		Status:           MotivationalTaskGenerated,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	_, err := r.s.exec(ctx, `
		INSERT INTO motivational_tasks (id, motivation_type, thought_tree_id, prompt, priority, arbitration_score, status, created_at, updated_at, outcome_score, satisfaction_gain, cancel_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		mt.ID, mt.MotivationType, mt.ThoughtTreeID, mt.Prompt, mt.Priority, mt.ArbitrationScore, string(mt.Status), mt.CreatedAt, mt.UpdatedAt, mt.OutcomeScore, mt.SatisfactionGain, mt.CancelReason)
	if err != nil {
		return nil, err
	}
	return mt, nil
}

// AttachThoughtTree links a spawned task to the ThoughtTree that carries
// its workflow execution.
func (r *MotivationalTaskRepo) AttachThoughtTree(ctx context.Context, id, thoughtTreeID string) error {
	_, err := r.s.exec(ctx, `UPDATE motivational_tasks SET thought_tree_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		thoughtTreeID, string(MotivationalTaskSpawned), time.Now().UTC(), id)
	return err
}

// Complete records the outcome of a finished MotivationalTask, the
// feedback the arbitration loop reads back into satisfaction/success_rate.
func (r *MotivationalTaskRepo) Complete(ctx context.Context, id string, status MotivationalTaskStatus, outcomeScore, satisfactionGain float64) error {
	_, err := r.s.exec(ctx, `UPDATE motivational_tasks SET status = ?, outcome_score = ?, satisfaction_gain = ?, updated_at = ? WHERE id = ?`,
		string(status), outcomeScore, satisfactionGain, time.Now().UTC(), id)
	return err
}

// CompleteWithReason is Complete plus a cancel_reason tag, for callers
// (startup cleanup) that force-terminate a task without it ever running.
func (r *MotivationalTaskRepo) CompleteWithReason(ctx context.Context, id string, status MotivationalTaskStatus, outcomeScore, satisfactionGain float64, reason string) error {
	_, err := r.s.exec(ctx, `UPDATE motivational_tasks SET status = ?, outcome_score = ?, satisfaction_gain = ?, cancel_reason = ?, updated_at = ? WHERE id = ?`,
		string(status), outcomeScore, satisfactionGain, reason, time.Now().UTC(), id)
	return err
}

// ListByStatus returns MotivationalTasks in a given status, newest first.
func (r *MotivationalTaskRepo) ListByStatus(ctx context.Context, status MotivationalTaskStatus) ([]*MotivationalTask, error) {
	rows, err := r.s.query(ctx, `
		SELECT id, motivation_type, thought_tree_id, prompt, priority, arbitration_score, status, created_at, updated_at, outcome_score, satisfaction_gain, cancel_reason
		FROM motivational_tasks WHERE status = ? ORDER BY created_at DESC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MotivationalTask
	for rows.Next() {
		mt, err := scanMotivationalTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}

// ListNonTerminal returns every MotivationalTask not yet in a terminal
// status, used by the startup cleanup pass.
func (r *MotivationalTaskRepo) ListNonTerminal(ctx context.Context) ([]*MotivationalTask, error) {
	rows, err := r.s.query(ctx, `
		SELECT id, motivation_type, thought_tree_id, prompt, priority, arbitration_score, status, created_at, updated_at, outcome_score, satisfaction_gain, cancel_reason
		FROM motivational_tasks WHERE status IN (?, ?, ?, ?)`,
		string(MotivationalTaskGenerated), string(MotivationalTaskQueued), string(MotivationalTaskSpawned), string(MotivationalTaskActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*MotivationalTask
	for rows.Next() {
		mt, err := scanMotivationalTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}

func scanMotivationalTask(row rowScanner) (*MotivationalTask, error) {
	var mt MotivationalTask
	var status string
	var thoughtTreeID sql.NullString
	var outcomeScore, satisfactionGain sql.NullFloat64
	var cancelReason sql.NullString

	if err := row.Scan(&mt.ID, &mt.MotivationType, &thoughtTreeID, &mt.Prompt, &mt.Priority, &mt.ArbitrationScore,
		&status, &mt.CreatedAt, &mt.UpdatedAt, &outcomeScore, &satisfactionGain, &cancelReason); err != nil {
		return nil, scanErr("motivational task", err)
	}
	mt.Status = MotivationalTaskStatus(status)
	if thoughtTreeID.Valid {
		v := thoughtTreeID.String
		mt.ThoughtTreeID = &v
	}
	if outcomeScore.Valid {
		v := outcomeScore.Float64
		mt.OutcomeScore = &v
	}
	if cancelReason.Valid {
		v := cancelReason.String
		mt.CancelReason = &v
	}
	if satisfactionGain.Valid {
		v := satisfactionGain.Float64
		mt.SatisfactionGain = &v
	}
	return &mt, nil
}
