// Package pg provides a PostgreSQL instance store. Instance rows carry a
// version column checked on every update; actions are inserted in the same
// transaction.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/viant/approvalflow/model"
	"github.com/viant/approvalflow/service/dao"
	"github.com/viant/approvalflow/service/dao/criteria"
	"github.com/viant/approvalflow/service/dao/instance"
)

const uniqueViolation = "23505"

// Store implements instance.Store with PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ instance.Store = (*Store)(nil)

// New creates a new PostgreSQL instance store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the store tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Create inserts a new instance at version 1.
func (s *Store) Create(ctx context.Context, inst *model.Instance, actions ...*model.StepAction) error {
	if err := instance.Validate(inst); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inst.Version = 1
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("marshal instance: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO approval_instances (id, template_id, status, version, initiated_at, data)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, inst.ID, inst.TemplateID, string(inst.Status), inst.Version, inst.InitiatedAt, data)
	if err != nil {
		inst.Version = 0
		if isUniqueViolation(err) {
			return instance.Exists(inst.ID)
		}
		return fmt.Errorf("insert instance: %w", err)
	}
	instance.Sequence(inst.ID, 0, actions)
	if err := insertActions(ctx, tx, actions); err != nil {
		inst.Version = 0
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		inst.Version = 0
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load retrieves an instance by id.
func (s *Store) Load(ctx context.Context, id string) (*model.Instance, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM approval_instances WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, instance.NotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	return decodeInstance(data)
}

// Update applies a version-checked update and appends actions atomically.
func (s *Store) Update(ctx context.Context, inst *model.Instance, expected int64, actions ...*model.StepAction) error {
	if err := instance.Validate(inst); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	updated := inst.Clone()
	updated.Version = expected + 1
	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("marshal instance: %w", err)
	}
	tag, err := tx.Exec(ctx, `
		UPDATE approval_instances
		SET status = $1, version = $2, data = $3, updated_at = NOW()
		WHERE id = $4 AND version = $5
	`, string(updated.Status), updated.Version, data, inst.ID, expected)
	if err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var actual int64
		err = tx.QueryRow(ctx, `SELECT version FROM approval_instances WHERE id = $1`, inst.ID).Scan(&actual)
		if errors.Is(err, pgx.ErrNoRows) {
			return instance.NotFound(inst.ID)
		}
		if err != nil {
			return fmt.Errorf("read instance version: %w", err)
		}
		return instance.Stale(inst.ID, expected, actual)
	}

	if len(actions) > 0 {
		var last int64
		err = tx.QueryRow(ctx, `
			SELECT COALESCE(MAX(sequence), 0)
			FROM approval_step_actions
			WHERE instance_id = $1
		`, inst.ID).Scan(&last)
		if err != nil {
			return fmt.Errorf("get last sequence: %w", err)
		}
		instance.Sequence(inst.ID, last, actions)
		if err := insertActions(ctx, tx, actions); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	inst.Version = updated.Version
	return nil
}

// List returns instances filtered by Status and Template parameters.
func (s *Store) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Instance, error) {
	query := `SELECT data FROM approval_instances WHERE TRUE`
	var args []any
	if statuses := criteria.Values(dao.ParameterStatus, parameters); len(statuses) > 0 {
		args = append(args, statuses)
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if templates := criteria.Values(dao.ParameterTemplate, parameters); len(templates) > 0 {
		args = append(args, templates)
		query += fmt.Sprintf(" AND template_id = ANY($%d)", len(args))
	}
	query += " ORDER BY initiated_at, id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()
	var instances []*model.Instance
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		inst, err := decodeInstance(data)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return instances, nil
}

// History returns the action log ordered by sequence.
func (s *Store) History(ctx context.Context, id string) ([]*model.StepAction, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM approval_instances WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check instance: %w", err)
	}
	if !exists {
		return nil, instance.NotFound(id)
	}
	rows, err := s.pool.Query(ctx, `
		SELECT data
		FROM approval_step_actions
		WHERE instance_id = $1
		ORDER BY sequence ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()
	actions := []*model.StepAction{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		action := &model.StepAction{}
		if err := json.Unmarshal(data, action); err != nil {
			return nil, fmt.Errorf("unmarshal action: %w", err)
		}
		actions = append(actions, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return actions, nil
}

func insertActions(ctx context.Context, tx pgx.Tx, actions []*model.StepAction) error {
	if len(actions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, action := range actions {
		data, err := json.Marshal(action)
		if err != nil {
			return fmt.Errorf("marshal action: %w", err)
		}
		batch.Queue(`
			INSERT INTO approval_step_actions (id, instance_id, sequence, data)
			VALUES ($1, $2, $3, $4)
		`, action.ID, action.InstanceID, action.Sequence, data)
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for range actions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert action: %w", err)
		}
	}
	return nil
}

func decodeInstance(data []byte) (*model.Instance, error) {
	inst := &model.Instance{}
	if err := json.Unmarshal(data, inst); err != nil {
		return nil, fmt.Errorf("unmarshal instance: %w", err)
	}
	return inst, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
