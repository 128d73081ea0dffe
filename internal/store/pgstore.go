package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"coo-agent/internal/core"
)

// PGStore persists tracking state in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an existing connection pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS approved_tasks (
    task_id           TEXT PRIMARY KEY,
    recommendation_id TEXT NOT NULL DEFAULT '',
    kind              TEXT NOT NULL,
    approved_at       TIMESTAMPTZ NOT NULL,
    executed          BOOLEAN NOT NULL DEFAULT FALSE,
    payload           JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS outcome_tracking (
    task_id               TEXT PRIMARY KEY,
    recommendation_id     TEXT NOT NULL DEFAULT '',
    approved_at           TIMESTAMPTZ NOT NULL,
    product_id            TEXT NOT NULL DEFAULT '',
    product_name          TEXT NOT NULL,
    predicted_roi         DOUBLE PRECISION NOT NULL,
    predicted_profit      NUMERIC(14,2) NOT NULL,
    restock_quantity      INTEGER NOT NULL,
    restock_cost          NUMERIC(14,2) NOT NULL,
    actual_sales_before   DOUBLE PRECISION NOT NULL DEFAULT 0,
    actual_sales_after    DOUBLE PRECISION NOT NULL DEFAULT 0,
    actual_cost           NUMERIC(14,2) NOT NULL DEFAULT 0,
    actual_profit         NUMERIC(14,2) NOT NULL DEFAULT 0,
    actual_roi            DOUBLE PRECISION NOT NULL DEFAULT 0,
    sell_through_rate     DOUBLE PRECISION NOT NULL DEFAULT 0,
    tracking_start        TIMESTAMPTZ NOT NULL,
    tracking_end          TIMESTAMPTZ NOT NULL,
    outcome_captured_at   TIMESTAMPTZ,
    user_feedback         TEXT NOT NULL DEFAULT '',
    user_satisfaction     INTEGER,
    feedback_collected_at TIMESTAMPTZ,
    status                TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS enhanced_rewards (
    id                  BIGSERIAL PRIMARY KEY,
    task_id             TEXT NOT NULL,
    base_reward         DOUBLE PRECISION NOT NULL,
    actual_roi_reward   DOUBLE PRECISION NOT NULL,
    user_feedback_bonus DOUBLE PRECISION NOT NULL,
    accuracy_penalty    DOUBLE PRECISION NOT NULL,
    total_reward        DOUBLE PRECISION NOT NULL,
    confidence          DOUBLE PRECISION NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback_requests (
    task_id      TEXT PRIMARY KEY,
    product_name TEXT NOT NULL,
    requested_at TIMESTAMPTZ NOT NULL,
    expires_at   TIMESTAMPTZ NOT NULL,
    status       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS training_runs (
    id                  TEXT PRIMARY KEY,
    trigger_reason      TEXT NOT NULL,
    started_at          TIMESTAMPTZ NOT NULL,
    duration_ms         BIGINT NOT NULL DEFAULT 0,
    timesteps           INTEGER NOT NULL,
    mean_reward         DOUBLE PRECISION NOT NULL DEFAULT 0,
    mean_actual_roi     DOUBLE PRECISION NOT NULL DEFAULT 0,
    roi_accuracy        DOUBLE PRECISION NOT NULL DEFAULT 0,
    mean_satisfaction   DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_actual_profit NUMERIC(14,2) NOT NULL DEFAULT 0,
    performed           BOOLEAN NOT NULL DEFAULT FALSE,
    error_message       TEXT NOT NULL DEFAULT ''
);
`

// EnsureSchema creates the tracking tables if they do not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PGStore) ListOutcomes(ctx context.Context) ([]core.OutcomeRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, recommendation_id, approved_at, product_id, product_name,
		       predicted_roi, predicted_profit, restock_quantity, restock_cost,
		       actual_sales_before, actual_sales_after, actual_cost, actual_profit,
		       actual_roi, sell_through_rate, tracking_start, tracking_end,
		       outcome_captured_at, user_feedback, user_satisfaction,
		       feedback_collected_at, status
		FROM outcome_tracking ORDER BY tracking_start`)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()

	var records []core.OutcomeRecord
	for rows.Next() {
		var rec core.OutcomeRecord
		if err := rows.Scan(
			&rec.TaskID, &rec.RecommendationID, &rec.ApprovedAt, &rec.ProductID, &rec.ProductName,
			&rec.PredictedROI, &rec.PredictedProfit, &rec.RestockQuantity, &rec.RestockCost,
			&rec.ActualSalesBefore, &rec.ActualSalesAfter, &rec.ActualCost, &rec.ActualProfit,
			&rec.ActualROI, &rec.SellThroughRate, &rec.TrackingStart, &rec.TrackingEnd,
			&rec.OutcomeCapturedAt, &rec.UserFeedback, &rec.UserSatisfaction,
			&rec.FeedbackCollectedAt, &rec.Status,
		); err != nil {
			return nil, fmt.Errorf("list outcomes: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PGStore) SaveOutcome(ctx context.Context, rec core.OutcomeRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO outcome_tracking (
			task_id, recommendation_id, approved_at, product_id, product_name,
			predicted_roi, predicted_profit, restock_quantity, restock_cost,
			actual_sales_before, actual_sales_after, actual_cost, actual_profit,
			actual_roi, sell_through_rate, tracking_start, tracking_end,
			outcome_captured_at, user_feedback, user_satisfaction,
			feedback_collected_at, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
		ON CONFLICT (task_id) DO UPDATE SET
			actual_sales_before = EXCLUDED.actual_sales_before,
			actual_sales_after = EXCLUDED.actual_sales_after,
			actual_cost = EXCLUDED.actual_cost,
			actual_profit = EXCLUDED.actual_profit,
			actual_roi = EXCLUDED.actual_roi,
			sell_through_rate = EXCLUDED.sell_through_rate,
			outcome_captured_at = EXCLUDED.outcome_captured_at,
			user_feedback = EXCLUDED.user_feedback,
			user_satisfaction = EXCLUDED.user_satisfaction,
			feedback_collected_at = EXCLUDED.feedback_collected_at,
			status = EXCLUDED.status`,
		rec.TaskID, rec.RecommendationID, rec.ApprovedAt, rec.ProductID, rec.ProductName,
		rec.PredictedROI, rec.PredictedProfit, rec.RestockQuantity, rec.RestockCost,
		rec.ActualSalesBefore, rec.ActualSalesAfter, rec.ActualCost, rec.ActualProfit,
		rec.ActualROI, rec.SellThroughRate, rec.TrackingStart, rec.TrackingEnd,
		rec.OutcomeCapturedAt, rec.UserFeedback, rec.UserSatisfaction,
		rec.FeedbackCollectedAt, rec.Status)
	if err != nil {
		return fmt.Errorf("save outcome %s: %w", rec.TaskID, err)
	}
	return nil
}

func (s *PGStore) DeleteOutcomesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM outcome_tracking WHERE status = $1 AND tracking_end < $2`,
		core.StatusCompleted, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete outcomes: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PGStore) ListRewards(ctx context.Context) ([]core.EnhancedReward, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, base_reward, actual_roi_reward, user_feedback_bonus,
		       accuracy_penalty, total_reward, confidence, created_at
		FROM enhanced_rewards ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var rewards []core.EnhancedReward
	for rows.Next() {
		var r core.EnhancedReward
		if err := rows.Scan(
			&r.TaskID, &r.BaseReward, &r.ActualROIReward, &r.UserFeedbackBonus,
			&r.AccuracyPenalty, &r.TotalReward, &r.Confidence, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("list rewards: %w", err)
		}
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}

func (s *PGStore) AppendReward(ctx context.Context, r core.EnhancedReward) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO enhanced_rewards (
			task_id, base_reward, actual_roi_reward, user_feedback_bonus,
			accuracy_penalty, total_reward, confidence, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		r.TaskID, r.BaseReward, r.ActualROIReward, r.UserFeedbackBonus,
		r.AccuracyPenalty, r.TotalReward, r.Confidence, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("append reward %s: %w", r.TaskID, err)
	}
	return nil
}

func (s *PGStore) ListApprovedTasks(ctx context.Context) ([]core.ApprovedTask, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, recommendation_id, kind, approved_at, executed, payload
		FROM approved_tasks ORDER BY approved_at`)
	if err != nil {
		return nil, fmt.Errorf("list approved tasks: %w", err)
	}
	defer rows.Close()

	var tasks []core.ApprovedTask
	for rows.Next() {
		var t core.ApprovedTask
		if err := rows.Scan(&t.TaskID, &t.RecommendationID, &t.Kind, &t.ApprovedAt, &t.Executed, &t.Payload); err != nil {
			return nil, fmt.Errorf("list approved tasks: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// AddApprovedTask inserts an approval for the tracker to pick up.
func (s *PGStore) AddApprovedTask(ctx context.Context, t core.ApprovedTask) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO approved_tasks (task_id, recommendation_id, kind, approved_at, executed, payload)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (task_id) DO NOTHING`,
		t.TaskID, t.RecommendationID, t.Kind, t.ApprovedAt, t.Executed, t.Payload)
	if err != nil {
		return fmt.Errorf("add approved task %s: %w", t.TaskID, err)
	}
	return nil
}

func (s *PGStore) ListFeedbackRequests(ctx context.Context) ([]core.FeedbackRequest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT task_id, product_name, requested_at, expires_at, status
		FROM feedback_requests ORDER BY requested_at`)
	if err != nil {
		return nil, fmt.Errorf("list feedback requests: %w", err)
	}
	defer rows.Close()

	var requests []core.FeedbackRequest
	for rows.Next() {
		var fr core.FeedbackRequest
		if err := rows.Scan(&fr.TaskID, &fr.ProductName, &fr.RequestedAt, &fr.ExpiresAt, &fr.Status); err != nil {
			return nil, fmt.Errorf("list feedback requests: %w", err)
		}
		requests = append(requests, fr)
	}
	return requests, rows.Err()
}

func (s *PGStore) SaveFeedbackRequest(ctx context.Context, fr core.FeedbackRequest) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feedback_requests (task_id, product_name, requested_at, expires_at, status)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (task_id) DO UPDATE SET status = EXCLUDED.status`,
		fr.TaskID, fr.ProductName, fr.RequestedAt, fr.ExpiresAt, fr.Status)
	if err != nil {
		return fmt.Errorf("save feedback request %s: %w", fr.TaskID, err)
	}
	return nil
}

func (s *PGStore) ListTrainingRuns(ctx context.Context) ([]core.TrainingRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, trigger_reason, started_at, duration_ms, timesteps, mean_reward,
		       mean_actual_roi, roi_accuracy, mean_satisfaction, total_actual_profit,
		       performed, error_message
		FROM training_runs ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("list training runs: %w", err)
	}
	defer rows.Close()

	var runs []core.TrainingRun
	for rows.Next() {
		var tr core.TrainingRun
		var durationMS int64
		if err := rows.Scan(
			&tr.ID, &tr.Trigger, &tr.StartedAt, &durationMS, &tr.Timesteps, &tr.MeanReward,
			&tr.MeanActualROI, &tr.ROIAccuracy, &tr.MeanSatisfaction, &tr.TotalActualProfit,
			&tr.Performed, &tr.Error,
		); err != nil {
			return nil, fmt.Errorf("list training runs: %w", err)
		}
		tr.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, tr)
	}
	return runs, rows.Err()
}

func (s *PGStore) AppendTrainingRun(ctx context.Context, tr core.TrainingRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO training_runs (
			id, trigger_reason, started_at, duration_ms, timesteps, mean_reward,
			mean_actual_roi, roi_accuracy, mean_satisfaction, total_actual_profit,
			performed, error_message
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		tr.ID, tr.Trigger, tr.StartedAt, tr.Duration.Milliseconds(), tr.Timesteps, tr.MeanReward,
		tr.MeanActualROI, tr.ROIAccuracy, tr.MeanSatisfaction, tr.TotalActualProfit,
		tr.Performed, tr.Error)
	if err != nil {
		return fmt.Errorf("append training run %s: %w", tr.ID, err)
	}
	return nil
}
