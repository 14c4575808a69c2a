package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/brandlens/scan-cli/internal/db"
	"github.com/brandlens/scan-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"update_scan_progress": `UPDATE scans SET status = $1, progress = $2, updated_at = $3 WHERE id = $4`,
	"get_scan":             `SELECT id, entity, status, progress, error, created_at, updated_at FROM scans WHERE id = $1`,
	"count_prompts":        `SELECT count(*) FROM prompts WHERE scan_id = $1`,
	"count_responses":      `SELECT count(*) FROM responses WHERE scan_id = $1`,
	"insert_cost_entry":    `INSERT INTO cost_entries (id, scan_id, step, model, input_tokens, output_tokens, cost_usd, recorded_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS scans (
	id              TEXT PRIMARY KEY,
	org_id          TEXT NOT NULL,
	entity_id       TEXT NOT NULL,
	entity          JSONB NOT NULL,
	status          TEXT NOT NULL DEFAULT 'queued',
	progress        INTEGER NOT NULL DEFAULT 0,
	error           TEXT,
	differentiation JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS prompts (
	id          TEXT PRIMARY KEY,
	scan_id     TEXT NOT NULL REFERENCES scans(id),
	idx         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	category    TEXT NOT NULL,
	role_family TEXT NOT NULL DEFAULT '',
	UNIQUE (scan_id, idx)
);

CREATE TABLE IF NOT EXISTS responses (
	id               TEXT PRIMARY KEY,
	scan_id          TEXT NOT NULL REFERENCES scans(id),
	prompt_id        TEXT NOT NULL,
	prompt_idx       INTEGER NOT NULL,
	platform         TEXT NOT NULL,
	text             TEXT NOT NULL DEFAULT '',
	mentioned        BOOLEAN NOT NULL DEFAULT false,
	mention_position INTEGER NOT NULL DEFAULT -1,
	competitors      JSONB,
	sources          JSONB,
	response_time_ms BIGINT NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT '',
	sentiment        JSONB,
	research         JSONB,
	insights         JSONB,
	UNIQUE (scan_id, prompt_idx, platform)
);

CREATE TABLE IF NOT EXISTS reports (
	id                  TEXT PRIMARY KEY,
	scan_id             TEXT NOT NULL UNIQUE REFERENCES scans(id),
	org_id              TEXT NOT NULL,
	entity_id           TEXT NOT NULL,
	desirability        INTEGER NOT NULL,
	researchability     INTEGER NOT NULL,
	differentiation     INTEGER NOT NULL,
	body                JSONB NOT NULL,
	competitor_analysis JSONB,
	strategic_summary   TEXT,
	action_plans        JSONB,
	web_mentions        JSONB,
	share_token         TEXT NOT NULL UNIQUE,
	expires_at          TIMESTAMPTZ NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS frozen_questions (
	org_id      TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	idx         INTEGER NOT NULL,
	text        TEXT NOT NULL,
	category    TEXT NOT NULL,
	role_family TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (org_id, entity_id, idx)
);

CREATE TABLE IF NOT EXISTS frozen_competitors (
	org_id    TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	name      TEXT NOT NULL,
	domain    TEXT NOT NULL DEFAULT '',
	reason    TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (org_id, entity_id, name)
);

CREATE TABLE IF NOT EXISTS frozen_role_families (
	org_id    TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	name      TEXT NOT NULL,
	PRIMARY KEY (org_id, entity_id, name)
);

CREATE TABLE IF NOT EXISTS score_history (
	id              TEXT PRIMARY KEY,
	org_id          TEXT NOT NULL,
	entity_id       TEXT NOT NULL,
	scan_id         TEXT NOT NULL,
	desirability    INTEGER NOT NULL,
	researchability INTEGER NOT NULL,
	differentiation INTEGER NOT NULL,
	recorded_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS competitor_history (
	id             TEXT PRIMARY KEY,
	org_id         TEXT NOT NULL,
	entity_id      TEXT NOT NULL,
	scan_id        TEXT NOT NULL,
	competitor     TEXT NOT NULL,
	mention_count  INTEGER NOT NULL DEFAULT 0,
	composite_rank INTEGER NOT NULL DEFAULT 0,
	recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cost_entries (
	id            TEXT PRIMARY KEY,
	scan_id       TEXT NOT NULL,
	step          TEXT NOT NULL,
	model         TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd      DOUBLE PRECISION NOT NULL DEFAULT 0,
	recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);
CREATE INDEX IF NOT EXISTS idx_scans_entity ON scans(org_id, entity_id);
CREATE INDEX IF NOT EXISTS idx_prompts_scan ON prompts(scan_id);
CREATE INDEX IF NOT EXISTS idx_responses_scan ON responses(scan_id);
CREATE INDEX IF NOT EXISTS idx_score_history_entity ON score_history(org_id, entity_id, recorded_at DESC);
CREATE INDEX IF NOT EXISTS idx_competitor_history_entity ON competitor_history(org_id, entity_id, recorded_at DESC);
CREATE INDEX IF NOT EXISTS idx_cost_entries_scan ON cost_entries(scan_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateScan(ctx context.Context, entity model.Entity) (*model.ScanRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	entityJSON, err := json.Marshal(entity)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal entity")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO scans (id, org_id, entity_id, entity, status, progress, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, entity.OrgID, entity.EntityID, entityJSON, string(model.ScanStatusQueued), 0, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert scan")
	}

	return &model.ScanRun{
		ID:        id,
		Entity:    entity,
		Status:    model.ScanStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) GetScan(ctx context.Context, scanID string) (*model.ScanRun, error) {
	var r model.ScanRun
	var entityJSON []byte
	var errMsg *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, entity, status, progress, error, created_at, updated_at FROM scans WHERE id = $1`,
		scanID,
	).Scan(&r.ID, &entityJSON, &r.Status, &r.Progress, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get scan %s", scanID)
	}

	if err := json.Unmarshal(entityJSON, &r.Entity); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal entity")
	}
	if errMsg != nil {
		r.Error = *errMsg
	}
	return &r, nil
}

func (s *PostgresStore) ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRun, error) {
	query := `SELECT id, entity, status, progress, error, created_at, updated_at FROM scans WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.OrgID != "" {
		query += fmt.Sprintf(` AND org_id = $%d`, argIdx)
		args = append(args, filter.OrgID)
		argIdx++
	}
	if filter.EntityID != "" {
		query += fmt.Sprintf(` AND entity_id = $%d`, argIdx)
		args = append(args, filter.EntityID)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scans")
	}
	defer rows.Close()

	var scans []model.ScanRun
	for rows.Next() {
		var r model.ScanRun
		var entityJSON []byte
		var errMsg *string

		if err := rows.Scan(&r.ID, &entityJSON, &r.Status, &r.Progress, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		if err := json.Unmarshal(entityJSON, &r.Entity); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal entity")
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		scans = append(scans, r)
	}
	return scans, eris.Wrap(rows.Err(), "postgres: list scans iterate")
}

func (s *PostgresStore) UpdateScanProgress(ctx context.Context, scanID string, status model.ScanStatus, progress int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scans SET status = $1, progress = $2, updated_at = $3 WHERE id = $4`,
		string(status), progress, time.Now().UTC(), scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update scan progress %s", scanID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scan not found: %s", scanID)
	}
	return nil
}

func (s *PostgresStore) FailScan(ctx context.Context, scanID, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scans SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.ScanStatusFailed), message, time.Now().UTC(), scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail scan %s", scanID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scan not found: %s", scanID)
	}
	return nil
}

func (s *PostgresStore) SetScanDifferentiation(ctx context.Context, scanID string, diff model.DifferentiationAnalysis) error {
	data, err := json.Marshal(diff)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal differentiation")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE scans SET differentiation = $1, updated_at = $2 WHERE id = $3`,
		data, time.Now().UTC(), scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set scan differentiation %s", scanID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scan not found: %s", scanID)
	}
	return nil
}

// ScanDifferentiation returns (nil, nil) when the scan exists but has not
// been analyzed yet.
func (s *PostgresStore) ScanDifferentiation(ctx context.Context, scanID string) (*model.DifferentiationAnalysis, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT differentiation FROM scans WHERE id = $1`, scanID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("scan not found: %s", scanID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: scan differentiation %s", scanID)
	}
	if data == nil {
		return nil, nil
	}
	var diff model.DifferentiationAnalysis
	if err := json.Unmarshal(data, &diff); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal differentiation")
	}
	return &diff, nil
}

func (s *PostgresStore) InsertPrompts(ctx context.Context, prompts []model.Prompt) error {
	rows := make([][]any, 0, len(prompts))
	for _, p := range prompts {
		rows = append(rows, []any{p.ID, p.ScanID, p.Index, p.Text, string(p.Category), p.RoleFamily})
	}
	_, err := db.CopyFrom(ctx, s.pool, "prompts",
		[]string{"id", "scan_id", "idx", "text", "category", "role_family"}, rows)
	return eris.Wrap(err, "postgres: insert prompts")
}

func (s *PostgresStore) PromptsForScan(ctx context.Context, scanID string) ([]model.Prompt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, scan_id, idx, text, category, role_family FROM prompts WHERE scan_id = $1 ORDER BY idx`,
		scanID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: prompts for scan")
	}
	defer rows.Close()

	var prompts []model.Prompt
	for rows.Next() {
		var p model.Prompt
		if err := rows.Scan(&p.ID, &p.ScanID, &p.Index, &p.Text, &p.Category, &p.RoleFamily); err != nil {
			return nil, eris.Wrap(err, "postgres: scan prompt")
		}
		prompts = append(prompts, p)
	}
	return prompts, eris.Wrap(rows.Err(), "postgres: prompts iterate")
}

func (s *PostgresStore) CountPrompts(ctx context.Context, scanID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM prompts WHERE scan_id = $1`, scanID).Scan(&n)
	return n, eris.Wrap(err, "postgres: count prompts")
}

func (s *PostgresStore) InsertResponses(ctx context.Context, responses []model.PlatformResponse) error {
	rows := make([][]any, 0, len(responses))
	for _, r := range responses {
		competitorsJSON, err := json.Marshal(r.CompetitorsMentioned)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal competitors")
		}
		sourcesJSON, err := json.Marshal(r.Sources)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal sources")
		}
		rows = append(rows, []any{
			r.ID, r.ScanID, r.PromptID, r.PromptIndex, string(r.Platform),
			r.Text, r.Mentioned, r.MentionPosition, competitorsJSON, sourcesJSON,
			r.ResponseTimeMs, r.Error,
		})
	}
	_, err := db.CopyFrom(ctx, s.pool, "responses",
		[]string{
			"id", "scan_id", "prompt_id", "prompt_idx", "platform",
			"text", "mentioned", "mention_position", "competitors", "sources",
			"response_time_ms", "error",
		}, rows)
	return eris.Wrap(err, "postgres: insert responses")
}

func (s *PostgresStore) ResponsesForScan(ctx context.Context, scanID string) ([]model.PlatformResponse, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, scan_id, prompt_id, prompt_idx, platform, text, mentioned, mention_position,
		        competitors, sources, response_time_ms, error, sentiment, research, insights
		 FROM responses WHERE scan_id = $1 ORDER BY prompt_idx, platform`,
		scanID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: responses for scan")
	}
	defer rows.Close()

	var responses []model.PlatformResponse
	for rows.Next() {
		var r model.PlatformResponse
		var competitorsJSON, sourcesJSON, sentimentJSON, researchJSON, insightsJSON []byte

		if err := rows.Scan(&r.ID, &r.ScanID, &r.PromptID, &r.PromptIndex, &r.Platform,
			&r.Text, &r.Mentioned, &r.MentionPosition, &competitorsJSON, &sourcesJSON,
			&r.ResponseTimeMs, &r.Error, &sentimentJSON, &researchJSON, &insightsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan response")
		}
		if err := unmarshalResponseJSON(&r, competitorsJSON, sourcesJSON, sentimentJSON, researchJSON, insightsJSON); err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, eris.Wrap(rows.Err(), "postgres: responses iterate")
}

func (s *PostgresStore) CountResponses(ctx context.Context, scanID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM responses WHERE scan_id = $1`, scanID).Scan(&n)
	return n, eris.Wrap(err, "postgres: count responses")
}

func (s *PostgresStore) CountScoredResponses(ctx context.Context, scanID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM responses WHERE scan_id = $1 AND sentiment IS NOT NULL`, scanID,
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count scored responses")
}

func (s *PostgresStore) UpdateResponseSentiments(ctx context.Context, sentiments map[string]model.SentimentAnalysis) error {
	if len(sentiments) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin sentiment patch")
	}
	defer tx.Rollback(ctx)

	for id, sentiment := range sentiments {
		sentimentJSON, err := json.Marshal(sentiment)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal sentiment")
		}
		if _, err := tx.Exec(ctx,
			`UPDATE responses SET sentiment = $1 WHERE id = $2`,
			sentimentJSON, id,
		); err != nil {
			return eris.Wrapf(err, "postgres: patch sentiment %s", id)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit sentiment patch")
}

func (s *PostgresStore) UpdateResponseResearch(ctx context.Context, responseID string, research model.ResearchScores, insights model.ResponseInsights) error {
	researchJSON, err := json.Marshal(research)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal research")
	}
	insightsJSON, err := json.Marshal(insights)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal insights")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE responses SET research = $1, insights = $2 WHERE id = $3`,
		researchJSON, insightsJSON, responseID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update response research %s", responseID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("response not found: %s", responseID)
	}
	return nil
}

func (s *PostgresStore) InsertReport(ctx context.Context, report *model.Report) error {
	bodyJSON, err := json.Marshal(bodyFromReport(report))
	if err != nil {
		return eris.Wrap(err, "postgres: marshal report body")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO reports (id, scan_id, org_id, entity_id, desirability, researchability, differentiation, body, share_token, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		report.ID, report.ScanID, report.OrgID, report.EntityID,
		report.DesirabilityScore, report.ResearchabilityScore, report.DifferentiationScore,
		bodyJSON, report.ShareToken, report.ExpiresAt, report.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert report")
}

const reportColumns = `id, scan_id, org_id, entity_id, desirability, researchability, differentiation,
       body, competitor_analysis, strategic_summary, action_plans, web_mentions,
       share_token, expires_at, created_at`

func (s *PostgresStore) GetReport(ctx context.Context, scanID string) (*model.Report, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE scan_id = $1`, scanID)
	return scanPostgresReport(row)
}

func (s *PostgresStore) GetReportByShareToken(ctx context.Context, token string) (*model.Report, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE share_token = $1 AND expires_at > now()`, token)
	return scanPostgresReport(row)
}

func scanPostgresReport(row pgx.Row) (*model.Report, error) {
	var r model.Report
	var bodyJSON []byte
	var competitorJSON, plansJSON, mentionsJSON []byte
	var summary *string

	err := row.Scan(&r.ID, &r.ScanID, &r.OrgID, &r.EntityID,
		&r.DesirabilityScore, &r.ResearchabilityScore, &r.DifferentiationScore,
		&bodyJSON, &competitorJSON, &summary, &plansJSON, &mentionsJSON,
		&r.ShareToken, &r.ExpiresAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.New("report not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan report")
	}

	var body reportBody
	if err := json.Unmarshal(bodyJSON, &body); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal report body")
	}
	body.apply(&r)

	if competitorJSON != nil {
		r.CompetitorAnalysis = &model.CompetitorAnalysis{}
		if err := json.Unmarshal(competitorJSON, r.CompetitorAnalysis); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal competitor analysis")
		}
	}
	if summary != nil {
		r.StrategicSummary = *summary
	}
	if plansJSON != nil {
		if err := json.Unmarshal(plansJSON, &r.ActionPlans); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal action plans")
		}
	}
	if mentionsJSON != nil {
		if err := json.Unmarshal(mentionsJSON, &r.WebMentions); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal web mentions")
		}
	}
	return &r, nil
}

func (s *PostgresStore) setReportField(ctx context.Context, scanID, column string, value any) error {
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE reports SET %s = $1 WHERE scan_id = $2`, column),
		value, scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set report %s", column)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("report not found for scan: %s", scanID)
	}
	return nil
}

func (s *PostgresStore) SetReportCompetitorAnalysis(ctx context.Context, scanID string, analysis *model.CompetitorAnalysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal competitor analysis")
	}
	return s.setReportField(ctx, scanID, "competitor_analysis", data)
}

func (s *PostgresStore) SetReportStrategicSummary(ctx context.Context, scanID, summary string) error {
	return s.setReportField(ctx, scanID, "strategic_summary", summary)
}

func (s *PostgresStore) SetReportActionPlans(ctx context.Context, scanID string, plans []model.RoleActionPlan) error {
	data, err := json.Marshal(plans)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal action plans")
	}
	return s.setReportField(ctx, scanID, "action_plans", data)
}

func (s *PostgresStore) SetReportWebMentions(ctx context.Context, scanID string, mentions []model.WebMention) error {
	data, err := json.Marshal(mentions)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal web mentions")
	}
	return s.setReportField(ctx, scanID, "web_mentions", data)
}

func (s *PostgresStore) FrozenQuestions(ctx context.Context, orgID, entityID string) ([]model.FrozenQuestion, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT org_id, entity_id, idx, text, category, role_family FROM frozen_questions
		 WHERE org_id = $1 AND entity_id = $2 ORDER BY idx`,
		orgID, entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: frozen questions")
	}
	defer rows.Close()

	var questions []model.FrozenQuestion
	for rows.Next() {
		var q model.FrozenQuestion
		if err := rows.Scan(&q.OrgID, &q.EntityID, &q.Index, &q.Text, &q.Category, &q.RoleFamily); err != nil {
			return nil, eris.Wrap(err, "postgres: scan frozen question")
		}
		questions = append(questions, q)
	}
	return questions, eris.Wrap(rows.Err(), "postgres: frozen questions iterate")
}

func (s *PostgresStore) FrozenCompetitors(ctx context.Context, orgID, entityID string) ([]model.FrozenCompetitor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT org_id, entity_id, name, domain, reason FROM frozen_competitors
		 WHERE org_id = $1 AND entity_id = $2 ORDER BY name`,
		orgID, entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: frozen competitors")
	}
	defer rows.Close()

	var competitors []model.FrozenCompetitor
	for rows.Next() {
		var c model.FrozenCompetitor
		if err := rows.Scan(&c.OrgID, &c.EntityID, &c.Name, &c.Domain, &c.Reason); err != nil {
			return nil, eris.Wrap(err, "postgres: scan frozen competitor")
		}
		competitors = append(competitors, c)
	}
	return competitors, eris.Wrap(rows.Err(), "postgres: frozen competitors iterate")
}

func (s *PostgresStore) FrozenRoleFamilies(ctx context.Context, orgID, entityID string) ([]model.FrozenRoleFamily, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT org_id, entity_id, name FROM frozen_role_families
		 WHERE org_id = $1 AND entity_id = $2 ORDER BY name`,
		orgID, entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: frozen role families")
	}
	defer rows.Close()

	var roles []model.FrozenRoleFamily
	for rows.Next() {
		var f model.FrozenRoleFamily
		if err := rows.Scan(&f.OrgID, &f.EntityID, &f.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan frozen role family")
		}
		roles = append(roles, f)
	}
	return roles, eris.Wrap(rows.Err(), "postgres: frozen role families iterate")
}

// SaveFrozenSet freezes the set only when no frozen questions exist yet for
// the entity, so a retried research step cannot double-freeze.
func (s *PostgresStore) SaveFrozenSet(ctx context.Context, orgID, entityID string, questions []model.FrozenQuestion, competitors []model.FrozenCompetitor, roles []model.FrozenRoleFamily) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin freeze")
	}
	defer tx.Rollback(ctx)

	var existing int
	if err := tx.QueryRow(ctx,
		`SELECT count(*) FROM frozen_questions WHERE org_id = $1 AND entity_id = $2`,
		orgID, entityID,
	).Scan(&existing); err != nil {
		return eris.Wrap(err, "postgres: count frozen questions")
	}
	if existing > 0 {
		return nil
	}

	for _, q := range questions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO frozen_questions (org_id, entity_id, idx, text, category, role_family) VALUES ($1, $2, $3, $4, $5, $6)`,
			orgID, entityID, q.Index, q.Text, string(q.Category), q.RoleFamily,
		); err != nil {
			return eris.Wrap(err, "postgres: insert frozen question")
		}
	}
	for _, c := range competitors {
		if _, err := tx.Exec(ctx,
			`INSERT INTO frozen_competitors (org_id, entity_id, name, domain, reason) VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
			orgID, entityID, c.Name, c.Domain, c.Reason,
		); err != nil {
			return eris.Wrap(err, "postgres: insert frozen competitor")
		}
	}
	for _, r := range roles {
		if _, err := tx.Exec(ctx,
			`INSERT INTO frozen_role_families (org_id, entity_id, name) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			orgID, entityID, r.Name,
		); err != nil {
			return eris.Wrap(err, "postgres: insert frozen role family")
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit freeze")
}

func (s *PostgresStore) Unfreeze(ctx context.Context, orgID, entityID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin unfreeze")
	}
	defer tx.Rollback(ctx)

	for _, table := range []string{"frozen_questions", "frozen_competitors", "frozen_role_families"} {
		if _, err := tx.Exec(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE org_id = $1 AND entity_id = $2`, table),
			orgID, entityID,
		); err != nil {
			return eris.Wrapf(err, "postgres: unfreeze %s", table)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit unfreeze")
}

func (s *PostgresStore) InsertScoreHistory(ctx context.Context, row model.ScoreHistory) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO score_history (id, org_id, entity_id, scan_id, desirability, researchability, differentiation, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.ID, row.OrgID, row.EntityID, row.ScanID,
		row.DesirabilityScore, row.ResearchabilityScore, row.DifferentiationScore, row.RecordedAt,
	)
	return eris.Wrap(err, "postgres: insert score history")
}

func (s *PostgresStore) InsertCompetitorHistory(ctx context.Context, rows []model.CompetitorHistory) error {
	data := make([][]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, []any{r.ID, r.OrgID, r.EntityID, r.ScanID, r.Competitor, r.MentionCount, r.CompositeRank, r.RecordedAt})
	}
	_, err := db.CopyFrom(ctx, s.pool, "competitor_history",
		[]string{"id", "org_id", "entity_id", "scan_id", "competitor", "mention_count", "composite_rank", "recorded_at"}, data)
	return eris.Wrap(err, "postgres: insert competitor history")
}

func (s *PostgresStore) ScoreHistory(ctx context.Context, orgID, entityID string, limit int) ([]model.ScoreHistory, error) {
	if limit <= 0 {
		limit = 52
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, org_id, entity_id, scan_id, desirability, researchability, differentiation, recorded_at
		 FROM score_history WHERE org_id = $1 AND entity_id = $2 ORDER BY recorded_at DESC LIMIT $3`,
		orgID, entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: score history")
	}
	defer rows.Close()

	var history []model.ScoreHistory
	for rows.Next() {
		var h model.ScoreHistory
		if err := rows.Scan(&h.ID, &h.OrgID, &h.EntityID, &h.ScanID,
			&h.DesirabilityScore, &h.ResearchabilityScore, &h.DifferentiationScore, &h.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan score history")
		}
		history = append(history, h)
	}
	return history, eris.Wrap(rows.Err(), "postgres: score history iterate")
}

func (s *PostgresStore) InsertCostEntry(ctx context.Context, entry model.CostEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cost_entries (id, scan_id, step, model, input_tokens, output_tokens, cost_usd, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.ScanID, entry.Step, entry.Model,
		entry.InputTokens, entry.OutputTokens, entry.CostUSD, entry.RecordedAt,
	)
	return eris.Wrap(err, "postgres: insert cost entry")
}

// unmarshalResponseJSON decodes the nullable JSON columns of a response row.
func unmarshalResponseJSON(r *model.PlatformResponse, competitors, sources, sentiment, research, insights []byte) error {
	if competitors != nil {
		if err := json.Unmarshal(competitors, &r.CompetitorsMentioned); err != nil {
			return eris.Wrap(err, "store: unmarshal competitors")
		}
	}
	if sources != nil {
		if err := json.Unmarshal(sources, &r.Sources); err != nil {
			return eris.Wrap(err, "store: unmarshal sources")
		}
	}
	if sentiment != nil {
		r.Sentiment = &model.SentimentAnalysis{}
		if err := json.Unmarshal(sentiment, r.Sentiment); err != nil {
			return eris.Wrap(err, "store: unmarshal sentiment")
		}
	}
	if research != nil {
		r.Research = &model.ResearchScores{}
		if err := json.Unmarshal(research, r.Research); err != nil {
			return eris.Wrap(err, "store: unmarshal research")
		}
	}
	if insights != nil {
		r.Insights = &model.ResponseInsights{}
		if err := json.Unmarshal(insights, r.Insights); err != nil {
			return eris.Wrap(err, "store: unmarshal insights")
		}
	}
	return nil
}
