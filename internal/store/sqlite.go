package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/brandlens/scan-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS scans (
	id              TEXT PRIMARY KEY,
	org_id          TEXT NOT NULL,
	entity_id       TEXT NOT NULL,
	entity          TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'queued',
	progress        INTEGER NOT NULL DEFAULT 0,
	error           TEXT,
	differentiation TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
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
	mentioned        INTEGER NOT NULL DEFAULT 0,
	mention_position INTEGER NOT NULL DEFAULT -1,
	competitors      TEXT,
	sources          TEXT,
	response_time_ms INTEGER NOT NULL DEFAULT 0,
	error            TEXT NOT NULL DEFAULT '',
	sentiment        TEXT,
	research         TEXT,
	insights         TEXT,
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
	body                TEXT NOT NULL,
	competitor_analysis TEXT,
	strategic_summary   TEXT,
	action_plans        TEXT,
	web_mentions        TEXT,
	share_token         TEXT NOT NULL UNIQUE,
	expires_at          DATETIME NOT NULL,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now'))
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
	recorded_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS competitor_history (
	id             TEXT PRIMARY KEY,
	org_id         TEXT NOT NULL,
	entity_id      TEXT NOT NULL,
	scan_id        TEXT NOT NULL,
	competitor     TEXT NOT NULL,
	mention_count  INTEGER NOT NULL DEFAULT 0,
	composite_rank INTEGER NOT NULL DEFAULT 0,
	recorded_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS cost_entries (
	id            TEXT PRIMARY KEY,
	scan_id       TEXT NOT NULL,
	step          TEXT NOT NULL,
	model         TEXT NOT NULL,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	recorded_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);
CREATE INDEX IF NOT EXISTS idx_scans_entity ON scans(org_id, entity_id);
CREATE INDEX IF NOT EXISTS idx_prompts_scan ON prompts(scan_id);
CREATE INDEX IF NOT EXISTS idx_responses_scan ON responses(scan_id);
CREATE INDEX IF NOT EXISTS idx_score_history_entity ON score_history(org_id, entity_id);
CREATE INDEX IF NOT EXISTS idx_competitor_history_entity ON competitor_history(org_id, entity_id);
CREATE INDEX IF NOT EXISTS idx_cost_entries_scan ON cost_entries(scan_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateScan(ctx context.Context, entity model.Entity) (*model.ScanRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	entityJSON, err := json.Marshal(entity)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal entity")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scans (id, org_id, entity_id, entity, status, progress, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, entity.OrgID, entity.EntityID, string(entityJSON), string(model.ScanStatusQueued), 0, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert scan")
	}

	return &model.ScanRun{
		ID:        id,
		Entity:    entity,
		Status:    model.ScanStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) GetScan(ctx context.Context, scanID string) (*model.ScanRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, entity, status, progress, error, created_at, updated_at FROM scans WHERE id = ?`,
		scanID,
	)

	var r model.ScanRun
	var entityJSON string
	var errMsg sql.NullString
	err := row.Scan(&r.ID, &entityJSON, &r.Status, &r.Progress, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("scan not found: %s", scanID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get scan %s", scanID)
	}
	if err := json.Unmarshal([]byte(entityJSON), &r.Entity); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal entity")
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	return &r, nil
}

func (s *SQLiteStore) ListScans(ctx context.Context, filter ScanFilter) ([]model.ScanRun, error) {
	query := `SELECT id, entity, status, progress, error, created_at, updated_at FROM scans WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.OrgID != "" {
		query += ` AND org_id = ?`
		args = append(args, filter.OrgID)
	}
	if filter.EntityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, filter.EntityID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scans")
	}
	defer rows.Close()

	var scans []model.ScanRun
	for rows.Next() {
		var r model.ScanRun
		var entityJSON string
		var errMsg sql.NullString

		if err := rows.Scan(&r.ID, &entityJSON, &r.Status, &r.Progress, &errMsg, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		if err := json.Unmarshal([]byte(entityJSON), &r.Entity); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal entity")
		}
		if errMsg.Valid {
			r.Error = errMsg.String
		}
		scans = append(scans, r)
	}
	return scans, eris.Wrap(rows.Err(), "sqlite: list scans iterate")
}

func (s *SQLiteStore) UpdateScanProgress(ctx context.Context, scanID string, status model.ScanStatus, progress int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = ?, progress = ?, updated_at = ? WHERE id = ?`,
		string(status), progress, time.Now().UTC(), scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update scan progress %s", scanID)
	}
	return checkRowsAffected(res, "scan", scanID)
}

func (s *SQLiteStore) FailScan(ctx context.Context, scanID, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.ScanStatusFailed), message, time.Now().UTC(), scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail scan %s", scanID)
	}
	return checkRowsAffected(res, "scan", scanID)
}

func (s *SQLiteStore) SetScanDifferentiation(ctx context.Context, scanID string, diff model.DifferentiationAnalysis) error {
	data, err := json.Marshal(diff)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal differentiation")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET differentiation = ?, updated_at = ? WHERE id = ?`,
		string(data), time.Now().UTC(), scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set scan differentiation %s", scanID)
	}
	return checkRowsAffected(res, "scan", scanID)
}

// ScanDifferentiation returns (nil, nil) when the scan exists but has not
// been analyzed yet.
func (s *SQLiteStore) ScanDifferentiation(ctx context.Context, scanID string) (*model.DifferentiationAnalysis, error) {
	var data sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT differentiation FROM scans WHERE id = ?`, scanID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("scan not found: %s", scanID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: scan differentiation %s", scanID)
	}
	if !data.Valid {
		return nil, nil
	}
	var diff model.DifferentiationAnalysis
	if err := json.Unmarshal([]byte(data.String), &diff); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal differentiation")
	}
	return &diff, nil
}

func (s *SQLiteStore) InsertPrompts(ctx context.Context, prompts []model.Prompt) error {
	if len(prompts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert prompts")
	}
	defer tx.Rollback()

	for _, p := range prompts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO prompts (id, scan_id, idx, text, category, role_family) VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.ScanID, p.Index, p.Text, string(p.Category), p.RoleFamily,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert prompt")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert prompts")
}

func (s *SQLiteStore) PromptsForScan(ctx context.Context, scanID string) ([]model.Prompt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scan_id, idx, text, category, role_family FROM prompts WHERE scan_id = ? ORDER BY idx`,
		scanID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prompts for scan")
	}
	defer rows.Close()

	var prompts []model.Prompt
	for rows.Next() {
		var p model.Prompt
		if err := rows.Scan(&p.ID, &p.ScanID, &p.Index, &p.Text, &p.Category, &p.RoleFamily); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan prompt")
		}
		prompts = append(prompts, p)
	}
	return prompts, eris.Wrap(rows.Err(), "sqlite: prompts iterate")
}

func (s *SQLiteStore) CountPrompts(ctx context.Context, scanID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM prompts WHERE scan_id = ?`, scanID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count prompts")
}

func (s *SQLiteStore) InsertResponses(ctx context.Context, responses []model.PlatformResponse) error {
	if len(responses) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert responses")
	}
	defer tx.Rollback()

	for _, r := range responses {
		competitorsJSON, err := json.Marshal(r.CompetitorsMentioned)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal competitors")
		}
		sourcesJSON, err := json.Marshal(r.Sources)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal sources")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO responses (id, scan_id, prompt_id, prompt_idx, platform, text, mentioned, mention_position, competitors, sources, response_time_ms, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.ScanID, r.PromptID, r.PromptIndex, string(r.Platform),
			r.Text, r.Mentioned, r.MentionPosition, string(competitorsJSON), string(sourcesJSON),
			r.ResponseTimeMs, r.Error,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert response")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert responses")
}

func (s *SQLiteStore) ResponsesForScan(ctx context.Context, scanID string) ([]model.PlatformResponse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scan_id, prompt_id, prompt_idx, platform, text, mentioned, mention_position,
		        competitors, sources, response_time_ms, error, sentiment, research, insights
		 FROM responses WHERE scan_id = ? ORDER BY prompt_idx, platform`,
		scanID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: responses for scan")
	}
	defer rows.Close()

	var responses []model.PlatformResponse
	for rows.Next() {
		var r model.PlatformResponse
		var competitors, sources, sentiment, research, insights sql.NullString

		if err := rows.Scan(&r.ID, &r.ScanID, &r.PromptID, &r.PromptIndex, &r.Platform,
			&r.Text, &r.Mentioned, &r.MentionPosition, &competitors, &sources,
			&r.ResponseTimeMs, &r.Error, &sentiment, &research, &insights); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan response")
		}
		if err := unmarshalResponseJSON(&r,
			nullBytes(competitors), nullBytes(sources), nullBytes(sentiment),
			nullBytes(research), nullBytes(insights)); err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, eris.Wrap(rows.Err(), "sqlite: responses iterate")
}

func (s *SQLiteStore) CountResponses(ctx context.Context, scanID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM responses WHERE scan_id = ?`, scanID).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count responses")
}

func (s *SQLiteStore) CountScoredResponses(ctx context.Context, scanID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM responses WHERE scan_id = ? AND sentiment IS NOT NULL`, scanID,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count scored responses")
}

func (s *SQLiteStore) UpdateResponseSentiments(ctx context.Context, sentiments map[string]model.SentimentAnalysis) error {
	if len(sentiments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin sentiment patch")
	}
	defer tx.Rollback()

	for id, sentiment := range sentiments {
		sentimentJSON, err := json.Marshal(sentiment)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal sentiment")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE responses SET sentiment = ? WHERE id = ?`,
			string(sentimentJSON), id,
		); err != nil {
			return eris.Wrapf(err, "sqlite: patch sentiment %s", id)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit sentiment patch")
}

func (s *SQLiteStore) UpdateResponseResearch(ctx context.Context, responseID string, research model.ResearchScores, insights model.ResponseInsights) error {
	researchJSON, err := json.Marshal(research)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal research")
	}
	insightsJSON, err := json.Marshal(insights)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal insights")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE responses SET research = ?, insights = ? WHERE id = ?`,
		string(researchJSON), string(insightsJSON), responseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update response research %s", responseID)
	}
	return checkRowsAffected(res, "response", responseID)
}

func (s *SQLiteStore) InsertReport(ctx context.Context, report *model.Report) error {
	bodyJSON, err := json.Marshal(bodyFromReport(report))
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal report body")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, scan_id, org_id, entity_id, desirability, researchability, differentiation, body, share_token, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.ScanID, report.OrgID, report.EntityID,
		report.DesirabilityScore, report.ResearchabilityScore, report.DifferentiationScore,
		string(bodyJSON), report.ShareToken, report.ExpiresAt, report.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert report")
}

func (s *SQLiteStore) GetReport(ctx context.Context, scanID string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE scan_id = ?`, scanID)
	return scanSQLiteReport(row)
}

func (s *SQLiteStore) GetReportByShareToken(ctx context.Context, token string) (*model.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE share_token = ? AND expires_at > datetime('now')`, token)
	return scanSQLiteReport(row)
}

func scanSQLiteReport(row scannable) (*model.Report, error) {
	var r model.Report
	var bodyJSON string
	var competitorJSON, summary, plansJSON, mentionsJSON sql.NullString

	err := row.Scan(&r.ID, &r.ScanID, &r.OrgID, &r.EntityID,
		&r.DesirabilityScore, &r.ResearchabilityScore, &r.DifferentiationScore,
		&bodyJSON, &competitorJSON, &summary, &plansJSON, &mentionsJSON,
		&r.ShareToken, &r.ExpiresAt, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("report not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan report")
	}

	var body reportBody
	if err := json.Unmarshal([]byte(bodyJSON), &body); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal report body")
	}
	body.apply(&r)

	if competitorJSON.Valid {
		r.CompetitorAnalysis = &model.CompetitorAnalysis{}
		if err := json.Unmarshal([]byte(competitorJSON.String), r.CompetitorAnalysis); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal competitor analysis")
		}
	}
	if summary.Valid {
		r.StrategicSummary = summary.String
	}
	if plansJSON.Valid {
		if err := json.Unmarshal([]byte(plansJSON.String), &r.ActionPlans); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal action plans")
		}
	}
	if mentionsJSON.Valid {
		if err := json.Unmarshal([]byte(mentionsJSON.String), &r.WebMentions); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal web mentions")
		}
	}
	return &r, nil
}

func (s *SQLiteStore) setReportField(ctx context.Context, scanID, column, value string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET `+column+` = ? WHERE scan_id = ?`,
		value, scanID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set report %s", column)
	}
	return checkRowsAffected(res, "report", scanID)
}

func (s *SQLiteStore) SetReportCompetitorAnalysis(ctx context.Context, scanID string, analysis *model.CompetitorAnalysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal competitor analysis")
	}
	return s.setReportField(ctx, scanID, "competitor_analysis", string(data))
}

func (s *SQLiteStore) SetReportStrategicSummary(ctx context.Context, scanID, summary string) error {
	return s.setReportField(ctx, scanID, "strategic_summary", summary)
}

func (s *SQLiteStore) SetReportActionPlans(ctx context.Context, scanID string, plans []model.RoleActionPlan) error {
	data, err := json.Marshal(plans)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal action plans")
	}
	return s.setReportField(ctx, scanID, "action_plans", string(data))
}

func (s *SQLiteStore) SetReportWebMentions(ctx context.Context, scanID string, mentions []model.WebMention) error {
	data, err := json.Marshal(mentions)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal web mentions")
	}
	return s.setReportField(ctx, scanID, "web_mentions", string(data))
}

func (s *SQLiteStore) FrozenQuestions(ctx context.Context, orgID, entityID string) ([]model.FrozenQuestion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT org_id, entity_id, idx, text, category, role_family FROM frozen_questions
		 WHERE org_id = ? AND entity_id = ? ORDER BY idx`,
		orgID, entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: frozen questions")
	}
	defer rows.Close()

	var questions []model.FrozenQuestion
	for rows.Next() {
		var q model.FrozenQuestion
		if err := rows.Scan(&q.OrgID, &q.EntityID, &q.Index, &q.Text, &q.Category, &q.RoleFamily); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan frozen question")
		}
		questions = append(questions, q)
	}
	return questions, eris.Wrap(rows.Err(), "sqlite: frozen questions iterate")
}

func (s *SQLiteStore) FrozenCompetitors(ctx context.Context, orgID, entityID string) ([]model.FrozenCompetitor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT org_id, entity_id, name, domain, reason FROM frozen_competitors
		 WHERE org_id = ? AND entity_id = ? ORDER BY name`,
		orgID, entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: frozen competitors")
	}
	defer rows.Close()

	var competitors []model.FrozenCompetitor
	for rows.Next() {
		var c model.FrozenCompetitor
		if err := rows.Scan(&c.OrgID, &c.EntityID, &c.Name, &c.Domain, &c.Reason); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan frozen competitor")
		}
		competitors = append(competitors, c)
	}
	return competitors, eris.Wrap(rows.Err(), "sqlite: frozen competitors iterate")
}

func (s *SQLiteStore) FrozenRoleFamilies(ctx context.Context, orgID, entityID string) ([]model.FrozenRoleFamily, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT org_id, entity_id, name FROM frozen_role_families
		 WHERE org_id = ? AND entity_id = ? ORDER BY name`,
		orgID, entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: frozen role families")
	}
	defer rows.Close()

	var roles []model.FrozenRoleFamily
	for rows.Next() {
		var f model.FrozenRoleFamily
		if err := rows.Scan(&f.OrgID, &f.EntityID, &f.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan frozen role family")
		}
		roles = append(roles, f)
	}
	return roles, eris.Wrap(rows.Err(), "sqlite: frozen role families iterate")
}

func (s *SQLiteStore) SaveFrozenSet(ctx context.Context, orgID, entityID string, questions []model.FrozenQuestion, competitors []model.FrozenCompetitor, roles []model.FrozenRoleFamily) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin freeze")
	}
	defer tx.Rollback()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT count(*) FROM frozen_questions WHERE org_id = ? AND entity_id = ?`,
		orgID, entityID,
	).Scan(&existing); err != nil {
		return eris.Wrap(err, "sqlite: count frozen questions")
	}
	if existing > 0 {
		return nil
	}

	for _, q := range questions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO frozen_questions (org_id, entity_id, idx, text, category, role_family) VALUES (?, ?, ?, ?, ?, ?)`,
			orgID, entityID, q.Index, q.Text, string(q.Category), q.RoleFamily,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert frozen question")
		}
	}
	for _, c := range competitors {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO frozen_competitors (org_id, entity_id, name, domain, reason) VALUES (?, ?, ?, ?, ?)`,
			orgID, entityID, c.Name, c.Domain, c.Reason,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert frozen competitor")
		}
	}
	for _, r := range roles {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO frozen_role_families (org_id, entity_id, name) VALUES (?, ?, ?)`,
			orgID, entityID, r.Name,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert frozen role family")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit freeze")
}

func (s *SQLiteStore) Unfreeze(ctx context.Context, orgID, entityID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin unfreeze")
	}
	defer tx.Rollback()

	for _, table := range []string{"frozen_questions", "frozen_competitors", "frozen_role_families"} {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE org_id = ? AND entity_id = ?`,
			orgID, entityID,
		); err != nil {
			return eris.Wrapf(err, "sqlite: unfreeze %s", table)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit unfreeze")
}

func (s *SQLiteStore) InsertScoreHistory(ctx context.Context, row model.ScoreHistory) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO score_history (id, org_id, entity_id, scan_id, desirability, researchability, differentiation, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.OrgID, row.EntityID, row.ScanID,
		row.DesirabilityScore, row.ResearchabilityScore, row.DifferentiationScore, row.RecordedAt,
	)
	return eris.Wrap(err, "sqlite: insert score history")
}

func (s *SQLiteStore) InsertCompetitorHistory(ctx context.Context, rows []model.CompetitorHistory) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert competitor history")
	}
	defer tx.Rollback()

	for _, r := range rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO competitor_history (id, org_id, entity_id, scan_id, competitor, mention_count, composite_rank, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.OrgID, r.EntityID, r.ScanID, r.Competitor, r.MentionCount, r.CompositeRank, r.RecordedAt,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert competitor history")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert competitor history")
}

func (s *SQLiteStore) ScoreHistory(ctx context.Context, orgID, entityID string, limit int) ([]model.ScoreHistory, error) {
	if limit <= 0 {
		limit = 52
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, entity_id, scan_id, desirability, researchability, differentiation, recorded_at
		 FROM score_history WHERE org_id = ? AND entity_id = ? ORDER BY recorded_at DESC LIMIT ?`,
		orgID, entityID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: score history")
	}
	defer rows.Close()

	var history []model.ScoreHistory
	for rows.Next() {
		var h model.ScoreHistory
		if err := rows.Scan(&h.ID, &h.OrgID, &h.EntityID, &h.ScanID,
			&h.DesirabilityScore, &h.ResearchabilityScore, &h.DifferentiationScore, &h.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score history")
		}
		history = append(history, h)
	}
	return history, eris.Wrap(rows.Err(), "sqlite: score history iterate")
}

func (s *SQLiteStore) InsertCostEntry(ctx context.Context, entry model.CostEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cost_entries (id, scan_id, step, model, input_tokens, output_tokens, cost_usd, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ScanID, entry.Step, entry.Model,
		entry.InputTokens, entry.OutputTokens, entry.CostUSD, entry.RecordedAt,
	)
	return eris.Wrap(err, "sqlite: insert cost entry")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func nullBytes(s sql.NullString) []byte {
	if !s.Valid {
		return nil
	}
	return []byte(s.String)
}
