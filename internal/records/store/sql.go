package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	evidence "kycbuster/internal/evidence/models"
	"kycbuster/internal/records/models"
	id "kycbuster/pkg/domain"
	"kycbuster/pkg/platform/sentinel"
)

// Schema is shared by PostgreSQL and SQLite. JSON-valued fields are stored as
// serialized text. created_at holds UTC unix microseconds so ordering is exact
// on both engines.
const Schema = `
CREATE TABLE IF NOT EXISTS kyc_records (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	document_evidence TEXT NOT NULL,
	document_verdict TEXT NOT NULL,
	liveness_verdict TEXT NOT NULL,
	voice_verdict TEXT NOT NULL,
	final_decision TEXT NOT NULL,
	risk_score INTEGER NOT NULL,
	confidence_score INTEGER NOT NULL,
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_kyc_records_user_created ON kyc_records (user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_kyc_records_created ON kyc_records (created_at);

CREATE TABLE IF NOT EXISTS video_analyses (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	video_name TEXT NOT NULL,
	is_deepfake BOOLEAN NOT NULL,
	risk_level TEXT NOT NULL,
	confidence_score INTEGER NOT NULL,
	analysis_data TEXT NOT NULL,
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_video_analyses_user_created ON video_analyses (user_id, created_at);
`

// SQL implements the record store over database/sql. Queries use $N
// placeholders in ascending order, which lib/pq and go-sqlite3 both bind
// positionally.
type SQL struct {
	db *sql.DB
}

func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) InsertRecord(ctx context.Context, r *models.VerificationRecord) error {
	docEvidence, err := json.Marshal(r.DocumentEvidence)
	if err != nil {
		return fmt.Errorf("marshal document evidence: %w", err)
	}
	docVerdict, err := json.Marshal(r.DocumentVerdict)
	if err != nil {
		return fmt.Errorf("marshal document verdict: %w", err)
	}
	liveVerdict, err := json.Marshal(r.LivenessVerdict)
	if err != nil {
		return fmt.Errorf("marshal liveness verdict: %w", err)
	}
	voiceVerdict, err := json.Marshal(r.VoiceVerdict)
	if err != nil {
		return fmt.Errorf("marshal voice verdict: %w", err)
	}
	final, err := json.Marshal(r.FinalDecision)
	if err != nil {
		return fmt.Errorf("marshal final decision: %w", err)
	}

	query := `
		INSERT INTO kyc_records (
			id, user_id, status, document_evidence, document_verdict,
			liveness_verdict, voice_verdict, final_decision, risk_score,
			confidence_score, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		r.ID.String(),
		r.UserID.String(),
		string(r.Status),
		string(docEvidence),
		string(docVerdict),
		string(liveVerdict),
		string(voiceVerdict),
		string(final),
		r.FinalDecision.RiskScore,
		r.FinalDecision.ConfidenceScore,
		encodeTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert verification record: %w", err)
	}
	return requireInserted(res, "verification record "+r.ID.String())
}

const recordColumns = `id, user_id, status, document_evidence, document_verdict,
	liveness_verdict, voice_verdict, final_decision, created_at`

func (s *SQL) HistoryForUser(ctx context.Context, userID id.UserID) ([]models.VerificationRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM kyc_records
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`
	return s.queryRecords(ctx, query, userID.String())
}

func (s *SQL) recentRecords(ctx context.Context, limit int) ([]models.VerificationRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM kyc_records
		ORDER BY created_at DESC, id DESC
		LIMIT $1`
	return s.queryRecords(ctx, query, limit)
}

func (s *SQL) queryRecords(ctx context.Context, query string, args ...any) ([]models.VerificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query verification records: %w", err)
	}
	defer rows.Close()

	out := []models.VerificationRecord{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification records: %w", err)
	}
	return out, nil
}

func scanRecord(rows *sql.Rows) (models.VerificationRecord, error) {
	var (
		r                                                         models.VerificationRecord
		rawID, rawUser, status                                    string
		docEvidence, docVerdict, liveVerdict, voiceVerdict, final string
		createdAt                                                 int64
	)
	if err := rows.Scan(&rawID, &rawUser, &status, &docEvidence, &docVerdict,
		&liveVerdict, &voiceVerdict, &final, &createdAt); err != nil {
		return r, fmt.Errorf("scan verification record: %w", err)
	}
	recordID, err := uuid.Parse(rawID)
	if err != nil {
		return r, fmt.Errorf("parse record id: %w", err)
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return r, fmt.Errorf("parse record user id: %w", err)
	}
	r.ID = id.RecordID(recordID)
	r.UserID = id.UserID(userID)
	r.Status = models.Status(status)
	r.CreatedAt = decodeTime(createdAt)

	for _, field := range []struct {
		name string
		raw  string
		dst  any
	}{
		{"document evidence", docEvidence, &r.DocumentEvidence},
		{"document verdict", docVerdict, &r.DocumentVerdict},
		{"liveness verdict", liveVerdict, &r.LivenessVerdict},
		{"voice verdict", voiceVerdict, &r.VoiceVerdict},
		{"final decision", final, &r.FinalDecision},
	} {
		if err := json.Unmarshal([]byte(field.raw), field.dst); err != nil {
			return r, fmt.Errorf("decode %s: %w", field.name, err)
		}
	}
	return r, nil
}

func (s *SQL) InsertVideoRecord(ctx context.Context, r *models.VideoAnalysisRecord) error {
	payload, err := json.Marshal(r.AnalysisPayload)
	if err != nil {
		return fmt.Errorf("marshal video analysis: %w", err)
	}
	query := `
		INSERT INTO video_analyses (
			id, user_id, video_name, is_deepfake, risk_level,
			confidence_score, analysis_data, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		r.ID.String(),
		r.UserID.String(),
		r.VideoName,
		r.IsDeepfake,
		string(r.RiskLevel),
		r.ConfidenceScore,
		string(payload),
		encodeTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert video analysis: %w", err)
	}
	return requireInserted(res, "video analysis "+r.ID.String())
}

// requireInserted turns a skipped insert into a conflict. Records are never
// overwritten.
func requireInserted(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert %s: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s already exists: %w", what, sentinel.ErrConflict)
	}
	return nil
}

func (s *SQL) VideoHistoryForUser(ctx context.Context, userID id.UserID) ([]models.VideoAnalysisRecord, error) {
	query := `
		SELECT id, user_id, video_name, is_deepfake, risk_level,
			confidence_score, analysis_data, created_at
		FROM video_analyses
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("query video analyses: %w", err)
	}
	defer rows.Close()

	out := []models.VideoAnalysisRecord{}
	for rows.Next() {
		var (
			r                    models.VideoAnalysisRecord
			rawID, rawUser, risk string
			payload              string
			createdAt            int64
		)
		if err := rows.Scan(&rawID, &rawUser, &r.VideoName, &r.IsDeepfake, &risk,
			&r.ConfidenceScore, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan video analysis: %w", err)
		}
		videoID, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("parse video id: %w", err)
		}
		owner, err := uuid.Parse(rawUser)
		if err != nil {
			return nil, fmt.Errorf("parse video user id: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &r.AnalysisPayload); err != nil {
			return nil, fmt.Errorf("decode video analysis: %w", err)
		}
		r.ID = id.VideoRecordID(videoID)
		r.UserID = id.UserID(owner)
		r.RiskLevel = evidence.RiskLevel(risk)
		r.CreatedAt = decodeTime(createdAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate video analyses: %w", err)
	}
	return out, nil
}

// AggregateStats runs the aggregate queries directly against the tables on
// every call.
func (s *SQL) AggregateStats(ctx context.Context, recentLimit int) (*models.Stats, error) {
	stats := models.NewStats()

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM kyc_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count records by status: %w", err)
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		stats.StatusCounts[models.Status(status)] = count
		stats.TotalRecords += count
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}
	rows.Close()

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT user_id) FROM kyc_records`,
	).Scan(&stats.DistinctUsers); err != nil {
		return nil, fmt.Errorf("count distinct users: %w", err)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_deepfake THEN 1 ELSE 0 END), 0) FROM video_analyses`,
	).Scan(&stats.TotalVideos, &stats.VideoDeepfakes); err != nil {
		return nil, fmt.Errorf("count video analyses: %w", err)
	}

	if recentLimit > 0 {
		recent, err := s.recentRecords(ctx, recentLimit)
		if err != nil {
			return nil, err
		}
		for _, r := range recent {
			stats.Recent = append(stats.Recent, models.ActivityFrom(r))
		}
	}
	return stats, nil
}

func encodeTime(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func decodeTime(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}
