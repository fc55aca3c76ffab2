package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/reunite/internal/config"
	"github.com/your-org/reunite/internal/match"
	"github.com/your-org/reunite/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Cases ---

func (s *PostgresStore) CreateCase(ctx context.Context, c *models.Case) error {
	c.ID = uuid.New()
	c.Status = models.CaseStatusNotFound
	vec := pgvector.NewVector(c.Embedding)
	return s.pool.QueryRow(ctx,
		`INSERT INTO cases (id, submitted_by, name, father_name, age, complainant_name, complainant_mobile,
		                    last_seen, address, birth_marks, embedding, photo_key, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING created_at, updated_at`,
		c.ID, c.SubmittedBy, c.Name, c.FatherName, c.Age, c.ComplainantName, c.ComplainantMobile,
		c.LastSeen, c.Address, c.BirthMarks, vec, c.PhotoKey, c.Status,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
}

func (s *PostgresStore) GetCase(ctx context.Context, id uuid.UUID) (*models.Case, error) {
	c := &models.Case{}
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT id, submitted_by, name, father_name, age, complainant_name, complainant_mobile,
		        last_seen, address, birth_marks, embedding, photo_key, status, matched_with, created_at, updated_at
		 FROM cases WHERE id = $1`, id,
	).Scan(&c.ID, &c.SubmittedBy, &c.Name, &c.FatherName, &c.Age, &c.ComplainantName, &c.ComplainantMobile,
		&c.LastSeen, &c.Address, &c.BirthMarks, &vec, &c.PhotoKey, &c.Status, &c.MatchedWith, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get case: %w", err)
	}
	c.Embedding = vec.Slice()
	return c, nil
}

func (s *PostgresStore) ListCases(ctx context.Context, status *models.CaseStatus) ([]models.Case, error) {
	query := `SELECT id, submitted_by, name, father_name, age, complainant_name, complainant_mobile,
	                 last_seen, address, birth_marks, photo_key, status, matched_with, created_at, updated_at
	          FROM cases`
	var args []interface{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var cases []models.Case
	for rows.Next() {
		var c models.Case
		if err := rows.Scan(&c.ID, &c.SubmittedBy, &c.Name, &c.FatherName, &c.Age, &c.ComplainantName,
			&c.ComplainantMobile, &c.LastSeen, &c.Address, &c.BirthMarks, &c.PhotoKey, &c.Status,
			&c.MatchedWith, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func (s *PostgresStore) DeleteCase(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("case not found")
	}
	return nil
}

// --- Sightings ---

func (s *PostgresStore) CreateSighting(ctx context.Context, sg *models.Sighting) error {
	sg.ID = uuid.New()
	sg.Status = models.SightingStatusUnderReview
	vec := pgvector.NewVector(sg.Embedding)
	return s.pool.QueryRow(ctx,
		`INSERT INTO sightings (id, submitted_by, location, mobile, email, birth_marks, embedding, photo_key, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at`,
		sg.ID, sg.SubmittedBy, sg.Location, sg.Mobile, sg.Email, sg.BirthMarks, vec, sg.PhotoKey, sg.Status,
	).Scan(&sg.CreatedAt)
}

func (s *PostgresStore) GetSighting(ctx context.Context, id uuid.UUID) (*models.Sighting, error) {
	sg := &models.Sighting{}
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx,
		`SELECT id, submitted_by, location, mobile, email, birth_marks, embedding, photo_key, status, created_at
		 FROM sightings WHERE id = $1`, id,
	).Scan(&sg.ID, &sg.SubmittedBy, &sg.Location, &sg.Mobile, &sg.Email, &sg.BirthMarks,
		&vec, &sg.PhotoKey, &sg.Status, &sg.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get sighting: %w", err)
	}
	sg.Embedding = vec.Slice()
	return sg, nil
}

func (s *PostgresStore) ListSightings(ctx context.Context, status *models.SightingStatus) ([]models.Sighting, error) {
	query := `SELECT id, submitted_by, location, mobile, email, birth_marks, photo_key, status, created_at
	          FROM sightings`
	var args []interface{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sightings: %w", err)
	}
	defer rows.Close()

	var sightings []models.Sighting
	for rows.Next() {
		var sg models.Sighting
		if err := rows.Scan(&sg.ID, &sg.SubmittedBy, &sg.Location, &sg.Mobile, &sg.Email,
			&sg.BirthMarks, &sg.PhotoKey, &sg.Status, &sg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan sighting: %w", err)
		}
		sightings = append(sightings, sg)
	}
	return sightings, nil
}

func (s *PostgresStore) DeleteSighting(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sightings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sighting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sighting not found")
	}
	return nil
}

// --- Embedding repository adapter ---

// CaseCandidates loads embeddings for cases in the given status. Rows whose
// embedding is the zero placeholder are dropped with a warning rather than
// failing the load; mixed dimensions are passed through for the resolver to
// gate.
func (s *PostgresStore) CaseCandidates(ctx context.Context, status models.CaseStatus) ([]match.Candidate, error) {
	return s.candidates(ctx,
		`SELECT id, embedding FROM cases WHERE status = $1 ORDER BY created_at`, string(status))
}

// SightingCandidates mirrors CaseCandidates for the sighting population.
func (s *PostgresStore) SightingCandidates(ctx context.Context, status models.SightingStatus) ([]match.Candidate, error) {
	return s.candidates(ctx,
		`SELECT id, embedding FROM sightings WHERE status = $1 ORDER BY created_at`, string(status))
}

func (s *PostgresStore) candidates(ctx context.Context, query, status string) ([]match.Candidate, error) {
	rows, err := s.pool.Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	defer rows.Close()

	var candidates []match.Candidate
	for rows.Next() {
		var id uuid.UUID
		var vec pgvector.Vector
		if err := rows.Scan(&id, &vec); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		emb := vec.Slice()
		if match.IsZero(emb) {
			slog.Warn("skipping record with placeholder embedding", "id", id)
			continue
		}
		candidates = append(candidates, match.Candidate{ID: id, Embedding: emb})
	}
	return candidates, rows.Err()
}

// CaseCandidate returns a single case's embedding, nil when absent.
func (s *PostgresStore) CaseCandidate(ctx context.Context, id uuid.UUID) (*match.Candidate, error) {
	return s.candidate(ctx, `SELECT id, embedding FROM cases WHERE id = $1`, id)
}

// SightingCandidate returns a single sighting's embedding, nil when absent.
func (s *PostgresStore) SightingCandidate(ctx context.Context, id uuid.UUID) (*match.Candidate, error) {
	return s.candidate(ctx, `SELECT id, embedding FROM sightings WHERE id = $1`, id)
}

func (s *PostgresStore) candidate(ctx context.Context, query string, id uuid.UUID) (*match.Candidate, error) {
	var c match.Candidate
	var vec pgvector.Vector
	err := s.pool.QueryRow(ctx, query, id).Scan(&c.ID, &vec)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load candidate: %w", err)
	}
	c.Embedding = vec.Slice()
	return &c, nil
}

// CaseEmbedding returns just the embedding for one case; nil when the case
// is absent or has no stored vector.
func (s *PostgresStore) CaseEmbedding(ctx context.Context, caseID uuid.UUID) ([]float32, error) {
	c, err := s.CaseCandidate(ctx, caseID)
	if err != nil || c == nil {
		return nil, err
	}
	return c.Embedding, nil
}

// --- Match persistence ---

// LinkMatch records the case -> sighting link without flipping either
// status. Confirmation is a separate, explicit admin step.
func (s *PostgresStore) LinkMatch(ctx context.Context, caseID, sightingID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE cases SET matched_with = $1, updated_at = now() WHERE id = $2`,
		sightingID, caseID)
	if err != nil {
		return fmt.Errorf("link match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("case %s not found", caseID)
	}
	return nil
}

// ConfirmMatch marks both records found and links them.
func (s *PostgresStore) ConfirmMatch(ctx context.Context, caseID, sightingID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin confirm: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE cases SET status = $1, matched_with = $2, updated_at = now() WHERE id = $3`,
		models.CaseStatusFound, sightingID, caseID)
	if err != nil {
		return fmt.Errorf("confirm case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("case %s not found", caseID)
	}

	tag, err = tx.Exec(ctx,
		`UPDATE sightings SET status = $1 WHERE id = $2`,
		models.SightingStatusFound, sightingID)
	if err != nil {
		return fmt.Errorf("confirm sighting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sighting %s not found", sightingID)
	}

	return tx.Commit(ctx)
}

// MatchedPair is one linked case/sighting pair for reporting.
type MatchedPair struct {
	CaseID     uuid.UUID `json:"case_id"`
	CaseName   string    `json:"case_name"`
	SightingID uuid.UUID `json:"sighting_id"`
	Confirmed  bool      `json:"confirmed"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RecentMatches lists the most recently linked pairs, newest first.
func (s *PostgresStore) RecentMatches(ctx context.Context, limit int) ([]MatchedPair, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, matched_with, status, updated_at
		 FROM cases WHERE matched_with IS NOT NULL
		 ORDER BY updated_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent matches: %w", err)
	}
	defer rows.Close()

	var pairs []MatchedPair
	for rows.Next() {
		var p MatchedPair
		var status models.CaseStatus
		if err := rows.Scan(&p.CaseID, &p.CaseName, &p.SightingID, &status, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan matched pair: %w", err)
		}
		p.Confirmed = status == models.CaseStatusFound
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// Statistics summarises both populations for the dashboard.
type Statistics struct {
	OpenCases         int `json:"open_cases"`
	FoundCases        int `json:"found_cases"`
	PendingSightings  int `json:"pending_sightings"`
	ResolvedSightings int `json:"resolved_sightings"`
	LinkedMatches     int `json:"linked_matches"`
}

func (s *PostgresStore) Stats(ctx context.Context) (*Statistics, error) {
	st := &Statistics{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM cases WHERE status = $1),
			(SELECT COUNT(*) FROM cases WHERE status = $2),
			(SELECT COUNT(*) FROM sightings WHERE status = $3),
			(SELECT COUNT(*) FROM sightings WHERE status = $4),
			(SELECT COUNT(*) FROM cases WHERE matched_with IS NOT NULL)`,
		models.CaseStatusNotFound, models.CaseStatusFound,
		models.SightingStatusUnderReview, models.SightingStatusFound,
	).Scan(&st.OpenCases, &st.FoundCases, &st.PendingSightings, &st.ResolvedSightings, &st.LinkedMatches)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// SimilarCase is one row from a pgvector similarity search.
type SimilarCase struct {
	CaseID uuid.UUID `json:"case_id"`
	Name   string    `json:"name"`
	Score  float32   `json:"score"`
}

// SimilarCases runs an indexed nearest-neighbour search over open cases,
// used by operator tooling. The matching core deliberately does not depend
// on this; it loads candidates and scans in process.
func (s *PostgresStore) SimilarCases(ctx context.Context, embedding []float32, minScore float64, limit int) ([]SimilarCase, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.pool.Query(ctx,
		`SELECT id, name, 1 - (embedding <=> $1) AS score
		 FROM cases
		 WHERE status = $2 AND 1 - (embedding <=> $1) >= $3
		 ORDER BY embedding <=> $1
		 LIMIT $4`,
		vec, models.CaseStatusNotFound, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("similar cases: %w", err)
	}
	defer rows.Close()

	var matches []SimilarCase
	for rows.Next() {
		var m SimilarCase
		if err := rows.Scan(&m.CaseID, &m.Name, &m.Score); err != nil {
			return nil, fmt.Errorf("scan similar case: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// --- Video uploads ---

func (s *PostgresStore) CreateVideoUpload(ctx context.Context, v *models.VideoUpload) error {
	v.ID = uuid.New()
	v.Status = models.VideoStatusQueued
	return s.pool.QueryRow(ctx,
		`INSERT INTO video_uploads (id, case_id, filename, video_key, confidence_threshold, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING uploaded_at`,
		v.ID, v.CaseID, v.Filename, v.VideoKey, v.Threshold, v.Status,
	).Scan(&v.UploadedAt)
}

func (s *PostgresStore) GetVideoUpload(ctx context.Context, id uuid.UUID) (*models.VideoUpload, error) {
	v := &models.VideoUpload{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, case_id, filename, video_key, confidence_threshold, status, total_frames,
		        processed_frames, total_detections, error_message, uploaded_at, completed_at
		 FROM video_uploads WHERE id = $1`, id,
	).Scan(&v.ID, &v.CaseID, &v.Filename, &v.VideoKey, &v.Threshold, &v.Status, &v.TotalFrames,
		&v.ProcessedFrames, &v.TotalDetections, &v.ErrorMessage, &v.UploadedAt, &v.CompletedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get video upload: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) ListVideoUploadsByCase(ctx context.Context, caseID uuid.UUID) ([]models.VideoUpload, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, case_id, filename, video_key, confidence_threshold, status, total_frames,
		        processed_frames, total_detections, error_message, uploaded_at, completed_at
		 FROM video_uploads WHERE case_id = $1 ORDER BY uploaded_at DESC`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list video uploads: %w", err)
	}
	defer rows.Close()

	var uploads []models.VideoUpload
	for rows.Next() {
		var v models.VideoUpload
		if err := rows.Scan(&v.ID, &v.CaseID, &v.Filename, &v.VideoKey, &v.Threshold, &v.Status,
			&v.TotalFrames, &v.ProcessedFrames, &v.TotalDetections, &v.ErrorMessage,
			&v.UploadedAt, &v.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan video upload: %w", err)
		}
		uploads = append(uploads, v)
	}
	return uploads, nil
}

func (s *PostgresStore) MarkVideoProcessing(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE video_uploads SET status = $1 WHERE id = $2`,
		models.VideoStatusProcessing, id)
	return err
}

func (s *PostgresStore) SetVideoTotalFrames(ctx context.Context, id uuid.UUID, total int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE video_uploads SET total_frames = $1 WHERE id = $2`, total, id)
	return err
}

func (s *PostgresStore) UpdateVideoProgress(ctx context.Context, id uuid.UUID, processedFrames, totalDetections int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE video_uploads SET processed_frames = $1, total_detections = $2 WHERE id = $3`,
		processedFrames, totalDetections, id)
	return err
}

func (s *PostgresStore) CompleteVideo(ctx context.Context, id uuid.UUID, processedFrames, totalDetections int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE video_uploads
		 SET status = $1, processed_frames = $2, total_detections = $3, completed_at = now()
		 WHERE id = $4`,
		models.VideoStatusDone, processedFrames, totalDetections, id)
	return err
}

func (s *PostgresStore) FailVideo(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE video_uploads SET status = $1, error_message = $2 WHERE id = $3`,
		models.VideoStatusFailed, errMsg, id)
	return err
}

// --- Video detections ---

// SaveDetections writes a batch of detections in one round trip.
func (s *PostgresStore) SaveDetections(ctx context.Context, detections []models.VideoDetection) error {
	if len(detections) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, d := range detections {
		batch.Queue(
			`INSERT INTO video_detections (id, video_id, case_id, timestamp_seconds, confidence, crop_key, frame_number, detected_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			d.ID, d.VideoID, d.CaseID, d.TimestampSeconds, d.Confidence, d.CropKey, d.FrameNumber, d.DetectedAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range detections {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert detection: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) GetDetection(ctx context.Context, id uuid.UUID) (*models.VideoDetection, error) {
	d := &models.VideoDetection{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, video_id, case_id, timestamp_seconds, confidence, crop_key, frame_number, detected_at
		 FROM video_detections WHERE id = $1`, id,
	).Scan(&d.ID, &d.VideoID, &d.CaseID, &d.TimestampSeconds, &d.Confidence, &d.CropKey, &d.FrameNumber, &d.DetectedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get detection: %w", err)
	}
	return d, nil
}

// DetectionsByVideo lists one upload's detections in timestamp order.
func (s *PostgresStore) DetectionsByVideo(ctx context.Context, videoID uuid.UUID) ([]models.VideoDetection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, video_id, case_id, timestamp_seconds, confidence, crop_key, frame_number, detected_at
		 FROM video_detections WHERE video_id = $1 ORDER BY timestamp_seconds`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	defer rows.Close()
	return scanDetections(rows)
}

// DetectionsByCase lists all detections for a case in timestamp order.
func (s *PostgresStore) DetectionsByCase(ctx context.Context, caseID uuid.UUID) ([]models.VideoDetection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, video_id, case_id, timestamp_seconds, confidence, crop_key, frame_number, detected_at
		 FROM video_detections WHERE case_id = $1 ORDER BY video_id, timestamp_seconds`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	defer rows.Close()
	return scanDetections(rows)
}

func scanDetections(rows pgx.Rows) ([]models.VideoDetection, error) {
	var detections []models.VideoDetection
	for rows.Next() {
		var d models.VideoDetection
		if err := rows.Scan(&d.ID, &d.VideoID, &d.CaseID, &d.TimestampSeconds, &d.Confidence,
			&d.CropKey, &d.FrameNumber, &d.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		detections = append(detections, d)
	}
	return detections, rows.Err()
}
