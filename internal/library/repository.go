package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/posematch/posematch/internal/pose"
	"github.com/posematch/posematch/internal/scoring"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

type Repository interface {
	CreateVideo(ctx context.Context, video *Video) error
	GetVideo(ctx context.Context, id string) (*Video, error)
	ListVideos(ctx context.Context, limit int) ([]*Video, error)
	DeleteVideo(ctx context.Context, id string) error
	CountVideos(ctx context.Context) (int, error)
	AppendFrames(ctx context.Context, videoID string, frames []pose.Frame) (*Video, error)
	SealVideo(ctx context.Context, videoID string, endTime time.Time) (*Video, error)
	GetFrames(ctx context.Context, videoID string) (pose.Sequence, error)

	CreateComparison(ctx context.Context, c *Comparison) error
	GetComparison(ctx context.Context, id string) (*Comparison, error)
	ListComparisons(ctx context.Context, limit int) ([]*Comparison, error)
	UpdateComparisonStatus(ctx context.Context, id, status string) error
	CompleteComparison(ctx context.Context, id string, result *scoring.Result, refFrames, cmpFrames int) error
	FailComparison(ctx context.Context, id, errorMsg string) error

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const videoColumns = `id, label, start_time, end_time, duration_ms, frame_count, first_timestamp, last_timestamp, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteRepository) CreateVideo(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (id, label, start_time, frame_count, created_at)
		VALUES (?, ?, ?, 0, ?)
	`, v.ID, v.Label, formatTime(v.StartTime), formatTime(v.CreatedAt))
	return err
}

func (r *SQLiteRepository) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func scanVideo(row rowScanner) (*Video, error) {
	var v Video
	var startTime, createdAt string
	var endTime sql.NullString
	var duration, first, last sql.NullFloat64

	if err := row.Scan(&v.ID, &v.Label, &startTime, &endTime, &duration, &v.FrameCount, &first, &last, &createdAt); err != nil {
		return nil, err
	}

	v.StartTime = parseTime(startTime)
	v.CreatedAt = parseTime(createdAt)
	if endTime.Valid {
		t := parseTime(endTime.String)
		v.EndTime = &t
	}
	v.DurationMs = nullFloatPtr(duration)
	v.FirstTimestamp = nullFloatPtr(first)
	v.LastTimestamp = nullFloatPtr(last)
	return &v, nil
}

func (r *SQLiteRepository) ListVideos(ctx context.Context, limit int) ([]*Video, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (r *SQLiteRepository) DeleteVideo(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM videos WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) CountVideos(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM videos").Scan(&count)
	return count, err
}

// AppendFrames stores frames after the video's current last frame. The
// sealed and ordering checks run in the same transaction as the insert.
func (r *SQLiteRepository) AppendFrames(ctx context.Context, videoID string, frames []pose.Frame) (*Video, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	v, err := scanVideo(tx.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, videoID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVideoNotFound
	}
	if err != nil {
		return nil, err
	}
	if v.Sealed() {
		return nil, ErrVideoSealed
	}
	if len(frames) == 0 {
		return v, nil
	}

	prev := v.LastTimestamp
	for i, f := range frames {
		if prev != nil && f.Timestamp < *prev {
			return nil, fmt.Errorf("%w: frame %d at %gms follows %gms", ErrNonMonotonic, i, f.Timestamp, *prev)
		}
		ts := f.Timestamp
		prev = &ts
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO frames (video_id, seq, timestamp_ms, landmarks) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for i, f := range frames {
		data, err := json.Marshal(f.Landmarks)
		if err != nil {
			return nil, fmt.Errorf("encode landmarks: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, videoID, v.FrameCount+i, f.Timestamp, string(data)); err != nil {
			return nil, err
		}
	}

	first := v.FirstTimestamp
	if first == nil {
		first = &frames[0].Timestamp
	}
	v.FrameCount += len(frames)
	v.FirstTimestamp = first
	v.LastTimestamp = prev

	if _, err := tx.ExecContext(ctx, `
		UPDATE videos SET frame_count = ?, first_timestamp = ?, last_timestamp = ? WHERE id = ?
	`, v.FrameCount, *first, *prev, videoID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return v, nil
}

// SealVideo ends the stream and fixes its duration. Sealing twice is an error.
func (r *SQLiteRepository) SealVideo(ctx context.Context, videoID string, endTime time.Time) (*Video, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	v, err := scanVideo(tx.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, videoID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVideoNotFound
	}
	if err != nil {
		return nil, err
	}
	if v.Sealed() {
		return nil, ErrVideoSealed
	}

	duration := 0.0
	if v.FirstTimestamp != nil && v.LastTimestamp != nil {
		duration = *v.LastTimestamp - *v.FirstTimestamp
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE videos SET end_time = ?, duration_ms = ? WHERE id = ?
	`, formatTime(endTime), duration, videoID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	v.EndTime = &endTime
	v.DurationMs = &duration
	return v, nil
}

func (r *SQLiteRepository) GetFrames(ctx context.Context, videoID string) (pose.Sequence, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT timestamp_ms, landmarks FROM frames WHERE video_id = ? ORDER BY seq
	`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seq := pose.Sequence{}
	for rows.Next() {
		var f pose.Frame
		var landmarks string
		if err := rows.Scan(&f.Timestamp, &landmarks); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(landmarks), &f.Landmarks); err != nil {
			return nil, fmt.Errorf("decode landmarks: %w", err)
		}
		seq = append(seq, f)
	}
	return seq, rows.Err()
}

const comparisonColumns = `id, reference_video_id, comparison_video_id, preset, config, status, overall_score, result,
	reference_frames, comparison_frames, error, created_at, updated_at`

func (r *SQLiteRepository) CreateComparison(ctx context.Context, c *Comparison) error {
	cfg, err := json.Marshal(c.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO comparisons (id, reference_video_id, comparison_video_id, preset, config, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ReferenceVideoID, c.ComparisonVideoID, nullString(c.Preset), string(cfg), c.Status,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetComparison(ctx context.Context, id string) (*Comparison, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+comparisonColumns+` FROM comparisons WHERE id = ?`, id)
	c, err := scanComparison(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func scanComparison(row rowScanner) (*Comparison, error) {
	var c Comparison
	var preset, result, errMsg sql.NullString
	var score sql.NullFloat64
	var cfg, createdAt, updatedAt string

	if err := row.Scan(&c.ID, &c.ReferenceVideoID, &c.ComparisonVideoID, &preset, &cfg, &c.Status,
		&score, &result, &c.ReferenceFrames, &c.ComparisonFrames, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(cfg), &c.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if result.Valid {
		var res scoring.Result
		if err := json.Unmarshal([]byte(result.String), &res); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		c.Result = &res
	}
	c.Preset = preset.String
	c.OverallScore = nullFloatPtr(score)
	c.Error = errMsg.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func (r *SQLiteRepository) ListComparisons(ctx context.Context, limit int) ([]*Comparison, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+comparisonColumns+` FROM comparisons ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comparisons []*Comparison
	for rows.Next() {
		c, err := scanComparison(rows)
		if err != nil {
			return nil, err
		}
		comparisons = append(comparisons, c)
	}
	return comparisons, rows.Err()
}

func (r *SQLiteRepository) UpdateComparisonStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE comparisons SET status = ?, updated_at = ? WHERE id = ?
	`, status, formatTime(time.Now()), id)
	return err
}

// CompleteComparison stores the result along with the frame counts it was
// scored on, so exports can detect videos that grew afterwards.
func (r *SQLiteRepository) CompleteComparison(ctx context.Context, id string, result *scoring.Result, refFrames, cmpFrames int) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		UPDATE comparisons
		SET status = ?, overall_score = ?, result = ?, reference_frames = ?, comparison_frames = ?, error = NULL, updated_at = ?
		WHERE id = ?
	`, JobStatusCompleted, result.OverallScore, string(data), refFrames, cmpFrames, formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) FailComparison(ctx context.Context, id, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE comparisons SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, JobStatusFailed, errorMsg, formatTime(time.Now()), id)
	return err
}

const jobColumns = `id, type, status, comparison_id, progress, error, created_at, updated_at`

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, comparison_id, progress, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, nullString(j.ComparisonID), j.Progress, nullString(j.Error),
		formatTime(j.CreatedAt), formatTime(j.UpdatedAt))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

func scanJob(row rowScanner) (*Job, error) {
	var j Job
	var comparisonID, errMsg sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&j.ID, &j.Type, &j.Status, &comparisonID, &j.Progress, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	j.ComparisonID = comparisonID.String
	j.Error = errMsg.String
	j.CreatedAt = parseTime(createdAt)
	j.UpdatedAt = parseTime(updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs WHERE status = 'pending' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanJobs(rows)
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, formatTime(time.Now()), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
