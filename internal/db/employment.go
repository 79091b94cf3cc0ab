package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tfsgroup/siteportal/internal/model"
)

// Runsheets

func (s *Store) CreateRunsheet(ctx context.Context, sheet model.Runsheet) (model.Runsheet, error) {
	now := time.Now().UTC()
	sheet.ID = uuid.NewString()
	sheet.Status = "in_progress"
	sheet.CreatedAt = now
	sheet.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO runsheets (id, user_id, date, client_id, job_id, asset_id, load_type,
		                       pickup_address, dropoff_address, start_time, finish_time,
		                       break_minutes, job_details, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'in_progress', $14, $14)
	`, sheet.ID, sheet.UserID, sheet.Date, sheet.ClientID, sheet.JobID, sheet.AssetID, sheet.LoadType,
		sheet.PickupAddress, sheet.DropoffAddress, sheet.StartTime, sheet.FinishTime,
		sheet.BreakMinutes, sheet.JobDetails, now)
	return sheet, err
}

func (s *Store) GetRunsheet(ctx context.Context, runsheetID string) (model.Runsheet, error) {
	var sheet model.Runsheet
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, date, client_id, job_id, asset_id, load_type,
		       pickup_address, dropoff_address, start_time, finish_time,
		       break_minutes, job_details, status, created_at, updated_at
		FROM runsheets
		WHERE id = $1
	`, runsheetID)
	err := row.Scan(&sheet.ID, &sheet.UserID, &sheet.Date, &sheet.ClientID, &sheet.JobID, &sheet.AssetID,
		&sheet.LoadType, &sheet.PickupAddress, &sheet.DropoffAddress, &sheet.StartTime, &sheet.FinishTime,
		&sheet.BreakMinutes, &sheet.JobDetails, &sheet.Status, &sheet.CreatedAt, &sheet.UpdatedAt)
	return sheet, err
}

func (s *Store) ListRunsheetsByUser(ctx context.Context, userID string, limit int32) ([]model.Runsheet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, date, client_id, job_id, asset_id, load_type,
		       pickup_address, dropoff_address, start_time, finish_time,
		       break_minutes, job_details, status, created_at, updated_at
		FROM runsheets
		WHERE user_id = $1
		ORDER BY date DESC, created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sheets []model.Runsheet
	for rows.Next() {
		var sheet model.Runsheet
		if err := rows.Scan(&sheet.ID, &sheet.UserID, &sheet.Date, &sheet.ClientID, &sheet.JobID, &sheet.AssetID,
			&sheet.LoadType, &sheet.PickupAddress, &sheet.DropoffAddress, &sheet.StartTime, &sheet.FinishTime,
			&sheet.BreakMinutes, &sheet.JobDetails, &sheet.Status, &sheet.CreatedAt, &sheet.UpdatedAt); err != nil {
			return nil, err
		}
		sheets = append(sheets, sheet)
	}
	return sheets, rows.Err()
}

func (s *Store) FinishRunsheet(ctx context.Context, runsheetID, finishTime string, breakMinutes *int32) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE runsheets
		SET finish_time = $2, break_minutes = COALESCE($3, break_minutes), status = 'completed', updated_at = $4
		WHERE id = $1
	`, runsheetID, finishTime, breakMinutes, time.Now().UTC())
	return err
}

// Dockets

// CreateDocket allocates the next docket number from the sequence inside
// the insert, so concurrent runsheets never collide.
func (s *Store) CreateDocket(ctx context.Context, runsheetID string, clientID *string) (model.Docket, error) {
	var d model.Docket
	row := s.pool.QueryRow(ctx, `
		INSERT INTO dockets (id, runsheet_id, client_id, docket_number, created_at)
		VALUES ($1, $2, $3, 'TFS-' || nextval('docket_number_seq'), $4)
		RETURNING id, runsheet_id, client_id, docket_number, created_at
	`, uuid.NewString(), runsheetID, clientID, time.Now().UTC())
	err := row.Scan(&d.ID, &d.RunsheetID, &d.ClientID, &d.DocketNumber, &d.CreatedAt)
	return d, err
}

func (s *Store) ListDocketsByRunsheet(ctx context.Context, runsheetID string) ([]model.Docket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, runsheet_id, client_id, docket_number, created_at
		FROM dockets
		WHERE runsheet_id = $1
		ORDER BY created_at
	`, runsheetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dockets []model.Docket
	for rows.Next() {
		var d model.Docket
		if err := rows.Scan(&d.ID, &d.RunsheetID, &d.ClientID, &d.DocketNumber, &d.CreatedAt); err != nil {
			return nil, err
		}
		dockets = append(dockets, d)
	}
	return dockets, rows.Err()
}

// Payslips

func (s *Store) CreatePayslip(ctx context.Context, p model.Payslip) (model.Payslip, error) {
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO payslips (id, user_id, period_start, period_end, file_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.UserID, p.PeriodStart, p.PeriodEnd, p.FileURL, p.CreatedAt)
	return p, err
}

func (s *Store) ListPayslipsByUser(ctx context.Context, userID string) ([]model.Payslip, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, period_start, period_end, file_url, created_at
		FROM payslips
		WHERE user_id = $1
		ORDER BY period_end DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payslips []model.Payslip
	for rows.Next() {
		var p model.Payslip
		if err := rows.Scan(&p.ID, &p.UserID, &p.PeriodStart, &p.PeriodEnd, &p.FileURL, &p.CreatedAt); err != nil {
			return nil, err
		}
		payslips = append(payslips, p)
	}
	return payslips, rows.Err()
}

// Training records

func (s *Store) CreateTrainingRecord(ctx context.Context, rec model.TrainingRecord) (model.TrainingRecord, error) {
	now := time.Now().UTC()
	rec.ID = uuid.NewString()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO training_records (id, user_id, title, description, is_mandatory, completed_at,
		                              expires_at, certificate_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`, rec.ID, rec.UserID, rec.Title, rec.Description, rec.Mandatory, rec.CompletedAt,
		rec.ExpiresAt, rec.CertificateURL, now)
	return rec, err
}

func (s *Store) ListTrainingByUser(ctx context.Context, userID string) ([]model.TrainingRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, description, is_mandatory, completed_at,
		       expires_at, certificate_url, created_at, updated_at
		FROM training_records
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.TrainingRecord
	for rows.Next() {
		var rec model.TrainingRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Title, &rec.Description, &rec.Mandatory, &rec.CompletedAt,
			&rec.ExpiresAt, &rec.CertificateURL, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListExpiringTraining returns records expiring before the deadline that
// have not been flagged yet.
func (s *Store) ListExpiringTraining(ctx context.Context, deadline time.Time) ([]model.TrainingRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, description, is_mandatory, completed_at,
		       expires_at, certificate_url, created_at, updated_at
		FROM training_records
		WHERE expires_at IS NOT NULL
		  AND expires_at <= $1
		  AND expires_at > now()
		  AND expiry_notified_at IS NULL
		ORDER BY expires_at
	`, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.TrainingRecord
	for rows.Next() {
		var rec model.TrainingRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Title, &rec.Description, &rec.Mandatory, &rec.CompletedAt,
			&rec.ExpiresAt, &rec.CertificateURL, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) MarkTrainingExpiryNotified(ctx context.Context, recordID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE training_records SET expiry_notified_at = $2 WHERE id = $1
	`, recordID, time.Now().UTC())
	return err
}
