package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tfsgroup/siteportal/internal/model"
)

// Enrollments

// EnsureEnrollment creates an approved (project, user) enrollment if none
// exists. The insert-or-get is atomic; concurrent QR scans cannot produce
// duplicates. Returns created=true only for the request that inserted.
func (s *Store) EnsureEnrollment(ctx context.Context, projectID, userID string) (model.ProjectEnrollment, bool, error) {
	now := time.Now().UTC()
	var e model.ProjectEnrollment
	row := s.pool.QueryRow(ctx, `
		INSERT INTO project_enrollments (id, project_id, user_id, status, enrolled_at, approved_at, created_at)
		VALUES ($1, $2, $3, 'approved', $4, $4, $4)
		ON CONFLICT (project_id, user_id) DO NOTHING
		RETURNING id, project_id, user_id, status, asset_id, enrolled_at, approved_at, approved_by
	`, uuid.NewString(), projectID, userID, now)
	err := row.Scan(&e.ID, &e.ProjectID, &e.UserID, &e.Status, &e.AssetID, &e.EnrolledAt, &e.ApprovedAt, &e.ApprovedBy)
	if err == nil {
		return e, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.ProjectEnrollment{}, false, err
	}
	existing, err := s.GetEnrollment(ctx, projectID, userID)
	return existing, false, err
}

func (s *Store) GetEnrollment(ctx context.Context, projectID, userID string) (model.ProjectEnrollment, error) {
	var e model.ProjectEnrollment
	row := s.pool.QueryRow(ctx, `
		SELECT id, project_id, user_id, status, asset_id, enrolled_at, approved_at, approved_by
		FROM project_enrollments
		WHERE project_id = $1 AND user_id = $2
	`, projectID, userID)
	err := row.Scan(&e.ID, &e.ProjectID, &e.UserID, &e.Status, &e.AssetID, &e.EnrolledAt, &e.ApprovedAt, &e.ApprovedBy)
	return e, err
}

func (s *Store) ListEnrollmentsByProject(ctx context.Context, projectID string) ([]model.ProjectEnrollment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, user_id, status, asset_id, enrolled_at, approved_at, approved_by
		FROM project_enrollments
		WHERE project_id = $1
		ORDER BY enrolled_at DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var enrollments []model.ProjectEnrollment
	for rows.Next() {
		var e model.ProjectEnrollment
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.UserID, &e.Status, &e.AssetID, &e.EnrolledAt, &e.ApprovedAt, &e.ApprovedBy); err != nil {
			return nil, err
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

func (s *Store) UpdateEnrollmentStatus(ctx context.Context, enrollmentID, status, approvedBy string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE project_enrollments
		SET status = $2, approved_at = $3, approved_by = $4
		WHERE id = $1
	`, enrollmentID, status, time.Now().UTC(), approvedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Project sign-ons

// CreateProjectSignOn records a dated sign-on. The (project, user, day)
// constraint makes repeat submissions on the same UTC day return the
// original record with created=false.
func (s *Store) CreateProjectSignOn(ctx context.Context, projectID, userID string, signatureData *string) (model.ProjectSignOn, bool, error) {
	now := time.Now().UTC()
	var so model.ProjectSignOn
	row := s.pool.QueryRow(ctx, `
		INSERT INTO project_signons (id, project_id, user_id, signature_data, signed_at, signed_on, created_at)
		VALUES ($1, $2, $3, $4, $5, ($5 AT TIME ZONE 'UTC')::date, $5)
		ON CONFLICT (project_id, user_id, signed_on) DO NOTHING
		RETURNING id, project_id, user_id, signature_data, signed_at
	`, uuid.NewString(), projectID, userID, signatureData, now)
	err := row.Scan(&so.ID, &so.ProjectID, &so.UserID, &so.SignatureData, &so.SignedAt)
	if err == nil {
		return so, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.ProjectSignOn{}, false, err
	}
	existing, err := s.GetSignOnForDay(ctx, projectID, userID, now)
	return existing, false, err
}

func (s *Store) GetSignOnForDay(ctx context.Context, projectID, userID string, day time.Time) (model.ProjectSignOn, error) {
	var so model.ProjectSignOn
	row := s.pool.QueryRow(ctx, `
		SELECT id, project_id, user_id, signature_data, signed_at
		FROM project_signons
		WHERE project_id = $1 AND user_id = $2 AND signed_on = ($3 AT TIME ZONE 'UTC')::date
	`, projectID, userID, day.UTC())
	err := row.Scan(&so.ID, &so.ProjectID, &so.UserID, &so.SignatureData, &so.SignedAt)
	return so, err
}

func (s *Store) ListProjectSignOns(ctx context.Context, projectID string) ([]model.ProjectSignOn, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, user_id, signature_data, signed_at
		FROM project_signons
		WHERE project_id = $1
		ORDER BY signed_at DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signons []model.ProjectSignOn
	for rows.Next() {
		var so model.ProjectSignOn
		if err := rows.Scan(&so.ID, &so.ProjectID, &so.UserID, &so.SignatureData, &so.SignedAt); err != nil {
			return nil, err
		}
		signons = append(signons, so)
	}
	return signons, rows.Err()
}

// Document signatures

// CreateDocumentSignature records a per-lifetime signature; a second submit
// for the same (document, user) returns the original with created=false.
func (s *Store) CreateDocumentSignature(ctx context.Context, documentID, userID string, signatureData *string) (model.DocumentSignature, bool, error) {
	now := time.Now().UTC()
	var sig model.DocumentSignature
	row := s.pool.QueryRow(ctx, `
		INSERT INTO document_signatures (id, document_id, user_id, signature_data, signed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id, user_id) DO NOTHING
		RETURNING id, document_id, user_id, signature_data, signed_at
	`, uuid.NewString(), documentID, userID, signatureData, now)
	err := row.Scan(&sig.ID, &sig.DocumentID, &sig.UserID, &sig.SignatureData, &sig.SignedAt)
	if err == nil {
		return sig, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.DocumentSignature{}, false, err
	}
	existing, err := s.GetDocumentSignature(ctx, documentID, userID)
	return existing, false, err
}

func (s *Store) GetDocumentSignature(ctx context.Context, documentID, userID string) (model.DocumentSignature, error) {
	var sig model.DocumentSignature
	row := s.pool.QueryRow(ctx, `
		SELECT id, document_id, user_id, signature_data, signed_at
		FROM document_signatures
		WHERE document_id = $1 AND user_id = $2
	`, documentID, userID)
	err := row.Scan(&sig.ID, &sig.DocumentID, &sig.UserID, &sig.SignatureData, &sig.SignedAt)
	return sig, err
}

// ListDocumentSignatures orders chronologically; the sign-on sheet reads in
// signing order while reports reverse as needed.
func (s *Store) ListDocumentSignatures(ctx context.Context, documentID string) ([]model.DocumentSignature, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, user_id, signature_data, signed_at
		FROM document_signatures
		WHERE document_id = $1
		ORDER BY signed_at
	`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signatures []model.DocumentSignature
	for rows.Next() {
		var sig model.DocumentSignature
		if err := rows.Scan(&sig.ID, &sig.DocumentID, &sig.UserID, &sig.SignatureData, &sig.SignedAt); err != nil {
			return nil, err
		}
		signatures = append(signatures, sig)
	}
	return signatures, rows.Err()
}

type UserSignature struct {
	Signature     model.DocumentSignature
	DocumentTitle string
	ProjectName   string
}

func (s *Store) ListSignaturesByUser(ctx context.Context, userID string) ([]UserSignature, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sig.id, sig.document_id, sig.user_id, sig.signature_data, sig.signed_at, d.title, p.name
		FROM document_signatures sig
		JOIN site_documents d ON d.id = sig.document_id
		JOIN projects p ON p.id = d.project_id
		WHERE sig.user_id = $1
		ORDER BY sig.signed_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signatures []UserSignature
	for rows.Next() {
		var us UserSignature
		if err := rows.Scan(&us.Signature.ID, &us.Signature.DocumentID, &us.Signature.UserID,
			&us.Signature.SignatureData, &us.Signature.SignedAt, &us.DocumentTitle, &us.ProjectName); err != nil {
			return nil, err
		}
		signatures = append(signatures, us)
	}
	return signatures, rows.Err()
}

// Notifications

func (s *Store) CreateNotification(ctx context.Context, n model.AdminNotification) (model.AdminNotification, error) {
	n.ID = uuid.NewString()
	n.CreatedAt = time.Now().UTC()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO admin_notifications (id, user_id, type, title, message, related_id, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)
	`, n.ID, n.UserID, n.Type, n.Title, n.Message, n.RelatedID, n.CreatedAt)
	return n, err
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int32) ([]model.AdminNotification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, type, title, message, related_id, is_read, created_at
		FROM admin_notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC
		LIMIT $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []model.AdminNotification
	for rows.Next() {
		var n model.AdminNotification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.RelatedID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, notificationID, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE admin_notifications SET is_read = true WHERE id = $1 AND user_id = $2
	`, notificationID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ListAdminUserIDs returns users holding the admin role, the fan-out set
// for enrollment and training notifications.
func (s *Store) ListAdminUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT user_id FROM user_roles WHERE role = 'admin'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
