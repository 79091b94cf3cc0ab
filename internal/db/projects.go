package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tfsgroup/siteportal/internal/model"
)

// Clients

func (s *Store) ListClients(ctx context.Context) ([]model.Client, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, contact_person, contact_email, contact_phone, address, created_at, updated_at
		FROM clients
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		var c model.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.ContactPerson, &c.ContactEmail, &c.ContactPhone, &c.Address, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *Store) CreateClient(ctx context.Context, client model.Client) (model.Client, error) {
	now := time.Now().UTC()
	client.ID = uuid.NewString()
	client.CreatedAt = now
	client.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO clients (id, name, contact_person, contact_email, contact_phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, client.ID, client.Name, client.ContactPerson, client.ContactEmail, client.ContactPhone, client.Address, now)
	return client, err
}

func (s *Store) UpdateClient(ctx context.Context, client model.Client) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE clients
		SET name = $2, contact_person = $3, contact_email = $4, contact_phone = $5, address = $6, updated_at = $7
		WHERE id = $1
	`, client.ID, client.Name, client.ContactPerson, client.ContactEmail, client.ContactPhone, client.Address, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Projects

func (s *Store) GetProject(ctx context.Context, projectID string) (model.Project, error) {
	var p model.Project
	row := s.pool.QueryRow(ctx, `
		SELECT p.id, p.name, p.address, p.client_id, c.name, p.project_number, p.is_active, p.created_at, p.updated_at
		FROM projects p
		LEFT JOIN clients c ON c.id = p.client_id
		WHERE p.id = $1
	`, projectID)
	err := row.Scan(&p.ID, &p.Name, &p.Address, &p.ClientID, &p.ClientName, &p.ProjectNumber, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Store) ListProjects(ctx context.Context, activeOnly bool) ([]model.Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.name, p.address, p.client_id, c.name, p.project_number, p.is_active, p.created_at, p.updated_at
		FROM projects p
		LEFT JOIN clients c ON c.id = p.client_id
		WHERE NOT $1 OR p.is_active
		ORDER BY p.created_at DESC
	`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.ClientID, &p.ClientName, &p.ProjectNumber, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *Store) CreateProject(ctx context.Context, project model.Project) (model.Project, error) {
	now := time.Now().UTC()
	project.ID = uuid.NewString()
	project.Active = true
	project.CreatedAt = now
	project.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO projects (id, name, address, client_id, project_number, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, $6, $6)
	`, project.ID, project.Name, project.Address, project.ClientID, project.ProjectNumber, now)
	return project, err
}

func (s *Store) UpdateProject(ctx context.Context, project model.Project) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects
		SET name = $2, address = $3, client_id = $4, project_number = $5, updated_at = $6
		WHERE id = $1
	`, project.ID, project.Name, project.Address, project.ClientID, project.ProjectNumber, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetProjectActive soft-deactivates; projects are never hard-deleted.
func (s *Store) SetProjectActive(ctx context.Context, projectID string, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE projects SET is_active = $2, updated_at = $3 WHERE id = $1`, projectID, active, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Site documents

func (s *Store) GetDocument(ctx context.Context, documentID string) (model.SiteDocument, error) {
	var d model.SiteDocument
	row := s.pool.QueryRow(ctx, `
		SELECT d.id, d.project_id, p.name, d.title, d.description, d.document_type, d.version,
		       d.file_url, d.requires_signature, d.is_active, d.created_at, d.updated_at
		FROM site_documents d
		JOIN projects p ON p.id = d.project_id
		WHERE d.id = $1
	`, documentID)
	err := row.Scan(&d.ID, &d.ProjectID, &d.ProjectName, &d.Title, &d.Description, &d.DocumentType, &d.Version,
		&d.FileURL, &d.RequiresSignature, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (s *Store) ListDocumentsByProject(ctx context.Context, projectID string, activeOnly bool) ([]model.SiteDocument, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.id, d.project_id, p.name, d.title, d.description, d.document_type, d.version,
		       d.file_url, d.requires_signature, d.is_active, d.created_at, d.updated_at
		FROM site_documents d
		JOIN projects p ON p.id = d.project_id
		WHERE d.project_id = $1 AND (NOT $2 OR d.is_active)
		ORDER BY d.created_at DESC
	`, projectID, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var documents []model.SiteDocument
	for rows.Next() {
		var d model.SiteDocument
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.ProjectName, &d.Title, &d.Description, &d.DocumentType, &d.Version,
			&d.FileURL, &d.RequiresSignature, &d.Active, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		documents = append(documents, d)
	}
	return documents, rows.Err()
}

func (s *Store) CreateDocument(ctx context.Context, doc model.SiteDocument) (model.SiteDocument, error) {
	now := time.Now().UTC()
	doc.ID = uuid.NewString()
	doc.Active = true
	doc.CreatedAt = now
	doc.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
		INSERT INTO site_documents (id, project_id, title, description, document_type, version,
		                            file_url, requires_signature, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, $9, $9)
	`, doc.ID, doc.ProjectID, doc.Title, doc.Description, doc.DocumentType, doc.Version,
		doc.FileURL, doc.RequiresSignature, now)
	return doc, err
}

func (s *Store) UpdateDocument(ctx context.Context, doc model.SiteDocument) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE site_documents
		SET title = $2, description = $3, document_type = $4, version = $5,
		    file_url = $6, requires_signature = $7, updated_at = $8
		WHERE id = $1
	`, doc.ID, doc.Title, doc.Description, doc.DocumentType, doc.Version,
		doc.FileURL, doc.RequiresSignature, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) SetDocumentActive(ctx context.Context, documentID string, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE site_documents SET is_active = $2, updated_at = $3 WHERE id = $1`, documentID, active, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Assignments

// CreateAssignment grants (document, user) sign access. Re-assigning is a
// no-op; the existing grant is returned.
func (s *Store) CreateAssignment(ctx context.Context, documentID, userID string, canSign bool, assignedBy *string) (model.DocumentAssignment, bool, error) {
	now := time.Now().UTC()
	var a model.DocumentAssignment
	row := s.pool.QueryRow(ctx, `
		INSERT INTO document_assignments (id, document_id, user_id, can_sign, assigned_by, assigned_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (document_id, user_id) DO NOTHING
		RETURNING id, document_id, user_id, can_sign, assigned_by, assigned_at
	`, uuid.NewString(), documentID, userID, canSign, assignedBy, now)
	err := row.Scan(&a.ID, &a.DocumentID, &a.UserID, &a.CanSign, &a.AssignedBy, &a.AssignedAt)
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return model.DocumentAssignment{}, false, err
	}
	existing, err := s.GetAssignment(ctx, documentID, userID)
	return existing, false, err
}

func (s *Store) GetAssignment(ctx context.Context, documentID, userID string) (model.DocumentAssignment, error) {
	var a model.DocumentAssignment
	row := s.pool.QueryRow(ctx, `
		SELECT id, document_id, user_id, can_sign, assigned_by, assigned_at
		FROM document_assignments
		WHERE document_id = $1 AND user_id = $2
	`, documentID, userID)
	err := row.Scan(&a.ID, &a.DocumentID, &a.UserID, &a.CanSign, &a.AssignedBy, &a.AssignedAt)
	return a, err
}

func (s *Store) ListAssignedDocuments(ctx context.Context, userID string) ([]model.AssignedDocument, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.id, a.document_id, a.user_id, a.can_sign, a.assigned_by, a.assigned_at,
		       d.id, d.project_id, p.name, d.title, d.description, d.document_type, d.version,
		       d.file_url, d.requires_signature, d.is_active, d.created_at, d.updated_at,
		       s.signed_at
		FROM document_assignments a
		JOIN site_documents d ON d.id = a.document_id
		JOIN projects p ON p.id = d.project_id
		LEFT JOIN document_signatures s ON s.document_id = a.document_id AND s.user_id = a.user_id
		WHERE a.user_id = $1 AND d.is_active
		ORDER BY a.assigned_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assigned []model.AssignedDocument
	for rows.Next() {
		var entry model.AssignedDocument
		if err := rows.Scan(
			&entry.Assignment.ID, &entry.Assignment.DocumentID, &entry.Assignment.UserID,
			&entry.Assignment.CanSign, &entry.Assignment.AssignedBy, &entry.Assignment.AssignedAt,
			&entry.Document.ID, &entry.Document.ProjectID, &entry.Document.ProjectName,
			&entry.Document.Title, &entry.Document.Description, &entry.Document.DocumentType,
			&entry.Document.Version, &entry.Document.FileURL, &entry.Document.RequiresSignature,
			&entry.Document.Active, &entry.Document.CreatedAt, &entry.Document.UpdatedAt,
			&entry.SignedAt,
		); err != nil {
			return nil, err
		}
		assigned = append(assigned, entry)
	}
	return assigned, rows.Err()
}
