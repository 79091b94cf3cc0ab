package model

import "time"

type User struct {
	ID           string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Profile struct {
	ID        string
	UserID    string
	FullName  string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Role values mirror the app_role enum: driver, admin, manager, contractor.
type Role struct {
	UserID string
	Role   string
}

type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent *string
	IPAddress *string
}

type Client struct {
	ID            string
	Name          string
	ContactPerson *string
	ContactEmail  *string
	ContactPhone  *string
	Address       *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Project struct {
	ID            string
	Name          string
	Address       *string
	ClientID      *string
	ClientName    *string
	ProjectNumber *string
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type SiteDocument struct {
	ID                string
	ProjectID         string
	ProjectName       string
	Title             string
	Description       *string
	DocumentType      string
	Version           *string
	FileURL           *string
	RequiresSignature bool
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type DocumentAssignment struct {
	ID         string
	DocumentID string
	UserID     string
	CanSign    bool
	AssignedBy *string
	AssignedAt time.Time
}

// AssignedDocument is an assignment joined with its document and the
// user's signature state, the shape the "my documents" view consumes.
type AssignedDocument struct {
	Assignment DocumentAssignment
	Document   SiteDocument
	SignedAt   *time.Time
}

type ProjectEnrollment struct {
	ID         string
	ProjectID  string
	UserID     string
	Status     string
	AssetID    *string
	EnrolledAt time.Time
	ApprovedAt *time.Time
	ApprovedBy *string
}

type ProjectSignOn struct {
	ID            string
	ProjectID     string
	UserID        string
	SignatureData *string
	SignedAt      time.Time
}

type DocumentSignature struct {
	ID            string
	DocumentID    string
	UserID        string
	SignatureData *string
	SignedAt      time.Time
}

// SignatureEntry is a sign-on or signature row with the signer's profile
// name already resolved, as consumed by report generation.
type SignatureEntry struct {
	UserID        string
	Name          string
	SignatureData *string
	SignedAt      time.Time
}

type AdminNotification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Message   *string
	RelatedID *string
	Read      bool
	CreatedAt time.Time
}

type Runsheet struct {
	ID             string
	UserID         string
	Date           time.Time
	ClientID       *string
	JobID          *string
	AssetID        *string
	LoadType       string
	PickupAddress  string
	DropoffAddress string
	StartTime      string
	FinishTime     *string
	BreakMinutes   *int32
	JobDetails     *string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Docket struct {
	ID           string
	RunsheetID   string
	ClientID     *string
	DocketNumber string
	CreatedAt    time.Time
}

type Payslip struct {
	ID          string
	UserID      string
	PeriodStart time.Time
	PeriodEnd   time.Time
	FileURL     string
	CreatedAt   time.Time
}

type TrainingRecord struct {
	ID             string
	UserID         string
	Title          string
	Description    *string
	Mandatory      bool
	CompletedAt    *time.Time
	ExpiresAt      *time.Time
	CertificateURL *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
