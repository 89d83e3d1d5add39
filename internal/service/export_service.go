package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prepshare/claims-api/internal/models"
	appErrors "github.com/prepshare/claims-api/pkg/errors"
	"github.com/prepshare/claims-api/pkg/export"
	"github.com/prepshare/claims-api/pkg/storage"
)

type exportClaimStore interface {
	GetByID(ctx context.Context, id int64) (*models.DamageClaim, error)
	List(ctx context.Context, filter models.ClaimFilter) ([]models.DamageClaim, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       string
	ExpiresAt    time.Time
}

// ExportService renders claim statements as PDF and claim listings as
// CSV, persisting rendered files behind signed download tokens.
type ExportService struct {
	claims   exportClaimStore
	evidence evidenceLister
	history  historyStore
	storage  exportFileStorage
	csv      csvRenderer
	pdf      pdfRenderer
	signer   *storage.SignedURLSigner
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(claims exportClaimStore, evidence evidenceLister, history historyStore, fileStore exportFileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		claims:   claims,
		evidence: evidence,
		history:  history,
		storage:  fileStore,
		csv:      csv,
		pdf:      pdf,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
	}
}

// ClaimStatement renders a single claim, its evidence and history into
// a PDF statement and stores it behind a signed token.
func (s *ExportService) ClaimStatement(ctx context.Context, id int64, actor *models.JWTClaims) (*ExportResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	claim, err := s.claims.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load claim")
	}
	if err := ensureClaimAccess(claim, actor); err != nil {
		return nil, err
	}
	evidence, err := s.evidence.ListByClaim(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
	}
	entries, err := s.history.ListByClaim(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load history")
	}

	dataset := statementDataset(claim, evidence, entries)
	title := fmt.Sprintf("Damage Claim Statement #%d", claim.ID)
	payload, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
	}
	filename := fmt.Sprintf("claim_%d_statement_%s.pdf", claim.ID, time.Now().UTC().Format("20060102_150405"))
	return s.store(filename, payload, fmt.Sprintf("%d", claim.ID), "pdf")
}

// ClaimsCSV renders a claim listing to CSV. Intended for admins pulling
// the full book; managers get only their own filings.
func (s *ExportService) ClaimsCSV(ctx context.Context, filter models.ClaimFilter, actor *models.JWTClaims) (*ExportResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleManager {
		filter.ManagerID = actor.UserID
	}
	filter.IncludeAll = true
	claims, err := s.claims.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list claims")
	}

	payload, err := s.csv.Render(listingDataset(claims))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	filename := fmt.Sprintf("claims_%s.csv", time.Now().UTC().Format("20060102_150405"))
	return s.store(filename, payload, "claims-csv", "csv")
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (refID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Cleanup removes files older than ttl (defaults to ResultTTL when
// ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) store(filename string, payload []byte, refID, format string) (*ExportResult, error) {
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Generate(refID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
	}, nil
}

func statementDataset(claim *models.DamageClaim, evidence []models.DamageEvidence, entries []models.ClaimHistoryEntry) export.Dataset {
	rows := []map[string]string{
		{"Field": "Claim ID", "Value": fmt.Sprintf("%d", claim.ID)},
		{"Field": "Status", "Value": string(claim.Status)},
		{"Field": "Booking Type", "Value": string(claim.BookingType)},
		{"Field": "Title", "Value": claim.ClaimTitle},
		{"Field": "Damage Date", "Value": claim.DamageDate.Format("2006-01-02")},
		{"Field": "Claimed Amount", "Value": formatCents(claim.ClaimedAmountCents)},
	}
	if claim.ApprovedAmountCents != nil {
		rows = append(rows, map[string]string{"Field": "Approved Amount", "Value": formatCents(*claim.ApprovedAmountCents)})
	}
	if claim.FinalAmountCents != nil {
		rows = append(rows, map[string]string{"Field": "Final Amount", "Value": formatCents(*claim.FinalAmountCents)})
	}
	if claim.SubmittedAt != nil {
		rows = append(rows, map[string]string{"Field": "Submitted At", "Value": claim.SubmittedAt.UTC().Format(time.RFC3339)})
	}
	for i, ev := range evidence {
		rows = append(rows, map[string]string{
			"Field": fmt.Sprintf("Evidence %d", i+1),
			"Value": fmt.Sprintf("%s (%s)", ev.FileURL, ev.EvidenceType),
		})
	}
	for _, entry := range entries {
		rows = append(rows, map[string]string{
			"Field": "History " + entry.CreatedAt.UTC().Format(time.RFC3339),
			"Value": fmt.Sprintf("%s -> %s", entry.HumanizedAction(), entry.NewStatus),
		})
	}
	return export.Dataset{Headers: []string{"Field", "Value"}, Rows: rows}
}

func listingDataset(claims []models.DamageClaim) export.Dataset {
	headers := []string{"ID", "Status", "Booking Type", "Manager", "Chef", "Title", "Damage Date", "Claimed", "Approved", "Final", "Created At"}
	rows := make([]map[string]string, 0, len(claims))
	for _, claim := range claims {
		rows = append(rows, map[string]string{
			"ID":           fmt.Sprintf("%d", claim.ID),
			"Status":       string(claim.Status),
			"Booking Type": string(claim.BookingType),
			"Manager":      claim.ManagerID,
			"Chef":         claim.ChefID,
			"Title":        claim.ClaimTitle,
			"Damage Date":  claim.DamageDate.Format("2006-01-02"),
			"Claimed":      formatCents(claim.ClaimedAmountCents),
			"Approved":     formatOptionalCents(claim.ApprovedAmountCents),
			"Final":        formatOptionalCents(claim.FinalAmountCents),
			"Created At":   claim.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%.2f", float64(cents)/100)
}

func formatOptionalCents(cents *int64) string {
	if cents == nil {
		return ""
	}
	return formatCents(*cents)
}
