package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepshare/claims-api/internal/dto"
	"github.com/prepshare/claims-api/internal/models"
	appErrors "github.com/prepshare/claims-api/pkg/errors"
)

type evidenceStore interface {
	Create(ctx context.Context, evidence *models.DamageEvidence) error
	GetByID(ctx context.Context, id int64) (*models.DamageEvidence, error)
	ListByClaim(ctx context.Context, claimID int64) ([]models.DamageEvidence, error)
	CountByClaim(ctx context.Context, claimID int64) (int, error)
	Delete(ctx context.Context, id int64) error
}

type evidenceClaimResolver interface {
	GetByID(ctx context.Context, id int64) (*models.DamageClaim, error)
}

type evidenceFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type evidenceSignedURLSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

// EvidenceUpload carries upload metadata and stream reader.
type EvidenceUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// EvidenceDownload bundles file reader metadata for streaming.
type EvidenceDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// EvidenceServiceConfig holds upload policy parameters.
type EvidenceServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	MaxPerClaim  int
	APIPrefix    string
}

// EvidenceService manages the two-phase evidence flow: a file is first
// pushed to storage (returning an opaque URL), then registered against a
// claim as a separate call. Registration and removal are permitted only
// while the parent claim is in draft.
type EvidenceService struct {
	repo      evidenceStore
	claims    evidenceClaimResolver
	cache     *CacheService
	storage   evidenceFileStorage
	signer    evidenceSignedURLSigner
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	cfg       EvidenceServiceConfig
	mimeSet   map[string]struct{}
}

// NewEvidenceService constructs the service with defaults.
func NewEvidenceService(repo evidenceStore, claims evidenceClaimResolver, cache *CacheService, storage evidenceFileStorage, signer evidenceSignedURLSigner, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg EvidenceServiceConfig) *EvidenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 4_500_000
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{
			"image/jpeg",
			"image/jpg",
			"image/png",
			"image/webp",
			"application/pdf",
		}
	}
	if cfg.MaxPerClaim <= 0 {
		cfg.MaxPerClaim = 20
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &EvidenceService{
		repo:      repo,
		claims:    claims,
		cache:     cache,
		storage:   storage,
		signer:    signer,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		mimeSet:   mimeSet,
	}
}

// Upload stores a file and returns the storage reference the caller
// registers through Add. No claim state changes here.
func (s *EvidenceService) Upload(ctx context.Context, upload EvidenceUpload, actor *models.JWTClaims) (*dto.EvidenceUploadResponse, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mime type not allowed")
	}
	filename := s.generateFilename(upload.Filename, mimeType)
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	path, err := s.storage.SaveStream(filename, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist evidence file")
	}
	return &dto.EvidenceUploadResponse{
		FileURL:   path,
		FileName:  upload.Filename,
		SizeBytes: upload.Size,
		MimeType:  mimeType,
	}, nil
}

// Add registers an uploaded file as evidence on a draft claim.
func (s *EvidenceService) Add(ctx context.Context, claimID int64, req dto.AddEvidenceRequest, actor *models.JWTClaims) (*models.DamageEvidence, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid evidence payload")
	}
	if !models.ValidEvidenceType(req.EvidenceType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown evidence type")
	}
	if (req.AmountCents != nil || req.VendorName != nil) && !models.FinancialEvidenceType(req.EvidenceType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount and vendor apply only to receipt or invoice evidence")
	}
	claim, err := s.loadDraftClaim(ctx, claimID, actor)
	if err != nil {
		return nil, err
	}
	count, err := s.repo.CountByClaim(ctx, claim.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count evidence")
	}
	if count >= s.cfg.MaxPerClaim {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("claim already carries the maximum of %d evidence items", s.cfg.MaxPerClaim))
	}

	evidence := &models.DamageEvidence{
		ClaimID:      claim.ID,
		EvidenceType: req.EvidenceType,
		FileURL:      req.FileURL,
		FileName:     req.FileName,
		Description:  req.Description,
		AmountCents:  req.AmountCents,
		VendorName:   req.VendorName,
	}
	if err := s.repo.Create(ctx, evidence); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register evidence")
	}
	s.emitAudit(ctx, actor, models.AuditActionEvidenceAdd, claim.ID, fmt.Sprintf(`{"evidenceId":%d,"type":%q}`, evidence.ID, evidence.EvidenceType))
	s.invalidate(ctx, claim.ID)
	return evidence, nil
}

// Remove deletes one evidence item from a draft claim. Once the claim is
// submitted, evidence is immutable.
func (s *EvidenceService) Remove(ctx context.Context, claimID, evidenceID int64, actor *models.JWTClaims) error {
	claim, err := s.loadDraftClaim(ctx, claimID, actor)
	if err != nil {
		return err
	}
	evidence, err := s.repo.GetByID(ctx, evidenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
	}
	if evidence.ClaimID != claim.ID {
		return appErrors.ErrNotFound
	}
	if err := s.repo.Delete(ctx, evidenceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete evidence")
	}
	if err := s.storage.Delete(evidence.FileURL); err != nil {
		s.logger.Warn("failed to delete evidence file", zap.String("file", evidence.FileURL), zap.Error(err))
	}
	s.emitAudit(ctx, actor, models.AuditActionEvidenceDelete, claim.ID, fmt.Sprintf(`{"evidenceId":%d}`, evidenceID))
	s.invalidate(ctx, claim.ID)
	return nil
}

// GetDownloadURL generates a signed URL for fetching the stored file.
func (s *EvidenceService) GetDownloadURL(ctx context.Context, claimID, evidenceID int64, actor *models.JWTClaims) (string, error) {
	if s.signer == nil {
		return "", appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	evidence, err := s.loadOwned(ctx, claimID, evidenceID, actor)
	if err != nil {
		return "", err
	}
	token, _, err := s.signer.Generate(fmt.Sprintf("%d", evidence.ID), evidence.FileURL)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate download token")
	}
	base := strings.TrimRight(s.cfg.APIPrefix, "/")
	return fmt.Sprintf("%s/manager/damage-claims/%d/evidence/%d/download?token=%s", base, claimID, evidence.ID, token), nil
}

// Download validates the token and opens the evidence file.
func (s *EvidenceService) Download(ctx context.Context, claimID, evidenceID int64, token string, actor *models.JWTClaims) (*EvidenceDownload, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signer unavailable")
	}
	evidence, err := s.loadOwned(ctx, claimID, evidenceID, actor)
	if err != nil {
		return nil, err
	}
	refID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if refID != fmt.Sprintf("%d", evidence.ID) || relPath != evidence.FileURL {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open evidence file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read evidence metadata")
	}
	filename := filepath.Base(relPath)
	if evidence.FileName != nil && *evidence.FileName != "" {
		filename = *evidence.FileName
	}
	return &EvidenceDownload{
		File:      file,
		Filename:  filename,
		MimeType:  mime.TypeByExtension(filepath.Ext(relPath)),
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *EvidenceService) loadDraftClaim(ctx context.Context, claimID int64, actor *models.JWTClaims) (*models.DamageClaim, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load claim")
	}
	if err := ensureClaimAccess(claim, actor); err != nil {
		return nil, err
	}
	if claim.Status != models.ClaimStatusDraft {
		return nil, appErrors.ErrClaimNotDraft
	}
	return claim, nil
}

func (s *EvidenceService) loadOwned(ctx context.Context, claimID, evidenceID int64, actor *models.JWTClaims) (*models.DamageEvidence, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	claim, err := s.claims.GetByID(ctx, claimID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load claim")
	}
	if err := ensureClaimAccess(claim, actor); err != nil {
		return nil, err
	}
	evidence, err := s.repo.GetByID(ctx, evidenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load evidence")
	}
	if evidence.ClaimID != claim.ID {
		return nil, appErrors.ErrNotFound
	}
	return evidence, nil
}

func (s *EvidenceService) detectMime(upload EvidenceUpload) (string, error) {
	if upload.Content == nil {
		return "", appErrors.Clone(appErrors.ErrValidation, "file reader missing")
	}
	if upload.MimeType != "" {
		return upload.MimeType, nil
	}
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	return http.DetectContentType(header[:n]), nil
}

func (s *EvidenceService) generateFilename(original, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(original))
	if ext == "" {
		ext = mimeExtension(mimeType)
	}
	if ext == "" {
		ext = ".bin"
	}
	return fmt.Sprintf("evidence_%d_%s%s", time.Now().Unix(), uuid.NewString()[:8], ext)
}

func mimeExtension(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	default:
		return ""
	}
}

func (s *EvidenceService) emitAudit(ctx context.Context, actor *models.JWTClaims, action string, claimID int64, payload string) {
	if s.audit == nil {
		return
	}
	resourceID := fmt.Sprintf("%d", claimID)
	log := &models.AuditLog{
		Action:     action,
		Resource:   "damage_evidence",
		ResourceID: &resourceID,
		IPAddress:  "system",
		UserAgent:  "evidence-service",
	}
	if actor != nil {
		log.UserID = &actor.UserID
	}
	if payload != "" {
		log.NewValues = []byte(payload)
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to create evidence audit", zap.Error(err))
	}
}

func (s *EvidenceService) invalidate(ctx context.Context, claimID int64) {
	_ = s.cache.Invalidate(ctx, "claims:list:*")
	_ = s.cache.Invalidate(ctx, fmt.Sprintf("claims:detail:%d", claimID))
}
