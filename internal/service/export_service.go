package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scolaris-app/biblio-api/internal/models"
	appErrors "github.com/scolaris-app/biblio-api/pkg/errors"
	"github.com/scolaris-app/biblio-api/pkg/export"
	"github.com/scolaris-app/biblio-api/pkg/storage"
)

// Export formats and report kinds accepted by Generate.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"

	ReportLoanRegister  = "loan-register"
	ReportOverdueLoans  = "overdue-loans"
	ReportPenaltyLedger = "penalty-ledger"
)

const exportPageSize = 500

type exportLoanRepository interface {
	List(ctx context.Context, filter models.LoanFilter) ([]models.LoanDetail, int, error)
}

type exportPenaltyRepository interface {
	List(ctx context.Context, filter models.PenaltyFilter) ([]models.Penalty, int, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
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
	RelativePath string    `json:"path"`
	Token        string    `json:"token"`
	URL          string    `json:"url"`
	Format       string    `json:"format"`
	ExpiresAt    time.Time `json:"expires_at"`
	RowCount     int       `json:"row_count"`
}

// ExportService builds loan and penalty registers and persists rendered files.
type ExportService struct {
	loans     exportLoanRepository
	penalties exportPenaltyRepository
	storage   fileStorage
	csv       csvRenderer
	pdf       pdfRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(loans exportLoanRepository, penalties exportPenaltyRepository, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		loans:     loans,
		penalties: penalties,
		storage:   store,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		signer:    signer,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate builds the requested register, stores the rendered file and
// returns a signed download URL.
func (s *ExportService) Generate(ctx context.Context, report, format string) (*ExportResult, error) {
	format = strings.ToLower(format)
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	var (
		dataset export.Dataset
		title   string
		err     error
	)
	switch report {
	case ReportLoanRegister:
		dataset, err = s.loanDataset(ctx, models.LoanFilter{PageSize: exportPageSize})
		title = "Registre des prets"
	case ReportOverdueLoans:
		dataset, err = s.loanDataset(ctx, models.LoanFilter{OverdueOnly: true, PageSize: exportPageSize})
		title = "Prets en retard"
	case ReportPenaltyLedger:
		dataset, err = s.penaltyDataset(ctx)
		title = "Registre des penalites"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown report %q", report))
	}
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	now := s.now()
	filename := fmt.Sprintf("%s_%s.%s", report, now.Format("20060102_150405"), format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	token, expiresAt, err := s.signer.Generate(report, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Info("export generated",
		zap.String("report", report),
		zap.String("format", format),
		zap.String("path", relPath),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/download/%s", prefix, token),
		Format:       format,
		ExpiresAt:    expiresAt,
		RowCount:     len(dataset.Rows),
	}, nil
}

// Open resolves a signed token to the stored file.
func (s *ExportService) Open(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export file not found")
	}
	return file, nil
}

// Cleanup removes files older than the configured result TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

func (s *ExportService) loanDataset(ctx context.Context, filter models.LoanFilter) (export.Dataset, error) {
	loans, _, err := s.loans.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loans")
	}
	headers := []string{"Livre", "Auteur", "Emprunteur", "Type", "Debut", "Echeance", "Rendu", "Statut", "Penalite"}
	rows := make([]map[string]string, 0, len(loans))
	for _, loan := range loans {
		returned := ""
		if loan.ReturnedAt != nil {
			returned = loan.ReturnedAt.Format("02/01/2006")
		}
		rows = append(rows, map[string]string{
			"Livre":      loan.BookTitle,
			"Auteur":     loan.BookAuthor,
			"Emprunteur": loan.BorrowerName,
			"Type":       string(loan.BorrowerKind),
			"Debut":      loan.StartDate.Format("02/01/2006"),
			"Echeance":   loan.DueDate.Format("02/01/2006"),
			"Rendu":      returned,
			"Statut":     string(loan.Status),
			"Penalite":   loan.PenaltyAmount.StringFixed(0),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}, nil
}

func (s *ExportService) penaltyDataset(ctx context.Context) (export.Dataset, error) {
	penalties, _, err := s.penalties.List(ctx, models.PenaltyFilter{PageSize: exportPageSize})
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load penalties")
	}
	headers := []string{"Pret", "Type", "Montant", "Statut", "Cree le", "Paye le"}
	rows := make([]map[string]string, 0, len(penalties))
	for _, penalty := range penalties {
		paid := ""
		if penalty.PaidAt != nil {
			paid = penalty.PaidAt.Format("02/01/2006")
		}
		rows = append(rows, map[string]string{
			"Pret":    penalty.LoanID,
			"Type":    string(penalty.Kind),
			"Montant": penalty.Amount.StringFixed(0),
			"Statut":  string(penalty.Status),
			"Cree le": penalty.CreatedAt.Format("02/01/2006"),
			"Paye le": paid,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}, nil
}
