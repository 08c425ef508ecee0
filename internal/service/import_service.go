package service

import (
	"fmt"
	"io"

	"github.com/google/uuid"

	"cedeva-recon/internal/domain"
	"cedeva-recon/internal/parser"
	"cedeva-recon/internal/repository"
	"cedeva-recon/pkg/logger"
)

type ImportService interface {
	ParseFile(r io.Reader, fileName string) (*domain.CodaStatement, error)
	ImportStatement(statement *domain.CodaStatement, organisationID int) (string, error)
}

type importService struct {
	statements repository.StatementRepository
	parser     *parser.FileParser
}

func NewImportService(statements repository.StatementRepository) ImportService {
	return &importService{
		statements: statements,
		parser:     parser.NewFileParser(),
	}
}

func (s *importService) ParseFile(r io.Reader, fileName string) (*domain.CodaStatement, error) {
	return s.parser.Parse(r, fileName)
}

// ImportStatement persists a parsed statement as a new batch and
// returns the batch id. Every transaction starts unreconciled.
func (s *importService) ImportStatement(statement *domain.CodaStatement, organisationID int) (string, error) {
	imp := &domain.CodaImport{
		BatchID:          uuid.New().String(),
		OrganisationID:   organisationID,
		FileName:         statement.FileName,
		AccountNumber:    statement.AccountNumber,
		StatementDate:    statement.StatementDate,
		OldBalance:       statement.OldBalance,
		NewBalance:       statement.NewBalance,
		TransactionCount: len(statement.Transactions),
	}

	if err := s.statements.CreateImport(imp, statement.Transactions); err != nil {
		return "", fmt.Errorf("failed to persist CODA import: %w", err)
	}

	logger.GetLogger().WithField("batch_id", imp.BatchID).
		WithField("file", statement.FileName).
		WithField("transactions", imp.TransactionCount).
		WithField("organisation_id", organisationID).
		Info("Imported CODA statement")

	return imp.BatchID, nil
}
