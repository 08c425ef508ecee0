package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"cedeva-recon/internal/domain"
	"cedeva-recon/pkg/logger"
)

// balanceTolerance absorbs bank-side rounding in the old/new balance
// cross-check; larger drift is reported as a warning, never an error.
var balanceTolerance = decimal.New(1, -2)

// accumulator is the explicit fold state of one file parse. Movements
// open transactions keyed by their sequence number so that information
// and continuation records attach by shared sequence, not line
// proximity.
type accumulator struct {
	statement   *domain.CodaStatement
	headerSeen  bool
	trailerSeen bool
	bySequence  map[string]int // sequence -> index into statement.Transactions
	freeText    map[string][]string
	debitTotal  decimal.Decimal
	creditTotal decimal.Decimal
}

// FileParser assembles CODA statements from raw file content.
type FileParser struct{}

func NewFileParser() *FileParser {
	return &FileParser{}
}

// Parse consumes the ordered line sequence of one CODA file and builds
// the complete statement. Header and trailer corruption is fatal; a
// single bad movement or information line is recorded as a warning and
// skipped.
func (p *FileParser) Parse(r io.Reader, fileName string) (*domain.CodaStatement, error) {
	acc := &accumulator{
		statement: &domain.CodaStatement{
			FileName:   fileName,
			OldBalance: decimal.Zero,
			NewBalance: decimal.Zero,
		},
		bySequence:  make(map[string]int),
		freeText:    make(map[string][]string),
		debitTotal:  decimal.Zero,
		creditTotal: decimal.Zero,
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256), 4096)

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r")

		record, err := ParseLine(line, lineNumber)
		if err != nil {
			if fatal, ferr := classifyLineError(line, err); fatal {
				return nil, ferr
			}
			var malformed *MalformedLineError
			errors.As(err, &malformed)
			logger.GetLogger().WithField("line", lineNumber).WithField("reason", malformed.Reason).Warn("Skipping malformed CODA line")
			acc.warn(lineNumber, malformed.Reason)
			continue
		}

		if err := acc.apply(record, lineNumber); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read CODA file: %w", err)
	}

	if !acc.headerSeen {
		return nil, &InvalidFileFormatError{Reason: "no header record found"}
	}
	if !acc.trailerSeen {
		return nil, &InvalidFileFormatError{Reason: "no trailer record found"}
	}

	acc.finalize()

	logger.GetLogger().WithField("file", fileName).
		WithField("transactions", len(acc.statement.Transactions)).
		WithField("warnings", len(acc.statement.Warnings)).
		Info("Parsed CODA file")

	return acc.statement, nil
}

// classifyLineError decides whether a malformed line dooms the whole
// file. A corrupt header or trailer does; a corrupt movement does not.
func classifyLineError(line string, err error) (bool, error) {
	var malformed *MalformedLineError
	if !errors.As(err, &malformed) {
		return true, err
	}
	if len(line) > 0 && (line[0] == '0' || line[0] == '9') {
		return true, &InvalidFileFormatError{Reason: malformed.Error()}
	}
	return false, nil
}

func (a *accumulator) apply(record Record, lineNumber int) error {
	if _, ok := record.(IgnorableRecord); ok {
		return nil
	}
	if _, ok := record.(HeaderRecord); !ok && !a.headerSeen {
		return &InvalidFileFormatError{
			Reason: fmt.Sprintf("record before header at line %d", lineNumber),
		}
	}

	switch rec := record.(type) {
	case HeaderRecord:
		if a.headerSeen {
			a.warn(lineNumber, "duplicate header record")
			return nil
		}
		a.headerSeen = true
		a.statement.AccountNumber = rec.AccountNumber
		a.statement.StatementDate = rec.StatementDate

	case BalanceRecord:
		if rec.Opening {
			a.statement.OldBalance = rec.Balance
		} else {
			a.statement.NewBalance = rec.Balance
		}

	case MovementRecord:
		a.openTransaction(rec, lineNumber)

	case ContinuationRecord:
		a.appendFreeText(rec.Sequence, rec.Text, lineNumber)

	case InformationRecord:
		a.applyInformation(rec, lineNumber)

	case TrailerRecord:
		a.trailerSeen = true
		a.crossCheckTrailer(rec, lineNumber)
	}

	return nil
}

func (a *accumulator) openTransaction(rec MovementRecord, lineNumber int) {
	if _, exists := a.bySequence[rec.Sequence]; exists {
		a.warn(lineNumber, fmt.Sprintf("duplicate movement sequence %s, skipping", rec.Sequence))
		return
	}

	tx := domain.CodaTransaction{
		TransactionDate: rec.TransactionDate,
		ValueDate:       rec.ValueDate,
		Amount:          rec.Amount,
		TransactionCode: rec.TransactionCode,
	}
	if rec.StructuredCommunication != "" {
		comm := rec.StructuredCommunication
		tx.StructuredCommunication = &comm
	}

	if rec.Amount.IsNegative() {
		a.debitTotal = a.debitTotal.Add(rec.Amount.Abs())
	} else {
		a.creditTotal = a.creditTotal.Add(rec.Amount)
	}

	a.bySequence[rec.Sequence] = len(a.statement.Transactions)
	a.statement.Transactions = append(a.statement.Transactions, tx)
}

func (a *accumulator) applyInformation(rec InformationRecord, lineNumber int) {
	idx, ok := a.bySequence[rec.Sequence]
	if !ok {
		a.warn(lineNumber, fmt.Sprintf("information record for unknown movement sequence %s", rec.Sequence))
		return
	}
	if rec.Text == "" {
		return
	}

	tx := &a.statement.Transactions[idx]
	switch rec.Kind {
	case InfoCounterpartyName:
		if tx.CounterpartyName == nil {
			name := rec.Text
			tx.CounterpartyName = &name
		} else {
			name := *tx.CounterpartyName + " " + rec.Text
			tx.CounterpartyName = &name
		}
	case InfoFreeCommunication:
		a.appendFreeText(rec.Sequence, rec.Text, lineNumber)
	case InfoCounterpartyAccount:
		account := rec.Text
		tx.CounterpartyAccount = &account
	}
}

func (a *accumulator) appendFreeText(sequence, text string, lineNumber int) {
	if _, ok := a.bySequence[sequence]; !ok {
		a.warn(lineNumber, fmt.Sprintf("continuation record for unknown movement sequence %s", sequence))
		return
	}
	if text == "" {
		return
	}
	a.freeText[sequence] = append(a.freeText[sequence], text)
}

func (a *accumulator) crossCheckTrailer(rec TrailerRecord, lineNumber int) {
	if rec.RecordCount != int64(len(a.statement.Transactions)) {
		a.warn(lineNumber, fmt.Sprintf(
			"trailer announces %d movements, file contains %d",
			rec.RecordCount, len(a.statement.Transactions)))
	}
	if !rec.DebitTotal.Equal(a.debitTotal) {
		a.warn(lineNumber, fmt.Sprintf(
			"trailer debit total %s differs from accumulated %s",
			rec.DebitTotal, a.debitTotal))
	}
	if !rec.CreditTotal.Equal(a.creditTotal) {
		a.warn(lineNumber, fmt.Sprintf(
			"trailer credit total %s differs from accumulated %s",
			rec.CreditTotal, a.creditTotal))
	}
}

// finalize attaches the accumulated free-text fragments in encounter
// order and runs the balance equation check.
func (a *accumulator) finalize() {
	for sequence, fragments := range a.freeText {
		idx := a.bySequence[sequence]
		text := strings.Join(fragments, " ")
		a.statement.Transactions[idx].FreeCommunication = &text
	}

	expected := a.statement.OldBalance.Add(a.creditTotal).Sub(a.debitTotal)
	drift := a.statement.NewBalance.Sub(expected).Abs()
	if drift.GreaterThan(balanceTolerance) {
		a.warn(0, fmt.Sprintf(
			"new balance %s differs from old balance plus movements (%s) by %s",
			a.statement.NewBalance, expected, drift))
	}
}

func (a *accumulator) warn(lineNumber int, message string) {
	a.statement.Warnings = append(a.statement.Warnings, domain.ParseWarning{
		LineNumber: lineNumber,
		Message:    message,
	})
}
