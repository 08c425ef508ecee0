package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cedeva-recon/internal/structcomm"
)

// CODA 2.3 fixed-width layout. Full lines are 128 characters but banks
// trim trailing spaces, so each record type only requires the columns it
// actually uses.
const (
	headerAccountStart  = 5
	headerAccountLen    = 12
	headerDateStart     = 97
	headerDateLen       = 6
	headerMinLen        = headerDateStart + headerDateLen

	balanceSignPos    = 41
	balanceAmountPos  = 42
	balanceAmountLen  = 15
	balanceMinLen     = balanceAmountPos + balanceAmountLen

	movementSeqStart   = 2
	movementSeqLen     = 4
	movementDateStart  = 13
	movementSignPos    = 31
	movementAmountPos  = 32
	movementAmountLen  = 15
	movementValueDate  = 47
	movementCodeStart  = 61
	movementCodeLen    = 8
	movementCommStart  = 112
	movementCommLen    = 13
	movementMinLen     = movementCommStart + movementCommLen

	continuationTextStart = 10
	continuationTextLen   = 63
	continuationMinLen    = continuationTextStart + continuationTextLen

	infoAccountLen = 37
	infoAccountMin = continuationTextStart + infoAccountLen

	trailerCountStart  = 16
	trailerCountLen    = 6
	trailerDebitStart  = 22
	trailerCreditStart = 37
	trailerMinLen      = trailerCreditStart + balanceAmountLen

	dateLen = 6
)

// Record is one decoded CODA line. Concrete types: HeaderRecord,
// BalanceRecord, MovementRecord, ContinuationRecord, InformationRecord,
// TrailerRecord, IgnorableRecord.
type Record interface {
	recordType() byte
}

type HeaderRecord struct {
	AccountNumber string
	StatementDate time.Time
}

// BalanceRecord carries the opening (record type 1) or closing (type 8)
// balance, signed.
type BalanceRecord struct {
	Opening bool
	Balance decimal.Decimal
}

// MovementRecord opens a new transaction. Sequence associates later
// continuation and information records with it. StructuredCommunication
// holds bare digits, empty when absent or all zeros.
type MovementRecord struct {
	Sequence                string
	TransactionDate         time.Time
	ValueDate               time.Time
	Amount                  decimal.Decimal
	TransactionCode         string
	StructuredCommunication string
}

// ContinuationRecord is a movement article 2 or 3 line carrying extra
// free-text communication for the transaction with the same sequence.
type ContinuationRecord struct {
	Sequence string
	Text     string
}

type InfoKind byte

const (
	InfoCounterpartyName    InfoKind = '1'
	InfoFreeCommunication   InfoKind = '2'
	InfoCounterpartyAccount InfoKind = '3'
)

// InformationRecord enriches the transaction with the same sequence.
type InformationRecord struct {
	Sequence string
	Kind     InfoKind
	Text     string
}

type TrailerRecord struct {
	RecordCount int64
	DebitTotal  decimal.Decimal
	CreditTotal decimal.Decimal
}

// IgnorableRecord is a recognized but irrelevant line (free message
// records, blank padding lines).
type IgnorableRecord struct{}

func (HeaderRecord) recordType() byte      { return '0' }
func (BalanceRecord) recordType() byte     { return '1' }
func (MovementRecord) recordType() byte    { return '2' }
func (ContinuationRecord) recordType() byte { return '2' }
func (InformationRecord) recordType() byte { return '3' }
func (TrailerRecord) recordType() byte     { return '9' }
func (IgnorableRecord) recordType() byte   { return ' ' }

// ParseLine decodes one CODA line into its tagged record. lineNumber is
// only used for error reporting.
func ParseLine(line string, lineNumber int) (Record, error) {
	if strings.TrimSpace(line) == "" {
		return IgnorableRecord{}, nil
	}

	switch line[0] {
	case '0':
		return parseHeader(line, lineNumber)
	case '1':
		return parseBalance(line, lineNumber, true)
	case '2':
		return parseMovement(line, lineNumber)
	case '3':
		return parseInformation(line, lineNumber)
	case '4':
		// free message record, carries nothing the reconciliation needs
		return IgnorableRecord{}, nil
	case '8':
		return parseBalance(line, lineNumber, false)
	case '9':
		return parseTrailer(line, lineNumber)
	default:
		return nil, &MalformedLineError{
			LineNumber: lineNumber,
			Raw:        line,
			Reason:     "unrecognized record type " + strconv.QuoteRune(rune(line[0])),
		}
	}
}

func parseHeader(line string, lineNumber int) (Record, error) {
	if len(line) < headerMinLen {
		return nil, tooShort(line, lineNumber, "header", headerMinLen)
	}

	date, err := parseDate(field(line, headerDateStart, headerDateLen))
	if err != nil {
		return nil, &MalformedLineError{
			LineNumber: lineNumber,
			Raw:        line,
			Reason:     "invalid statement date: " + err.Error(),
		}
	}

	return HeaderRecord{
		AccountNumber: strings.TrimSpace(field(line, headerAccountStart, headerAccountLen)),
		StatementDate: date,
	}, nil
}

func parseBalance(line string, lineNumber int, opening bool) (Record, error) {
	name := "new balance"
	if opening {
		name = "old balance"
	}
	if len(line) < balanceMinLen {
		return nil, tooShort(line, lineNumber, name, balanceMinLen)
	}

	balance, err := parseAmount(field(line, balanceAmountPos, balanceAmountLen), line[balanceSignPos])
	if err != nil {
		return nil, &MalformedLineError{
			LineNumber: lineNumber,
			Raw:        line,
			Reason:     "invalid " + name + " amount: " + err.Error(),
		}
	}

	return BalanceRecord{Opening: opening, Balance: balance}, nil
}

func parseMovement(line string, lineNumber int) (Record, error) {
	if len(line) < movementSeqStart+movementSeqLen {
		return nil, tooShort(line, lineNumber, "movement", movementMinLen)
	}
	sequence := field(line, movementSeqStart, movementSeqLen)

	// articles 2 and 3 only continue the communication of article 1
	if line[1] == '2' || line[1] == '3' {
		if len(line) < continuationMinLen {
			return nil, tooShort(line, lineNumber, "movement continuation", continuationMinLen)
		}
		return ContinuationRecord{
			Sequence: sequence,
			Text:     strings.TrimSpace(field(line, continuationTextStart, continuationTextLen)),
		}, nil
	}

	if len(line) < movementMinLen {
		return nil, tooShort(line, lineNumber, "movement", movementMinLen)
	}

	txDate, err := parseDate(field(line, movementDateStart, dateLen))
	if err != nil {
		return nil, &MalformedLineError{
			LineNumber: lineNumber,
			Raw:        line,
			Reason:     "invalid transaction date: " + err.Error(),
		}
	}

	amount, err := parseAmount(field(line, movementAmountPos, movementAmountLen), line[movementSignPos])
	if err != nil {
		return nil, &MalformedLineError{
			LineNumber: lineNumber,
			Raw:        line,
			Reason:     "invalid movement amount: " + err.Error(),
		}
	}

	// banks occasionally leave the value date blank; fall back to the
	// transaction date rather than rejecting the movement
	valueDate, err := parseDate(field(line, movementValueDate, dateLen))
	if err != nil {
		valueDate = txDate
	}

	return MovementRecord{
		Sequence:                sequence,
		TransactionDate:         txDate,
		ValueDate:               valueDate,
		Amount:                  amount,
		TransactionCode:         strings.TrimSpace(field(line, movementCodeStart, movementCodeLen)),
		StructuredCommunication: normalizeStructured(field(line, movementCommStart, movementCommLen)),
	}, nil
}

func parseInformation(line string, lineNumber int) (Record, error) {
	if len(line) < continuationTextStart {
		return nil, tooShort(line, lineNumber, "information", continuationTextStart)
	}

	kind := InfoKind(line[1])
	switch kind {
	case InfoCounterpartyName, InfoFreeCommunication:
		if len(line) < continuationMinLen {
			return nil, tooShort(line, lineNumber, "information", continuationMinLen)
		}
		return InformationRecord{
			Sequence: field(line, movementSeqStart, movementSeqLen),
			Kind:     kind,
			Text:     strings.TrimSpace(field(line, continuationTextStart, continuationTextLen)),
		}, nil
	case InfoCounterpartyAccount:
		if len(line) < infoAccountMin {
			return nil, tooShort(line, lineNumber, "information", infoAccountMin)
		}
		return InformationRecord{
			Sequence: field(line, movementSeqStart, movementSeqLen),
			Kind:     kind,
			Text:     strings.TrimSpace(field(line, continuationTextStart, infoAccountLen)),
		}, nil
	default:
		return IgnorableRecord{}, nil
	}
}

func parseTrailer(line string, lineNumber int) (Record, error) {
	if len(line) < trailerMinLen {
		return nil, tooShort(line, lineNumber, "trailer", trailerMinLen)
	}

	count, err := parseDigits(field(line, trailerCountStart, trailerCountLen))
	if err != nil {
		return nil, &MalformedLineError{
			LineNumber: lineNumber,
			Raw:        line,
			Reason:     "invalid trailer record count: " + err.Error(),
		}
	}

	debit, err := parseAmount(field(line, trailerDebitStart, balanceAmountLen), '0')
	if err != nil {
		return nil, &MalformedLineError{
			LineNumber: lineNumber,
			Raw:        line,
			Reason:     "invalid trailer debit total: " + err.Error(),
		}
	}

	credit, err := parseAmount(field(line, trailerCreditStart, balanceAmountLen), '0')
	if err != nil {
		return nil, &MalformedLineError{
			LineNumber: lineNumber,
			Raw:        line,
			Reason:     "invalid trailer credit total: " + err.Error(),
		}
	}

	return TrailerRecord{RecordCount: count, DebitTotal: debit, CreditTotal: credit}, nil
}

func field(line string, start, length int) string {
	return line[start : start+length]
}

func tooShort(line string, lineNumber int, name string, minLen int) error {
	return &MalformedLineError{
		LineNumber: lineNumber,
		Raw:        line,
		Reason:     name + " record shorter than " + strconv.Itoa(minLen) + " characters",
	}
}

func parseDigits(s string) (int64, error) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseInt(s, 10, 64)
}

// parseAmount decodes a 15-digit zero-padded value with 3 implied
// decimals. sign '1' means debit (negative).
func parseAmount(s string, sign byte) (decimal.Decimal, error) {
	units, err := parseDigits(s)
	if err != nil {
		return decimal.Zero, err
	}

	amount := decimal.New(units, -3)
	if sign == '1' {
		amount = amount.Neg()
	}
	return amount, nil
}

// parseDate decodes DDMMYY with a 2000 year base.
func parseDate(s string) (time.Time, error) {
	if _, err := parseDigits(s); err != nil {
		return time.Time{}, err
	}
	return time.Parse("020106", s)
}

// normalizeStructured keeps a 12-digit structured communication as bare
// digits. All zeros, padding or anything non-numeric means "no reference".
func normalizeStructured(raw string) string {
	digits := structcomm.Normalize(strings.TrimSpace(raw))
	if strings.Trim(digits, "0") == "" {
		return ""
	}
	return digits
}
