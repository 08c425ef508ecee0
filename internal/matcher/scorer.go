package matcher

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"cedeva-recon/internal/domain"
	"cedeva-recon/internal/structcomm"
)

// Confidence signal weights. The amount bands are cumulative: an exact
// amount also satisfies the 0.01 and 5% bands, so it contributes 35.
const (
	scoreExactReference = 70
	scoreExactAmount    = 20
	scoreAmountClose    = 10
	scoreAmountNear     = 5
	scoreNameMatch      = 10

	maxScore = 100
)

var (
	amountCloseTolerance = decimal.New(1, -2)   // 0.01
	amountNearFraction   = decimal.New(5, -2)   // 5%
)

// Scorer computes match confidence between one bank transaction and one
// unpaid booking. Pure: no side effects, no persistence.
type Scorer struct {
	autoThreshold   int
	suggestionFloor int
}

func NewScorer(autoThreshold, suggestionFloor int) *Scorer {
	return &Scorer{
		autoThreshold:   autoThreshold,
		suggestionFloor: suggestionFloor,
	}
}

// Score returns a confidence score in [0,100] with the human-readable
// reasons behind it.
func (s *Scorer) Score(tx *domain.CodaTransaction, booking *domain.UnpaidBooking) (int, []string) {
	score := 0
	var reasons []string

	if refScore, refReason := scoreReference(tx, booking); refScore > 0 {
		score += refScore
		reasons = append(reasons, refReason)
	}

	amountScore, amountReasons := scoreAmount(tx.Amount, booking.RemainingAmount())
	score += amountScore
	reasons = append(reasons, amountReasons...)

	nameScore, nameReason := scoreCounterpartyName(tx, booking)
	score += nameScore
	if nameReason != "" {
		reasons = append(reasons, nameReason)
	}

	if score > maxScore {
		score = maxScore
	}
	return score, reasons
}

// scoreReference awards the reference weight when the transaction's
// structured communication equals the booking's expected one or, for
// bookings without a stored reference, when the communication's mod-97
// payload encodes the booking id.
func scoreReference(tx *domain.CodaTransaction, booking *domain.UnpaidBooking) (int, string) {
	if tx.StructuredCommunication == nil {
		return 0, ""
	}
	if booking.StructuredCommunication != nil {
		// booking references may still carry the +++XXX/XXXX/XXXXX+++
		// display formatting; compare bare digits
		if expected := structcomm.Normalize(*booking.StructuredCommunication); expected != "" {
			if *tx.StructuredCommunication == expected {
				return scoreExactReference, "exact reference match"
			}
			return 0, ""
		}
	}
	if id, ok := structcomm.ExtractBookingID(*tx.StructuredCommunication); ok && id == booking.ID {
		return scoreExactReference, "payment reference encodes booking id"
	}
	return 0, ""
}

func scoreAmount(amount, remaining decimal.Decimal) (int, []string) {
	score := 0
	var reasons []string

	diff := amount.Sub(remaining).Abs()

	if diff.IsZero() {
		score += scoreExactAmount
		reasons = append(reasons, "exact amount match")
	}
	if diff.LessThanOrEqual(amountCloseTolerance) {
		score += scoreAmountClose
		if !diff.IsZero() {
			reasons = append(reasons, "amount matches within 0.01")
		}
	}
	if diff.LessThanOrEqual(remaining.Mul(amountNearFraction)) {
		score += scoreAmountNear
		if len(reasons) == 0 {
			reasons = append(reasons, "amount within 5% of remaining amount")
		}
	}

	return score, reasons
}

func scoreCounterpartyName(tx *domain.CodaTransaction, booking *domain.UnpaidBooking) (int, string) {
	if tx.CounterpartyName == nil || *tx.CounterpartyName == "" {
		return 0, ""
	}

	bestSimilarity := 0.0
	bestName := ""
	for _, candidate := range []string{booking.ParentName(), booking.ChildName()} {
		if similarity := nameSimilarity(*tx.CounterpartyName, candidate); similarity > bestSimilarity {
			bestSimilarity = similarity
			bestName = candidate
		}
	}

	if bestSimilarity < similarityThreshold {
		return 0, ""
	}
	return scoreNameMatch, fmt.Sprintf("counterparty name similarity %.0f%% with %s", bestSimilarity*100, bestName)
}

// Suggest scores one transaction against every open booking and returns
// the pairs at or above the suggestion floor, unranked.
func (s *Scorer) Suggest(tx *domain.CodaTransaction, bookings []domain.UnpaidBooking) []domain.ReconciliationSuggestion {
	var suggestions []domain.ReconciliationSuggestion

	for i := range bookings {
		booking := &bookings[i]
		score, reasons := s.Score(tx, booking)
		if score < s.suggestionFloor {
			continue
		}

		counterparty := ""
		if tx.CounterpartyName != nil {
			counterparty = *tx.CounterpartyName
		}
		reference := ""
		if tx.StructuredCommunication != nil {
			reference = structcomm.Format(*tx.StructuredCommunication)
		}

		suggestions = append(suggestions, domain.ReconciliationSuggestion{
			TransactionID:     tx.ID,
			BookingID:         booking.ID,
			ConfidenceScore:   score,
			MatchReasons:      reasons,
			TransactionDate:   tx.TransactionDate,
			TransactionAmount: tx.Amount,
			PaymentReference:  reference,
			CounterpartyName:  counterparty,
			ChildName:         booking.ChildName(),
			ParentName:        booking.ParentName(),
			ActivityName:      booking.ActivityName,
			BookingDate:       booking.BookingDate,
			RemainingAmount:   booking.RemainingAmount(),
		})
	}

	return suggestions
}

// Rank orders suggestions deterministically: score descending, then
// most recent booking first, then smallest remaining amount (prefer
// clearing the smallest debt), then booking id.
func Rank(suggestions []domain.ReconciliationSuggestion) {
	sort.Slice(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.ConfidenceScore != b.ConfidenceScore {
			return a.ConfidenceScore > b.ConfidenceScore
		}
		if !a.BookingDate.Equal(b.BookingDate) {
			return a.BookingDate.After(b.BookingDate)
		}
		if !a.RemainingAmount.Equal(b.RemainingAmount) {
			return a.RemainingAmount.LessThan(b.RemainingAmount)
		}
		if a.BookingID != b.BookingID {
			return a.BookingID < b.BookingID
		}
		return a.TransactionID < b.TransactionID
	})
}

// AutoCandidate returns the single booking eligible for hands-free
// reconciliation of this transaction: exactly one candidate at or above
// the automatic threshold. Zero or several mean manual review.
func (s *Scorer) AutoCandidate(tx *domain.CodaTransaction, bookings []domain.UnpaidBooking) (*domain.UnpaidBooking, bool) {
	var candidate *domain.UnpaidBooking

	for i := range bookings {
		score, _ := s.Score(tx, &bookings[i])
		if score < s.autoThreshold {
			continue
		}
		if candidate != nil {
			return nil, false // ambiguous, leave for the operator
		}
		candidate = &bookings[i]
	}

	return candidate, candidate != nil
}
