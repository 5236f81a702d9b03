// Package crossval reconciles the OCR fields extracted from the front of an
// identity document against the fields decoded from its back barcode.
//
// The engine is pure: no I/O, no clock, deterministic for a given input.
// Fields are compared only when present on both sides; comparison is
// case-insensitive and whitespace-normalized. The match score is the
// fraction of compared fields that agree.
package crossval

import (
	"fmt"
	"strings"

	"idverify/internal/verification/models"
)

// Field names as they appear in discrepancy messages.
const (
	fieldIDNumber         = "id_number"
	fieldExpiryDate       = "expiry_date"
	fieldIssuingAuthority = "issuing_authority"
)

// Validate compares front OCR data against back barcode fields and returns
// the consistency verdict. Overall consistency requires every compared field
// to agree; if no field is comparable the result is inconsistent with an
// explanatory discrepancy.
func Validate(front *models.OCRData, back *models.BarcodeFields) models.CrossValidationResult {
	result := models.CrossValidationResult{}
	if front == nil || back == nil {
		result.Discrepancies = append(result.Discrepancies, "no fields available for cross-validation")
		return result
	}

	compared := 0
	matched := 0

	compare := func(name, frontVal, backVal string) *bool {
		f := normalize(frontVal)
		b := normalize(backVal)
		if f == "" || b == "" {
			return nil
		}
		compared++
		ok := f == b
		if ok {
			matched++
		} else {
			result.Discrepancies = append(result.Discrepancies,
				fmt.Sprintf("%s mismatch: front=%q back=%q", name, frontVal, backVal))
		}
		return &ok
	}

	result.Fields.IDNumberMatch = compare(fieldIDNumber, front.DocumentNumber, back.DocumentNumber)
	result.Fields.ExpiryDateMatch = compare(fieldExpiryDate, front.ExpirationDate, back.ExpirationDate)
	result.Fields.IssuingAuthorityMatch = compare(fieldIssuingAuthority, front.IssuingAuthority, back.IssuingAuthority)

	if compared == 0 {
		result.Discrepancies = append(result.Discrepancies, "no fields available for cross-validation")
		return result
	}

	result.MatchScore = float64(matched) / float64(compared)
	result.Fields.OverallConsistency = matched == compared
	return result
}

// normalize trims, lowercases, and collapses internal whitespace so that
// cosmetic differences between OCR output and barcode payloads don't count
// as mismatches.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
