package service

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/taxops/tds-challan-extractor/config"
	"github.com/taxops/tds-challan-extractor/dto"
	"github.com/taxops/tds-challan-extractor/utils"
)

// staleDepositAge marks deposit dates old enough to suggest a misread year.
const staleDepositAge = 10 * 365 * 24 * time.Hour

// ValidationService applies the accept/flag rules to extracted records.
// Rules come in two severities: flagging rules force a record into manual
// review; warning rules only append a note.
type ValidationService struct {
	cfg *config.Config
	now func() time.Time
}

func NewValidationService(cfg *config.Config) *ValidationService {
	return &ValidationService{cfg: cfg, now: time.Now}
}

// Validate sets the record's validation flag and notes. Notes are emitted in
// fixed rule order so repeated runs produce identical output.
func (v *ValidationService) Validate(r *dto.ChallanRecord) {
	var notes []string
	flagged := false

	// Sum check: the six tax components must reconcile with the total.
	if diff := math.Abs(r.TaxBreakup.Total() - r.TotalAmount); diff > v.cfg.SumCheckTolerance {
		flagged = true
		notes = append(notes, fmt.Sprintf("tax breakup sum %s differs from total %s by %s",
			utils.FormatAmount(r.TaxBreakup.Total()), utils.FormatAmount(r.TotalAmount), utils.FormatAmount(diff)))
	}

	if r.TAN != "" && !utils.TANPattern.MatchString(r.TAN) {
		flagged = true
		notes = append(notes, fmt.Sprintf("TAN %q does not match the required format", r.TAN))
	}

	for _, name := range utils.MandatoryFields() {
		if _, ok := r.Fields[name]; !ok {
			flagged = true
			notes = append(notes, "missing mandatory field "+name)
		}
	}

	if r.RowConfidence < v.cfg.MinRowConfidence {
		flagged = true
		notes = append(notes, fmt.Sprintf("row confidence %.2f below threshold %.2f", r.RowConfidence, v.cfg.MinRowConfidence))
	}

	// Warning rules: recorded but never flag-flipping.
	if r.CIN != "" && len(r.CIN) < utils.CINMinLength {
		notes = append(notes, fmt.Sprintf("CIN %q shorter than the expected %d characters", r.CIN, utils.CINMinLength))
	}
	if _, ok := r.Fields[dto.FieldTotalAmount]; ok && r.TotalAmount == 0 {
		notes = append(notes, "total amount is zero")
	}
	if d, err := time.Parse("2006-01-02", r.DateOfDeposit); err == nil {
		now := v.now()
		if d.After(now) {
			notes = append(notes, "deposit date "+r.DateOfDeposit+" is in the future")
		} else if now.Sub(d) > staleDepositAge {
			notes = append(notes, "deposit date "+r.DateOfDeposit+" is more than ten years old")
		}
	}
	if missing := missingOptional(r); len(missing) > 0 {
		notes = append(notes, "optional fields not found: "+strings.Join(missing, ", "))
	}

	if flagged {
		r.ValidationFlag = dto.StatusFlag
	} else {
		r.ValidationFlag = dto.StatusOK
	}
	r.Notes = strings.Join(notes, "; ")
}

func missingOptional(r *dto.ChallanRecord) []string {
	var missing []string
	for _, spec := range utils.ChallanFields() {
		if spec.Mandatory {
			continue
		}
		if _, ok := r.Fields[spec.Name]; !ok {
			missing = append(missing, spec.Name)
		}
	}
	sort.Strings(missing)
	return missing
}

// Deduplicate marks repeated challans within a batch. The first occurrence
// in batch order is canonical; later ones get a note naming it. Duplication
// is informational and never flips the validation flag.
func (v *ValidationService) Deduplicate(records []*dto.ChallanRecord) {
	seen := make(map[string]string)
	for _, r := range records {
		if r.RecordHash == "" {
			r.ComputeHash()
		}
		first, dup := seen[r.RecordHash]
		if !dup {
			seen[r.RecordHash] = r.SourceFile
			continue
		}
		note := "duplicate of " + first
		if r.Notes == "" {
			r.Notes = note
		} else {
			r.Notes += "; " + note
		}
	}
}
