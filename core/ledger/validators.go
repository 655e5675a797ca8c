package ledger

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/bursar/core"
)

var (
	ledgerStatusTag  = "ledgerstatus"
	ledgerStatusText = "{0} must be one of PAID, PARTIAL, PENDING or OVERDUE"
)

// register custom validators
func init() {
	_ = core.Validate.RegisterValidation(ledgerStatusTag, ledgerStatusValidation)
	core.RegisterCustomTranslation(ledgerStatusTag, ledgerStatusText)
}

// Custom Validators

// ledgerStatusValidation checks that the field holds one of the SummaryStatuses
func ledgerStatusValidation(fl validator.FieldLevel) bool {
	val := Status(fl.Field().String())
	for _, st := range SummaryStatuses {
		if val == st {
			return true
		}
	}
	return false
}
