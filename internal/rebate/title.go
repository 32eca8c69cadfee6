package rebate

import (
	"strconv"
	"strings"

	"github.com/Cheertaboi/customer-rebates/internal/models"
)

// Title builds the customer facing label of a discount line.
func Title(ruleTitle string, line models.DiscountLineItem) string {
	var b strings.Builder
	b.WriteString("Customer rebate: ")
	b.WriteString(ruleTitle)
	if line.IsSplitPosition {
		b.WriteString(" (amount for positions with ")
		b.WriteString(line.TaxRate.String())
		b.WriteString("% VAT)")
	}
	if len(line.PositionNums) > 0 {
		nums := make([]string, 0, len(line.PositionNums))
		for _, n := range line.PositionNums {
			nums = append(nums, strconv.Itoa(n))
		}
		b.WriteString(" - Rebate is valid for position(s): ")
		b.WriteString(strings.Join(nums, ", "))
	}
	return b.String()
}
