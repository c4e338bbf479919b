// Package validation implements the purchase validator: phone number
// format and network checks plus amount checks against type-specific
// minimums, the wallet balance, and the wallet balance cap.
//
// Validation is pure and stateless given its inputs. It performs no I/O
// and has no side effects, so callers may invoke it on every keystroke
// (debounced one layer above) without cost concerns. Touch-gating of error
// display is a UI concern; the validator always returns a definitive
// result.
package validation

import (
	"fmt"
	"strings"

	"airvault/internal/network"
	"airvault/internal/types"
)

// phonePrefixGroups are the valid leading digit groups for an 11-digit
// Nigerian mobile number.
var phonePrefixGroups = []string{"070", "080", "081", "090", "091"}

// Result is the outcome of validating a purchase request. When Valid is
// false, Err carries the machine-checkable kind and human-readable message.
// Network is advisory: an unknown network does not invalidate the request.
type Result struct {
	Valid         bool
	Err           *types.AppError
	Network       types.Network
	CleanedNumber string
}

func invalid(err *types.AppError) Result {
	return Result{Valid: false, Err: err}
}

// CleanPhoneNumber strips all non-digit characters from the input.
func CleanPhoneNumber(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidatePhone cleans the input and checks it is a plausible 11-digit
// Nigerian mobile number. It returns the cleaned number and the advisory
// carrier resolution; the carrier may be NetworkUnknown for a valid number.
func ValidatePhone(input string) (string, types.Network, *types.AppError) {
	cleaned := CleanPhoneNumber(input)
	if len(cleaned) != 11 {
		return cleaned, types.NetworkUnknown, types.NewAppError(types.ErrCodeInvalidPhoneFormat,
			"phone number must be exactly 11 digits", nil)
	}

	validPrefix := false
	for _, group := range phonePrefixGroups {
		if strings.HasPrefix(cleaned, group) {
			validPrefix = true
			break
		}
	}
	if !validPrefix {
		return cleaned, types.NetworkUnknown, types.NewAppError(types.ErrCodeInvalidPhoneFormat,
			"phone number must start with 070, 080, 081, 090 or 091", nil)
	}

	return cleaned, network.Resolve(cleaned), nil
}

// Validate checks a purchase or wallet funding request. For purchases the
// phone number is validated and the amount is checked against the purchase
// minimum and the wallet balance. For wallet funding no recipient number is
// involved, so phone checks are skipped; the amount is checked against the
// funding minimum and the wallet balance cap.
func Validate(phoneInput string, amount int64, kind types.PurchaseKind, walletBalance int64) Result {
	res := Result{}

	if kind == types.KindPurchase {
		cleaned, net, err := ValidatePhone(phoneInput)
		res.CleanedNumber = cleaned
		res.Network = net
		if err != nil {
			res.Err = err
			return res
		}
	}

	minimum := types.MinPurchaseAmount
	if kind == types.KindWalletFunding {
		minimum = types.MinWalletFundingAmount
	}

	if amount <= 0 {
		res.Err = types.NewAppError(types.ErrCodeBelowMinimum,
			"amount must be greater than zero", nil)
		return res
	}
	if amount < minimum {
		res.Err = types.NewAppErrorWithDetails(types.ErrCodeBelowMinimum,
			fmt.Sprintf("minimum amount is %s", FormatNaira(minimum)), nil,
			map[string]any{"minimum": minimum})
		return res
	}

	switch kind {
	case types.KindPurchase:
		if amount > walletBalance {
			res.Err = types.NewAppErrorWithDetails(types.ErrCodeInsufficientFunds,
				fmt.Sprintf("amount exceeds wallet balance of %s", FormatNaira(walletBalance)), nil,
				map[string]any{"wallet_balance": walletBalance})
			return res
		}
	case types.KindWalletFunding:
		if walletBalance+amount > types.MaxWalletBalance {
			maxAdditional := types.MaxWalletBalance - walletBalance
			if maxAdditional < 0 {
				maxAdditional = 0
			}
			res.Err = types.NewAppErrorWithDetails(types.ErrCodeExceedsWalletCap,
				fmt.Sprintf("this top-up would exceed the %s wallet limit; you can add at most %s",
					FormatNaira(types.MaxWalletBalance), FormatNaira(maxAdditional)), nil,
				map[string]any{"max_additional": maxAdditional})
			return res
		}
	}

	res.Valid = true
	return res
}

// FormatNaira renders a naira amount with thousands separators, e.g.
// "₦8,000,000".
func FormatNaira(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("₦")
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
		if len(digits) > lead {
			b.WriteByte(',')
		}
	}
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteByte(',')
		}
	}
	return b.String()
}
