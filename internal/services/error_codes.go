package services

import (
	"strconv"
	"strings"
)

// Reseller response codes
const (
	CodeSuccess        = "1"
	CodeTechnicalError = "-10017"
)

// Generic failure texts
const (
	MsgUnexpectedError     = "An unexpected error occurred. Please try again or contact support."
	MsgTechnicalDifficulty = "We are experiencing technical difficulties reaching the network. Please try again later."
)

var errorCodeMessages = map[string]string{
	CodeSuccess: "Success",
	"-10001":    "The request had invalid parameters.",
	"-10002":    "This number is not a valid Lyca subscription.",
	"-10003":    "The top-up value is less than the minimum of UGX 500.",
	"-10005":    "The service could not authenticate with the network. Please contact support.",
	"-10006":    "The transaction reference is invalid.",
	"-10010":    "This number has reached the maximum number of recharges for the hour. Please try again later.",
	"-10016":    "This subscription is inactive.",
	"-10017":    "A technical error occurred on the network. Please try again shortly.",
	"-10021":    "The reseller account was not found. Please contact support.",
	"-10022":    "The reseller wallet is not configured. Please contact support.",
	"-10023":    "The payment could not be deducted from the reseller wallet.",
	"-10024":    "The recharge service is temporarily unavailable.",
	"-10029":    "The selected plan group was not found.",
	"-10030":    "The reseller balance is insufficient. Please contact support.",
	"-10031":    "This plan is not available for purchase right now.",
	"-10032":    "The recharge service is temporarily unavailable.",
	"-10033":    "A recharge with this transaction ID already exists.",
	"-10035":    "This amount was already recharged on this number in the last 5 minutes. Please wait before trying again.",
	"-10036":    "This bundle was already bought for this number in the last 5 minutes. Please wait before trying again.",
	"-10037":    "The subscriber's registration documents have not been approved.",
}

// NormalizeCode canonicalises a provider code so "-10017", " -10017" and -10017.0 match.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if f, err := strconv.ParseFloat(code, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return code
}

// TranslateErrorCode maps a reseller response code to a human-readable reason.
// Unknown codes get a generic message; raw codes are never returned.
func TranslateErrorCode(code string) string {
	if msg, ok := errorCodeMessages[NormalizeCode(code)]; ok {
		return msg
	}
	return MsgUnexpectedError
}

// IsRetryableCode reports whether a rejection is transient and worth retrying.
func IsRetryableCode(code string) bool {
	return NormalizeCode(code) == CodeTechnicalError
}
