package arweave

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// winstonPerAR is the exponent of 10 between AR and winston.
const winstonPerAR = 12

func parseWinston(body []byte) (string, error) {
	s := strings.TrimSpace(string(body))
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() || !d.IsInteger() {
		return "", fmt.Errorf("arweave: invalid winston amount %q", s)
	}
	return d.String(), nil
}

// WinstonToAR converts an integer winston amount to AR with 12 decimals.
func WinstonToAR(winston string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(winston))
	if err != nil {
		return "", fmt.Errorf("invalid winston amount %q: %w", winston, err)
	}
	return d.Shift(-winstonPerAR).StringFixed(winstonPerAR), nil
}

// ARToWinston converts an AR amount to integer winston, truncating any
// fraction below one winston.
func ARToWinston(ar string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(ar))
	if err != nil {
		return "", fmt.Errorf("invalid AR amount %q: %w", ar, err)
	}
	return d.Shift(winstonPerAR).Truncate(0).String(), nil
}
