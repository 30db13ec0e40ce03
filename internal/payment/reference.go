package payment

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

const metadataMerchantReference = "merchant_reference"

// NewMerchantReference returns "AVR-<unix ms base36>-<8 hex>". It is unique
// in practice but not guaranteed; the database enforces uniqueness.
func NewMerchantReference(now time.Time) string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return "AVR-" + strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)) + "-" + strings.ToUpper(hex.EncodeToString(b[:]))
}
