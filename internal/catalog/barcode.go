package catalog

import (
	"fmt"
	"math/rand/v2"
)

// Internal-use numeric barcodes: 11 digits plus a UPC-A style check digit.
// The leading 2 marks store-assigned codes, keeping them out of the ranges
// allocated to registered manufacturers.
const barcodePrefix = "2"

// GenerateBarcode produces a 12-digit numeric barcode value.
func GenerateBarcode() string {
	body := barcodePrefix
	for i := 0; i < 10; i++ {
		body += fmt.Sprintf("%d", rand.IntN(10))
	}
	return body + fmt.Sprintf("%d", checkDigit(body))
}

// ValidBarcode reports whether the value is 12 numeric digits with a correct
// check digit.
func ValidBarcode(code string) bool {
	if len(code) != 12 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return checkDigit(code[:11]) == int(code[11]-'0')
}

// checkDigit computes the UPC-A check digit for an 11-digit body: odd
// positions weighted 3, even positions weighted 1.
func checkDigit(body string) int {
	sum := 0
	for i, r := range body {
		d := int(r - '0')
		if i%2 == 0 {
			sum += d * 3
		} else {
			sum += d
		}
	}
	return (10 - sum%10) % 10
}
