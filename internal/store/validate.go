package store

import "fmt"

// MaxOwnerRefLength bounds the owner reference used as a storage key.
const MaxOwnerRefLength = 255

// ValidateOwnerRef checks that an owner reference fits a storage key. The
// reference is otherwise opaque.
func ValidateOwnerRef(ref string) error {
	if len(ref) > MaxOwnerRefLength {
		return fmt.Errorf("owner reference too long: %d chars (max %d)", len(ref), MaxOwnerRefLength)
	}
	return nil
}
