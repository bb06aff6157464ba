package core

import (
	"fmt"

	"github.com/google/uuid"
)

// VirtualIBAN derives a stable IBAN-like identifier for a virtual
// account. It is an internal routing handle, not a registered IBAN; the
// real money sits at the currency's master account.
func VirtualIBAN(id uuid.UUID, currency string) string {
	var digits uint64
	for _, c := range id[:8] {
		digits = digits*100 + uint64(c)%100
	}
	check := uint64(id[8])%89 + 10
	return fmt.Sprintf("VA%02d%s%016d", check, currency, digits%1e16)
}
