package payment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumehub/resumehub-api/internal/domain/payment"
)

func TestPackageByType(t *testing.T) {
	tests := []struct {
		packageType string
		wantCredits int
		wantAmount  int64
		wantOK      bool
	}{
		{"starter", 3, 19900, true},
		{"basic", 10, 49900, true},
		{"pro", 25, 99900, true},
		{"premium", 50, 169900, true},
		{"mega", 0, 0, false},
		{"", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.packageType, func(t *testing.T) {
			pkg, ok := payment.PackageByType(tt.packageType)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantCredits, pkg.Credits)
			assert.Equal(t, tt.wantAmount, pkg.Amount)
			assert.Equal(t, "INR", pkg.Currency)
			assert.Equal(t, 3, pkg.ValidityMonths)
		})
	}
}

func TestPackagesCatalogIsCopied(t *testing.T) {
	first := payment.Packages()
	first[0].Credits = 999

	second := payment.Packages()
	assert.Equal(t, 3, second[0].Credits)
}
