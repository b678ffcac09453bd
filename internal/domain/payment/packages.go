package payment

// Package is a purchasable credit bundle. Amount is in paise.
type Package struct {
	Type           string `json:"type"`
	Credits        int    `json:"credits"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	ValidityMonths int    `json:"validity_months"`
}

// The catalog is fixed; prices change with deploys, not at runtime.
var packageCatalog = []Package{
	{Type: "starter", Credits: 3, Amount: 19900, Currency: "INR", ValidityMonths: 3},
	{Type: "basic", Credits: 10, Amount: 49900, Currency: "INR", ValidityMonths: 3},
	{Type: "pro", Credits: 25, Amount: 99900, Currency: "INR", ValidityMonths: 3},
	{Type: "premium", Credits: 50, Amount: 169900, Currency: "INR", ValidityMonths: 3},
}

// Packages returns the catalog in display order
func Packages() []Package {
	out := make([]Package, len(packageCatalog))
	copy(out, packageCatalog)
	return out
}

// PackageByType looks up a catalog entry
func PackageByType(packageType string) (Package, bool) {
	for _, p := range packageCatalog {
		if p.Type == packageType {
			return p, true
		}
	}
	return Package{}, false
}
