package flows

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Issue  IssueDeps
	Verify VerifyDeps
	Sweep  SweepDeps
	Lookup LookupDeps
}

const defaultTenant = "0"

// accountInTenant reports whether an account reporting accountTenant may be
// served for a request scoped to requestTenant. An account without a tenant
// belongs to every tenant.
func accountInTenant(accountTenant, requestTenant string) bool {
	if accountTenant == "" {
		return true
	}
	if requestTenant == "" {
		requestTenant = defaultTenant
	}
	return accountTenant == requestTenant
}
