package models

// Policy is a record of the upstream policy collection.
// ClientID references User.ID; one user may own zero or more policies.
type Policy struct {
	ID                 string  `json:"id"`
	AmountInsured      float64 `json:"amountInsured"`
	Email              string  `json:"email"`
	InceptionDate      string  `json:"inceptionDate"`
	InstallmentPayment bool    `json:"installmentPayment"`
	ClientID           string  `json:"clientId"`
}

// PoliciesOwnedBy returns the policies whose ClientID equals userID.
// The result is never nil so it always encodes as a JSON array.
func PoliciesOwnedBy(policies []Policy, userID string) []Policy {
	owned := make([]Policy, 0)
	for _, p := range policies {
		if p.ClientID == userID {
			owned = append(owned, p)
		}
	}
	return owned
}
