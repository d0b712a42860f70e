package domain

import "strings"

// Principal is an already-authenticated caller. Authentication happens upstream.
type Principal struct {
	ID        string
	AccountID string
	Role      string
	Tier      Tier
}

func NewPrincipal(id, accountID, role, tier string) (Principal, error) {
	if strings.TrimSpace(id) == "" {
		return Principal{}, invalid("principal", "principal id is required")
	}
	t, err := ParseTier(tier)
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		ID:        strings.TrimSpace(id),
		AccountID: strings.TrimSpace(accountID),
		Role:      strings.TrimSpace(role),
		Tier:      t,
	}, nil
}
