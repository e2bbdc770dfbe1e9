package service

import "sale_inviter/internal/domain"

// UsernameExtractor finds the buyer's GitHub username in a sale.
type UsernameExtractor interface {
	Extract(fields []domain.CustomField) (string, error)
}

// RetryPolicy decides whether a failed invite is final. A sale the policy
// gives up on is marked processed and never retried.
type RetryPolicy interface {
	GiveUp(sale domain.Sale, result domain.InviteResult) bool
}

// UnlimitedRetry leaves every failed sale unprocessed so it is retried on
// each cycle while it stays in the fetch window.
type UnlimitedRetry struct{}

func (UnlimitedRetry) GiveUp(domain.Sale, domain.InviteResult) bool { return false }

// GiveUpOnStatus treats the listed HTTP statuses as permanent failures.
type GiveUpOnStatus []int

func (p GiveUpOnStatus) GiveUp(_ domain.Sale, result domain.InviteResult) bool {
	for _, status := range p {
		if result.Status == status {
			return true
		}
	}
	return false
}
