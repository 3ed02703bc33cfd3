package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sefazor/storycredits/internal/constants"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/repository"
)

// CustomerResolver maps a payment customer reference to an internal user id.
type CustomerResolver interface {
	ResolveUser(ctx context.Context, customerRef string) (string, error)
	Link(ctx context.Context, customerRef, userID string) (*models.CustomerLink, error)
}

type customerResolver struct {
	links    repository.CustomerLinkRepository
	accounts repository.AccountRepository
}

func NewCustomerResolver(links repository.CustomerLinkRepository, accounts repository.AccountRepository) CustomerResolver {
	return &customerResolver{links: links, accounts: accounts}
}

// ResolveUser prefers an explicit link and otherwise accepts the reference
// when it is already the user id of an open account, which is what our own
// checkout sessions send as client_reference_id.
func (r *customerResolver) ResolveUser(ctx context.Context, customerRef string) (string, error) {
	if customerRef == "" {
		return "", NewServiceError(constants.ErrCodeUnknownCustomer, errors.New("empty customer reference"))
	}

	link, err := r.links.GetByCustomerRef(ctx, customerRef)
	if err == nil {
		return link.UserID, nil
	}
	if !errors.Is(err, repository.ErrCustomerLinkNotFound) {
		return "", err
	}

	account, err := r.accounts.GetByUserID(ctx, customerRef)
	if err == nil {
		return account.UserID, nil
	}
	if errors.Is(err, repository.ErrAccountNotFound) {
		return "", NewServiceError(constants.ErrCodeUnknownCustomer,
			fmt.Errorf("no user linked to customer %q", customerRef))
	}
	return "", err
}

func (r *customerResolver) Link(ctx context.Context, customerRef, userID string) (*models.CustomerLink, error) {
	if customerRef == "" || userID == "" {
		return nil, NewServiceError(constants.ErrCodeValidationFailed, errors.New("customer_ref and user_id are required"))
	}
	link := &models.CustomerLink{CustomerRef: customerRef, UserID: userID}
	if err := r.links.Upsert(ctx, link); err != nil {
		return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
	}
	return link, nil
}
