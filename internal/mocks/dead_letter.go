package mocks

import (
	"context"

	"github.com/sefazor/storycredits/internal/models"
	"github.com/stretchr/testify/mock"
)

type PayloadArchive struct {
	mock.Mock
}

func (a *PayloadArchive) Put(ctx context.Context, key string, body []byte, contentType string) error {
	args := a.Called(ctx, key, body, contentType)
	return args.Error(0)
}

type DeadLetterNotifier struct {
	mock.Mock
}

func (n *DeadLetterNotifier) NotifyDeadLetter(ctx context.Context, letter *models.DeadLetter) error {
	args := n.Called(ctx, letter)
	return args.Error(0)
}
