package user

import (
	"context"

	"github.com/trezcool/darasa/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service that sends its mails synchronously, for tests.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
			tokens:  newTokenGenerator(conf),
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}

// MakeTestToken returns a valid password reset token for usr.
func MakeTestToken(usr User, conf *core.Config) (string, error) {
	return newTokenGenerator(conf).makeToken(usr)
}
