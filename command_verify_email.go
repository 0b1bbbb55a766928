package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type VerifyEmailMessage struct {
	UserID     string `json:"uid"`
	Token      string `json:"token"`
	OnResponse func(resp *VerifyEmailResponse)
}

func (e VerifyEmailMessage) Type() string { return "user.verify_email" }

type VerifyEmailResponse struct {
	Verified bool
}

// VerifyEmailHandler consumes a verification link. An unknown user is an
// error; every token failure is reported as Verified=false with no further
// detail. Flipping the verified flag changes the token fingerprint, so a
// link validates exactly once.
type VerifyEmailHandler struct {
	repo   RepositoryManager
	tokens *ActionTokens
	logger Logger
}

func NewVerifyEmailHandler(repo RepositoryManager, tokens *ActionTokens) *VerifyEmailHandler {
	return &VerifyEmailHandler{
		repo:   repo,
		tokens: tokens,
		logger: defLogger{},
	}
}

func (h *VerifyEmailHandler) WithLogger(logger Logger) *VerifyEmailHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyEmailHandler) Execute(ctx context.Context, event VerifyEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyEmailHandler) execute(ctx context.Context, event VerifyEmailMessage) error {
	resp := &VerifyEmailResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.repo.Users().GetByID(ctx, event.UserID)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrIdentityNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for verification")
		}

		if !h.tokens.Validate(PurposeVerifyEmail, user, event.Token) {
			resp.Verified = false
			return nil
		}

		if err := h.repo.Users().MarkEmailVerifiedTx(ctx, tx, user.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark email as verified")
		}

		resp.Verified = true
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute email verification")
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
