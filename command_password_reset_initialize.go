package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	User    *User
	Success bool
}

// InitializePasswordResetHandler issues a reset token and mails the reset
// link. An unknown email surfaces ErrIdentityNotFound to the caller: the web
// controller hides it behind a neutral message, the JSON API maps it to 404.
type InitializePasswordResetHandler struct {
	repo    RepositoryManager
	tokens  *ActionTokens
	gateway NotificationGateway
	baseURL string
	logger  Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, tokens *ActionTokens, gateway NotificationGateway) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:    repo,
		tokens:  tokens,
		gateway: gateway,
		logger:  defLogger{},
	}
}

// WithBaseURL sets the public base URL used to build reset links.
func (h *InitializePasswordResetHandler) WithBaseURL(baseURL string) *InitializePasswordResetHandler {
	h.baseURL = strings.TrimRight(baseURL, "/")
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	token, err := h.tokens.Issue(PurposeResetPassword, user)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue password reset token")
	}

	link := fmt.Sprintf("%s/reset-password?uid=%s&token=%s", h.baseURL, user.ID.String(), token)
	email := user.Email

	go func() {
		if err := h.gateway.Send(email, "Reset Your Password", "Click the link to reset your password: "+link); err != nil {
			h.logger.Error("failed to send password reset email", "error", err, "to", email)
		}
	}()

	resp.User = user
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
