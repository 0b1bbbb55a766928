package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	OnResponse      func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

type RegisterUserResponse struct {
	User    *User
	Success bool
}

// RegisterUserHandler creates an inactive account and dispatches the
// verification link. Failure ordering is fixed: password confirmation,
// username conflict, email conflict; the first failure short circuits.
type RegisterUserHandler struct {
	repo    RepositoryManager
	tokens  *ActionTokens
	gateway NotificationGateway
	baseURL string
	logger  Logger
}

func NewRegisterUserHandler(repo RepositoryManager, tokens *ActionTokens, gateway NotificationGateway) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:    repo,
		tokens:  tokens,
		gateway: gateway,
		logger:  defLogger{},
	}
}

// WithBaseURL sets the public base URL used to build verification links.
func (h *RegisterUserHandler) WithBaseURL(baseURL string) *RegisterUserHandler {
	h.baseURL = strings.TrimRight(baseURL, "/")
	return h
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if event.Password != event.ConfirmPassword {
		return ErrPasswordMismatch
	}

	user := &User{}
	resp := &RegisterUserResponse{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// Both existence checks and the insert share this transaction;
		// unique constraints back them up at the schema level.
		if taken, err := h.repo.Users().ExistsUsernameTx(ctx, tx, event.Username); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username availability")
		} else if taken {
			return ErrUsernameTaken
		}

		if taken, err := h.repo.Users().ExistsEmailTx(ctx, tx, event.Email); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email availability")
		} else if taken {
			return ErrEmailTaken
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.Username = strings.TrimSpace(event.Username)
		user.Email = strings.TrimSpace(event.Email)
		user.Phone = event.Phone
		user.PasswordHash = hash
		user.EmailValidated = false

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	// Registration succeeds even if the notification cannot be delivered;
	// the user can request the link again via password reset support flows.
	h.dispatchVerification(user)

	resp.User = user
	resp.Success = true

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *RegisterUserHandler) dispatchVerification(user *User) {
	token, err := h.tokens.Issue(PurposeVerifyEmail, user)
	if err != nil {
		h.logger.Error("failed to issue verification token", "error", err, "user_id", user.ID.String())
		return
	}

	link := fmt.Sprintf("%s/verify-email?uid=%s&token=%s", h.baseURL, user.ID.String(), token)
	email := user.Email

	go func() {
		if err := h.gateway.Send(email, "Verify your account", "Click to verify: "+link); err != nil {
			h.logger.Error("failed to send verification email", "error", err, "to", email)
		}
	}()
}
