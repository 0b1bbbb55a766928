package accounts

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
)

// APIController exposes the JSON surface: the authenticated profile and
// the password reset request. Web flows live in AccountController.
type APIController struct {
	Logger  Logger
	Repo    RepositoryManager
	Tokens  *ActionTokens
	Gateway NotificationGateway
	BaseURL string
	Config  Config
	Auther  HTTPAuthenticator
}

type APIControllerOption func(*APIController) *APIController

func NewAPIController(opts ...APIControllerOption) *APIController {
	c := &APIController{
		Logger: defLogger{},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in api controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in api controller...")
	}

	if c.Tokens == nil {
		panic("Missing ActionTokens in api controller...")
	}

	if c.Config == nil {
		panic("Missing Config in api controller...")
	}

	return c
}

func RegisterAPIRoutes[T any](app router.Router[T], opts ...APIControllerOption) *APIController {
	controller := NewAPIController(opts...)

	app.Get("/api/profile", controller.ProfileShow,
		controller.Auther.ProtectedRoute(controller.Config, controller.apiAuthErrorHandler),
	).SetName("api.profile.get")

	app.Post("/api/password-reset", controller.PasswordResetRequest).
		SetName("api.pwd-reset.post")

	return controller
}

func (a *APIController) apiAuthErrorHandler(ctx router.Context, err error) error {
	a.Logger.Info("api auth rejected", "error", err)
	return ctx.JSON(fiber.StatusUnauthorized, map[string]any{
		"error": "Missing or invalid token.",
	})
}

func (a *APIController) ProfileShow(ctx router.Context) error {
	session, ok := GetRouterSession(ctx, a.Config.GetContextKey())
	if !ok {
		return a.apiAuthErrorHandler(ctx, ErrUnableToFindSession)
	}

	user, err := a.Repo.Users().GetByID(ctx.Context(), session.GetUserID())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return a.apiAuthErrorHandler(ctx, ErrIdentityNotFound)
		}
		a.Logger.Error("api profile lookup: ", "error", err)
		return ctx.JSON(fiber.StatusInternalServerError, map[string]any{
			"error": "Unexpected server error.",
		})
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"username":    user.Username,
		"email":       user.Email,
		"is_verified": user.EmailValidated,
	})
}

// PasswordResetRequestPayload is the JSON body for a reset request
type PasswordResetRequestPayload struct {
	Email string `json:"email" form:"email"`
}

// Validate will validate the payload
func (r PasswordResetRequestPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *APIController) PasswordResetRequest(ctx router.Context) error {
	payload := new(PasswordResetRequestPayload)

	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "Invalid request body.",
		})
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(fiber.StatusBadRequest, map[string]any{
			"error": "A valid email is required.",
		})
	}

	req := InitializePasswordResetMessage{
		Email: payload.Email,
	}

	initPwdReset := NewInitializePasswordResetHandler(a.Repo, a.Tokens, a.Gateway).
		WithBaseURL(a.BaseURL).
		WithLogger(a.Logger)

	if err := initPwdReset.Execute(ctx.Context(), req); err != nil {
		if goerrors.IsNotFound(err) {
			return ctx.JSON(fiber.StatusNotFound, map[string]any{
				"error": "No user with this email.",
			})
		}
		a.Logger.Error("api password reset init: ", "error", err)
		return ctx.JSON(fiber.StatusInternalServerError, map[string]any{
			"error": "Unexpected server error.",
		})
	}

	return ctx.JSON(fiber.StatusOK, map[string]any{
		"message": "Reset link sent to email.",
	})
}
