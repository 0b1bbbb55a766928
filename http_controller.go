package accounts

import (
	stderrors "errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
	"github.com/nyaruka/phonenumbers"
)

type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)

func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) *AccountController {
	controller := NewAccountController(opts...)

	app.Get(controller.Routes.Home, controller.Home).SetName("home.get")

	app.Get(controller.Routes.Login, controller.LoginShow).SetName("sign-in.get")
	app.Post(controller.Routes.Login, controller.LoginPost).SetName("sign-in.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")

	app.Get(controller.Routes.Register, controller.RegistrationShow).
		SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Get(controller.Routes.VerifyEmail, controller.VerifyEmailShow).
		SetName("verify-email.get")

	app.Get(controller.Routes.ForgotPassword, controller.ForgotPasswordShow).
		SetName("pwd-forgot.get")
	app.Post(controller.Routes.ForgotPassword, controller.ForgotPasswordPost).
		SetName("pwd-forgot.post")

	app.Get(controller.Routes.ResetPassword, controller.ResetPasswordShow).
		SetName("pwd-reset.get")
	app.Post(controller.Routes.ResetPassword, controller.ResetPasswordPost).
		SetName("pwd-reset.post")

	app.Get(controller.Routes.Profile, controller.ProfileShow,
		controller.Auther.ProtectedRoute(
			controller.Config,
			controller.Auther.MakeClientRouteAuthErrorHandler(false),
		),
	).SetName("profile.get")

	return controller
}

type AccountControllerRoutes struct {
	Home           string
	Login          string
	Logout         string
	Register       string
	Profile        string
	VerifyEmail    string
	ForgotPassword string
	ResetPassword  string
}

type AccountControllerViews struct {
	Home           string
	Login          string
	Register       string
	Profile        string
	Verify         string
	ForgotPassword string
	ResetPassword  string
}

type AccountController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Tokens       *ActionTokens
	Gateway      NotificationGateway
	BaseURL      string
	Config       Config
	Routes       *AccountControllerRoutes
	Views        *AccountControllerViews
	Auther       HTTPAuthenticator
	ErrorHandler router.ErrorHandler
}

type AccountControllerOption func(*AccountController) *AccountController

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger:       defLogger{},
		ErrorHandler: defaultControllerErrHandler,
		Routes: &AccountControllerRoutes{
			Home:           "/",
			Login:          "/login",
			Logout:         "/logout",
			Register:       "/register",
			Profile:        "/profile",
			VerifyEmail:    "/verify-email",
			ForgotPassword: "/forgot-password",
			ResetPassword:  "/reset-password",
		},
		Views: &AccountControllerViews{
			Home:           "home",
			Login:          "login",
			Register:       "register",
			Profile:        "profile",
			Verify:         "verify",
			ForgotPassword: "forgot_password",
			ResetPassword:  "reset_password",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in account controller...")
	}

	if c.Tokens == nil {
		panic("Missing ActionTokens in account controller...")
	}

	if c.Config == nil {
		panic("Missing Config in account controller...")
	}

	return c
}

func (a *AccountController) WithLogger(logger Logger) *AccountController {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

func (a *AccountController) Home(ctx router.Context) error {
	return ctx.Render(a.Views.Home, router.ViewContext{})
}

func (a *AccountController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
	RememberMe bool   `form:"remember_me" json:"remember_me"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// GetExtendedSession will return the remember me flag
func (r LoginRequest) GetExtendedSession() bool {
	return r.RememberMe
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AccountController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	errors := map[string]string{}

	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.Render(a.Views.Login, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		a.Logger.Debug("login payload: %s", print.MaybePrettyJSON(payload))
	}

	if err := a.Auther.Login(ctx, payload); err != nil {
		message := "Invalid credentials."
		if hasTextCode(err, TextCodeNotVerified) {
			message = "Please verify your email first."
		}
		errors["authentication"] = message

		return flash.WithError(ctx, router.ViewContext{
			"error_message": message,
		}).Render(a.Views.Login, router.ViewContext{
			"errors": errors,
			"record": payload,
		})
	}

	redirect := a.Auther.GetRedirect(ctx, a.Routes.Profile)

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

func (a *AccountController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.Redirect(a.Routes.Login, router.StatusSeeOther)
}

func (a *AccountController) RegistrationShow(ctx router.Context) error {
	return ctx.Render(a.Views.Register, router.ViewContext{
		"errors": map[string]string{},
		"record": RegisterUserMessage{},
	})
}

// RegistrationCreatePayload is the form payload
type RegistrationCreatePayload struct {
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Phone           string `form:"phone_number" json:"phone_number"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 150)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Phone, validation.By(ValidateOptionalPhone)),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AccountController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		errors := map[string]string{}
		errors["form"] = "Failed to parse form"
		a.Logger.Error("register user parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.Register, router.ViewContext{
			"errors": errors,
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		errors := FormatValidationErrorToMap(err)
		a.Logger.Error("register user validate payload: ", "error", err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.Register, router.ViewContext{
			"record":     payload,
			"validation": errors,
		})
	}

	req := RegisterUserMessage{
		Username:        payload.Username,
		Email:           payload.Email,
		Phone:           payload.Phone,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	}

	registerUser := NewRegisterUserHandler(a.Repo, a.Tokens, a.Gateway).
		WithBaseURL(a.BaseURL).
		WithLogger(a.Logger)

	if err := registerUser.Execute(ctx.Context(), req); err != nil {
		a.Logger.Error("register user error: ", "error", err)

		message := registrationErrorMessage(err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message": message,
		}).Render(a.Views.Register, router.ViewContext{
			"record": payload,
			"errors": map[string]string{"registration": message},
		})
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Registration successful! Check your email for the verification link.",
	}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

func registrationErrorMessage(err error) string {
	switch {
	case hasTextCode(err, TextCodePasswordMismatch):
		return "Passwords do not match."
	case hasTextCode(err, TextCodeUsernameTaken):
		return "Username already exists."
	case hasTextCode(err, TextCodeEmailTaken):
		return "Email already in use."
	default:
		return "Unable to complete registration."
	}
}

func (a *AccountController) VerifyEmailShow(ctx router.Context) error {
	uid := ctx.Query("uid", "")
	token := ctx.Query("token", "")

	var resp *VerifyEmailResponse
	req := VerifyEmailMessage{
		UserID: uid,
		Token:  token,
		OnResponse: func(r *VerifyEmailResponse) {
			resp = r
		},
	}

	verifyEmail := NewVerifyEmailHandler(a.Repo, a.Tokens).WithLogger(a.Logger)

	if err := verifyEmail.Execute(ctx.Context(), req); err != nil {
		if goerrors.IsNotFound(err) {
			return ctx.Status(fiber.StatusNotFound).Render("errors/404", router.ViewContext{
				"message": "No account matches that verification link.",
			})
		}
		return a.ErrorHandler(ctx, err)
	}

	status := "failed"
	if resp != nil && resp.Verified {
		status = "success"
	}

	return ctx.Render(a.Views.Verify, router.ViewContext{
		"status": status,
	})
}

func (a *AccountController) ProfileShow(ctx router.Context) error {
	session, ok := GetRouterSession(ctx, a.Config.GetContextKey())
	if !ok {
		return a.Auther.MakeClientRouteAuthErrorHandler(false)(ctx, ErrUnableToFindSession)
	}

	user, err := a.Repo.Users().GetByID(ctx.Context(), session.GetUserID())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Render(a.Views.Profile, router.ViewContext{
		"user": user,
	})
}

// ForgotPasswordPayload holds values for the reset request
type ForgotPasswordPayload struct {
	Email string `form:"email" json:"email"`
}

// Validate will validate the payload
func (r ForgotPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
	)
}

func (a *AccountController) ForgotPasswordShow(ctx router.Context) error {
	return ctx.Render(a.Views.ForgotPassword, router.ViewContext{
		"errors": nil,
		"record": nil,
	})
}

func (a *AccountController) ForgotPasswordPost(ctx router.Context) error {
	payload := new(ForgotPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.ForgotPassword, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"record": payload,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error validating payload",
		}).Render(a.Views.ForgotPassword, router.ViewContext{
			"record":     payload,
			"validation": FormatValidationErrorToMap(err),
		})
	}

	req := InitializePasswordResetMessage{
		Email: payload.Email,
	}

	initPwdReset := NewInitializePasswordResetHandler(a.Repo, a.Tokens, a.Gateway).
		WithBaseURL(a.BaseURL).
		WithLogger(a.Logger)

	if err := initPwdReset.Execute(ctx.Context(), req); err != nil {
		// An unknown email renders the same confirmation as a known one
		// so the form cannot be used to enumerate accounts.
		if !goerrors.IsNotFound(err) {
			a.Logger.Error("password reset init error: ", "error", err)
			return a.ErrorHandler(ctx, err)
		}
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "If that email is registered, a reset link has been sent.",
	}).Render(a.Views.ForgotPassword, router.ViewContext{
		"record": payload,
		"sent":   true,
	})
}

// ResetPasswordPayload holds values for the password change
type ResetPasswordPayload struct {
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r ResetPasswordPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Password,
			validation.Required,
			validation.Length(10, 100),
		),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AccountController) ResetPasswordShow(ctx router.Context) error {
	return ctx.Render(a.Views.ResetPassword, router.ViewContext{
		"errors": nil,
		"uid":    ctx.Query("uid", ""),
		"token":  ctx.Query("token", ""),
	})
}

func (a *AccountController) ResetPasswordPost(ctx router.Context) error {
	uid := ctx.Query("uid", "")
	token := ctx.Query("token", "")

	payload := new(ResetPasswordPayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message":  err.Error(),
			"system_message": "Error parsing body",
		}).Status(fiber.StatusBadRequest).Render(a.Views.ResetPassword, router.ViewContext{
			"errors": map[string]string{"form": "Failed to parse form"},
			"uid":    uid,
			"token":  token,
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("password reset validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"error_message": "Passwords do not match.",
		}).Render(a.Views.ResetPassword, router.ViewContext{
			"validation": FormatValidationErrorToMap(err),
			"uid":        uid,
			"token":      token,
		})
	}

	req := FinalizePasswordResetMessage{
		UserID:          uid,
		Token:           token,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
	}

	finalizePwdReset := NewFinalizePasswordResetHandler(a.Repo, a.Tokens).WithLogger(a.Logger)

	if err := finalizePwdReset.Execute(ctx.Context(), req); err != nil {
		if hasTextCode(err, TextCodePasswordMismatch) {
			return flash.WithError(ctx, router.ViewContext{
				"error_message": "Passwords do not match.",
			}).Redirect(a.Routes.ResetPassword+"?uid="+uid+"&token="+token, fiber.StatusSeeOther)
		}

		a.Logger.Error("password reset finalize error: ", "error", err)

		return flash.WithError(ctx, router.ViewContext{
			"error_message": "Invalid or expired reset link.",
		}).Redirect(a.Routes.ForgotPassword, fiber.StatusSeeOther)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Password reset successful! Please log in.",
	}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return stderrors.New("values must match")
		}
		return nil
	}
}

// ValidateOptionalPhone accepts an empty value and otherwise requires a
// parseable, valid number.
func ValidateOptionalPhone(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	num, err := phonenumbers.Parse(s, "US")
	if err != nil {
		return stderrors.New("must be a valid phone number")
	}

	if !phonenumbers.IsValidNumber(num) {
		return stderrors.New("must be a valid phone number")
	}

	return nil
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field to message map for templates.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	var verrs validation.Errors
	if stderrors.As(err, &verrs) {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	out["validation"] = err.Error()
	return out
}

func hasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

func defaultControllerErrHandler(c router.Context, err error) error {
	return c.Render("errors/500", router.ViewContext{
		"message": err.Error(),
	})
}
