package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"citizen-card-cli/app"
	"citizen-card-cli/model"
	"citizen-card-cli/router"
	"citizen-card-cli/service"
)

var (
	loginEmail string

	regEmail    string
	regPhone    string
	regHolder   string
	regCardType string

	profilePhone  string
	profileHolder string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with your citizen card account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if a.Auth.IsAuthenticated() {
				user, _ := a.Auth.User()
				fmt.Fprintf(cmd.OutOrStdout(), "Already signed in as %s\n", user.Email)
				return nil
			}
			creds, err := promptCredentials(loginEmail)
			if err != nil {
				return err
			}
			if err := a.Auth.Login(ctx, creds); err != nil {
				return err
			}
			user, _ := a.Auth.User()
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome back, %s\n", displayName(user))
			if !user.IsVerified {
				fmt.Fprintln(cmd.OutOrStdout(), "Your email is not verified yet, see \"citizen verify-email\".")
			}
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Auth.Logout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		})
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account bound to your citizen card",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, router.PathRegister); err != nil {
				return err
			}
			if a.Nav.Current().Path != router.PathRegister {
				return errors.New("already signed in, log out first")
			}
			email, err := promptText("Email", regEmail, service.ValidateEmail)
			if err != nil {
				return err
			}
			password, err := promptPassword("Password", service.ValidatePassword)
			if err != nil {
				return err
			}
			if _, err := promptPassword("Repeat password", func(s string) error {
				if s != password {
					return errors.New("passwords do not match")
				}
				return nil
			}); err != nil {
				return err
			}
			phone, err := promptText("Mobile (09xxxxxxxx)", regPhone, optional(service.ValidatePhone))
			if err != nil {
				return err
			}
			reg := model.Registration{
				Email:      email,
				Password:   password,
				Phone:      phone,
				HolderName: regHolder,
				CardType:   strings.ToUpper(regCardType),
			}
			if err := a.Auth.Register(ctx, reg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s. Check your inbox for the verification code.\n", email)
			return nil
		})
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or update your member profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/member/profile"); err != nil {
				return err
			}
			if cmd.Flags().Changed("phone") || cmd.Flags().Changed("name") {
				if err := a.Auth.UpdateProfile(ctx, model.ProfileUpdate{Phone: profilePhone, HolderName: profileHolder}); err != nil {
					return err
				}
			} else if err := a.Auth.FetchProfile(ctx); err != nil {
				return err
			}
			user, _ := a.Auth.User()
			t := newTable(cmd.OutOrStdout(), nil)
			t.AppendRows(details{
				{"Email", user.Email},
				{"Name", user.HolderName},
				{"Mobile", user.Phone},
				{"Card type", user.CardType},
				{"Verified", yesNo(user.IsVerified)},
				{"Member since", when(user.RegisterDate)},
				{"Last login", when(user.LastLoginTime)},
			}.rows())
			t.Render()
			return nil
		})
	},
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Change your password",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/member/profile"); err != nil {
				return err
			}
			current, err := promptPassword("Current password", nil)
			if err != nil {
				return err
			}
			next, err := promptPassword("New password", service.ValidatePassword)
			if err != nil {
				return err
			}
			if err := a.Auth.ChangePassword(ctx, current, next); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed.")
			return nil
		})
	},
}

var cardCmd = &cobra.Command{
	Use:   "card",
	Short: "Show your citizen card",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/member/card"); err != nil {
				return err
			}
			if err := a.Auth.FetchCitizenCard(ctx); err != nil {
				return err
			}
			card, _ := a.Auth.Card()
			t := newTable(cmd.OutOrStdout(), nil)
			t.AppendRows(details{
				{"Number", maskCard(card.CardNumber)},
				{"Holder", card.HolderName},
				{"Type", card.CardType},
				{"Status", card.Status},
				{"Issued", when(card.IssuedAt)},
			}.rows())
			t.Render()
			return nil
		})
	},
}

var verifyEmailCmd = &cobra.Command{
	Use:   "verify-email [code]",
	Short: "Verify your email with the code you received, or --resend it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resend, _ := cmd.Flags().GetBool("resend")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if err := enter(a, "/member"); err != nil {
				return err
			}
			if resend {
				if err := a.Auth.ResendVerificationEmail(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "A new verification code is on its way.")
				return nil
			}
			code := ""
			if len(args) == 1 {
				code = args[0]
			}
			code, err := promptText("Verification code", code, required)
			if err != nil {
				return err
			}
			if err := a.Auth.VerifyEmail(ctx, code); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Email verified.")
			return nil
		})
	},
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Request a password reset code, then set a new password with it",
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			if token == "" {
				email, err := promptText("Email", loginEmail, service.ValidateEmail)
				if err != nil {
					return err
				}
				if err := a.Auth.RequestPasswordReset(ctx, email); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "If the account exists a reset code was sent. Run again with --token <code>.")
				return nil
			}
			next, err := promptPassword("New password", service.ValidatePassword)
			if err != nil {
				return err
			}
			if err := a.Auth.ResetPassword(ctx, token, next); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated, you can log in now.")
			return nil
		})
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email")
	resetPasswordCmd.Flags().StringVarP(&loginEmail, "email", "e", "", "account email")
	resetPasswordCmd.Flags().String("token", "", "reset code received by email")

	registerCmd.Flags().StringVarP(&regEmail, "email", "e", "", "account email")
	registerCmd.Flags().StringVar(&regPhone, "phone", "", "mobile number")
	registerCmd.Flags().StringVar(&regHolder, "name", "", "card holder name")
	registerCmd.Flags().StringVar(&regCardType, "card-type", "", "card type: general, student or senior")

	profileCmd.Flags().StringVar(&profilePhone, "phone", "", "new mobile number")
	profileCmd.Flags().StringVar(&profileHolder, "name", "", "new card holder name")

	verifyEmailCmd.Flags().Bool("resend", false, "send a new verification code")

	rootCmd.AddCommand(loginCmd, logoutCmd, registerCmd, profileCmd, passwordCmd, cardCmd, verifyEmailCmd, resetPasswordCmd)
}

func promptCredentials(email string) (model.Credentials, error) {
	email, err := promptText("Email", email, service.ValidateEmail)
	if err != nil {
		return model.Credentials{}, err
	}
	password, err := promptPassword("Password", required)
	if err != nil {
		return model.Credentials{}, err
	}
	return model.Credentials{Email: email, Password: password}, nil
}

// promptText asks for a value unless one was given on the command line.
func promptText(label, given string, validate promptui.ValidateFunc) (string, error) {
	if given != "" {
		if validate != nil {
			if err := validate(given); err != nil {
				return "", err
			}
		}
		return given, nil
	}
	p := promptui.Prompt{Label: label, Validate: validate}
	return p.Run()
}

func promptPassword(label string, validate promptui.ValidateFunc) (string, error) {
	p := promptui.Prompt{Label: label, Mask: '*', Validate: validate}
	return p.Run()
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func optional(validate func(string) error) promptui.ValidateFunc {
	return func(s string) error {
		if s == "" {
			return nil
		}
		return validate(s)
	}
}

func displayName(u model.User) string {
	if u.HolderName != "" {
		return u.HolderName
	}
	return u.Email
}

func maskCard(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
