package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aiimage/imgdash/internal/config"
	"github.com/aiimage/imgdash/internal/imageapi"
	"github.com/aiimage/imgdash/internal/views"
)

// readCredentials returns the --email flag and a password from --password
// or, with --password-stdin, the first line of stdin.
func readCredentials(cmd *cobra.Command) (string, string, error) {
	email, _ := cmd.Flags().GetString("email")
	password, _ := cmd.Flags().GetString("password")
	fromStdin, _ := cmd.Flags().GetBool("password-stdin")

	if password != "" && fromStdin {
		return "", "", fmt.Errorf("--password and --password-stdin are mutually exclusive")
	}
	if fromStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", fmt.Errorf("reading password from stdin: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return "", "", fmt.Errorf("one of --password or --password-stdin is required")
	}
	return email, password, nil
}

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "account password")
	cmd.Flags().Bool("password-stdin", false, "read the password from stdin")
	cmd.MarkFlagRequired("email")
}

// --- signup ---

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, password, err := readCredentials(cmd)
		if err != nil {
			return err
		}

		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		env.app.Nav.Navigate(views.RouteSignup)
		v := env.app.Signup()
		if !v.Submit(cmd.Context(), email, password) {
			return errors.New(v.Error())
		}

		printSuccess(cmd.ErrOrStderr(), "Account created for %s", email)
		printStep(cmd.ErrOrStderr(), "Run `imgdash login --email %s` to sign in", email)
		return nil
	},
}

// --- login ---

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and store the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, password, err := readCredentials(cmd)
		if err != nil {
			return err
		}

		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		v := env.app.Login()
		if !v.Submit(cmd.Context(), email, password) {
			return errors.New(v.Error())
		}
		printSuccess(cmd.ErrOrStderr(), "Logged in as %s", email)

		if skip, _ := cmd.Flags().GetBool("no-dashboard"); skip {
			return nil
		}
		if env.app.Nav.Current() != views.RouteDashboard {
			return nil
		}
		return showDashboard(cmd, env.app.OpenDashboard(cmd.Context()), false)
	},
}

// --- logout ---

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.session.Clear(); err != nil {
			return err
		}
		printSuccess(cmd.ErrOrStderr(), "Logged out of %s", env.session.Origin())
		return nil
	},
}

// --- dashboard ---

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"jobs"},
	Short:   "List your jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		return showDashboard(cmd, env.app.OpenDashboard(cmd.Context()), asJSON)
	},
}

// showDashboard renders d to stdout. A dashboard error is part of the
// rendered output, so it is returned as errReported.
func showDashboard(cmd *cobra.Command, d *views.DashboardView, asJSON bool) error {
	if asJSON {
		if msg := d.Error(); msg != "" {
			return errors.New(msg)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(d.Jobs())
	}

	if err := d.Render(cmd.OutOrStdout()); err != nil {
		return err
	}
	if d.Error() != "" {
		return errReported
	}
	return nil
}

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload an image for object detection",
	Long: `Upload an image for object detection.

PNG and JPEG images are expected; other files are sent anyway and the
backend decides whether to accept them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := imageapi.OpenUploadFile(args[0])
		if err != nil {
			return err
		}

		env, err := newEnvironment(cmd)
		if err != nil {
			return err
		}
		defer env.Close()

		d := env.app.OpenDashboard(cmd.Context())
		if !d.Select(file) {
			printWarning(cmd.ErrOrStderr(), "%s is not a PNG or JPEG image (%s)", file.Name, file.ContentType())
		}

		printStep(cmd.ErrOrStderr(), "Uploading %s...", file.Name)
		switch d.Upload(cmd.Context()) {
		case views.UploadDone:
			if res, ok := d.LastUpload(); ok && res.JobID != "" {
				printSuccess(cmd.ErrOrStderr(), "Uploaded %s as job %s", file.Name, res.JobID)
			} else {
				printSuccess(cmd.ErrOrStderr(), "Uploaded %s", file.Name)
			}
		case views.UploadFailed:
			// The alert has already been printed.
			return errReported
		default:
			return fmt.Errorf("upload of %s did not start", file.Name)
		}

		return showDashboard(cmd, d, false)
	},
}

func init() {
	addCredentialFlags(signupCmd)
	addCredentialFlags(loginCmd)
	loginCmd.Flags().Bool("no-dashboard", false, "do not show the dashboard after signing in")
	dashboardCmd.Flags().Bool("json", false, "print jobs as JSON")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value.\n\nValid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess(cmd.ErrOrStderr(), "Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Reset a configuration value to its default",
	Long:  "Reset a configuration value to its default.\n\nValid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}

		printSuccess(cmd.ErrOrStderr(), "Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
