package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/handlers"
	"github.com/lagren/uptimeguard/api"
	"github.com/lagren/uptimeguard/modal"
	"github.com/lagren/uptimeguard/persistence"
	"github.com/lagren/uptimeguard/plan"
	"github.com/lagren/uptimeguard/probe"
	"github.com/lagren/uptimeguard/registry"
	"github.com/lagren/uptimeguard/session"
	"github.com/lagren/uptimeguard/web"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type app struct {
	client   *api.Client
	sessions *session.Manager
	sites    *registry.Registry
}

// newApp wires the components and restores the session from the credential
// store, so every command starts from whatever state the last run left.
func newApp(ctx context.Context) (*app, error) {
	store, err := persistence.Open(envOr("UPTIMEGUARD_DB", "uptimeguard.db"))
	if err != nil {
		return nil, fmt.Errorf("could not open credential store: %w", err)
	}

	client := api.NewClient(envOr("UPTIMEGUARD_API_BASE", "http://localhost:5000/api"))
	sessions := session.NewManager(store, client)

	if err := sessions.Initialize(ctx); err != nil {
		return nil, err
	}

	return &app{
		client:   client,
		sessions: sessions,
		sites:    registry.New(client, sessions),
	}, nil
}

func (a *app) requireSession() (session.Session, error) {
	sess, ok := a.sessions.Current()
	if !ok {
		return session.Session{}, fmt.Errorf("not logged in, run 'uptimeguard login' first")
	}
	return sess, nil
}

var rootCmd = &cobra.Command{
	Use:           "uptimeguard",
	Short:         "Client for the UptimeGuard website monitoring service",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(pricingCmd)
	rootCmd.AddCommand(plansCmd)
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(sitesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(serveCmd)

	sitesCmd.AddCommand(sitesListCmd)
	sitesCmd.AddCommand(sitesAddCmd)
	sitesCmd.AddCommand(sitesRemoveCmd)
	sitesCmd.AddCommand(sitesCheckCmd)
	sitesCmd.AddCommand(sitesIntervalsCmd)

	sitesAddCmd.Flags().Int("interval", 1800, "check interval in seconds")
	sitesRemoveCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	upgradeCmd.Flags().Bool("yes", false, "skip the downgrade warning prompt")
}

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Log in and store the API key",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		var email string
		if len(args) > 0 {
			email = args[0]
		} else {
			email, err = promptLine("Email: ")
			if err != nil {
				return err
			}
		}

		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}

		if err := a.sessions.Login(cmd.Context(), email, password); err != nil {
			return err
		}

		sess, _ := a.sessions.Current()
		fmt.Printf("Logged in as %s (%s plan)\n", sess.User.Username, sess.Subscription.Plan)

		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register [username] [email]",
	Short: "Create an account",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		var username, email string
		if len(args) > 0 {
			username = args[0]
		} else {
			username, err = promptLine("Username: ")
			if err != nil {
				return err
			}
		}
		if len(args) > 1 {
			email = args[1]
		} else {
			email, err = promptLine("Email: ")
			if err != nil {
				return err
			}
		}

		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}

		if err := a.sessions.Register(cmd.Context(), username, email, password); err != nil {
			return err
		}

		fmt.Println("Account created. Run 'uptimeguard login' to sign in.")

		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		a.sessions.Logout(cmd.Context())

		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session and plan limits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		sess, err := a.requireSession()
		if err != nil {
			return err
		}

		sub := sess.Subscription
		style := plan.StyleFor(plan.ID(sub.Plan))

		fmt.Printf("%s (%s)\n", sess.User.Username, sess.User.Email)
		fmt.Printf("Plan: %s %s\n", style.Icon, sub.Plan)
		fmt.Printf("  Max websites:       %d\n", sub.MaxWebsites)
		fmt.Printf("  Min check interval: %ds\n", sub.MinCheckInterval)
		fmt.Printf("  History retention:  %d days\n", sub.HistoryDays)

		return nil
	},
}

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Show the plan catalog",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		plans, err := a.client.Pricing(cmd.Context())
		if err != nil {
			return err
		}

		for _, p := range plans {
			style := plan.StyleFor(plan.ID(strings.ToLower(p.Name)))
			fmt.Printf("%s %s - $%.2f/month\n", style.Icon, p.Name, p.Price)
			for _, feature := range p.Features {
				fmt.Printf("    %s\n", feature)
			}
		}

		return nil
	},
}

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Show available plans relative to the current one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		sess, err := a.requireSession()
		if err != nil {
			return err
		}

		for _, choice := range modal.PlanChoices(plan.ID(sess.Subscription.Plan)) {
			style := plan.StyleFor(choice.Plan)
			limits := plan.LimitsFor(choice.Plan)

			marker := " "
			switch {
			case choice.IsCurrent:
				marker = "*"
			case choice.IsDowngrade:
				marker = "↓"
			}

			fmt.Printf("%s %s %-10s %d websites, checks every %ds, %d-day history\n",
				marker, style.Icon, choice.Plan, limits.MaxWebsites, limits.MinCheckInterval, limits.HistoryDays)
		}

		return nil
	},
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <plan>",
	Short: "Change the subscription plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		sess, err := a.requireSession()
		if err != nil {
			return err
		}

		selected := plan.ID(args[0])
		current := plan.ID(sess.Subscription.Plan)

		switch plan.Compare(current, selected) {
		case plan.Equal:
			fmt.Printf("Already on the %s plan\n", selected)
			return nil
		case plan.Downgrade:
			// Warn but never block: the service decides whether the
			// downgrade is permitted.
			fmt.Printf("Warning: %s is a downgrade from %s. Existing websites over the new limit may stop being monitored.\n", selected, current)

			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				ok, err := promptConfirm("Continue? [y/N] ")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Println("Cancelled")
					return nil
				}
			}
		}

		if err := a.client.Upgrade(cmd.Context(), string(selected)); err != nil {
			return err
		}

		if err := a.sessions.RefreshProfile(cmd.Context()); err != nil {
			logrus.Warnf("Could not refresh profile after upgrade: %s", err)
		}

		fmt.Printf("Switched to the %s plan\n", selected)

		return nil
	},
}

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Manage monitored websites",
}

var sitesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored websites",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		if _, err := a.requireSession(); err != nil {
			return err
		}

		if err := a.sites.Refresh(cmd.Context()); err != nil {
			return err
		}

		sites := a.sites.Sites()
		if len(sites) == 0 {
			fmt.Println("No websites monitored yet. Add one with 'uptimeguard sites add'.")
			return nil
		}

		for _, site := range sites {
			checked := "never checked"
			if t, ok := site.LastCheckedTime(); ok {
				checked = "checked " + humanize.Time(t)
			}

			fmt.Printf("%4d  %-8s  %-30s %s (every %ds, %s)\n",
				site.ID, site.CurrentStatus, site.Name, site.URL, site.CheckInterval, checked)
		}

		return nil
	},
}

var sitesAddCmd = &cobra.Command{
	Use:   "add <name> <url>",
	Short: "Add a website to monitor",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		if _, err := a.requireSession(); err != nil {
			return err
		}

		interval, _ := cmd.Flags().GetInt("interval")

		// Populate the mirror first so the capacity annotation has data.
		if err := a.sites.Refresh(cmd.Context()); err != nil {
			logrus.Warnf("Could not fetch websites: %s", err)
		}

		if a.sites.AtCapacity() {
			fmt.Println("Note: you are at your plan's website limit, the service may reject this site.")
		}

		site, err := a.sites.Add(cmd.Context(), args[0], args[1], interval)
		if err != nil {
			return err
		}

		fmt.Printf("Added %s (id %d), checking every %ds\n", site.Name, site.ID, site.CheckInterval)

		return nil
	},
}

var sitesRemoveCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Stop monitoring a website",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		if _, err := a.requireSession(); err != nil {
			return err
		}

		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid website id %q", args[0])
		}

		if err := a.sites.Refresh(cmd.Context()); err != nil {
			return err
		}

		token, err := a.sites.RequestDelete(id)
		if err != nil {
			return err
		}

		yes, _ := cmd.Flags().GetBool("yes")
		if !yes {
			ok, err := promptConfirm(fmt.Sprintf("Delete website %d and its history? [y/N] ", id))
			if err != nil {
				return err
			}
			if !ok {
				a.sites.CancelDelete(token)
				fmt.Println("Cancelled")
				return nil
			}
		}

		if err := a.sites.ConfirmDelete(cmd.Context(), token); err != nil {
			return err
		}

		fmt.Printf("Deleted website %d\n", id)

		return nil
	},
}

var sitesCheckCmd = &cobra.Command{
	Use:   "check <id>",
	Short: "Request an immediate check of a website",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		if _, err := a.requireSession(); err != nil {
			return err
		}

		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid website id %q", args[0])
		}

		if err := a.sites.CheckNow(cmd.Context(), id); err != nil {
			return err
		}

		for _, site := range a.sites.Sites() {
			if site.ID == id {
				fmt.Printf("%s is %s\n", site.Name, site.CurrentStatus)
				return nil
			}
		}

		fmt.Println("Check requested")

		return nil
	},
}

var sitesIntervalsCmd = &cobra.Command{
	Use:   "intervals",
	Short: "Show check intervals and their availability on the current plan",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		sess, err := a.requireSession()
		if err != nil {
			return err
		}

		for _, choice := range modal.IntervalChoicesFor(sess.Subscription) {
			label := choice.Option.Label
			if choice.Locked {
				label += " (Premium)"
			}
			fmt.Printf("%6d  %s\n", choice.Option.Value, label)
		}

		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate uptime numbers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		if _, err := a.requireSession(); err != nil {
			return err
		}

		stats, err := a.client.DashboardStats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Websites: %d total, %d up, %d down\n", stats.TotalWebsites, stats.UpWebsites, stats.DownWebsites)
		fmt.Printf("Uptime:   %.2f%%\n", stats.UptimePercentage)

		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Check a URL once from this machine, without an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result := probe.Check(cmd.Context(), args[0])

		if result.Up() {
			fmt.Printf("%s is up (HTTP %d, %s)\n", args[0], result.StatusCode, result.ResponseTime.Round(time.Millisecond))
		} else {
			fmt.Printf("%s is down: %s\n", args[0], result.ErrorMessage)
		}

		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local read-only dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		if _, err := a.requireSession(); err != nil {
			return err
		}

		addr := envOr("UPTIMEGUARD_LISTEN", "127.0.0.1:8081")
		handler := web.NewHandler(a.client, a.sessions, a.sites)

		logrus.Infof("Dashboard listening on http://%s", addr)

		return http.ListenAndServe(addr, handlers.LoggingHandler(os.Stdout, handler))
	},
}

func promptLine(label string) (string, error) {
	fmt.Print(label)

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

func promptPassword(label string) (string, error) {
	fmt.Print(label)

	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}

	return string(b), nil
}

func promptConfirm(label string) (bool, error) {
	answer, err := promptLine(label)
	if err != nil {
		return false, err
	}

	answer = strings.ToLower(answer)

	return answer == "y" || answer == "yes", nil
}
