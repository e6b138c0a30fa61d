package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	authEmail    string
	authPassword string
	authName     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session token",
	RunE: func(cmd *cobra.Command, args []string) error {
		if authEmail == "" || authPassword == "" {
			return errors.New("--email and --password are required")
		}
		st, err := newStack(false)
		if err != nil {
			return err
		}
		defer st.close()

		if err := st.sess.Login(context.Background(), authEmail, authPassword); err != nil {
			if reason := st.sess.Snapshot().LastError; reason != "" {
				return errors.New(reason)
			}
			return err
		}
		fmt.Printf("Signed in as %s\n", st.sess.Snapshot().User.Name)
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		if authName == "" || authEmail == "" || authPassword == "" {
			return errors.New("--name, --email and --password are required")
		}
		st, err := newStack(false)
		if err != nil {
			return err
		}
		defer st.close()

		if err := st.sess.Register(context.Background(), authName, authEmail, authPassword); err != nil {
			if reason := st.sess.Snapshot().LastError; reason != "" {
				return errors.New(reason)
			}
			return err
		}
		fmt.Printf("Registered %s\n", st.sess.Snapshot().User.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove the persisted token",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStack(false)
		if err != nil {
			return err
		}
		defer st.close()

		st.sess.Logout(context.Background())
		fmt.Println("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the account behind the persisted token",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newStack(false)
		if err != nil {
			return err
		}
		defer st.close()

		if err := st.sess.LoadSession(context.Background()); err != nil {
			return err
		}
		snap := st.sess.Snapshot()
		if !snap.Authenticated() {
			return errors.New("not signed in")
		}
		u := snap.User
		fmt.Printf("%s <%s>\n", u.Name, u.Email)
		fmt.Printf("solved: %d (easy %d / medium %d / hard %d), streak: %d days\n",
			u.Statistics.TotalSolved, u.Statistics.EasySolved,
			u.Statistics.MediumSolved, u.Statistics.HardSolved,
			u.Statistics.CurrentStreak)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&authEmail, "email", "", "account email")
	loginCmd.Flags().StringVar(&authPassword, "password", "", "account password")
	registerCmd.Flags().StringVar(&authName, "name", "", "display name")
	registerCmd.Flags().StringVar(&authEmail, "email", "", "account email")
	registerCmd.Flags().StringVar(&authPassword, "password", "", "account password")

	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, whoamiCmd)
}
