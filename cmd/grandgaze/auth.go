package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/jrsteele09/grandgaze/apiclient"
	"github.com/jrsteele09/grandgaze/institutions"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (c *cli) newLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newApp(false)
			if err != nil {
				return err
			}
			defer a.session.Close()

			if password == "" {
				if password, err = readSecret(cmd.InOrStdin(), cmd.OutOrStdout(), "Password: "); err != nil {
					return err
				}
			}

			identity, err := a.session.Login(cmd.Context(), institutions.Credentials{Identifier: email, Secret: password})
			if err != nil {
				return userError("Login", err)
			}
			cmd.Printf("Logged in as %s <%s>\n", identity.Name, identity.Email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "institution email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newApp(false)
			if err != nil {
				return err
			}
			defer a.session.Close()

			if err := a.session.Logout(cmd.Context()); err != nil {
				return userError("Logout", err)
			}
			cmd.Println("Logged out")
			return nil
		},
	}
}

func (c *cli) newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in institution",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newApp(false)
			if err != nil {
				return err
			}
			defer a.session.Close()

			snap := a.session.Resolve(cmd.Context())
			if !snap.Authenticated() {
				cmd.Println("Not logged in")
				return nil
			}
			printInstitution(cmd, snap.Identity)
			return nil
		},
	}
}

func (c *cli) newRegisterCmd() *cobra.Command {
	var reg institutions.Registration
	var logoPath string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new institution",
		Long: `Register a new institution. Registration does not log you in;
run "grandgaze login" afterwards.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newApp(false)
			if err != nil {
				return err
			}
			defer a.session.Close()

			if reg.Password == "" {
				if reg.Password, err = readSecret(cmd.InOrStdin(), cmd.OutOrStdout(), "Password: "); err != nil {
					return err
				}
			}

			logo, done, err := openUpload(logoPath)
			if err != nil {
				return err
			}
			defer done()

			if _, err := a.client.Register(cmd.Context(), reg, logo); err != nil {
				return userError("Registration", err)
			}
			cmd.Println("Registration successful. Please log in.")
			return nil
		},
	}
	cmd.Flags().StringVar(&reg.Name, "name", "", "institution name")
	cmd.Flags().StringVarP(&reg.Email, "email", "e", "", "institution email")
	cmd.Flags().StringVarP(&reg.Password, "password", "p", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&reg.Sector, "sector", "", "sector, one of "+fmt.Sprint(institutions.Sectors))
	cmd.Flags().StringVar(&reg.Description, "description", "", "description")
	cmd.Flags().StringVar(&reg.Website, "website", "", "website URL")
	cmd.Flags().StringVar(&reg.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&reg.Address, "address", "", "postal address")
	cmd.Flags().StringVar(&logoPath, "logo", "", "path to a logo image")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("sector")
	return cmd
}

// openUpload opens an optional file for upload. Call done when the request has been sent.
func openUpload(path string) (file *apiclient.File, done func(), err error) {
	done = func() {}
	if path == "" {
		return nil, done, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, done, errors.Wrapf(err, "opening %s", path)
	}
	return &apiclient.File{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Reader:      f,
	}, func() { _ = f.Close() }, nil
}

func printInstitution(cmd *cobra.Command, i *institutions.Institution) {
	cmd.Printf("%s <%s>\n", i.Name, i.Email)
	for _, field := range [][2]string{
		{"Sector", i.Sector},
		{"Website", i.Website},
		{"Phone", i.Phone},
		{"Address", i.Address},
		{"Logo", i.Logo},
		{"About", i.Description},
	} {
		if field[1] != "" {
			cmd.Printf("  %-8s %s\n", field[0]+":", field[1])
		}
	}
}
