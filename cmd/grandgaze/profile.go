package main

import (
	"context"

	"github.com/jrsteele09/grandgaze/institutions"
	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/jrsteele09/grandgaze/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// requireSession resolves the stored session and refuses to continue when nobody is signed in.
func (a *app) requireSession(ctx context.Context) (*institutions.Institution, error) {
	snap := a.session.Resolve(ctx)
	if session.Guard(snap.Status) != session.DecisionAllow {
		return nil, errors.New(`not logged in, run "grandgaze login" first`)
	}
	return snap.Identity, nil
}

func (c *cli) newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the signed-in institution",
	}
	cmd.AddCommand(c.newProfileUpdateCmd())
	cmd.AddCommand(c.newProfileDeleteCmd())
	return cmd
}

func (c *cli) newProfileUpdateCmd() *cobra.Command {
	var flags institutions.ProfileUpdate
	var logoPath string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change profile fields; omitted flags keep their current value",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newApp(false)
			if err != nil {
				return err
			}
			defer a.session.Close()

			identity, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			update := mergeProfile(institutions.ProfileFrom(identity), flags, cmd.Flags().Changed)

			logo, done, err := openUpload(logoPath)
			if err != nil {
				return err
			}
			defer done()

			profile, err := a.session.UpdateProfile(cmd.Context(), func(ctx context.Context) (*institutions.Institution, error) {
				return a.client.UpdateProfile(ctx, update, logo)
			})
			if err != nil {
				return userError("Profile update", err)
			}
			cmd.Println("Profile updated.")
			printInstitution(cmd, profile)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.Name, "name", "", "institution name")
	cmd.Flags().StringVar(&flags.Sector, "sector", "", "sector")
	cmd.Flags().StringVar(&flags.Description, "description", "", "description")
	cmd.Flags().StringVar(&flags.Website, "website", "", "website URL")
	cmd.Flags().StringVar(&flags.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&flags.Address, "address", "", "postal address")
	cmd.Flags().StringVar(&logoPath, "logo", "", "path to a new logo image")
	return cmd
}

// mergeProfile overlays the flags the user set onto the current profile.
func mergeProfile(current, flags institutions.ProfileUpdate, changed func(name string) bool) institutions.ProfileUpdate {
	for _, f := range []struct {
		name string
		dst  *string
		src  string
	}{
		{"name", &current.Name, flags.Name},
		{"sector", &current.Sector, flags.Sector},
		{"description", &current.Description, flags.Description},
		{"website", &current.Website, flags.Website},
		{"phone", &current.Phone, flags.Phone},
		{"address", &current.Address, flags.Address},
	} {
		if changed(f.name) {
			*f.dst = f.src
		}
	}
	return current
}

func (c *cli) newProfileDeleteCmd() *cobra.Command {
	var confirmed bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the institution and all of its posts, then log out",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirmed {
				return apperrors.Validation("refusing to delete the account without --yes")
			}
			a, err := c.newApp(false)
			if err != nil {
				return err
			}
			defer a.session.Close()

			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			if err := a.session.DeleteAccount(cmd.Context(), a.client.DeleteAccount); err != nil {
				return userError("Account deletion", err)
			}
			cmd.Println("Account deleted. You have been logged out.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the deletion")
	return cmd
}
