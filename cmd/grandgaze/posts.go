package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/grandgaze/internal/errors"
	"github.com/jrsteele09/grandgaze/posts"
	"github.com/spf13/cobra"
)

func (c *cli) newPostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Browse and manage procurement posts",
	}
	cmd.AddCommand(c.newPostsListCmd())
	cmd.AddCommand(c.newPostsMineCmd())
	cmd.AddCommand(c.newPostsCreateCmd())
	cmd.AddCommand(c.newPostsDeleteCmd())
	return cmd
}

func (c *cli) newPostsListCmd() *cobra.Command {
	var sector string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List published posts, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			normalized, ok := posts.NormalizeSector(sector)
			if !ok {
				return apperrors.Validation("Unknown sector")
			}
			a, err := c.newApp(false)
			if err != nil {
				return err
			}
			defer a.session.Close()

			list, err := a.client.ListPosts(cmd.Context(), normalized)
			if err != nil {
				return userError("Listing posts", err)
			}
			printPosts(cmd.OutOrStdout(), list, time.Now())
			return nil
		},
	}
	cmd.Flags().StringVar(&sector, "sector", "", "only show posts in this sector")
	return cmd
}

func (c *cli) newPostsMineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List the signed-in institution's posts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.newApp(false)
			if err != nil {
				return err
			}
			defer a.session.Close()

			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			list, err := a.client.ListMyPosts(cmd.Context())
			if err != nil {
				return userError("Listing posts", err)
			}
			printPosts(cmd.OutOrStdout(), list, time.Now())
			return nil
		},
	}
}

func (c *cli) newPostsCreateCmd() *cobra.Command {
	form := posts.NewForm()
	var postType string
	var requirements []string
	var documentPath string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new post",
		RunE: func(cmd *cobra.Command, _ []string) error {
			form.Type = posts.Type(postType)
			form.Requirements = strings.Join(requirements, "\n")
			if err := form.Validate(time.Now()); err != nil {
				return err
			}

			a, err := c.newApp(false)
			if err != nil {
				return err
			}
			defer a.session.Close()

			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			document, done, err := openUpload(documentPath)
			if err != nil {
				return err
			}
			defer done()

			p, err := a.client.CreatePost(cmd.Context(), form, document)
			if err != nil {
				return userError("Creating the post", err)
			}
			cmd.Printf("Post created: %s\n", p.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Title, "title", "", "title")
	cmd.Flags().StringVar(&postType, "type", string(posts.TypeRFP), "RFP, RFQ or Invitation")
	cmd.Flags().StringVar(&form.Sector, "sector", "", "sector")
	cmd.Flags().StringVar(&form.Description, "description", "", "description")
	cmd.Flags().StringVar(&form.Deadline, "deadline", "", "deadline ("+posts.DateLayout+")")
	cmd.Flags().StringVar(&form.Budget, "budget", "", "budget")
	cmd.Flags().StringVar(&form.ContactEmail, "contact-email", "", "contact email")
	cmd.Flags().StringVar(&form.ContactPhone, "contact-phone", "", "contact phone")
	cmd.Flags().StringArrayVar(&requirements, "requirement", nil, "a requirement, repeat for several")
	cmd.Flags().StringVar(&documentPath, "document", "", "path to a supporting document")
	return cmd
}

func (c *cli) newPostsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Delete one of your posts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.newApp(false)
			if err != nil {
				return err
			}
			defer a.session.Close()

			if _, err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			if err := a.client.DeletePost(cmd.Context(), args[0]); err != nil {
				return userError("Deleting the post", err)
			}
			cmd.Println("Post deleted.")
			return nil
		},
	}
}

func printPosts(out io.Writer, list []posts.Post, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No posts found.")
		return
	}
	for _, p := range list {
		status := ""
		if p.Expired(now) {
			status = " (closed)"
		}
		fmt.Fprintf(out, "%s  [%s] %s%s\n", p.ID, p.Type, p.Title, status)
		fmt.Fprintf(out, "    %s | deadline %s", p.Sector, p.Deadline.UTC().Format(posts.DateLayout))
		if p.Institution != nil {
			fmt.Fprintf(out, " | %s", p.Institution.Name)
		}
		fmt.Fprintf(out, "\n    %s\n", p.Excerpt(120))
	}
}
