package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/config"
	"github.com/kalambet/jobtrail/internal/profile"
)

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show or edit your career profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the profile summary, or the full profile with --json",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, _, err := a.signedIn(cmd.Context())
		if err != nil {
			return err
		}
		mgr := a.profileManager()
		p, err := mgr.Profile(ctx)
		if err != nil {
			return a.authErr(ctx, err)
		}
		if asJSON {
			return printJSON(cmd.OutOrStdout(), p)
		}

		summary, err := mgr.Summary(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, colorize(colorBold, orDefault(p.BasicInfo.Username, "Profile")))
		fmt.Fprintln(out, summary)
		return nil
	},
}

func init() {
	profileShowCmd.Flags().Bool("json", false, "print the full profile as JSON")
}

var profileSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a profile field",
	Long: `Set a profile field by its dotted path. Values that parse as JSON (numbers,
lists, objects) are stored as such; anything else is stored as text.

Examples:
  jobtrail profile set basicInfo.location "Berlin, Germany"
  jobtrail profile set professionalInfo.experienceYears 7`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, value := args[0], parseValue(args[1])
		return mutateProfile(cmd, func(ctx context.Context, mgr *profile.Manager) (*collection.Mutation, error) {
			return mgr.Set(ctx, path, value)
		})
	},
}

// parseValue decodes numbers, lists and objects. Everything else, booleans
// included, stays text.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		switch v.(type) {
		case float64, []any, map[string]any:
			return v
		}
	}
	return s
}

var profileAddCmd = &cobra.Command{
	Use:   "add <path> <value>",
	Short: "Add an entry to a profile list",
	Long: fmt.Sprintf(`Add an entry to a profile list. Lists:
  %s`, strings.Join(profile.ListPaths, "\n  ")),
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, value := args[0], strings.Join(args[1:], " ")
		return mutateProfile(cmd, func(ctx context.Context, mgr *profile.Manager) (*collection.Mutation, error) {
			return mgr.AddItem(ctx, path, value)
		})
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <path> <index|value>",
	Short: "Remove an entry from a profile list",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, target := args[0], strings.Join(args[1:], " ")
		return mutateProfile(cmd, func(ctx context.Context, mgr *profile.Manager) (*collection.Mutation, error) {
			index, err := itemIndex(ctx, mgr, path, target)
			if err != nil {
				return nil, err
			}
			return mgr.RemoveItem(ctx, path, index)
		})
	},
}

// itemIndex resolves target to a position in the list at path. A number is
// taken as an index; anything else is matched against the entries.
func itemIndex(ctx context.Context, mgr *profile.Manager, path, target string) (int, error) {
	if i, err := strconv.Atoi(target); err == nil {
		return i, nil
	}
	rec, err := mgr.Get(ctx)
	if err != nil {
		return 0, err
	}
	v, _ := rec.Lookup(path)
	items, _ := v.([]any)
	for i, it := range items {
		if s, ok := it.(string); ok && strings.EqualFold(s, target) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%q is not in %s", target, path)
}

var profileUploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a resume and attach it to the profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading resume: %w", err)
		}
		name := filepath.Base(args[0])
		printStep("Uploading %s...", name)
		return mutateProfile(cmd, func(ctx context.Context, mgr *profile.Manager) (*collection.Mutation, error) {
			return mgr.AttachResume(ctx, name, bytes.NewReader(content), int64(len(content)))
		})
	},
}

// mutateProfile runs one profile edit and waits for the backend's answer.
func mutateProfile(cmd *cobra.Command, change func(context.Context, *profile.Manager) (*collection.Mutation, error)) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, _, err := a.signedIn(cmd.Context())
	if err != nil {
		return err
	}

	mgr := a.profileManager()
	m, err := change(ctx, mgr)
	if err != nil {
		return a.authErr(ctx, err)
	}
	return a.settleProfile(ctx, mgr, m)
}

func init() {
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileRemoveCmd)
	profileCmd.AddCommand(profileUploadCmd)
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

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: fmt.Sprintf(`Set a configuration value. Keys:
  %s`, strings.Join(config.ValidKeys(), "\n  ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
