package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wingmanlabs/wingman/internal/config"
)

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage user profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/profile/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <user-id> <key> <value>",
	Short: "Set a profile field",
	Long: `Set a profile field.

Examples:
  wingman profile set u1 name Jordan
  wingman profile set u1 responseStyle spicy
  wingman profile set u1 emojiUsage 3`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, key, value := args[0], args[1], args[2]

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		// Numbers, booleans, and arrays pass through as JSON; everything
		// else is a plain string.
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}

		body := map[string]any{"userId": userID, key: parsed}
		resp, err := client.post(cmd.Context(), "/api/profile", body)
		if err != nil {
			return err
		}

		var result any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var profileResetCmd = &cobra.Command{
	Use:   "reset <user-id>",
	Short: "Delete a profile and its chat history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete the profile and all its history. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/api/profile/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Profile %s deleted", args[0])
		return nil
	},
}

func init() {
	profileResetCmd.Flags().Bool("confirm", false, "confirm profile deletion")
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileResetCmd)
}

// --- suggest ---

var suggestCmd = &cobra.Command{
	Use:   "suggest <user-id> <their-message>",
	Short: "Suggest replies to a message",
	Long: `Suggest replies to a message, style-matched to the stored profile.

Examples:
  wingman suggest u1 "wyd tonight"
  wingman suggest u1 --who "my crush" "so what are we"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]
		theirMessage := strings.Join(args[1:], " ")
		who, _ := cmd.Flags().GetString("who")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]any{
			"userId":           userID,
			"context":          theirMessage,
			"conversationType": who,
		}
		resp, err := client.post(cmd.Context(), "/api/keyboard/suggest", body)
		if err != nil {
			return err
		}

		var result struct {
			Suggestions  []string `json:"suggestions"`
			FallbackUsed bool     `json:"fallbackUsed"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.FallbackUsed {
			printWarning("model unavailable, canned suggestions")
		}
		for i, s := range result.Suggestions {
			fmt.Printf("%s %s\n", colorize(colorBold, fmt.Sprintf("%d.", i+1)), s)
		}
		return nil
	},
}

func init() {
	suggestCmd.Flags().String("who", "", `who sent it (e.g. "my crush", "my ex", "a friend")`)
}

// --- interactions ---

var interactionsCmd = &cobra.Command{
	Use:   "interactions",
	Short: "Inspect recorded assist turns",
}

var interactionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent interactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/admin/interactions?limit=%d", limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var interactions []struct {
			ID           string `json:"id"`
			UserID       string `json:"userId"`
			Kind         string `json:"kind"`
			CreatedAt    string `json:"createdAt"`
			FallbackUsed bool   `json:"fallbackUsed"`
		}
		if err := decodeJSON(resp, &interactions); err != nil {
			return err
		}

		if len(interactions) == 0 {
			fmt.Println("No interactions found.")
			return nil
		}

		for _, ix := range interactions {
			marker := ""
			if ix.FallbackUsed {
				marker = colorize(colorYellow, " [fallback]")
			}
			fmt.Printf("%s  %s  %s  %s%s\n",
				colorize(colorCyan, ix.ID[:8]),
				ix.CreatedAt,
				ix.UserID,
				ix.Kind,
				marker,
			)
		}
		return nil
	},
}

var interactionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single interaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/admin/interactions/"+args[0])
		if err != nil {
			return err
		}

		var interaction any
		if err := decodeJSON(resp, &interaction); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(interaction)
	},
}

func init() {
	interactionsListCmd.Flags().Int("limit", 20, "maximum number of interactions to list")
	interactionsCmd.AddCommand(interactionsListCmd)
	interactionsCmd.AddCommand(interactionsShowCmd)
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
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
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
