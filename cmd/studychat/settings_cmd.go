package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/hartyporpoise/studychat/internal/config"
	"github.com/hartyporpoise/studychat/internal/settings"
)

// newSettingsCmd inspects or changes the stored settings without going
// through the HTTP server.
func newSettingsCmd(cfg *config.Config, w io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored API key and student level",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the stored student level and whether an API key is set",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := store.Get(c.Context())
			if err != nil {
				return err
			}
			key := "not set"
			if st.HasAPIKey() {
				key = "set (" + maskKey(st.APIKey) + ")"
			}
			fmt.Fprintf(w, "Store:         %s\n", settings.Backend(cfg.StoreURL))
			fmt.Fprintf(w, "API key:       %s\n", key)
			fmt.Fprintf(w, "Student level: %s\n", st.StudentLevel)
			return nil
		},
	}

	var apiKey, level string
	set := &cobra.Command{
		Use:   "set",
		Short: "Overwrite the stored API key and student level",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			l := settings.Level(level)
			if l != "" && !l.Known() {
				fmt.Fprintf(w, "Warning: %q is not one of %v; storing it anyway\n", level, settings.Levels())
			}
			if err := store.Save(c.Context(), settings.Settings{APIKey: apiKey, StudentLevel: l}); err != nil {
				return err
			}
			fmt.Fprintln(w, "Settings saved.")
			return nil
		},
	}
	set.Flags().StringVar(&apiKey, "api-key", "", "Provider API key (empty clears it)")
	set.Flags().StringVar(&level, "level", string(settings.DefaultLevel),
		"Student level: excellent, good, average or weak")

	cmd.AddCommand(show, set)
	return cmd
}

// maskKey keeps the last four characters of a key for display.
func maskKey(k string) string {
	r := []rune(k)
	if len(r) <= 4 {
		return "****"
	}
	return "****" + string(r[len(r)-4:])
}
