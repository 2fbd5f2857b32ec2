// carebot CLI - command line client for the carebot daemon
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eldtechnologies/carebot/clients/go/carebot"
)

type options struct {
	baseURL string
	token   string
	jsonOut bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	st := newStyles()

	root := &cobra.Command{
		Use:   "carebot",
		Short: "Talk to the healthcare assistant through the local carebot daemon",
		Long: `carebot sends messages to the healthcare assistant through the local
daemon. Messages sent while offline are queued by the daemon and answered,
in order, once the assistant is reachable again.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("CAREBOT_URL", carebot.DefaultURL), "daemon URL")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("CAREBOT_API_TOKEN"), "local API token")
	root.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print raw JSON")

	client := func() *carebot.Client { return carebot.NewClient(opts.baseURL, opts.token) }

	root.AddCommand(&cobra.Command{
		Use:   "send <message>",
		Short: "Send a message to the assistant",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := client().Send(strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return printJSON(out, res)
			}
			fmt.Fprintln(out, st.renderMessage(res.User))
			if res.Reply != nil {
				fmt.Fprintln(out, st.renderMessage(*res.Reply))
			}
			if res.Queued {
				fmt.Fprintln(out, st.Muted.Render("Queued; the reply will arrive when the connection is restored."))
			}
			return nil
		},
	})

	var limit int
	history := &cobra.Command{
		Use:   "history",
		Short: "Show the conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := client().Conversation(limit, "")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return printJSON(out, conv)
			}
			if conv.HasMore {
				fmt.Fprintln(out, st.Muted.Render("... earlier messages omitted"))
			}
			for _, m := range conv.Messages {
				fmt.Fprintln(out, st.renderMessage(m))
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	history.Flags().IntVarP(&limit, "limit", "n", 0, "show only the newest N messages")
	root.AddCommand(history)

	root.AddCommand(&cobra.Command{
		Use:   "queue",
		Short: "List messages waiting for connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := client().Queue()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return printJSON(out, q)
			}
			if q.Length == 0 {
				fmt.Fprintln(out, "Queue is empty.")
				return nil
			}
			for i, qs := range q.Pending {
				fmt.Fprintf(out, "%d. %s %s\n", i+1, st.Muted.Render(qs.QueuedAt.Local().Format("15:04:05")), qs.Text)
			}
			return nil
		},
	})

	for _, online := range []bool{true, false} {
		name, short := "online", "Signal that the assistant is reachable"
		if !online {
			name, short = "offline", "Signal that the assistant is unreachable"
		}
		root.AddCommand(&cobra.Command{
			Use:   name,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := client().SetConnectivity(online)
				if err != nil {
					return err
				}
				if opts.jsonOut {
					return printJSON(cmd.OutOrStdout(), c)
				}
				fmt.Fprintln(cmd.OutOrStdout(), st.connectivityLine(c.Online, c.QueueDepth))
				return nil
			},
		})
	}

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show connectivity and conversation summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := client().Stats()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return printJSON(out, s)
			}
			fmt.Fprintln(out, st.connectivityLine(s.Online, s.QueueDepth))
			fmt.Fprintf(out, "%d messages, last activity %s\n", s.TotalMessages, s.LastActivity)
			if n := s.ByStatus["failed"]; n > 0 {
				fmt.Fprintln(out, st.Failed.Render(fmt.Sprintf("%d failed replies", n)))
			}
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "health",
		Short: "Check daemon health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := client().Health()
			if h == nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				if perr := printJSON(out, h); perr != nil {
					return perr
				}
				return err
			}
			fmt.Fprintf(out, "%s (version %s)\n", h.Status, h.Version)
			for name, c := range h.Checks {
				line := fmt.Sprintf("  %-10s %s", name, c.Status)
				if c.Message != "" {
					line += " " + st.Muted.Render(c.Message)
				}
				fmt.Fprintln(out, line)
			}
			return err
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Clear the conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := client().Reset()
			if err != nil {
				return err
			}
			if opts.jsonOut {
				return printJSON(cmd.OutOrStdout(), conv)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Conversation cleared.")
			return nil
		},
	})

	root.AddCommand(newPrefsCmd(opts, client))

	root.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show conversation statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := client().Stats()
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), s)
		},
	})

	var listenLang string
	listen := &cobra.Command{
		Use:   "listen",
		Short: "Speak a message using the daemon's speech recognizer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := client().Listen(listenLang)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return printJSON(out, res)
			}
			fmt.Fprintln(out, st.renderMessage(res.Result.User))
			if res.Result.Reply != nil {
				fmt.Fprintln(out, st.renderMessage(*res.Result.Reply))
			}
			return nil
		},
	}
	listen.Flags().StringVar(&listenLang, "lang", "", "recognition language (defaults to the preference)")
	root.AddCommand(listen)

	root.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Follow the conversation as it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, client(), cmd.OutOrStdout(), st)
		},
	})

	return root
}

func newPrefsCmd(opts *options, client func() *carebot.Client) *cobra.Command {
	var (
		tts, stt, autoSpeak bool
		lang                string
	)
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client()
			var update carebot.PreferencesUpdate
			changed := false

			flags := cmd.Flags()
			if flags.Changed("tts") || flags.Changed("stt") || flags.Changed("auto-speak") {
				current, err := c.Preferences()
				if err != nil {
					return err
				}
				v := current.Voice
				if flags.Changed("tts") {
					v.TextToSpeech = tts
				}
				if flags.Changed("stt") {
					v.SpeechToText = stt
				}
				if flags.Changed("auto-speak") {
					v.AutoSpeak = autoSpeak
				}
				update.Voice = &v
				changed = true
			}
			if flags.Changed("lang") {
				update.Language = &lang
				changed = true
			}

			var (
				p   *carebot.Preferences
				err error
			)
			if changed {
				p, err = c.UpdatePreferences(update)
			} else {
				p, err = c.Preferences()
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOut {
				return printJSON(out, p)
			}
			fmt.Fprintf(out, "language:       %s\n", p.Language)
			fmt.Fprintf(out, "text to speech: %t\n", p.Voice.TextToSpeech)
			fmt.Fprintf(out, "speech to text: %t\n", p.Voice.SpeechToText)
			fmt.Fprintf(out, "auto speak:     %t\n", p.Voice.AutoSpeak)
			return nil
		},
	}
	cmd.Flags().BoolVar(&tts, "tts", true, "read assistant replies aloud")
	cmd.Flags().BoolVar(&stt, "stt", true, "allow voice input")
	cmd.Flags().BoolVar(&autoSpeak, "auto-speak", false, "speak replies without asking")
	cmd.Flags().StringVar(&lang, "lang", "", "language tag, e.g. en or hi")
	return cmd
}

func watch(ctx context.Context, c *carebot.Client, out io.Writer, st styles) error {
	return c.Watch(ctx, func(ev carebot.Event) error {
		switch ev.Name {
		case "appended":
			var m carebot.Message
			if err := json.Unmarshal(ev.Data, &m); err != nil {
				return err
			}
			fmt.Fprintln(out, st.renderMessage(m))
			fmt.Fprintln(out)
		case "status_changed":
			var m carebot.Message
			if err := json.Unmarshal(ev.Data, &m); err != nil {
				return err
			}
			fmt.Fprintln(out, st.Muted.Render(fmt.Sprintf("message %s is now %s", m.ID, m.Status)))
		case "reset":
			fmt.Fprintln(out, st.Muted.Render("conversation cleared"))
		case "connectivity":
			var c struct {
				Online bool `json:"online"`
			}
			if err := json.Unmarshal(ev.Data, &c); err != nil {
				return err
			}
			fmt.Fprintln(out, st.connectivityLine(c.Online, -1))
		}
		return nil
	})
}

// connectivityLine describes the connection state. A negative depth is
// omitted.
func (s styles) connectivityLine(online bool, depth int) string {
	state := s.Assistant.Render("online")
	if !online {
		state = s.Pending.Render("offline")
	}
	if depth < 0 {
		return "assistant " + state
	}
	return fmt.Sprintf("assistant %s, %d queued", state, depth)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
