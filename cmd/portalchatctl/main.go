package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/matheus3301/portalchat/internal/api"
	"github.com/matheus3301/portalchat/internal/config"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	asFlag := flag.String("as", os.Getenv(config.EnvPrefix+"USER"), "acting user as id[:name[:role]]")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	cfg, err := config.LoadOrDefault(config.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	_ = config.LoadEnv(cfg, config.EnvPath())

	profile := config.ResolveProfile(*profileFlag, cfg)
	if err := config.ValidateName(profile); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c, err := api.Dial(cfg.SocketFor(profile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for profile %q: %v\n", profile, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	var me *api.User
	if *asFlag != "" {
		u := parseUser(*asFlag)
		me = &u
	}

	if args[0] == "watch" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		cmdWatch(ctx, c, me, *jsonFlag)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		resp, err := c.Status(ctx)
		exitOn(err)
		if *jsonFlag {
			outputJSON(resp)
			return
		}
		fmt.Printf("Profile:       %s\n", resp.Profile)
		fmt.Printf("Status:        %s\n", resp.Status)
		fmt.Printf("Uptime:        %dms\n", resp.UptimeMs)
		fmt.Printf("Store:         %s\n", resp.StoreDriver)
		fmt.Printf("Conversations: %d\n", resp.ConversationCount)
		fmt.Printf("Messages:      %d\n", resp.MessageCount)
		fmt.Printf("In state:      %dms\n", resp.StateSinceMs)
		fmt.Printf("Pending:       %d\n", resp.PendingReplies)
		fmt.Printf("Dropped:       %d\n", resp.DroppedEvents)
	case "conversations":
		resp, err := c.LoadConversations(ctx, &api.LoadConversationsRequest{Viewer: me})
		exitOn(err)
		if *jsonFlag {
			outputJSON(resp)
			return
		}
		for _, conv := range resp.Conversations {
			fmt.Printf("%s  %-24s  %3d unread  %s\n", conv.ID, conv.DisplayName, conv.UnreadCount, conv.LastMessageSnippet)
		}
		fmt.Printf("%d unread total\n", resp.TotalUnread)
	case "start":
		if len(args) < 2 {
			usageExit("usage: portalchatctl --as <user> start <user>")
		}
		resp, err := c.StartOrGetConversation(ctx, &api.StartOrGetConversationRequest{Viewer: me, Recipient: parseUser(args[1])})
		exitOn(err)
		printConversation(resp, *jsonFlag)
	case "group":
		if len(args) < 3 {
			usageExit("usage: portalchatctl --as <user> group <name|-> <user> <user>...")
		}
		name := args[1]
		if name == "-" {
			name = ""
		}
		var users []api.User
		for _, a := range args[2:] {
			users = append(users, parseUser(a))
		}
		resp, err := c.StartConversation(ctx, &api.StartConversationRequest{Viewer: me, Participants: users, Name: name})
		exitOn(err)
		printConversation(resp, *jsonFlag)
	case "open":
		if len(args) < 2 {
			usageExit("usage: portalchatctl --as <user> open <conversation>")
		}
		resp, err := c.OpenConversation(ctx, &api.OpenConversationRequest{Viewer: me, ConversationID: args[1]})
		exitOn(err)
		if *jsonFlag {
			outputJSON(resp)
			return
		}
		for _, m := range resp.Messages {
			fmt.Printf("[%s] %s: %s\n", api.Time(m.TimestampUnixMs).Format("15:04:05"), m.SenderName, m.Content)
		}
	case "send":
		if len(args) < 3 {
			usageExit("usage: portalchatctl --as <user> send <conversation> <text>")
		}
		resp, err := c.SendMessage(ctx, &api.SendMessageRequest{Viewer: me, ConversationID: args[1], Content: strings.Join(args[2:], " ")})
		exitOn(err)
		if *jsonFlag {
			outputJSON(resp)
			return
		}
		fmt.Printf("Accepted: %v\n", resp.Accepted)
	case "unread":
		req := &api.UnreadCountRequest{Viewer: me}
		if len(args) > 1 {
			req.ConversationID = args[1]
		}
		resp, err := c.UnreadCount(ctx, req)
		exitOn(err)
		if *jsonFlag {
			outputJSON(resp)
			return
		}
		if req.ConversationID != "" {
			fmt.Printf("Unread: %d\n", resp.Count)
		}
		fmt.Printf("Total:  %d\n", resp.Total)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: portalchatctl [--profile <name>] [--as id[:name[:role]]] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                       Show daemon status")
	fmt.Fprintln(os.Stderr, "  conversations                List conversations of the acting user")
	fmt.Fprintln(os.Stderr, "  start <user>                 Start or reopen a 1:1 conversation")
	fmt.Fprintln(os.Stderr, "  group <name|-> <user>...     Start a group conversation")
	fmt.Fprintln(os.Stderr, "  open <conversation>          Show messages and mark them read")
	fmt.Fprintln(os.Stderr, "  send <conversation> <text>   Send a message")
	fmt.Fprintln(os.Stderr, "  unread [conversation]        Show unread counts")
	fmt.Fprintln(os.Stderr, "  watch                        Stream events")
}

func cmdWatch(ctx context.Context, c *api.Client, me *api.User, jsonOut bool) {
	err := c.WatchEvents(ctx, &api.WatchEventsRequest{Viewer: me}, func(evt *api.Event) error {
		if jsonOut {
			outputJSON(evt)
			return nil
		}
		ts := api.Time(evt.OccurredAtUnixMs).Format("15:04:05")
		switch {
		case evt.Message != nil:
			fmt.Printf("%s %s %s: %s\n", ts, evt.Kind, evt.Message.SenderName, evt.Message.Content)
		case evt.Conversation != nil:
			fmt.Printf("%s %s %s\n", ts, evt.Kind, evt.Conversation.DisplayName)
		case evt.Receipt != nil:
			fmt.Printf("%s %s %s read %d\n", ts, evt.Kind, evt.Receipt.ReaderID, evt.Receipt.Count)
		case evt.Status != nil:
			fmt.Printf("%s %s %s -> %s\n", ts, evt.Kind, evt.Status.From, evt.Status.To)
		}
		return nil
	})
	exitOn(err)
}

func printConversation(resp *api.ConversationResponse, jsonOut bool) {
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Println(resp.ConversationID)
}

// parseUser reads id[:name[:role]].
func parseUser(s string) api.User {
	parts := strings.SplitN(s, ":", 3)
	u := api.User{ID: parts[0]}
	if len(parts) > 1 {
		u.Name = parts[1]
	}
	if len(parts) > 2 {
		u.Role = parts[2]
	}
	return u
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usageExit(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
