package tui

import (
	"fmt"
	"strings"

	"github.com/matheus3301/portalchat/internal/api"
)

// Command is a parsed ':' command line.
type Command struct {
	Name string
	Args []string
}

// ParseCommand parses a command string without the leading ':'.
func ParseCommand(input string) Command {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Command{}
	}
	return Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}
}

// ParseUser parses "id[:name[:role]]".
func ParseUser(s string) (api.User, error) {
	parts := strings.SplitN(s, ":", 3)
	u := api.User{ID: strings.TrimSpace(parts[0])}
	if u.ID == "" {
		return api.User{}, fmt.Errorf("user %q: missing id", s)
	}
	if len(parts) > 1 {
		u.Name = parts[1]
	}
	if len(parts) > 2 {
		u.Role = parts[2]
	}
	return u, nil
}

// groupArgs splits "name user..." for the group command.
func groupArgs(args []string) (string, []api.User, error) {
	if len(args) < 2 {
		return "", nil, fmt.Errorf("usage: group <name> <id[:name]>...")
	}
	users := make([]api.User, 0, len(args)-1)
	for _, a := range args[1:] {
		u, err := ParseUser(a)
		if err != nil {
			return "", nil, err
		}
		users = append(users, u)
	}
	return args[0], users, nil
}
