package bot

import (
	"fmt"
	"strconv"
	"strings"

	"booru_feed/internal/model"
)

// ParseTags turns space-separated user input into a tag set. A leading "-"
// marks an exclusion.
func ParseTags(args string) model.TagSet {
	var ts model.TagSet
	for _, f := range strings.Fields(args) {
		ts.Add(f)
	}
	return ts
}

// ParseIndexArg extracts a 1-based group number from a command argument string.
func ParseIndexArg(args string) (int, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("feed number is required")
	}
	n, err := strconv.Atoi(strings.Fields(s)[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid feed number %q", strings.Fields(s)[0])
	}
	return n, nil
}

// ParseIndexAndRest extracts a feed number and the remaining text.
// usage is returned as the error when the text is missing.
func ParseIndexAndRest(args, usage string) (int, string, error) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if len(parts) < 2 {
		return 0, "", fmt.Errorf("usage: %s", usage)
	}
	n, err := ParseIndexArg(parts[0])
	if err != nil {
		return 0, "", err
	}
	rest := strings.TrimSpace(parts[1])
	if rest == "" {
		return 0, "", fmt.Errorf("usage: %s", usage)
	}
	return n, rest, nil
}

// ParseOnOff reads a boolean switch argument.
func ParseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "true", "1":
		return true, nil
	case "off", "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

// ParseFilterArgs parses "<name> <on|off>" for /filter.
func ParseFilterArgs(args string) (string, bool, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return "", false, fmt.Errorf("usage: /filter <ai|scat|shota> <on|off>")
	}
	on, err := ParseOnOff(parts[1])
	if err != nil {
		return "", false, err
	}
	return strings.ToLower(parts[0]), on, nil
}

// ParseCredsArgs parses "<user_id> <api_key>". Empty args clear the credentials.
func ParseCredsArgs(args string) (string, string, error) {
	parts := strings.Fields(args)
	switch len(parts) {
	case 0:
		return "", "", nil
	case 2:
		return parts[0], parts[1], nil
	default:
		return "", "", fmt.Errorf("usage: /creds <user_id> <api_key>")
	}
}

// ParsePerPage parses the page size argument.
func ParsePerPage(args string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(args))
	if err != nil {
		return 0, fmt.Errorf("usage: /perpage <1-%d>", model.MaxPerPage)
	}
	return n, nil
}

// ParseCallback splits inline button data into action and argument.
func ParseCallback(data string) (action, arg string, ok bool) {
	action, arg, ok = strings.Cut(data, ":")
	if !ok || action == "" {
		return "", "", false
	}
	return action, arg, true
}
