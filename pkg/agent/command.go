package agent

import (
	"encoding/json"
	"fmt"
)

type CommandKind string

const (
	CommandSetURL         CommandKind = "url"
	CommandRestartBrowser CommandKind = "restart-browser"
	CommandReboot         CommandKind = "reboot"
)

var commandKinds = map[CommandKind]struct{}{
	CommandSetURL:         {},
	CommandRestartBrowser: {},
	CommandReboot:         {},
}

func ParseCommandKind(s string) (CommandKind, error) {
	kind := CommandKind(s)
	if _, ok := commandKinds[kind]; !ok {
		return "", fmt.Errorf("unknown command: %q", s)
	}
	return kind, nil
}

type Command struct {
	Kind CommandKind
	// URL is only meaningful for CommandSetURL.
	URL string
}

func SetURL(url string) Command { return Command{Kind: CommandSetURL, URL: url} }
func RestartBrowser() Command   { return Command{Kind: CommandRestartBrowser} }
func Reboot() Command           { return Command{Kind: CommandReboot} }

// path is the agent endpoint, relative to the agent root.
func (c Command) path() string {
	return "/" + string(c.Kind)
}

func (c Command) body() ([]byte, error) {
	if c.Kind != CommandSetURL {
		return nil, nil
	}
	return json.Marshal(struct {
		URL string `json:"url"`
	}{URL: c.URL})
}
