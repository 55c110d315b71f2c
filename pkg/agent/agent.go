package agent

// Agent is a managed device, keyed by IP.
type Agent struct {
	IP   string `json:"ip"`
	Name string `json:"name"`
}

// StatusOutcome is the result of polling one agent. Data is never nil.
type StatusOutcome struct {
	IP     string         `json:"ip"`
	Name   string         `json:"name"`
	Online bool           `json:"online"`
	Data   map[string]any `json:"data"`
}

func Offline(a Agent) StatusOutcome {
	return StatusOutcome{IP: a.IP, Name: a.Name, Online: false, Data: map[string]any{}}
}

// CommandOutcome is the result of sending one command to one agent.
// Response is set iff Success; Error is set iff not.
type CommandOutcome struct {
	IP         string         `json:"ip"`
	Success    bool           `json:"success"`
	Response   map[string]any `json:"response,omitempty"`
	Error      string         `json:"error,omitempty"`
	StatusCode int            `json:"-"`
}

func Failed(ip string, err error) CommandOutcome {
	return CommandOutcome{IP: ip, Success: false, Error: err.Error()}
}
