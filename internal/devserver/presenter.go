package devserver

import "strconv"

// Presentation is what the status widget renders for a connection
// snapshot.
type Presentation struct {
	Label      string `json:"label"`
	Color      string `json:"color"`
	Spinning   bool   `json:"spinning"`
	URL        string `json:"url,omitempty"`
	CanConnect bool   `json:"canConnect"`
	CanRestart bool   `json:"canRestart"`
	CanStop    bool   `json:"canStop"`
	CanRetry   bool   `json:"canRetry"`
	Detail     string `json:"detail,omitempty"`
}

// Present maps a connection snapshot to its widget state.
func Present(s Snapshot) Presentation {
	switch s.Status {
	case StatusConnecting:
		return Presentation{Label: "Connecting...", Color: "yellow", Spinning: true, CanStop: true}
	case StatusRestarting:
		return Presentation{Label: "Restarting...", Color: "yellow", Spinning: true, CanStop: true}
	case StatusConnected:
		return Presentation{
			Label:      "Connected",
			Color:      "green",
			URL:        localURL(s.Port),
			CanRestart: true,
			CanStop:    true,
		}
	case StatusError:
		return Presentation{Label: "Failed", Color: "red", CanRetry: true, Detail: s.ErrorMessage}
	default:
		return Presentation{Label: "Disconnected", Color: "gray", CanConnect: true}
	}
}

func localURL(port int) string {
	if port <= 0 {
		return ""
	}
	return "http://localhost:" + strconv.Itoa(port)
}
