package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "peer":
		return peerTemplate, nil
	case "peer-local":
		return localPeerTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const peerTemplate = `peer_id = 1
listen_addr = ":7300"
peers = ["10.0.0.2:7300", "10.0.0.3:7300"]
admin_addr = "127.0.0.1:7400"
cors_origins = ["http://localhost:3000"]

tick_interval = "50ms"
sync_range = 25.0
periodic_range = 50.0
periodic_interval = "2s"
position = [0.0, 0.0, 0.0]

[request]
timeout = "1s"
max_attempts = 3
initial_delay = "250ms"
multiplier = 2.0
max_delay = "2s"
jitter = false

[[objects]]
type = "pickupable"
id = 1

[[objects]]
type = "ai_vehicle"
id = 2
`

const localPeerTemplate = `peer_id = 1
listen_addr = "127.0.0.1:7301"
peers = ["127.0.0.1:7302"]
admin_addr = "127.0.0.1:7401"
tick_interval = "50ms"

[[objects]]
type = "pickupable"
id = 1
`
