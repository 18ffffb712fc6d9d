package response

import "time"

type WSResponse struct {
	Success          bool          `json:"success"`
	Action           string        `json:"action,omitempty"`
	Error            string        `json:"error,omitempty"`
	Message          string        `json:"message,omitempty"`
	Token            string        `json:"token,omitempty"`
	ExpiresAt        *time.Time    `json:"expires_at,omitempty"`
	User             *UserResponse `json:"user,omitempty"`
	Status           *ServerStatus `json:"server_status,omitempty"`
	AvailableActions []string      `json:"available_actions,omitempty"`
	Timestamp        *time.Time    `json:"timestamp,omitempty"`
}

type WSWelcome struct {
	Type          string    `json:"type"`
	Message       string    `json:"message"`
	ServerVersion string    `json:"server_version"`
	Timestamp     time.Time `json:"timestamp"`
}

type ServerStatus struct {
	Version              string `json:"version"`
	UptimeSeconds        int64  `json:"uptime_seconds"`
	ConnectedClients     int    `json:"connected_clients"`
	AuthenticatedClients int    `json:"authenticated_clients"`
	RegisteredUsers      int64  `json:"registered_users"`
	Status               string `json:"status"`
}
