package model

type HubStats struct {
	NodeID           string `json:"node_id"`
	TotalConnections int    `json:"total_connections"`
	Uptime           string `json:"uptime"`
}
