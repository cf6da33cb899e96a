package models

// Game types supported by the panel.
const (
	GameArmaReforger = "arma_reforger"
	GameArma4        = "arma_4"
)

// Server status values.
const (
	ServerOffline    = "offline"
	ServerOnline     = "online"
	ServerRestarting = "restarting"
)

// ServerInstance is a managed (simulated) game server.
type ServerInstance struct {
	BaseModel

	Name           string `gorm:"size:128;not null" json:"name"`
	GameType       string `gorm:"size:32;not null" json:"game_type"`
	Port           int    `gorm:"not null" json:"port"`
	MaxPlayers     int    `gorm:"not null" json:"max_players"`
	CurrentPlayers int    `gorm:"default:0" json:"current_players"`
	Status         string `gorm:"size:16;not null;default:offline;index" json:"status"`
	InstallPath    string `gorm:"not null" json:"install_path"`
	OwnerID        string `gorm:"size:36;not null;index" json:"user_id"`
}
