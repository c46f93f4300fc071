package model

// RegisterPoint describes where the Modbus bridge publishes one numeric
// field. Each value occupies two registers starting at Address.
type RegisterPoint struct {
	Address uint16 `json:"address"`
	Key     string `json:"key"`
	Name    string `json:"name"`
	Unit    string `json:"unit"`
}

// RegisterReading is a decoded register pair as read back by a client.
type RegisterReading struct {
	RegisterPoint
	Value     float32 `json:"value"`
	Available bool    `json:"available"`
}
