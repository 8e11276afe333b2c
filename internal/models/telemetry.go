package models

import (
	"time"

	"gorm.io/datatypes"
)

// Telemetry описывает одно показание датчика, присланное устройством.
// Записи неизменяемы: после создания нет ни update, ни delete.
type Telemetry struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	DeviceID        string            `gorm:"column:device_id;not null" json:"device_id"`
	DeviceTimestamp time.Time         `gorm:"column:ts_device" json:"ts_device"`
	ServerTimestamp time.Time         `gorm:"column:ts_server;not null" json:"ts_server"`
	Temperature     float64           `gorm:"not null" json:"temperature"`
	Humidity        float64           `gorm:"not null" json:"humidity"`
	Touch           datatypes.JSONMap `gorm:"column:touch" json:"touch,omitempty"`
	WifiRSSI        *float64          `gorm:"column:wifi_rssi" json:"wifi_rssi,omitempty"`
	FreeHeap        *float64          `gorm:"column:free_heap" json:"free_heap,omitempty"`
}
