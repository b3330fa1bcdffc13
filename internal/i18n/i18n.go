// Package i18n holds the user-facing message catalog. Message keys are the
// English texts; other locales register translations against them.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys shown through notifications and validation errors.
const (
	DeviceCreated        = "%s created successfully"
	DeviceCreateFailed   = "Failed to create device"
	DeviceDeleted        = "Device deleted successfully"
	DeviceDeleteFailed   = "Failed to delete device"
	DeviceUpdated        = "Device updated successfully"
	DeviceUpdateFailed   = "Failed to update device"
	PositionUpdateFailed = "Failed to update device position"
	ConnectionAdded      = "Connection added successfully"
	ConnectionAddFailed  = "Failed to create connection"
	ConnectionDeleted    = "Connection deleted successfully"
	ConnectionDelFailed  = "Failed to delete connection"
	TopologyLoadFailed   = "Failed to load topology"
	TopologyValid        = "Topology is valid. No errors found."
	TopologyInvalid      = "Topology has %d error(s) and %d warning(s)."
	ValidateFailed       = "Failed to validate topology"
	TopologyCreated      = "Topology %q created"
	TopologyActivated    = "Topology %q activated"
	TopologyDeleted      = "Topology deleted"
	InvalidIP            = "Invalid IP address. Use the format xxx.xxx.xxx.xxx or xxx.xxx.xxx.xxx/xx"
	InvalidInterfaceIP   = "Invalid IP address. Use the format xxx.xxx.xxx.xxx/xx"
	InterfaceFieldsEmpty = "Enter the interface name and IP address"
	InterfaceAdded       = "Interface added successfully"
	InterfacesLoadFailed = "Failed to load router interfaces"
	NetworkUnavailable   = "Network unavailable, check your connection"
	TraceStartFailed     = "Failed to start packet trace"
	TracePollFailed      = "Failed to get trace results"
	PingFailed           = "Failed to ping destination"
)

var russian = map[string]string{
	DeviceCreated:        "%s создан успешно",
	DeviceCreateFailed:   "Не удалось создать устройство",
	DeviceDeleted:        "Устройство удалено",
	DeviceDeleteFailed:   "Не удалось удалить устройство",
	DeviceUpdated:        "Устройство обновлено",
	DeviceUpdateFailed:   "Не удалось обновить устройство",
	PositionUpdateFailed: "Не удалось сохранить положение устройства",
	ConnectionAdded:      "Соединение добавлено",
	ConnectionAddFailed:  "Не удалось создать соединение",
	ConnectionDeleted:    "Соединение удалено",
	ConnectionDelFailed:  "Не удалось удалить соединение",
	TopologyLoadFailed:   "Не удалось загрузить топологию",
	TopologyValid:        "Топология действительна. Ошибок не обнаружено.",
	TopologyInvalid:      "Топология содержит %d ошибку(и) и %d предупреждение(я).",
	ValidateFailed:       "Не удалось проверить топологию",
	TopologyCreated:      "Топология %q создана",
	TopologyActivated:    "Топология %q активирована",
	TopologyDeleted:      "Топология удалена",
	InvalidIP:            "Недопустимый IP-адрес. Используйте формат xxx.xxx.xxx.xxx или xxx.xxx.xxx.xxx/xx",
	InvalidInterfaceIP:   "Недопустимый IP-адрес. Используйте формат xxx.xxx.xxx.xxx/xx",
	InterfaceFieldsEmpty: "Введите имя интерфейса и IP-адрес",
	InterfaceAdded:       "Интерфейс успешно добавлен",
	InterfacesLoadFailed: "Ошибка загрузки интерфейсов маршрутизатора",
	NetworkUnavailable:   "Сеть недоступна, проверьте подключение",
	TraceStartFailed:     "Не удалось запустить трассировку пакета",
	TracePollFailed:      "Не удалось получить результаты трассировки",
	PingFailed:           "Не удалось выполнить ping",
}

func init() {
	for key, msg := range russian {
		if err := message.SetString(language.Russian, key, msg); err != nil {
			panic("i18n: " + err.Error())
		}
	}
}

// Printer returns a printer for locale. Unknown or malformed locales fall
// back to English.
func Printer(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}
