package filter

import "sync"

// Plugin identity.
const (
	PluginName       = "scale"
	PluginVersion    = "1.0.0"
	InterfaceVersion = "1.0.0"
	PluginTypeFilter = "filter"
)

// Configuration item names read by the filter.
const (
	ItemEnable = "enable"
	ItemFactor = "factor"
)

// Info describes the plugin to its host.
type Info struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	Flags            uint   `json:"flags"`
	Type             string `json:"type"`
	InterfaceVersion string `json:"interface"`
	// Config is the default configuration category document.
	Config string `json:"config"`
}

var (
	infoOnce sync.Once
	info     Info
)

// PluginInfo returns the plugin information.
func PluginInfo() Info {
	infoOnce.Do(func() {
		doc, err := DefaultCategory().MarshalJSON()
		if err != nil {
			panic(err) // static document
		}
		info = Info{
			Name:             PluginName,
			Version:          PluginVersion,
			Type:             PluginTypeFilter,
			InterfaceVersion: InterfaceVersion,
			Config:           string(doc),
		}
	})
	return info
}
