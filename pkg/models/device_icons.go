package models

// DeviceGlyph maps a DeviceKind to the glyph drawn on the terminal canvas.
var DeviceGlyph = map[DeviceKind]string{
	DeviceKindHost:   "▣",
	DeviceKindSwitch: "⇄",
	DeviceKindRouter: "◎",
}

// IDPrefix maps a DeviceKind to the prefix of generated device ids.
var IDPrefix = map[DeviceKind]string{
	DeviceKindHost:   "h",
	DeviceKindSwitch: "s",
	DeviceKindRouter: "r",
}

// Glyph returns the glyph for a DeviceKind.
// Returns "?" for unrecognised kinds.
func (k DeviceKind) Glyph() string {
	if g, ok := DeviceGlyph[k]; ok {
		return g
	}
	return "?"
}

// Prefix returns the id prefix for a DeviceKind, or "d" when unknown.
func (k DeviceKind) Prefix() string {
	if p, ok := IDPrefix[k]; ok {
		return p
	}
	return "d"
}
