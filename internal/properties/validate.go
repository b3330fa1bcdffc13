package properties

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/HerbHall/netcanvas/pkg/models"
)

// DefaultMaskBits is appended to addresses entered without a prefix length.
const DefaultMaskBits = 24

var addressPattern = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}(/\d{1,2})?$`)

// ValidationError is returned when user input is rejected before any
// remote call. Message is localized and meant to be shown as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidAddress reports whether s is a dotted IPv4 address with an optional
// /0-32 prefix length.
func ValidAddress(s string) bool {
	if !addressPattern.MatchString(s) {
		return false
	}
	addr, bits, hasBits := strings.Cut(s, "/")
	for _, octet := range strings.Split(addr, ".") {
		n, err := strconv.Atoi(octet)
		if err != nil || n > 255 {
			return false
		}
	}
	if hasBits {
		n, err := strconv.Atoi(bits)
		if err != nil || n > 32 {
			return false
		}
	}
	return true
}

// NormalizeAddress appends the default prefix length to a bare address of
// an addressable kind. Switch addresses are never touched.
func NormalizeAddress(kind models.DeviceKind, ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" || !kind.Addressable() || strings.Contains(ip, "/") {
		return ip
	}
	return ip + "/" + strconv.Itoa(DefaultMaskBits)
}

// HostPart strips the prefix length from a CIDR address.
func HostPart(ip string) string {
	host, _, _ := strings.Cut(ip, "/")
	return host
}
