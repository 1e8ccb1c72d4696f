package serial

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.bug.st/serial/enumerator"
)

// PortType is the bus a port is attached to, as far as the host can tell.
type PortType string

const (
	PortTypeUSB       PortType = "USB"
	PortTypeBluetooth PortType = "Bluetooth"
	PortTypePCI       PortType = "PCI"
	PortTypeUnknown   PortType = "Unknown"
)

// PortInfo describes one port reported by the host.
type PortInfo struct {
	Name         string   `json:"name"`
	PortType     PortType `json:"portType"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Product      string   `json:"product,omitempty"`
	VID          string   `json:"vid,omitempty"`
	PID          string   `json:"pid,omitempty"`
	SerialNumber string   `json:"serialNumber,omitempty"`
}

const sysfsRoot = "/sys"

// ListPorts enumerates the serial ports the OS reports. No probing is done.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "cannot list serial ports")
	}
	return lo.Map(ports, func(p *enumerator.PortDetails, _ int) PortInfo {
		return describePort(p, sysfsRoot)
	}), nil
}

func describePort(p *enumerator.PortDetails, sysRoot string) PortInfo {
	info := PortInfo{Name: p.Name, PortType: PortTypeUnknown}
	base := filepath.Base(p.Name)
	device := filepath.Join(sysRoot, "class", "tty", base, "device")

	switch {
	case p.IsUSB:
		info.PortType = PortTypeUSB
		info.VID = p.VID
		info.PID = p.PID
		info.SerialNumber = p.SerialNumber
		info.Product = p.Product
		resolved, err := filepath.EvalSymlinks(device)
		if err != nil {
			break
		}
		// The usb device sits one level above an ACM interface and two above a usb-serial tty.
		for _, dir := range []string{filepath.Dir(resolved), filepath.Dir(filepath.Dir(resolved))} {
			if info.Manufacturer == "" {
				info.Manufacturer = readAttr(dir, "manufacturer")
			}
			if info.Product == "" {
				info.Product = readAttr(dir, "product")
			}
		}
	case strings.HasPrefix(base, "rfcomm"):
		info.PortType = PortTypeBluetooth
	default:
		if target, err := filepath.EvalSymlinks(filepath.Join(device, "subsystem")); err == nil &&
			filepath.Base(target) == "pci" {
			info.PortType = PortTypePCI
		}
	}
	return info
}

func readAttr(dir, name string) string {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
