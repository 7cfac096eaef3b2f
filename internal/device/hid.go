package device

import (
	"context"

	"github.com/karalabe/hid"

	provErr "github.com/otoco-io/ledger-web3-subprovider/pkg/errors"
)

// ledgerVendorID is the USB vendor identifier of Ledger devices.
const ledgerVendorID = 0x2c97

// ledgerUsagePage is the HID usage page the Ethereum app channel is
// advertised on.
const ledgerUsagePage = 0xffa0

// ledgerProductIDs lists the known Ledger device models, per
// https://github.com/LedgerHQ/ledger-live/blob/develop/libs/ledgerjs/packages/devices/src/index.ts
var ledgerProductIDs = []uint16{
	0x0000, /* Ledger Blue */
	0x0001, /* Ledger Nano S */
	0x0004, /* Ledger Nano X */
	0x0005, /* Ledger Nano S Plus */
	0x0006, /* Ledger Nano FTS */

	0x0015, /* HID + U2F + WebUSB Ledger Blue */
	0x1015, /* HID + U2F + WebUSB Ledger Nano S */
	0x4015, /* HID + U2F + WebUSB Ledger Nano X */
	0x5015, /* HID + U2F + WebUSB Ledger Nano S Plus */
	0x6015, /* HID + U2F + WebUSB Ledger Nano FTS */

	0x0011, /* HID + WebUSB Ledger Blue */
	0x1011, /* HID + WebUSB Ledger Nano S */
	0x4011, /* HID + WebUSB Ledger Nano X */
	0x5011, /* HID + WebUSB Ledger Nano S Plus */
	0x6011, /* HID + WebUSB Ledger Nano FTS */
}

// HIDFactory opens the first attached Ledger device over USB HID.
type HIDFactory struct{}

// NewHIDFactory returns a Factory backed by the host HID subsystem.
func NewHIDFactory() Factory {
	return HIDFactory{}
}

// Open implements Factory, enumerating attached Ledger devices and
// opening the first one advertising the Ethereum app channel.
func (HIDFactory) Open(ctx context.Context) (Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !hid.Supported() {
		return nil, provErr.Wrap(provErr.ErrNoDeviceFound, "hid not supported on this platform")
	}

	infos, err := hid.Enumerate(ledgerVendorID, 0)
	if err != nil {
		return nil, provErr.Device(err)
	}
	for _, info := range infos {
		for _, id := range ledgerProductIDs {
			if info.ProductID != id || info.UsagePage != ledgerUsagePage {
				continue
			}
			conn, openErr := info.Open()
			if openErr != nil {
				return nil, provErr.Device(openErr)
			}
			return NewLedgerClient(conn), nil
		}
	}
	return nil, provErr.ErrNoDeviceFound
}
