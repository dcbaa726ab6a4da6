package query

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ytget/psn-updater/internal/titleid"
)

// Vendor URL templates
const (
	PS3UpdateURLTemplate = "https://a0.ww.np.dl.playstation.net/tpl/np/%[1]s/%[1]s-ver.xml"
	PS4UpdateURLTemplate = "https://gs-sec.ww.np.dl.playstation.net/plo/np/%[1]s/%[2]s/%[1]s-ver.xml"
)

// ps4HashKey keys the HMAC that forms the PS4 update path segment.
const ps4HashKey = "AD62E37F905E06BC19593142281C112CEC0E7EC3E97EFDCAEFCDBAAFA6378D84"

// EndpointFunc builds the update document URL for a title.
type EndpointFunc func(id titleid.TitleID) (string, error)

// VendorEndpoint returns the vendor update document URL for id.
func VendorEndpoint(id titleid.TitleID) (string, error) {
	switch id.Platform() {
	case titleid.PlatformPS3:
		return fmt.Sprintf(PS3UpdateURLTemplate, id), nil
	case titleid.PlatformPS4:
		key, err := hex.DecodeString(ps4HashKey)
		if err != nil {
			return "", fmt.Errorf("decode ps4 key: %w", err)
		}
		mac := hmac.New(sha256.New, key)
		mac.Write([]byte("np_" + id.String()))
		return fmt.Sprintf(PS4UpdateURLTemplate, id, hex.EncodeToString(mac.Sum(nil))), nil
	default:
		return "", fmt.Errorf("no update endpoint for title id %q", id)
	}
}
