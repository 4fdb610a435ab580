package tor

import (
	"encoding/base32"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Onion address constants.
const (
	// OnionSuffix is the common suffix for all onion addresses.
	OnionSuffix = ".onion"

	// OnionV3Version is the version byte of v3 onion addresses.
	OnionV3Version = 0x03
)

// onionV3Pattern matches v3 onion hosts: 56 base32 characters.
var onionV3Pattern = regexp.MustCompile(`^[a-z2-7]{56}\.onion$`)

// onionV2Pattern matches deprecated v2 onion hosts: 16 base32 characters.
var onionV2Pattern = regexp.MustCompile(`^[a-z2-7]{16}\.onion$`)

// checksumPrefix is the prefix hashed into the v3 address checksum.
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host is in the .onion domain.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(host), OnionSuffix)
}

// ValidateOnionHost checks that host is a v3 onion address with a valid
// checksum. Subdomains of an onion address are accepted.
func ValidateOnionHost(host string) error {
	host = strings.ToLower(host)
	if labels := strings.Split(strings.TrimSuffix(host, OnionSuffix), "."); len(labels) > 1 {
		host = labels[len(labels)-1] + OnionSuffix
	}

	if onionV2Pattern.MatchString(host) {
		return ErrV2AddressDeprecated
	}
	if !onionV3Pattern.MatchString(host) {
		return ErrInvalidOnionAddress
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(strings.TrimSuffix(host, OnionSuffix)))
	// public key (32) + checksum (2) + version (1)
	if err != nil || len(decoded) != 35 {
		return ErrInvalidOnionAddress
	}

	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != OnionV3Version {
		return ErrInvalidOnionAddress
	}
	want := computeV3Checksum(pubkey, version)
	if checksum[0] != want[0] || checksum[1] != want[1] {
		return ErrInvalidOnionAddress
	}
	return nil
}

// computeV3Checksum returns the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func computeV3Checksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)

	hash := sha3.Sum256(data)
	return hash[:2]
}

// AddressFromPublicKey returns the v3 onion host of an ed25519 public key.
func AddressFromPublicKey(pubkey []byte) (string, error) {
	if len(pubkey) != 32 {
		return "", ErrInvalidOnionAddress
	}

	data := make([]byte, 35)
	copy(data[:32], pubkey)
	copy(data[32:34], computeV3Checksum(pubkey, OnionV3Version))
	data[34] = OnionV3Version

	return strings.ToLower(base32.StdEncoding.EncodeToString(data)) + OnionSuffix, nil
}

// OnionSeeds validates the onion hosts among seeds and reports whether
// there are any. Seeds without a scheme are read as http URLs.
func OnionSeeds(seeds []string) (bool, error) {
	found := false
	for _, seed := range seeds {
		raw := seed
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil || !IsOnionHost(u.Hostname()) {
			continue
		}
		if err := ValidateOnionHost(u.Hostname()); err != nil {
			return false, fmt.Errorf("%s: %w", seed, err)
		}
		found = true
	}
	return found, nil
}
