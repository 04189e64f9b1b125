package api

import (
	"crypto/rand"
	"math/big"
	"regexp"
)

const (
	idLength = 16
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Request ID prefixes, one per endpoint family. The prefix makes a request's
// origin readable in the log file without consulting other fields.
const (
	ChatIDPrefix         = "req_"
	SyncIDPrefix         = "sync_"
	MiniProgramIDPrefix  = "mp_"
	SimpleIDPrefix       = "simple_"
	NetworkCheckIDPrefix = "net_"
)

var requestIDPattern = regexp.MustCompile(`^(req|sync|mp|simple|net)_[a-zA-Z0-9]{16}$`)

// NewRequestID generates a request ID with the given prefix followed by 16
// cryptographically random alphanumeric characters.
func NewRequestID(prefix string) string {
	return prefix + randomAlphanumeric(idLength)
}

// ValidateRequestID checks whether the given string is a well-formed request
// ID with a known prefix.
func ValidateRequestID(id string) bool {
	return requestIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
