package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GeneratePNR creates a booking reference like "TKT-68B2F1-4F7A2C9D".
// The space is large enough that collisions are rare; the tickets table's
// unique key plus a bounded retry in the store handles the rest.
func GeneratePNR() string {
	ts := time.Now().UnixMilli()
	tsHex := fmt.Sprintf("%X", ts)
	if len(tsHex) > 6 {
		tsHex = tsHex[len(tsHex)-6:]
	}
	randomNum, err := rand.Int(rand.Reader, big.NewInt(0xFFFFFFFF))
	if err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to
		// the timestamp alone rather than panicking in a booking path.
		return fmt.Sprintf("TKT-%s-%08X", tsHex, ts&0xFFFFFFFF)
	}
	return fmt.Sprintf("TKT-%s-%08X", tsHex, randomNum.Int64())
}

// GenerateEventID creates an identifier for published booking events.
func GenerateEventID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999999))
	return fmt.Sprintf("evt_%d_%09d", timestamp, randomNum.Int64())
}
