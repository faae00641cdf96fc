package utils // helpers for ticket identifiers and scan tokens

import (
	"crypto/rand"
	"fmt"
	"time"
)

// base36 digits used for the random suffix of a ticket ID.
const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// idSuffixLen is the number of random characters after the
// timestamp. 36^9 values per millisecond makes a collision with a
// concurrently issued ticket overwhelmingly unlikely; the ticket
// store still rejects the rare duplicate and the engine retries
// with a fresh ID.
const idSuffixLen = 9

// NewTicketID generates a candidate ticket identifier of the form
// ticket_<unixMillis>_<random base36 suffix>. The timestamp keeps
// IDs roughly sortable by issuance time; the suffix comes from
// crypto/rand so two tickets issued in the same millisecond still
// differ.
func NewTicketID() (string, error) {
	suffix := make([]byte, idSuffixLen)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	for i, b := range suffix {
		suffix[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return fmt.Sprintf("ticket_%d_%s", time.Now().UnixMilli(), suffix), nil
}
