package session

import (
	"fmt"
	"time"

	"github.com/tidwall/sjson"
)

// Export renders the conversation as a JSON document suitable for saving:
// the export timestamp, the active model, the account address, and every
// message with its attestation flag.
func (s *Session) Export() ([]byte, error) {
	s.mu.Lock()
	model := s.model
	msgs := make([]Message, len(s.messages))
	copy(msgs, s.messages)
	s.mu.Unlock()

	out := []byte(`{}`)
	var err error
	if out, err = sjson.SetBytes(out, "timestamp", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("export session: %w", err)
	}
	out, _ = sjson.SetBytes(out, "model", model.Name)

	account := s.account
	if account == "" {
		account = "Not connected"
	}
	out, _ = sjson.SetBytes(out, "account", account)

	// Ensure "messages" is present even for an empty conversation.
	out, _ = sjson.SetRawBytes(out, "messages", []byte(`[]`))
	for i, m := range msgs {
		prefix := fmt.Sprintf("messages.%d.", i)
		out, _ = sjson.SetBytes(out, prefix+"sender", string(m.Role))
		out, _ = sjson.SetBytes(out, prefix+"content", m.Content)
		out, _ = sjson.SetBytes(out, prefix+"timestamp", m.Timestamp.UTC().Format(time.RFC3339))
		if m.ModelID != "" {
			out, _ = sjson.SetBytes(out, prefix+"model", m.ModelID)
		}
		out, _ = sjson.SetBytes(out, prefix+"verified", m.Verified)
	}
	return out, nil
}
