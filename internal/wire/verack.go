package wire

// VerackMessage acknowledges a received version message. It carries no
// payload.
type VerackMessage struct{}

func (v *VerackMessage) Serialize() ([]byte, error) {
	return []byte{}, nil
}

func (v VerackMessage) Command() string {
	return "verack"
}
